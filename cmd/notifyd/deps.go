package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/schoolnotify/pkg/config"
	"github.com/dmitrymomot/schoolnotify/pkg/httpserver"
	"github.com/dmitrymomot/schoolnotify/pkg/logger"
	mongoclient "github.com/dmitrymomot/schoolnotify/pkg/mongo"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/inapp"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/mongorules"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/pgstore"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/redislock"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/yamlrules"
	"github.com/dmitrymomot/schoolnotify/pkg/pg"
	"github.com/dmitrymomot/schoolnotify/pkg/redis"
)

// dependencies holds the external backends and the adapters built on them.
type dependencies struct {
	store  *pgstore.Store
	rules  notifications.RuleStore
	locker notifications.Locker
	inApp  notifications.InAppPublisher
	hub    *inapp.Hub
	checks []httpserver.Check

	closers []func()
}

// Close releases connections in reverse order of creation.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// connect opens PostgreSQL (required) and the optional Redis and MongoDB
// backends. Rules come from RULES_FILE when set, then MongoDB, then PostgreSQL.
func connect(ctx context.Context, app appConfig, log *slog.Logger) (_ *dependencies, err error) {
	deps := &dependencies{locker: notifications.NewKeyedLocker()}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, pool.Close)
	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
		return nil, err
	}
	deps.store = pgstore.New(pool)
	deps.rules = deps.store
	deps.checks = append(deps.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, err
	}
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, func() { _ = client.Close() })
		deps.locker = redislock.New(client,
			redislock.WithKeyPrefix(redisCfg.KeyPrefix),
			redislock.WithTTL(app.LockTTL),
		)
		deps.inApp = inapp.New(client, redisCfg.KeyPrefix)
		deps.checks = append(deps.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	} else {
		deps.hub = inapp.NewHub(app.StreamBuffer)
		deps.inApp = deps.hub
		deps.closers = append(deps.closers, deps.hub.Close)
		log.LogAttrs(ctx, slog.LevelWarn, "Redis not configured, using in-process admission lock and in-app hub")
	}

	switch {
	case app.RulesFile != "":
		store, err := yamlrules.Load(app.RulesFile)
		if err != nil {
			return nil, err
		}
		deps.rules = store
		log.LogAttrs(ctx, slog.LevelInfo, "Loaded notification rules from file", slog.String("path", app.RulesFile))
	default:
		var mongoCfg mongoclient.Config
		if err := config.Load(&mongoCfg); err != nil {
			return nil, err
		}
		if !mongoCfg.Enabled() {
			break
		}
		db, err := mongoclient.NewWithDatabase(ctx, mongoCfg)
		if err != nil {
			return nil, err
		}
		client := db.Client()
		deps.closers = append(deps.closers, func() { _ = client.Disconnect(context.Background()) })

		store := mongorules.New(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "Failed to ensure rule indexes", logger.Error(err))
		}
		deps.rules = store
		deps.checks = append(deps.checks, httpserver.Check{Name: "mongodb", Fn: mongoclient.Healthcheck(client)})
	}

	return deps, nil
}
