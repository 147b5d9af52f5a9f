package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/schoolnotify/pkg/logger"
)

// Migrate applies the goose migrations found in dir of the given filesystem,
// usually an embed.FS shipped by the store package.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, dir string, cfg Config, log *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.LogAttrs(ctx, slog.LevelError, "Failed to close migration connection", logger.Error(err))
		}
	}()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&migrateSlogAdapter{log: log})
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// migrateSlogAdapter routes goose's Printf-style output through slog.
type migrateSlogAdapter struct {
	log *slog.Logger
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.LogAttrs(context.Background(), slog.LevelError, fmt.Sprintf(format, v...), logger.Component("migrations"))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.LogAttrs(context.Background(), slog.LevelInfo, fmt.Sprintf(format, v...), logger.Component("migrations"))
}
