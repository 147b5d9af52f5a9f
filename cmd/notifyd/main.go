// Command notifyd runs the school notification service: the HTTP API, the
// school event consumer and the digest scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/schoolnotify/pkg/config"
	"github.com/dmitrymomot/schoolnotify/pkg/email"
	"github.com/dmitrymomot/schoolnotify/pkg/events"
	"github.com/dmitrymomot/schoolnotify/pkg/httpserver"
	"github.com/dmitrymomot/schoolnotify/pkg/logger"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/gateway"
	"github.com/dmitrymomot/schoolnotify/pkg/notifications/httpapi"
)

// appConfig holds the settings that belong to the binary rather than a package.
type appConfig struct {
	RulesFile        string        `env:"RULES_FILE"`
	RequestTimeout   time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ReadinessTimeout time.Duration `env:"HTTP_READINESS_TIMEOUT" envDefault:"2s"`
	LockTTL          time.Duration `env:"NOTIFY_LOCK_TTL" envDefault:"10s"`
	StreamBuffer     int           `env:"NOTIFY_STREAM_BUFFER" envDefault:"16"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notifyd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	log, err := logger.FromConfig(logCfg, logger.WithContextValue("request_id", middleware.RequestIDKey))
	if err != nil {
		return err
	}
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}

	deps, err := connect(ctx, app, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc, batcher, err := buildService(deps, log)
	if err != nil {
		return err
	}

	var (
		schedCfg  notifications.SchedulerConfig
		amqpCfg   events.Config
		serverCfg httpserver.Config
	)
	if err := errors.Join(config.Load(&schedCfg), config.Load(&amqpCfg), config.Load(&serverCfg)); err != nil {
		return err
	}

	scheduler := notifications.NewDigestScheduler(deps.store, batcher,
		notifications.WithCheckInterval(schedCfg.CheckInterval),
		notifications.WithSchedulerLogger(log.With(logger.Component("digest_scheduler"))),
	)
	consumer := events.NewConsumer(amqpCfg, svc,
		events.WithConsumerLogger(log.With(logger.Component("event_consumer"))),
	)
	apiOpts := []httpapi.Option{
		httpapi.WithLogger(log.With(logger.Component("http"))),
		httpapi.WithRequestTimeout(app.RequestTimeout),
		httpapi.WithReadinessTimeout(app.ReadinessTimeout),
		httpapi.WithReadinessChecks(deps.checks...),
	}
	if deps.hub != nil {
		apiOpts = append(apiOpts, httpapi.WithStream(deps.hub))
	}
	api := httpapi.New(svc, deps.store, apiOpts...)
	server := httpserver.NewFromConfig(serverCfg, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, api.Routes()) })
	g.Go(func() error { return consumer.Run(gctx) })
	if deps.hub != nil {
		// Open event streams would otherwise hold the HTTP shutdown until its timeout.
		g.Go(func() error {
			<-gctx.Done()
			deps.hub.Close()
			return nil
		})
	}
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	log.LogAttrs(ctx, slog.LevelInfo, "notifyd started")
	if err := g.Wait(); err != nil {
		log.LogAttrs(context.Background(), slog.LevelError, "notifyd stopped with error", logger.Error(err))
		return err
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "notifyd stopped")
	return nil
}

func buildService(deps *dependencies, log *slog.Logger) (*notifications.Service, *notifications.DigestBatcher, error) {
	var policyCfg notifications.PolicyConfig
	if err := config.Load(&policyCfg); err != nil {
		return nil, nil, err
	}
	policy, err := policyCfg.Policy()
	if err != nil {
		return nil, nil, err
	}

	var mailCfg email.Config
	if err := config.Load(&mailCfg); err != nil {
		return nil, nil, err
	}
	mailer, err := email.New(mailCfg)
	if err != nil {
		return nil, nil, err
	}

	pipeline := notifications.NewPipeline(policy, deps.store, deps.store,
		notifications.WithPipelineLogger(log.With(logger.Component("admission"))),
	)
	rules := notifications.NewRuleEvaluator(policy, deps.rules,
		notifications.WithRuleEvaluatorLogger(log.With(logger.Component("rules"))),
	)

	var deliveryCfg notifications.DeliveryConfig
	if err := config.Load(&deliveryCfg); err != nil {
		return nil, nil, err
	}
	orchestratorOpts := []notifications.OrchestratorOption{
		notifications.WithOrchestratorLogger(log.With(logger.Component("delivery"))),
		notifications.WithChannelTimeout(deliveryCfg.ChannelTimeout),
	}
	if deps.inApp != nil {
		orchestratorOpts = append(orchestratorOpts, notifications.WithInAppPublisher(deps.inApp))
	}
	gatewayOpts, err := gatewaySenders()
	if err != nil {
		return nil, nil, err
	}
	orchestratorOpts = append(orchestratorOpts, gatewayOpts...)
	orchestrator := notifications.NewOrchestrator(deps.store, deps.store, deps.store, mailer, orchestratorOpts...)

	batcher := notifications.NewDigestBatcher(deps.store, deps.store, mailer,
		notifications.WithDigestPreferences(deps.store),
		notifications.WithDigestLogger(log.With(logger.Component("digest"))),
	)

	svc := notifications.NewService(pipeline, rules, orchestrator, batcher, deps.store,
		notifications.WithServiceLogger(log),
		notifications.WithLocker(deps.locker),
	)
	return svc, batcher, nil
}

// gatewaySenders builds SMS and push senders for the configured gateways.
func gatewaySenders() ([]notifications.OrchestratorOption, error) {
	var cfg gateway.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	var opts []notifications.OrchestratorOption
	if cfg.SMSURL != "" {
		sms, err := gateway.New(cfg.SMSURL, notifications.ChannelSMS, cfg.Options()...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, notifications.WithSMSSender(sms))
	}
	if cfg.PushURL != "" {
		push, err := gateway.New(cfg.PushURL, notifications.ChannelPush, cfg.Options()...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, notifications.WithPushSender(push))
	}
	return opts, nil
}
