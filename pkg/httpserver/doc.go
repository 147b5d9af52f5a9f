// Package httpserver runs notifyd's HTTP listener with graceful shutdown and
// JSON health probes.
//
// Run blocks until the supplied context is cancelled, so the server fits an
// errgroup next to the event consumer and digest scheduler. The process
// installs its own signal handling with signal.NotifyContext.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// LivenessHandler always reports alive. ReadinessHandler runs named checks
// (Postgres, Redis, MongoDB pings) and answers 503 when any of them fails.
package httpserver
