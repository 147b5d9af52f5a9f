// Package pg bootstraps PostgreSQL access with pgx/v5: a retrying pool
// constructor, goose migrations from an embedded filesystem, a readiness probe
// and helpers for classifying driver errors.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
package pg
