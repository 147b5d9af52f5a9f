// Package pgstore implements the notification stores on PostgreSQL using pgx.
//
// A single Store satisfies every storage interface of the notifications
// package: the append-only notification log, preference and contact lookups,
// tenant rules, digest subscribers and the user-facing feed.
//
//	pool, err := pg.Connect(ctx, pgCfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
//
// Metadata and rule conditions are stored as JSONB, channels and enabled
// types as TEXT[].
package pgstore
