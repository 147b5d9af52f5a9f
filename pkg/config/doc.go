// Package config loads typed configuration from environment variables.
//
// Config structs declare their variables with caarlos0/env tags. A .env file in
// the working directory is read once before the first parse (see LoadDotenv),
// then each struct type is parsed and cached:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
// Types that implement Validator are checked after parsing; a failing check is
// reported as ErrInvalidConfig and the value is not cached.
package config
