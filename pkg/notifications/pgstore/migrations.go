package pgstore

import "embed"

// MigrationsDir is the directory inside Migrations holding the goose files.
const MigrationsDir = "migrations"

// Migrations holds the schema for every table the Store reads and writes.
//
//go:embed migrations/*.sql
var Migrations embed.FS
