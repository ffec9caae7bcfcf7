package db

import "embed"

// Migrations holds the goose SQL migrations of the ledger schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
