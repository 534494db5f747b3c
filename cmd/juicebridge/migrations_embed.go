package main

import (
	"embed"

	"juicebridge/internal/infrastructure/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
}
