package main

import (
	"fieldops-system/migrations"
	"fieldops-system/pkg/config"
	"fieldops-system/pkg/database/postgresql"
	"fieldops-system/seeders"
)

func main() {
	cfg := config.New()

	postgresql.RunMigrations(cfg.Postgres.DSN, migrations.FS)
	db := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer db.Close()

	seeders.SeedAll(db)
}
