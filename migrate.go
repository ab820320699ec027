package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ms-invites/internal/config"
	"ms-invites/internal/database"
	"ms-invites/internal/database/migrations"
	"ms-invites/internal/logger"
)

// runMigrate handles "migrate [-to N] [-version]" against the configured database
func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	to := fs.Uint("to", migrations.LatestVersion, "schema version to migrate up or down to")
	versionOnly := fs.Bool("version", false, "print the applied schema version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(os.Stdout)

	// Connect without auto migration so the runner below decides what happens.
	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	bunDB, err := database.Connect(context.Background(), dbCfg, log)
	if err != nil {
		log.Error("MIGRATE", err.Error())
		return 1
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{Driver: cfg.Database.Driver, AutoMigrate: true}, log)

	if !*versionOnly {
		if *to < 1 || *to > migrations.LatestVersion {
			log.Error("MIGRATE", fmt.Sprintf("Version must be between 1 and %d", migrations.LatestVersion))
			return 2
		}
		if err := runner.MigrateTo(*to); err != nil {
			log.Error("MIGRATE", err.Error())
			return 1
		}
	}

	version, err := runner.Version()
	if err != nil {
		log.Error("MIGRATE", err.Error())
		return 1
	}
	fmt.Println(version)
	return 0
}
