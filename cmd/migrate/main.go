package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/shopcore-backend/pkg/bootstrap"
	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/db"
	"github.com/angelmondragon/shopcore-backend/pkg/migrate"
)

const usage = `usage: migrate -cmd <up|down|status|to|create|validate> [flags]

  up        apply pending migrations
  down      roll back the latest migration
  status    list migrations and whether they are applied
  to        migrate up or down to -version
  create    write a new migration under -dir named -name
  validate  check migration files without a database
`

func main() {
	cmd := flag.String("cmd", "up", "migration command")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; the default is embedded in the binary")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// create and validate work on files only
	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	proc := bootstrap.Start("migrate")
	cfg, logg := proc.Config(), proc.Logger()
	if cfg.DB.Driver == config.DriverSQLite {
		exitf("goose migrations target postgres; sqlite schemas are built by SHOPCORE_AUTO_MIGRATE")
	}

	ctx, stop := proc.Context(map[string]any{"cmd": *cmd, "dir": *dir})
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	proc.Must(err, "failed to bootstrap database")
	proc.OnClose("database", dbClient.Close)
	defer proc.Close()

	sqlDB, err := dbClient.DB().DB()
	proc.Must(err, "failed to extract sql.DB")
	runner, err := migrate.NewRunner(sqlDB, *dir, os.Stdout)
	proc.Must(err, "failed to load migrations")

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = runner.Status(ctx)
	case "to":
		if *version == "" {
			exitf("missing -version for to")
		}
		err = runner.To(ctx, *version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	proc.Must(err, "migration command failed")
	logg.Info(ctx, "migration command finished")
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
