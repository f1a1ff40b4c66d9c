package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/estatehub/showings/libs/config"
	"github.com/estatehub/showings/libs/runtime"
	appointmentmigrations "github.com/estatehub/showings/services/appointment-service/migrations"
	notificationmigrations "github.com/estatehub/showings/services/notification-service/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var sources = map[string]fs.FS{
	"appointment-service":  appointmentmigrations.FS,
	"notification-service": notificationmigrations.FS,
}

// Usage: migrate -service appointment-service [up|down|force <version>]
func main() {
	_ = config.Load()
	logger := runtime.NewLogger("migrate")

	service := flag.String("service", config.String("MIGRATE_SERVICE", "appointment-service"), "service whose schema to migrate")
	flag.Parse()

	src, ok := sources[*service]
	if !ok {
		logger.Error("unknown service", "service", *service)
		os.Exit(2)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(2)
	}

	if err := run(databaseURL, src, flag.Args()); err != nil {
		logger.Error("migration failed", "service", *service, "err", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "service", *service)
}

func run(databaseURL string, src fs.FS, args []string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(src, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(args) < 2 {
			return errors.New("force requires a version")
		}
		version, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return fmt.Errorf("invalid version: %w", convErr)
		}
		err = m.Force(version)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
