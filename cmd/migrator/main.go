package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var dbURL, migrationsPath, migrationsTable string
	var down bool

	flag.StringVar(&dbURL, "db-url", os.Getenv("DATABASE_URL"), "postgres connection URL")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.BoolVar(&down, "down", false, "roll back one migration instead of migrating up")
	flag.Parse()

	if dbURL == "" {
		log.Fatal("db-url is required (flag or DATABASE_URL)")
	}

	sep := "?"
	if strings.Contains(dbURL, "?") {
		sep = "&"
	}
	m, err := migrate.New(
		"file://"+migrationsPath,
		fmt.Sprintf("%s%sx-migrations-table=%s", dbURL, sep, migrationsTable),
	)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}

	if down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No migrations to apply")
			return
		}
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations applied successfully")
}
