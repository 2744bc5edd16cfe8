package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"server/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		pathFlag string
		downFlag bool
	)
	flag.StringVar(&pathFlag, "path", "migrations", "directory containing migration files")
	flag.BoolVar(&downFlag, "down", false, "roll back all migrations instead of applying them")
	flag.Parse()

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database failed")
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrate driver failed")
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", pathFlag), "postgres", driver)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrate failed")
	}

	if downFlag {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Fatal().Err(verr).Msg("read migration version failed")
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
}
