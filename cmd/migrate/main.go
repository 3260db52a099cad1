// cmd/migrate/main.go
// Creates the matching schema and optionally seeds profiles from a JSON file

package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/database"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/logging"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/config"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/matching"
)

func main() {
	seedFile := flag.String("seed", "", "path to a JSON array of profiles to upsert")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logging.Info().Msg("no .env file found, using environment variables")
	}

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	if cfg.DatabaseURL == "" {
		logging.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer db.Close()

	if err := matching.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("migration failed")
	}
	logging.Info().Msg("schema is up to date")

	if *seedFile == "" {
		return
	}

	data, err := os.ReadFile(*seedFile)
	if err != nil {
		logging.Fatal().Err(err).Str("file", *seedFile).Msg("failed to read seed file")
	}

	var profiles []matching.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		logging.Fatal().Err(err).Msg("seed file is not a JSON array of profiles")
	}

	if err := matching.UpsertProfiles(ctx, db, profiles); err != nil {
		logging.Fatal().Err(err).Msg("failed to seed profiles")
	}
	logging.Info().Int("profiles", len(profiles)).Msg("profiles seeded")
}
