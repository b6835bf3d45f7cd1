// migrate applies or rolls back the auth schema: go run ./cmd/migrate -direction up|down [-steps N].
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/hungle-ag/task-manager-server/internal/config"
	"github.com/hungle-ag/task-manager-server/internal/db/migrate"
	"github.com/hungle-ag/task-manager-server/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of migrations to apply; 0 applies all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stderr).With().
		Str("direction", *direction).
		Int("steps", *steps).
		Logger()

	res, err := migrate.Run(cfg.DatabaseURL, migrate.Options{Direction: *direction, Steps: *steps})
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Uint("version", res.Version).Msg("schema already up to date")
	case err != nil:
		log.Fatal().Err(err).Msg("migrate failed")
	case res.Dirty:
		log.Warn().Uint("version", res.Version).Msg("schema left dirty; fix and force the version")
	default:
		log.Info().Uint("version", res.Version).Msg("schema migrated")
	}
}
