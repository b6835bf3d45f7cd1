// Package migrate applies the embedded access_codes/users/audit_logs schema with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hungle-ag/task-manager-server/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when the database is already at the requested version.
var ErrNoChange = migrate.ErrNoChange

// Options selects how far Run moves the schema.
type Options struct {
	// Direction is "up" or "down".
	Direction string
	// Steps limits the number of migrations applied; 0 means all of them.
	Steps int
}

// Result is the schema state after Run.
type Result struct {
	Version uint
	Dirty   bool
}

// Run migrates the database at dsn. It returns ErrNoChange (with the current version) when there is
// nothing to apply.
func Run(dsn string, opts Options) (Result, error) {
	if dsn == "" {
		return Result{}, errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if opts.Direction != "up" && opts.Direction != "down" {
		return Result{}, fmt.Errorf("direction must be up or down, got %q", opts.Direction)
	}
	if opts.Steps < 0 {
		return Result{}, fmt.Errorf("steps must not be negative, got %d", opts.Steps)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return Result{}, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgxURL(dsn))
	if err != nil {
		return Result{}, fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case opts.Steps > 0 && opts.Direction == "up":
		err = m.Steps(opts.Steps)
	case opts.Steps > 0:
		err = m.Steps(-opts.Steps)
	case opts.Direction == "up":
		err = m.Up()
	default:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Result{}, err
	}

	res, verr := version(m)
	if verr != nil {
		return Result{}, verr
	}
	return res, err
}

func version(m *migrate.Migrate) (Result, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("migrate version: %w", err)
	}
	return Result{Version: v, Dirty: dirty}, nil
}

// pgxURL rewrites postgres:// and postgresql:// DSNs to the pgx5:// scheme the migrate driver registers.
func pgxURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
