package migrate

import (
	"strings"
	"testing"

	"github.com/hungle-ag/task-manager-server/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	_, err := Run("", Options{Direction: "up"})
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL is not set") {
		t.Errorf("error message = %q, should mention DATABASE_URL", err.Error())
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "invalid", "UP", "Down", "both"} {
		t.Run(direction, func(t *testing.T) {
			_, err := Run("postgres://localhost/test", Options{Direction: direction})
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error %q should mention direction", err.Error())
			}
		})
	}
}

func TestRun_NegativeSteps(t *testing.T) {
	_, err := Run("postgres://localhost/test", Options{Direction: "down", Steps: -1})
	if err == nil || !strings.Contains(err.Error(), "steps") {
		t.Fatalf("Run with negative steps: got %v, want steps error", err)
	}
}

func TestMigrationFiles(t *testing.T) {
	// Each up migration needs a matching down so -direction down can unwind it.
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql"} {
		b, err := db.MigrationFS.ReadFile("migrations/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(strings.TrimSpace(string(b))) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestPgxURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@h:5432/db", "pgx5://u:p@h:5432/db"},
		{"postgresql://u:p@h/db?sslmode=disable", "pgx5://u:p@h/db?sslmode=disable"},
		{"pgx5://u@h/db", "pgx5://u@h/db"},
	}
	for _, tt := range tests {
		if got := pgxURL(tt.in); got != tt.want {
			t.Errorf("pgxURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
