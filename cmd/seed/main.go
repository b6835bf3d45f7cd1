// seed inserts development staff users for local testing: go run ./cmd/seed.
// Idempotent: users that already exist are skipped.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hungle-ag/task-manager-server/internal/config"
	"github.com/hungle-ag/task-manager-server/internal/db"
	"github.com/hungle-ag/task-manager-server/internal/logger"
	"github.com/hungle-ag/task-manager-server/internal/user/domain"
	userrepo "github.com/hungle-ag/task-manager-server/internal/user/repository"
)

// seedUser is a staff member created by the seed.
type seedUser struct {
	Email string
	Name  string
	Phone string
}

var staff = []seedUser{
	{Email: "dev@example.com", Name: "Dev Staff"},
	{Email: "staff@example.com", Name: "Sample Staff", Phone: "+15550100001"},
}

// staffDirectory is the subset of the user repository used by the seed.
type staffDirectory interface {
	GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	created, err := seed(ctx, userrepo.NewPostgresRepository(conn), staff, time.Now().UTC(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Int("created", created).Msg("seed completed")
	for _, u := range staff {
		fmt.Printf("Staff login (email OTP): %s\n", strings.ToLower(u.Email))
	}
}

// seed creates each staff user that does not exist yet and returns how many were created.
func seed(ctx context.Context, users staffDirectory, list []seedUser, now time.Time, log zerolog.Logger) (int, error) {
	created := 0
	for _, s := range list {
		email := strings.ToLower(strings.TrimSpace(s.Email))
		existing, err := users.GetByEmailAndRole(ctx, email, domain.RoleStaff)
		if err != nil {
			return created, fmt.Errorf("lookup %s: %w", email, err)
		}
		if existing != nil {
			log.Info().Str("email", email).Msg("already exists, skipping")
			continue
		}
		u := &domain.User{
			ID:        uuid.New().String(),
			Email:     email,
			Phone:     s.Phone,
			Name:      s.Name,
			Role:      domain.RoleStaff,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := u.Validate(); err != nil {
			return created, fmt.Errorf("seed user %s: %w", email, err)
		}
		if err := users.Create(ctx, u); err != nil {
			return created, fmt.Errorf("create %s: %w", email, err)
		}
		created++
	}
	return created, nil
}
