package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hungle-ag/task-manager-server/internal/user/domain"
)

const userColumns = `id, email, phone, name, role, verified, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmailAndRole returns the user with the given email and role, or nil if not found.
func (r *PostgresRepository) GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND role = $2 LIMIT 1`, email, string(role))
}

// GetByPhoneAndRole returns the user with the given phone and role, or nil if not found.
func (r *PostgresRepository) GetByPhoneAndRole(ctx context.Context, phone string, role domain.Role) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1 AND role = $2 LIMIT 1`, phone, string(role))
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, nullString(u.Email), nullString(u.Phone), u.Name, string(u.Role), u.Verified, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateIfAbsentByPhone inserts u unless (phone, role) already exists, relying on the users_phone_role_key
// unique index so concurrent first verifications provision a single row.
func (r *PostgresRepository) CreateIfAbsentByPhone(ctx context.Context, u *domain.User) (*domain.User, bool, error) {
	if err := u.Validate(); err != nil {
		return nil, false, err
	}
	if u.Phone == "" {
		return nil, false, errors.New("phone is required")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (phone, role) WHERE phone IS NOT NULL DO NOTHING`,
		u.ID, nullString(u.Email), u.Phone, u.Name, string(u.Role), u.Verified, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("provision user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("provision user: %w", err)
	}
	if n == 1 {
		return u, true, nil
	}
	existing, err := r.GetByPhoneAndRole(ctx, u.Phone, u.Role)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("provision user: conflicting row for phone vanished")
	}
	return existing, false, nil
}

// MarkVerified sets verified and updated_at for the user with the given id when it is not yet verified.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET verified = TRUE, updated_at = $2 WHERE id = $1 AND verified = FALSE`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
		phone sql.NullString
		role  string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &email, &phone, &u.Name, &role, &u.Verified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Email = email.String
	u.Phone = phone.String
	u.Role = domain.Role(role)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
