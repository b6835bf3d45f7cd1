package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

const accessCodeColumns = `id, identifier, channel, role, code_hash, is_used, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an access code repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the access code. The access code must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.AccessCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_codes (`+accessCodeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Identifier, string(c.Channel), string(c.Role), c.CodeHash, c.IsUsed, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create access code: %w", err)
	}
	return nil
}

// GetByID returns the access code for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AccessCode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accessCodeColumns+` FROM access_codes WHERE id = $1`, id)
	c, err := scanAccessCode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get access code: %w", err)
	}
	return c, nil
}

// ListUnused returns unused access codes for the filter. Empty Role/Channel are not constrained.
func (r *PostgresRepository) ListUnused(ctx context.Context, f Filter) ([]*domain.AccessCode, error) {
	var (
		where = []string{"identifier = $1", "is_used = FALSE"}
		args  = []interface{}{f.Identifier}
	)
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, string(f.Channel))
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accessCodeColumns+` FROM access_codes WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list unused access codes: %w", err)
	}
	defer rows.Close()

	var out []*domain.AccessCode
	for rows.Next() {
		c, err := scanAccessCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access code: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unused access codes: %w", err)
	}
	return out, nil
}

// MarkUsed sets is_used on the access code with the given id. Only an unused row is updated, so of two
// concurrent verifications of the same code exactly one succeeds; the other gets ErrAlreadyUsed.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE access_codes SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark access code used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark access code used: %w", err)
	}
	if n == 0 {
		return ErrAlreadyUsed
	}
	return nil
}

// DeleteBatch deletes the given access codes in a single transaction.
func (r *PostgresRepository) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete access codes: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM access_codes WHERE id = $1`)
	if err != nil {
		return fmt.Errorf("delete access codes: prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete access code %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete access codes: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccessCode(s rowScanner) (*domain.AccessCode, error) {
	var (
		c       domain.AccessCode
		channel string
		role    string
	)
	if err := s.Scan(&c.ID, &c.Identifier, &channel, &role, &c.CodeHash, &c.IsUsed, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Channel = domain.Channel(channel)
	c.Role = userdomain.Role(role)
	return &c, nil
}
