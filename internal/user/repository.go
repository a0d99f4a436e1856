package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserNotFound = errors.New("user not found")

// Repository reads customer contacts from the users table.
type Repository interface {
	GetContact(ctx context.Context, id string) (*Contact, error)
	GetContacts(ctx context.Context, ids []string) (map[string]Contact, error)
	Count(ctx context.Context) (int64, error)
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetContact(ctx context.Context, id string) (*Contact, error) {
	const query = `SELECT id, email, name, phone FROM users WHERE id = $1`

	var c Contact
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Email, &c.Name, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: failed to get user contact %s: %w", id, err)
	}
	return &c, nil
}

// GetContacts returns the contacts found among ids, keyed by user id.
// Missing ids are simply absent from the result.
func (r *repository) GetContacts(ctx context.Context, ids []string) (map[string]Contact, error) {
	out := make(map[string]Contact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const query = `SELECT id, email, name, phone FROM users WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query user contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("repository: failed to scan user contact: %w", err)
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate user contacts: %w", err)
	}
	return out, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count users: %w", err)
	}
	return n, nil
}
