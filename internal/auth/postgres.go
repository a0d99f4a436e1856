package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresVerifier checks tokens against admin_sessions.
type PostgresVerifier struct {
	db DB
}

func NewPostgresVerifier(db DB) *PostgresVerifier {
	return &PostgresVerifier{db: db}
}

func (v *PostgresVerifier) VerifyAdminIdentity(ctx context.Context, token string) (*AdminIdentity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	const query = `
		SELECT a.id, a.username, a.email, a.role
		FROM admin_sessions s
		JOIN admin_users a ON a.id = s.admin_id
		WHERE s.token = $1 AND s.expires_at > NOW()`

	var id AdminIdentity
	err := v.db.QueryRow(ctx, query, token).Scan(&id.ID, &id.Username, &id.Email, &id.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnauthorized
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
			// схема не накатана: сессий нет ни у кого
			log.Warn().Err(err).Msg("auth: session tables are missing")
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: failed to verify session: %w", err)
	}
	return &id, nil
}
