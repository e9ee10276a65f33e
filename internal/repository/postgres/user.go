package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
)

const userColumns = `id, github_id, login, email, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.GitHubID,
		&u.Login,
		&u.Email,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// Upsert inserts or refreshes a user keyed by GitHub ID. The internal ID and
// created_at survive repeat logins.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	ts := now()
	stored, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (github_id) DO UPDATE SET
			login = EXCLUDED.login,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		xid.New().String(), user.GitHubID, user.Login, user.Email, user.AvatarURL, ts,
	))
	if err != nil {
		return apperror.Storage(fmt.Sprintf("postgres: upserting user (githubID=%d)", user.GitHubID), err)
	}
	*user = *stored
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Storage("postgres: getting user "+id, err)
	}
	return u, nil
}
