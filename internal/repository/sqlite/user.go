package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, github_id, login, email, avatar_url, created_at, updated_at`

// Upsert inserts or updates a user keyed by GitHub ID and reloads the row so the
// caller sees the canonical ID and timestamps.
//
// INSERT ... ON CONFLICT(github_id) DO UPDATE keeps the existing internal ID on
// repeat logins, and two concurrent first logins cannot create two rows.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	ts := now()
	return db.inTx(ctx, "upserting user", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (github_id) DO UPDATE SET
				login = excluded.login,
				email = excluded.email,
				avatar_url = excluded.avatar_url,
				updated_at = excluded.updated_at`,
			xid.New().String(),
			user.GitHubID,
			user.Login,
			user.Email,
			user.AvatarURL,
			ts,
			ts,
		)
		if err != nil {
			return apperror.Storage(fmt.Sprintf("sqlite: upserting user (githubID=%d)", user.GitHubID), err)
		}

		stored, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE github_id = ?`, user.GitHubID,
		))
		if err != nil {
			return apperror.Storage(fmt.Sprintf("sqlite: reloading user (githubID=%d)", user.GitHubID), err)
		}
		*user = *stored
		return nil
	})
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Storage("sqlite: getting user "+id, err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*model.User, error) {
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
	return &u, nil
}
