package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rs/xid"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
)

var _ repository.FavoriteRepository = (*DB)(nil)

const favoriteColumns = `id, user_id, item_type, item_id, item_date, data, saved_at`

func scanFavorite(row rowScanner) (*model.FavoriteItem, error) {
	var (
		f    model.FavoriteItem
		data string
	)
	if err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.ItemType,
		&f.ItemID,
		&f.ItemDate,
		&data,
		&f.SavedAt,
	); err != nil {
		return nil, err
	}
	f.Data = json.RawMessage(data)
	return &f, nil
}

// CreateFavorite inserts a new favorite.
//
// ON CONFLICT DO NOTHING turns a duplicate into "zero rows affected" instead of
// a driver error. Whichever concurrent request commits first wins; the others
// get a conflict.
func (db *DB) CreateFavorite(ctx context.Context, item *model.FavoriteItem) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	item.ID = xid.New().String()
	item.SavedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO favorites (id, user_id, item_type, item_id, item_date, data, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, item_type, item_id) DO NOTHING`,
		item.ID,
		item.UserID,
		string(item.ItemType),
		item.ItemID,
		item.ItemDate,
		string(item.Data),
		item.SavedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(repository.MsgItemAlreadyFavorited)
		}
		return apperror.Storage("sqlite: creating favorite", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("sqlite: checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.Conflict(repository.MsgItemAlreadyFavorited)
	}

	return nil
}

// GetFavorite returns the favorite only if userID owns it.
func (db *DB) GetFavorite(ctx context.Context, userID, id string) (*model.FavoriteItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	f, err := scanFavorite(db.conn.QueryRowContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
		}
		return nil, apperror.Storage("sqlite: getting favorite "+id, err)
	}
	return f, nil
}

func (db *DB) FindFavoriteByItem(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.FavoriteItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	f, err := scanFavorite(db.conn.QueryRowContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites
		 WHERE user_id = ? AND item_type = ? AND item_id = ?`,
		userID, string(itemType), itemID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
		}
		return nil, apperror.Storage("sqlite: finding favorite by item", err)
	}
	return f, nil
}

// ListFavorites returns one page, newest first. id breaks saved_at ties so
// consecutive pages never overlap or skip rows.
func (db *DB) ListFavorites(ctx context.Context, userID string, opts repository.ListFavoritesOptions) ([]model.FavoriteItem, int, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	itemType := string(opts.ItemType)

	var (
		total int
		items []model.FavoriteItem
	)
	err := db.inReadTx(ctx, "listing favorites", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM favorites
			 WHERE user_id = ? AND (? = '' OR item_type = ?)`,
			userID, itemType, itemType,
		).Scan(&total)
		if err != nil {
			return apperror.Storage("sqlite: counting favorites", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT `+favoriteColumns+` FROM favorites
			 WHERE user_id = ? AND (? = '' OR item_type = ?)
			 ORDER BY saved_at DESC, id DESC
			 LIMIT ? OFFSET ?`,
			userID, itemType, itemType, opts.Limit, opts.Offset,
		)
		if err != nil {
			return apperror.Storage("sqlite: listing favorites", err)
		}
		defer rows.Close()

		items = make([]model.FavoriteItem, 0, opts.Limit)
		for rows.Next() {
			f, err := scanFavorite(rows)
			if err != nil {
				return apperror.Storage("sqlite: scanning favorite row", err)
			}
			items = append(items, *f)
		}
		if err := rows.Err(); err != nil {
			return apperror.Storage("sqlite: iterating favorites", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ReplaceFavoriteData swaps the whole payload; nothing is merged.
func (db *DB) ReplaceFavoriteData(ctx context.Context, userID, id string, data json.RawMessage) (*model.FavoriteItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var updated *model.FavoriteItem
	err := db.inTx(ctx, "replacing favorite data", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE favorites SET data = ? WHERE id = ? AND user_id = ?`,
			string(data), id, userID,
		)
		if err != nil {
			return apperror.Storage("sqlite: replacing favorite data "+id, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return apperror.Storage("sqlite: checking rows affected", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
		}

		updated, err = scanFavorite(tx.QueryRowContext(ctx,
			`SELECT `+favoriteColumns+` FROM favorites WHERE id = ?`, id,
		))
		if err != nil {
			return apperror.Storage("sqlite: reloading favorite "+id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFavorite removes the favorite together with its collection
// memberships; collections that lose an item get their updated_at bumped.
func (db *DB) DeleteFavorite(ctx context.Context, userID, id string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var deleted bool
	err := db.inTx(ctx, "deleting favorite", func(tx *sql.Tx) error {
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET updated_at = ?
			 WHERE user_id = ? AND id IN (
				SELECT ci.collection_id FROM collection_items ci
				JOIN favorites f ON f.id = ci.favorite_item_id
				WHERE f.id = ? AND f.user_id = ?
			 )`,
			ts, userID, id, userID,
		); err != nil {
			return apperror.Storage("sqlite: touching collections of favorite "+id, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM collection_items
			 WHERE favorite_item_id IN (SELECT id FROM favorites WHERE id = ? AND user_id = ?)`,
			id, userID,
		); err != nil {
			return apperror.Storage("sqlite: deleting memberships of favorite "+id, err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM favorites WHERE id = ? AND user_id = ?`, id, userID,
		)
		if err != nil {
			return apperror.Storage("sqlite: deleting favorite "+id, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return apperror.Storage("sqlite: checking rows affected", err)
		}
		deleted = rowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
