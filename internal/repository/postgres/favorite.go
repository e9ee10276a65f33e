package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
)

const favoriteColumns = `id, user_id, item_type, item_id, item_date, data, saved_at`

func scanFavorite(row pgx.Row) (*model.FavoriteItem, error) {
	var (
		f    model.FavoriteItem
		data []byte
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
	f.SavedAt = f.SavedAt.UTC()
	return &f, nil
}

func (db *DB) CreateFavorite(ctx context.Context, item *model.FavoriteItem) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	item.ID = xid.New().String()
	item.SavedAt = now()

	tag, err := db.pool.Exec(ctx,
		`INSERT INTO favorites (id, user_id, item_type, item_id, item_date, data, saved_at)
		 VALUES ($1, $2, $3, $4, $5, $6::json, $7)
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
		return apperror.Storage("postgres: creating favorite", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict(repository.MsgItemAlreadyFavorited)
	}
	return nil
}

func (db *DB) GetFavorite(ctx context.Context, userID, id string) (*model.FavoriteItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	f, err := scanFavorite(db.pool.QueryRow(ctx,
		`SELECT `+favoriteColumns+` FROM favorites WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
		}
		return nil, apperror.Storage("postgres: getting favorite "+id, err)
	}
	return f, nil
}

func (db *DB) FindFavoriteByItem(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.FavoriteItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	f, err := scanFavorite(db.pool.QueryRow(ctx,
		`SELECT `+favoriteColumns+` FROM favorites
		 WHERE user_id = $1 AND item_type = $2 AND item_id = $3`,
		userID, string(itemType), itemID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
		}
		return nil, apperror.Storage("postgres: finding favorite by item", err)
	}
	return f, nil
}

// ListFavorites reads the count and the page in one REPEATABLE READ
// transaction so Total matches the rows it was computed with.
func (db *DB) ListFavorites(ctx context.Context, userID string, opts repository.ListFavoritesOptions) ([]model.FavoriteItem, int, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	itemType := string(opts.ItemType)
	var (
		items = make([]model.FavoriteItem, 0, opts.Limit)
		total int
	)

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, apperror.Storage("postgres: listing favorites: beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM favorites
		 WHERE user_id = $1 AND ($2 = '' OR item_type = $2)`,
		userID, itemType,
	).Scan(&total); err != nil {
		return nil, 0, apperror.Storage("postgres: counting favorites", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT `+favoriteColumns+` FROM favorites
		 WHERE user_id = $1 AND ($2 = '' OR item_type = $2)
		 ORDER BY saved_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, itemType, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, apperror.Storage("postgres: listing favorites", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, 0, apperror.Storage("postgres: scanning favorite row", err)
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperror.Storage("postgres: iterating favorites", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, apperror.Storage("postgres: listing favorites: committing", err)
	}
	return items, total, nil
}

func (db *DB) ReplaceFavoriteData(ctx context.Context, userID, id string, data json.RawMessage) (*model.FavoriteItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	f, err := scanFavorite(db.pool.QueryRow(ctx,
		`UPDATE favorites SET data = $1::json
		 WHERE id = $2 AND user_id = $3
		 RETURNING `+favoriteColumns,
		string(data), id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
		}
		return nil, apperror.Storage("postgres: replacing favorite data "+id, err)
	}
	return f, nil
}

// DeleteFavorite removes the favorite and its memberships and bumps
// updated_at on every collection that lost it.
func (db *DB) DeleteFavorite(ctx context.Context, userID, id string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var deleted bool
	err := db.inTx(ctx, "deleting favorite", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE collections SET updated_at = $1
			 WHERE user_id = $2 AND id IN (
				SELECT ci.collection_id FROM collection_items ci
				JOIN favorites f ON f.id = ci.favorite_item_id
				WHERE f.id = $3 AND f.user_id = $2
			 )`,
			now(), userID, id,
		); err != nil {
			return apperror.Storage("postgres: touching collections of favorite "+id, err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM collection_items
			 WHERE favorite_item_id IN (SELECT id FROM favorites WHERE id = $1 AND user_id = $2)`,
			id, userID,
		); err != nil {
			return apperror.Storage("postgres: deleting memberships of favorite "+id, err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM favorites WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return apperror.Storage("postgres: deleting favorite "+id, err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
