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

var _ repository.CollectionRepository = (*DB)(nil)

const collectionColumns = `id, user_id, name, description, is_public, created_at, updated_at`

func scanCollection(row rowScanner) (*model.Collection, error) {
	var c model.Collection
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Description,
		&c.IsPublic,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateCollection(ctx context.Context, c *model.Collection) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c.ID = xid.New().String()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO collections (id, user_id, name, description, is_public, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.UserID,
		c.Name,
		c.Description,
		c.IsPublic,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return apperror.Storage("sqlite: creating collection", err)
	}
	return nil
}

func (db *DB) GetCollection(ctx context.Context, userID, id string) (*model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c, err := scanCollection(db.conn.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		return nil, apperror.Storage("sqlite: getting collection "+id, err)
	}
	return c, nil
}

// GetPublicCollection ignores ownership but only sees collections marked public.
func (db *DB) GetPublicCollection(ctx context.Context, id string) (*model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c, err := scanCollection(db.conn.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ? AND is_public = 1`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		return nil, apperror.Storage("sqlite: getting public collection "+id, err)
	}
	return c, nil
}

func (db *DB) ListCollections(ctx context.Context, userID string) ([]model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.Storage("sqlite: listing collections", err)
	}
	defer rows.Close()

	collections := []model.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, apperror.Storage("sqlite: scanning collection row", err)
		}
		collections = append(collections, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("sqlite: iterating collections", err)
	}
	return collections, nil
}

func (db *DB) UpdateCollection(ctx context.Context, userID, id string, patch repository.CollectionPatch) (*model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var updated *model.Collection
	err := db.inTx(ctx, "updating collection", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE collections
			 SET name = COALESCE(?, name),
			     description = COALESCE(?, description),
			     is_public = COALESCE(?, is_public),
			     updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			patch.Name,
			patch.Description,
			patch.IsPublic,
			now(),
			id,
			userID,
		)
		if err != nil {
			return apperror.Storage("sqlite: updating collection "+id, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return apperror.Storage("sqlite: checking rows affected", err)
		}
		if rowsAffected == 0 {
			return apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}

		updated, err = scanCollection(tx.QueryRowContext(ctx,
			`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id,
		))
		if err != nil {
			return apperror.Storage("sqlite: reloading collection "+id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCollection deletes the memberships first, then the collection, in one
// transaction. The foreign key cascade would do the same; the explicit DELETE
// keeps the behaviour independent of the foreign_keys pragma.
func (db *DB) DeleteCollection(ctx context.Context, userID, id string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var deleted bool
	err := db.inTx(ctx, "deleting collection", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM collection_items
			 WHERE collection_id IN (SELECT id FROM collections WHERE id = ? AND user_id = ?)`,
			id, userID,
		); err != nil {
			return apperror.Storage("sqlite: deleting items of collection "+id, err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM collections WHERE id = ? AND user_id = ?`, id, userID,
		)
		if err != nil {
			return apperror.Storage("sqlite: deleting collection "+id, err)
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

// ListCollectionItems returns memberships joined with their favorites, most
// recently added first. Callers check collection ownership beforehand.
func (db *DB) ListCollectionItems(ctx context.Context, collectionID string) ([]model.CollectionItemDetail, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT ci.collection_id, ci.favorite_item_id, ci.added_at,
		        f.id, f.user_id, f.item_type, f.item_id, f.item_date, f.data, f.saved_at
		 FROM collection_items ci
		 JOIN favorites f ON f.id = ci.favorite_item_id
		 WHERE ci.collection_id = ?
		 ORDER BY ci.added_at DESC, ci.favorite_item_id DESC`,
		collectionID,
	)
	if err != nil {
		return nil, apperror.Storage("sqlite: listing collection items", err)
	}
	defer rows.Close()

	items := []model.CollectionItemDetail{}
	for rows.Next() {
		var (
			d    model.CollectionItemDetail
			data string
		)
		if err := rows.Scan(
			&d.CollectionID,
			&d.FavoriteItemID,
			&d.AddedAt,
			&d.Item.ID,
			&d.Item.UserID,
			&d.Item.ItemType,
			&d.Item.ItemID,
			&d.Item.ItemDate,
			&data,
			&d.Item.SavedAt,
		); err != nil {
			return nil, apperror.Storage("sqlite: scanning collection item row", err)
		}
		d.Item.Data = json.RawMessage(data)
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("sqlite: iterating collection items", err)
	}
	return items, nil
}

// AddCollectionItem runs the three membership checks and the insert in one
// BEGIN IMMEDIATE transaction, so no other writer can interleave between them.
func (db *DB) AddCollectionItem(ctx context.Context, userID, collectionID, favoriteID string) (*model.CollectionItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	item := &model.CollectionItem{
		CollectionID:   collectionID,
		FavoriteItemID: favoriteID,
		AddedAt:        now(),
	}

	err := db.inTx(ctx, "adding collection item", func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM collections WHERE id = ? AND user_id = ?`, collectionID, userID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		if err != nil {
			return apperror.Storage("sqlite: checking collection "+collectionID, err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM favorites WHERE id = ? AND user_id = ?`, favoriteID, userID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFoundMessage(repository.MsgItemNotInFavorites)
		}
		if err != nil {
			return apperror.Storage("sqlite: checking favorite "+favoriteID, err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO collection_items (collection_id, favorite_item_id, added_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT (collection_id, favorite_item_id) DO NOTHING`,
			collectionID, favoriteID, item.AddedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict(repository.MsgItemAlreadyInCollection)
			}
			return apperror.Storage("sqlite: inserting collection item", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return apperror.Storage("sqlite: checking rows affected", err)
		}
		if rowsAffected == 0 {
			return apperror.Conflict(repository.MsgItemAlreadyInCollection)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET updated_at = ? WHERE id = ?`, item.AddedAt, collectionID,
		); err != nil {
			return apperror.Storage("sqlite: touching collection "+collectionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveCollectionItem reports false, not an error, when the pair is absent.
func (db *DB) RemoveCollectionItem(ctx context.Context, collectionID, favoriteID string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var removed bool
	err := db.inTx(ctx, "removing collection item", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM collection_items WHERE collection_id = ? AND favorite_item_id = ?`,
			collectionID, favoriteID,
		)
		if err != nil {
			return apperror.Storage("sqlite: removing collection item", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return apperror.Storage("sqlite: checking rows affected", err)
		}
		if rowsAffected == 0 {
			return nil
		}
		removed = true

		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET updated_at = ? WHERE id = ?`, now(), collectionID,
		); err != nil {
			return apperror.Storage("sqlite: touching collection "+collectionID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
