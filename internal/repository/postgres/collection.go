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

const collectionColumns = `id, user_id, name, description, is_public, created_at, updated_at`

func scanCollection(row pgx.Row) (*model.Collection, error) {
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
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (db *DB) CreateCollection(ctx context.Context, c *model.Collection) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c.ID = xid.New().String()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	_, err := db.pool.Exec(ctx,
		`INSERT INTO collections (id, user_id, name, description, is_public, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.Name, c.Description, c.IsPublic, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return apperror.Storage("postgres: creating collection", err)
	}
	return nil
}

func (db *DB) GetCollection(ctx context.Context, userID, id string) (*model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c, err := scanCollection(db.pool.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		return nil, apperror.Storage("postgres: getting collection "+id, err)
	}
	return c, nil
}

func (db *DB) GetPublicCollection(ctx context.Context, id string) (*model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c, err := scanCollection(db.pool.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = $1 AND is_public`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		return nil, apperror.Storage("postgres: getting public collection "+id, err)
	}
	return c, nil
}

func (db *DB) ListCollections(ctx context.Context, userID string) ([]model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.pool.Query(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.Storage("postgres: listing collections", err)
	}
	defer rows.Close()

	collections := []model.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, apperror.Storage("postgres: scanning collection row", err)
		}
		collections = append(collections, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("postgres: iterating collections", err)
	}
	return collections, nil
}

func (db *DB) UpdateCollection(ctx context.Context, userID, id string, patch repository.CollectionPatch) (*model.Collection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	c, err := scanCollection(db.pool.QueryRow(ctx,
		`UPDATE collections
		 SET name = COALESCE($1, name),
		     description = COALESCE($2, description),
		     is_public = COALESCE($3, is_public),
		     updated_at = $4
		 WHERE id = $5 AND user_id = $6
		 RETURNING `+collectionColumns,
		patch.Name, patch.Description, patch.IsPublic, now(), id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		return nil, apperror.Storage("postgres: updating collection "+id, err)
	}
	return c, nil
}

func (db *DB) DeleteCollection(ctx context.Context, userID, id string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var deleted bool
	err := db.inTx(ctx, "deleting collection", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM collection_items
			 WHERE collection_id IN (SELECT id FROM collections WHERE id = $1 AND user_id = $2)`,
			id, userID,
		); err != nil {
			return apperror.Storage("postgres: deleting items of collection "+id, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM collections WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return apperror.Storage("postgres: deleting collection "+id, err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (db *DB) ListCollectionItems(ctx context.Context, collectionID string) ([]model.CollectionItemDetail, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.pool.Query(ctx,
		`SELECT ci.collection_id, ci.favorite_item_id, ci.added_at,
		        f.id, f.user_id, f.item_type, f.item_id, f.item_date, f.data, f.saved_at
		 FROM collection_items ci
		 JOIN favorites f ON f.id = ci.favorite_item_id
		 WHERE ci.collection_id = $1
		 ORDER BY ci.added_at DESC, ci.favorite_item_id DESC`,
		collectionID,
	)
	if err != nil {
		return nil, apperror.Storage("postgres: listing collection items", err)
	}
	defer rows.Close()

	items := []model.CollectionItemDetail{}
	for rows.Next() {
		var (
			d    model.CollectionItemDetail
			data []byte
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
			return nil, apperror.Storage("postgres: scanning collection item row", err)
		}
		d.AddedAt = d.AddedAt.UTC()
		d.Item.SavedAt = d.Item.SavedAt.UTC()
		d.Item.Data = json.RawMessage(data)
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("postgres: iterating collection items", err)
	}
	return items, nil
}

// AddCollectionItem locks the collection and the favorite FOR SHARE while it
// checks ownership, so neither can be deleted before the insert lands.
func (db *DB) AddCollectionItem(ctx context.Context, userID, collectionID, favoriteID string) (*model.CollectionItem, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	item := &model.CollectionItem{
		CollectionID:   collectionID,
		FavoriteItemID: favoriteID,
		AddedAt:        now(),
	}

	err := db.inTx(ctx, "adding collection item", func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM collections WHERE id = $1 AND user_id = $2 FOR SHARE`,
			collectionID, userID,
		).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFoundMessage(repository.MsgCollectionNotFound)
		}
		if err != nil {
			return apperror.Storage("postgres: checking collection "+collectionID, err)
		}

		err = tx.QueryRow(ctx,
			`SELECT 1 FROM favorites WHERE id = $1 AND user_id = $2 FOR SHARE`,
			favoriteID, userID,
		).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFoundMessage(repository.MsgItemNotInFavorites)
		}
		if err != nil {
			return apperror.Storage("postgres: checking favorite "+favoriteID, err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO collection_items (collection_id, favorite_item_id, added_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (collection_id, favorite_item_id) DO NOTHING`,
			collectionID, favoriteID, item.AddedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict(repository.MsgItemAlreadyInCollection)
			}
			return apperror.Storage("postgres: inserting collection item", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.Conflict(repository.MsgItemAlreadyInCollection)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE collections SET updated_at = $1 WHERE id = $2`, item.AddedAt, collectionID,
		); err != nil {
			return apperror.Storage("postgres: touching collection "+collectionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (db *DB) RemoveCollectionItem(ctx context.Context, collectionID, favoriteID string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var removed bool
	err := db.inTx(ctx, "removing collection item", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM collection_items WHERE collection_id = $1 AND favorite_item_id = $2`,
			collectionID, favoriteID,
		)
		if err != nil {
			return apperror.Storage("postgres: removing collection item", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		removed = true
		if _, err := tx.Exec(ctx,
			`UPDATE collections SET updated_at = $1 WHERE id = $2`, now(), collectionID,
		); err != nil {
			return apperror.Storage("postgres: touching collection "+collectionID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
