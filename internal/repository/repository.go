// Package repository declares the persistence contracts the services depend on.
// Every favorites and collections method takes the owning user's ID: rows owned
// by someone else are reported exactly like rows that do not exist.
package repository

import (
	"context"
	"encoding/json"

	"github.com/sakif/spacedesk/internal/model"
)

// ListFavoritesOptions selects one page of a user's favorites.
// An empty ItemType means all types.
type ListFavoritesOptions struct {
	ItemType model.ItemType
	Limit    int
	Offset   int
}

type FavoriteRepository interface {
	// CreateFavorite assigns ID and SavedAt. A duplicate (user, type, item id)
	// fails with apperror.ErrConflict.
	CreateFavorite(ctx context.Context, item *model.FavoriteItem) error
	GetFavorite(ctx context.Context, userID, id string) (*model.FavoriteItem, error)
	FindFavoriteByItem(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.FavoriteItem, error)
	// ListFavorites returns the page ordered by saved_at DESC, id DESC and the
	// total number of rows matching the filter.
	ListFavorites(ctx context.Context, userID string, opts ListFavoritesOptions) ([]model.FavoriteItem, int, error)
	ReplaceFavoriteData(ctx context.Context, userID, id string, data json.RawMessage) (*model.FavoriteItem, error)
	// DeleteFavorite removes the favorite and every collection membership that
	// references it, atomically. It reports whether a row was deleted.
	DeleteFavorite(ctx context.Context, userID, id string) (bool, error)
}

// CollectionPatch names the collection fields to overwrite. Nil fields keep
// their stored value.
type CollectionPatch struct {
	Name        *string
	Description *string
	IsPublic    *bool
}

type CollectionRepository interface {
	CreateCollection(ctx context.Context, c *model.Collection) error
	GetCollection(ctx context.Context, userID, id string) (*model.Collection, error)
	GetPublicCollection(ctx context.Context, id string) (*model.Collection, error)
	ListCollections(ctx context.Context, userID string) ([]model.Collection, error)
	// UpdateCollection applies the non-nil patch fields and refreshes UpdatedAt
	// in a single statement, so concurrent patches of different fields never
	// overwrite each other. It returns the stored row after the update.
	UpdateCollection(ctx context.Context, userID, id string, patch CollectionPatch) (*model.Collection, error)
	// DeleteCollection removes the collection and its memberships in one
	// transaction. Favorites are never touched.
	DeleteCollection(ctx context.Context, userID, id string) (bool, error)
	ListCollectionItems(ctx context.Context, collectionID string) ([]model.CollectionItemDetail, error)
	// AddCollectionItem checks, in one transaction and in this order, that the
	// collection is owned by userID, that the favorite is owned by userID, and
	// that the pair is new, then inserts it.
	AddCollectionItem(ctx context.Context, userID, collectionID, favoriteID string) (*model.CollectionItem, error)
	RemoveCollectionItem(ctx context.Context, collectionID, favoriteID string) (bool, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Store is a complete storage backend.
type Store interface {
	FavoriteRepository
	CollectionRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}

// Not-found and conflict messages shared by every backend. Clients show them
// verbatim.
const (
	MsgCollectionNotFound      = "Collection not found"
	MsgFavoriteNotFound        = "Favorite not found"
	MsgItemNotInFavorites      = "Item not found in favorites"
	MsgItemNotInCollection     = "Item not found in collection"
	MsgItemAlreadyFavorited    = "Item already in favorites"
	MsgItemAlreadyInCollection = "Item already in collection"
)
