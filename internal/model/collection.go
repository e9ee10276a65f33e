package model

import "time"

// Collection is a named grouping of one user's favorites.
type Collection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CollectionItem links one Collection to one FavoriteItem. A pair appears at
// most once; there is no update, only delete and re-add.
type CollectionItem struct {
	CollectionID   string    `json:"collection_id"`
	FavoriteItemID string    `json:"favorite_item_id"`
	AddedAt        time.Time `json:"added_at"`
}

// CollectionItemDetail is a CollectionItem joined with the favorite it points to.
type CollectionItemDetail struct {
	CollectionItem
	Item FavoriteItem `json:"item"`
}
