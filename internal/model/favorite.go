// Package model defines the records shared by the repositories, services and
// handlers: favorites, collections and users.
package model

import (
	"encoding/json"
	"time"
)

// ItemType tags the external data source a favorite came from.
type ItemType string

const (
	ItemTypeAPOD   ItemType = "APOD"   // Astronomy Picture of the Day
	ItemTypeNEO    ItemType = "NEO"    // Near-Earth Object
	ItemTypeMars   ItemType = "MARS"   // Mars rover photo
	ItemTypeEPIC   ItemType = "EPIC"   // EPIC full-disc Earth image
	ItemTypeEarth  ItemType = "EARTH"  // Landsat/Earth imagery
	ItemTypeImages ItemType = "IMAGES" // NASA Image and Video Library
)

// ItemTypes is the closed set of accepted item types, in display order.
var ItemTypes = []ItemType{
	ItemTypeAPOD,
	ItemTypeNEO,
	ItemTypeMars,
	ItemTypeEPIC,
	ItemTypeEarth,
	ItemTypeImages,
}

// Valid reports whether t is one of ItemTypes.
func (t ItemType) Valid() bool {
	for _, known := range ItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// FavoriteItem is a saved reference to an external NASA/NOAA item.
//
// (UserID, ItemType, ItemID) is unique: the same external item can be saved
// once per user. Data is the source-specific payload (title, url, ...) and is
// stored and returned byte-for-byte; the application never looks inside it
// beyond checking that a title is present.
type FavoriteItem struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	ItemType ItemType        `json:"item_type"`
	ItemID   string          `json:"item_id"`             // external key, e.g. "apod-2024-01-01"
	ItemDate *string         `json:"item_date,omitempty"` // YYYY-MM-DD of the underlying event
	Data     json.RawMessage `json:"data"`
	SavedAt  time.Time       `json:"saved_at"`
}

// FavoritePage is one page of a user's favorites, newest first.
type FavoritePage struct {
	Items      []FavoriteItem `json:"items"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}
