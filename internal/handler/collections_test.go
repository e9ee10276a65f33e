package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/spacedesk/internal/model"
)

func createCollection(t *testing.T, api *testAPI, user, body string) model.Collection {
	t.Helper()
	rr := api.do(t, user, http.MethodPost, "/api/collections", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[model.Collection](t, rr)
}

func TestCollections_CreateListGet(t *testing.T) {
	api := newTestAPI(t)

	c := createCollection(t, api, "u1", `{"name":"  Nebulae  ","description":"gas","is_public":true}`)
	assert.Equal(t, "Nebulae", c.Name)
	assert.Equal(t, "gas", c.Description)
	assert.True(t, c.IsPublic)
	createCollection(t, api, "u1", `{"name":"Asteroids"}`)
	createCollection(t, api, "u2", `{"name":"Not yours"}`)

	rr := api.do(t, "u1", http.MethodGet, "/api/collections", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]model.Collection](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, "Asteroids", list[0].Name, "newest first")

	rr = api.do(t, "u1", http.MethodGet, "/api/collections/"+c.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, c.ID, decode[model.Collection](t, rr).ID)

	rr = api.do(t, "u2", http.MethodGet, "/api/collections/"+c.ID, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Collection not found", decodeError(t, rr).Message)
}

func TestCollections_CreateValidation(t *testing.T) {
	api := newTestAPI(t)

	for name, body := range map[string]string{
		"missing name": `{}`,
		"blank name":   `{"name":"   "}`,
		"bad json":     `{"name"`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := api.do(t, "u1", http.MethodPost, "/api/collections", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decodeError(t, rr).Error)
		})
	}
}

func TestCollections_PatchIsPartial(t *testing.T) {
	api := newTestAPI(t)
	c := createCollection(t, api, "u1", `{"name":"Mars","description":"rovers"}`)

	rr := api.do(t, "u1", http.MethodPatch, "/api/collections/"+c.ID, `{"is_public":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[model.Collection](t, rr)
	assert.Equal(t, "Mars", updated.Name)
	assert.Equal(t, "rovers", updated.Description)
	assert.True(t, updated.IsPublic)

	rr = api.do(t, "u1", http.MethodPatch, "/api/collections/"+c.ID, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, "u2", http.MethodPatch, "/api/collections/"+c.ID, `{"name":"Stolen"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// u1 saves F1, creates C1, adds F1 twice, then deletes F1.
func TestCollections_MembershipScenario(t *testing.T) {
	api := newTestAPI(t)

	f1 := decode[model.FavoriteItem](t, api.do(t, "u1", http.MethodPost, "/api/favorites", apodBody("apod-1")))
	c1 := createCollection(t, api, "u1", `{"name":"C1"}`)

	rr := api.do(t, "u1", http.MethodPost, "/api/collections/"+c1.ID+"/items", `{"itemId":"`+f1.ID+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	member := decode[model.CollectionItem](t, rr)
	assert.Equal(t, c1.ID, member.CollectionID)
	assert.Equal(t, f1.ID, member.FavoriteItemID)

	rr = api.do(t, "u1", http.MethodPost, "/api/collections/"+c1.ID+"/items", `{"itemId":"`+f1.ID+`"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Item already in collection", decodeError(t, rr).Message)

	rr = api.do(t, "u1", http.MethodGet, "/api/collections/"+c1.ID+"/items", "")
	require.Equal(t, http.StatusOK, rr.Code)
	items := decode[[]model.CollectionItemDetail](t, rr)
	require.Len(t, items, 1)
	assert.Equal(t, f1.ID, items[0].Item.ID)
	assert.Equal(t, "apod-1", items[0].Item.ItemID)

	require.Equal(t, http.StatusNoContent, api.do(t, "u1", http.MethodDelete, "/api/favorites/"+f1.ID, "").Code)

	rr = api.do(t, "u1", http.MethodGet, "/api/collections/"+c1.ID+"/items", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]model.CollectionItemDetail](t, rr))

	rr = api.do(t, "u1", http.MethodGet, "/api/collections/"+c1.ID, "")
	require.Equal(t, http.StatusOK, rr.Code, "collection survives its favorites")
}

func TestCollections_AddItemNotFound(t *testing.T) {
	api := newTestAPI(t)
	f1 := decode[model.FavoriteItem](t, api.do(t, "u1", http.MethodPost, "/api/favorites", apodBody("apod-1")))
	c1 := createCollection(t, api, "u1", `{"name":"C1"}`)
	other := createCollection(t, api, "u2", `{"name":"C2"}`)

	tests := []struct {
		name        string
		user        string
		collection  string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"unknown collection", "u1", "nope", `{"itemId":"` + f1.ID + `"}`, http.StatusNotFound, "Collection not found"},
		{"someone else's collection", "u1", other.ID, `{"itemId":"` + f1.ID + `"}`, http.StatusNotFound, "Collection not found"},
		{"unknown favorite", "u1", c1.ID, `{"itemId":"nope"}`, http.StatusNotFound, "Item not found in favorites"},
		{"someone else's favorite", "u2", other.ID, `{"itemId":"` + f1.ID + `"}`, http.StatusNotFound, "Item not found in favorites"},
		{"missing itemId", "u1", c1.ID, `{}`, http.StatusBadRequest, "itemId is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, tt.user, http.MethodPost, "/api/collections/"+tt.collection+"/items", tt.body)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Equal(t, tt.wantMessage, decodeError(t, rr).Message)
		})
	}
}

func TestCollections_RemoveItem(t *testing.T) {
	api := newTestAPI(t)
	f1 := decode[model.FavoriteItem](t, api.do(t, "u1", http.MethodPost, "/api/favorites", apodBody("apod-1")))
	c1 := createCollection(t, api, "u1", `{"name":"C1"}`)
	api.do(t, "u1", http.MethodPost, "/api/collections/"+c1.ID+"/items", `{"itemId":"`+f1.ID+`"}`)

	path := "/api/collections/" + c1.ID + "/items/" + f1.ID
	assert.Equal(t, http.StatusNotFound, api.do(t, "u2", http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, "u1", http.MethodDelete, path, "").Code)

	rr := api.do(t, "u1", http.MethodDelete, path, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Item not found in collection", decodeError(t, rr).Message)

	// the favorite itself is untouched
	assert.Equal(t, http.StatusOK, api.do(t, "u1", http.MethodGet, "/api/favorites/"+f1.ID, "").Code)
}

func TestCollections_Delete(t *testing.T) {
	api := newTestAPI(t)
	c := createCollection(t, api, "u1", `{"name":"Doomed"}`)

	assert.Equal(t, http.StatusNotFound, api.do(t, "u2", http.MethodDelete, "/api/collections/"+c.ID, "").Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, "u1", http.MethodDelete, "/api/collections/"+c.ID, "").Code)

	rr := api.do(t, "u1", http.MethodDelete, "/api/collections/"+c.ID, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Collection not found", decodeError(t, rr).Message)
}

func TestCollections_Public(t *testing.T) {
	api := newTestAPI(t)
	f1 := decode[model.FavoriteItem](t, api.do(t, "u1", http.MethodPost, "/api/favorites", apodBody("apod-1")))
	shared := createCollection(t, api, "u1", `{"name":"Shared","is_public":true}`)
	private := createCollection(t, api, "u1", `{"name":"Private"}`)
	api.do(t, "u1", http.MethodPost, "/api/collections/"+shared.ID+"/items", `{"itemId":"`+f1.ID+`"}`)

	// no user header: anonymous
	rr := api.do(t, "", http.MethodGet, "/api/public/collections/"+shared.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Shared", decode[model.Collection](t, rr).Name)

	rr = api.do(t, "", http.MethodGet, "/api/public/collections/"+shared.ID+"/items", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.CollectionItemDetail](t, rr), 1)

	assert.Equal(t, http.StatusNotFound, api.do(t, "", http.MethodGet, "/api/public/collections/"+private.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, "", http.MethodGet, "/api/public/collections/"+private.ID+"/items", "").Code)
}
