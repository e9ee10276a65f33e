package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
	"github.com/sakif/spacedesk/internal/service"
)

// FavoritesService is what FavoritesHandler needs from the service layer.
// *service.FavoritesService implements it.
type FavoritesService interface {
	List(ctx context.Context, userID string, params service.ListFavoritesParams) (*model.FavoritePage, error)
	Add(ctx context.Context, userID string, in service.AddFavoriteInput) (*model.FavoriteItem, error)
	Get(ctx context.Context, userID, id string) (*model.FavoriteItem, error)
	Lookup(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.FavoriteItem, error)
	ReplaceData(ctx context.Context, userID, id string, data json.RawMessage) (*model.FavoriteItem, error)
	Remove(ctx context.Context, userID, id string) (bool, error)
}

// FavoritesHandler serves /api/favorites.
type FavoritesHandler struct {
	favorites FavoritesService
	logger    *slog.Logger
}

func NewFavoritesHandler(favorites FavoritesService, logger *slog.Logger) *FavoritesHandler {
	return &FavoritesHandler{favorites: favorites, logger: logger}
}

// Routes mounts the favorites endpoints. Static paths (lookup) are
// registered before {id}; chi prefers them either way.
func (h *FavoritesHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/lookup", h.HandleLookup)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleReplaceData)
	r.Delete("/{id}", h.HandleDelete)
}

// HandleList returns one page of favorites.
//
// HTTP: GET /api/favorites?page=1&limit=20&type=APOD
//
// Absent page/limit default to 1/20; present but out of range is a 400.
func (h *FavoritesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := queryInt(r, "page", service.DefaultPage)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultPageLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.favorites.List(r.Context(), userID, service.ListFavoritesParams{
		Page:  page,
		Limit: limit,
		Type:  model.ItemType(r.URL.Query().Get("type")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCreate saves a favorite.
//
// HTTP: POST /api/favorites
// REQUEST BODY: {"itemId": "apod-2024-01-01", "itemType": "APOD", "itemDate": "2024-01-01", "data": {"title": "..."}}
func (h *FavoritesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in service.AddFavoriteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.favorites.Add(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleLookup answers "is this item saved?" for the star buttons.
//
// HTTP: GET /api/favorites/lookup?type=NEO&itemId=3542519
func (h *FavoritesHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	item, err := h.favorites.Lookup(r.Context(), userID, model.ItemType(q.Get("type")), q.Get("itemId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *FavoritesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	item, err := h.favorites.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type replaceDataRequest struct {
	Data json.RawMessage `json:"data"`
}

// HandleReplaceData swaps the whole payload.
//
// HTTP: PUT /api/favorites/{id}
// REQUEST BODY: {"data": {"title": "...", ...}}
func (h *FavoritesHandler) HandleReplaceData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req replaceDataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.favorites.ReplaceData(r.Context(), userID, chi.URLParam(r, "id"), req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleDelete removes a favorite and its collection memberships.
//
// HTTP: DELETE /api/favorites/{id} → 204, or 404 if the caller has no such favorite
func (h *FavoritesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.favorites.Remove(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, apperror.NotFoundMessage(repository.MsgFavoriteNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
