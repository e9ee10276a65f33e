package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
	"github.com/sakif/spacedesk/internal/service"
)

// CollectionsService is implemented by *service.CollectionsService.
type CollectionsService interface {
	List(ctx context.Context, userID string) ([]model.Collection, error)
	Create(ctx context.Context, userID string, in service.CreateCollectionInput) (*model.Collection, error)
	Get(ctx context.Context, userID, id string) (*model.Collection, error)
	Update(ctx context.Context, userID, id string, in service.UpdateCollectionInput) (*model.Collection, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
	Items(ctx context.Context, userID, collectionID string) ([]model.CollectionItemDetail, error)
	AddItem(ctx context.Context, userID, collectionID, favoriteID string) (*model.CollectionItem, error)
	RemoveItem(ctx context.Context, userID, collectionID, favoriteID string) (bool, error)
	GetPublic(ctx context.Context, id string) (*model.Collection, error)
	PublicItems(ctx context.Context, id string) ([]model.CollectionItemDetail, error)
}

// CollectionsHandler serves /api/collections and the read-only
// /api/public/collections.
type CollectionsHandler struct {
	collections CollectionsService
	logger      *slog.Logger
}

func NewCollectionsHandler(collections CollectionsService, logger *slog.Logger) *CollectionsHandler {
	return &CollectionsHandler{collections: collections, logger: logger}
}

func (h *CollectionsHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)
		r.Get("/items", h.HandleListItems)
		r.Post("/items", h.HandleAddItem)
		r.Delete("/items/{itemId}", h.HandleRemoveItem)
	})
}

// PublicRoutes needs no authentication: only collections with is_public
// set are visible, everything else is a 404.
func (h *CollectionsHandler) PublicRoutes(r chi.Router) {
	r.Get("/{id}", h.HandleGetPublic)
	r.Get("/{id}/items", h.HandleListPublicItems)
}

func (h *CollectionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	collections, err := h.collections.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

// HandleCreate creates a collection.
//
// HTTP: POST /api/collections
// REQUEST BODY: {"name": "Favorites 2024", "description": "...", "is_public": false}
func (h *CollectionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in service.CreateCollectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.collections.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CollectionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	c, err := h.collections.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleUpdate applies a partial update: fields missing from the body are
// left unchanged.
//
// HTTP: PATCH /api/collections/{id}
func (h *CollectionsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in service.UpdateCollectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.collections.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.collections.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, apperror.NotFoundMessage(repository.MsgCollectionNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.collections.Items(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type addItemRequest struct {
	ItemID string `json:"itemId"`
}

// HandleAddItem adds one of the caller's favorites to the collection.
//
// HTTP: POST /api/collections/{id}/items
// REQUEST BODY: {"itemId": "<favorite id>"}
//
// 404 "Collection not found" or "Item not found in favorites",
// 409 "Item already in collection".
func (h *CollectionsHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.collections.AddItem(r.Context(), userID, chi.URLParam(r, "id"), req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleRemoveItem: DELETE /api/collections/{id}/items/{itemId} → 204 or 404.
func (h *CollectionsHandler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	removed, err := h.collections.RemoveItem(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeError(w, apperror.NotFoundMessage(repository.MsgItemNotInCollection))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	c, err := h.collections.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionsHandler) HandleListPublicItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.collections.PublicItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
