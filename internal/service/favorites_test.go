package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
)

func newTestFavoritesService(t *testing.T) (*FavoritesService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewFavoritesService(store, quietLogger()), store
}

func apodInput(itemID, title string) AddFavoriteInput {
	return AddFavoriteInput{
		ItemID:   itemID,
		ItemType: model.ItemTypeAPOD,
		Data:     json.RawMessage(fmt.Sprintf(`{"title":%q}`, title)),
	}
}

func assertField(t *testing.T, err error, field string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want a validation error", err)
	}
	if appErr.Field != field {
		t.Errorf("Field = %q, want %q", appErr.Field, field)
	}
}

// =========================================================================
// ADD TESTS
// =========================================================================

func TestFavoritesAdd_Success(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	date := "2024-01-01"
	in := apodInput("  apod-2024-01-01  ", "Pillars of Creation")
	in.ItemDate = &date

	item, err := svc.Add(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if item.ID == "" || item.UserID != "u1" {
		t.Errorf("Add() = %+v", item)
	}
	if item.ItemID != "apod-2024-01-01" {
		t.Errorf("ItemID = %q, want trimmed", item.ItemID)
	}
	if string(item.Data) != `{"title":"Pillars of Creation"}` {
		t.Errorf("Data = %s, want payload unchanged", item.Data)
	}
}

func TestFavoritesAdd_Duplicate(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "u1", apodInput("apod-2024-01-01", "Pillars of Creation")); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	_, err := svc.Add(ctx, "u1", apodInput("apod-2024-01-01", "Pillars of Creation"))
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Add() error = %v, want ErrConflict", err)
	}

	// another user may save the same item
	if _, err := svc.Add(ctx, "u2", apodInput("apod-2024-01-01", "Pillars of Creation")); err != nil {
		t.Errorf("Add() for another user error = %v", err)
	}
}

func TestFavoritesAdd_Validation(t *testing.T) {
	svc, store := newTestFavoritesService(t)
	badDate := "2024-13-45"

	tests := []struct {
		name  string
		in    AddFavoriteInput
		field string
	}{
		{"unknown type", AddFavoriteInput{ItemID: "x", ItemType: "COMET", Data: json.RawMessage(`{"title":"t"}`)}, "itemType"},
		{"lowercase type", AddFavoriteInput{ItemID: "x", ItemType: "apod", Data: json.RawMessage(`{"title":"t"}`)}, "itemType"},
		{"blank item id", AddFavoriteInput{ItemID: "  ", ItemType: model.ItemTypeNEO, Data: json.RawMessage(`{"title":"t"}`)}, "itemId"},
		{"missing title", AddFavoriteInput{ItemID: "x", ItemType: model.ItemTypeNEO, Data: json.RawMessage(`{"url":"u"}`)}, "data.title"},
		{"missing data", AddFavoriteInput{ItemID: "x", ItemType: model.ItemTypeNEO}, "data"},
		{"bad date", AddFavoriteInput{ItemID: "x", ItemType: model.ItemTypeNEO, ItemDate: &badDate, Data: json.RawMessage(`{"title":"t"}`)}, "itemDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), "u1", tt.in)
			assertField(t, err, tt.field)
		})
	}
	if len(store.favorites) != 0 {
		t.Errorf("%d favorites stored after failed validation", len(store.favorites))
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestFavoritesList_Pagination(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := svc.Add(ctx, "u1", apodInput(fmt.Sprintf("apod-%02d", i), "t")); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	first, err := svc.List(ctx, "u1", ListFavoritesParams{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	second, err := svc.List(ctx, "u1", ListFavoritesParams{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	third, err := svc.List(ctx, "u1", ListFavoritesParams{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if first.Total != 25 || first.TotalPages != 3 {
		t.Errorf("Total = %d, TotalPages = %d; want 25, 3", first.Total, first.TotalPages)
	}
	if len(first.Items) != 10 || len(second.Items) != 10 || len(third.Items) != 5 {
		t.Fatalf("page sizes = %d, %d, %d", len(first.Items), len(second.Items), len(third.Items))
	}
	if first.Items[0].ItemID != "apod-24" {
		t.Errorf("first item = %q, want newest apod-24", first.Items[0].ItemID)
	}
	if first.Items[9].ItemID != "apod-15" || second.Items[0].ItemID != "apod-14" {
		t.Errorf("pages are not contiguous: %q then %q", first.Items[9].ItemID, second.Items[0].ItemID)
	}
}

func TestFavoritesList_PassesFilterAndOffset(t *testing.T) {
	svc, store := newTestFavoritesService(t)

	page, err := svc.List(context.Background(), "u1", ListFavoritesParams{Page: 3, Limit: 7, Type: model.ItemTypeEPIC})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := repository.ListFavoritesOptions{ItemType: model.ItemTypeEPIC, Limit: 7, Offset: 14}
	if store.lastListOpts != want {
		t.Errorf("repository got %+v, want %+v", store.lastListOpts, want)
	}
	if page.Total != 0 || page.TotalPages != 0 || len(page.Items) != 0 {
		t.Errorf("empty page = %+v", page)
	}
}

func TestFavoritesList_Validation(t *testing.T) {
	svc, _ := newTestFavoritesService(t)

	tests := []struct {
		params ListFavoritesParams
		field  string
	}{
		{ListFavoritesParams{Page: 0, Limit: 20}, "page"},
		{ListFavoritesParams{Page: -1, Limit: 20}, "page"},
		{ListFavoritesParams{Page: 1, Limit: 0}, "limit"},
		{ListFavoritesParams{Page: 1, Limit: 101}, "limit"},
		{ListFavoritesParams{Page: 1, Limit: 20, Type: "SUN"}, "type"},
	}
	for _, tt := range tests {
		_, err := svc.List(context.Background(), "u1", tt.params)
		assertField(t, err, tt.field)
	}
}

// =========================================================================
// GET / LOOKUP / REPLACE / REMOVE TESTS
// =========================================================================

func TestFavorites_OwnershipIsolation(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	ctx := context.Background()
	item, err := svc.Add(ctx, "u1", apodInput("a", "t"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	_, err = svc.Get(ctx, "u2", item.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() by other owner error = %v, want ErrNotFound", err)
	}
	removed, err := svc.Remove(ctx, "u2", item.ID)
	if err != nil || removed {
		t.Errorf("Remove() by other owner = %v, %v; want false, nil", removed, err)
	}
	if _, err := svc.Get(ctx, "u1", item.ID); err != nil {
		t.Errorf("owner lost the favorite: %v", err)
	}
}

func TestFavoritesLookup(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	ctx := context.Background()
	item, _ := svc.Add(ctx, "u1", apodInput("apod-2024-01-01", "t"))

	got, err := svc.Lookup(ctx, "u1", model.ItemTypeAPOD, " apod-2024-01-01 ")
	if err != nil || got.ID != item.ID {
		t.Errorf("Lookup() = %+v, %v", got, err)
	}
	if _, err := svc.Lookup(ctx, "u1", model.ItemTypeNEO, "apod-2024-01-01"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Lookup() wrong type error = %v, want ErrNotFound", err)
	}
	_, err = svc.Lookup(ctx, "u1", "", "apod-2024-01-01")
	assertField(t, err, "type")
}

func TestFavoritesReplaceData(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	ctx := context.Background()
	item, _ := svc.Add(ctx, "u1", apodInput("a", "old"))

	updated, err := svc.ReplaceData(ctx, "u1", item.ID, json.RawMessage(`{"title":"new"}`))
	if err != nil {
		t.Fatalf("ReplaceData() error = %v", err)
	}
	if string(updated.Data) != `{"title":"new"}` {
		t.Errorf("Data = %s", updated.Data)
	}

	_, err = svc.ReplaceData(ctx, "u1", item.ID, json.RawMessage(`{"url":"no title"}`))
	assertField(t, err, "data.title")

	_, err = svc.ReplaceData(ctx, "u2", item.ID, json.RawMessage(`{"title":"x"}`))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ReplaceData() by other owner error = %v, want ErrNotFound", err)
	}
}

func TestFavoritesRemove(t *testing.T) {
	svc, _ := newTestFavoritesService(t)
	ctx := context.Background()
	item, _ := svc.Add(ctx, "u1", apodInput("a", "t"))

	removed, err := svc.Remove(ctx, "u1", item.ID)
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v; want true, nil", removed, err)
	}
	removed, err = svc.Remove(ctx, "u1", item.ID)
	if err != nil || removed {
		t.Errorf("second Remove() = %v, %v; want false, nil", removed, err)
	}
}

func TestFavorites_StorageErrorsPassThrough(t *testing.T) {
	svc, store := newTestFavoritesService(t)
	store.err = apperror.Storage("fake: timeout", context.DeadlineExceeded)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", apodInput("a", "t"))
	if !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("Add() error = %v, want ErrStorage", err)
	}
	_, err = svc.List(ctx, "u1", ListFavoritesParams{Page: 1, Limit: 20})
	if !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("List() error = %v, want ErrStorage", err)
	}
	if _, err := svc.Remove(ctx, "u1", "x"); !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("Remove() error = %v, want ErrStorage", err)
	}
	if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation) {
		t.Error("storage failure also matched a caller-fixable kind")
	}
}
