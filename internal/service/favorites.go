package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/spacedesk/internal/metrics"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
	"github.com/sakif/spacedesk/internal/validation"
)

const (
	DefaultPage      = 1
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListFavoritesParams selects one page. Zero Page/Limit are rejected, not
// defaulted; the handler fills in defaults for absent query parameters.
type ListFavoritesParams struct {
	Page  int            `json:"page" validate:"min=1"`
	Limit int            `json:"limit" validate:"min=1,max=100"`
	Type  model.ItemType `json:"type" validate:"omitempty,itemtype"`
}

// AddFavoriteInput is the body of POST /api/favorites.
type AddFavoriteInput struct {
	ItemID   string          `json:"itemId" validate:"notblank,max=255"`
	ItemType model.ItemType  `json:"itemType" validate:"required,itemtype"`
	ItemDate *string         `json:"itemDate,omitempty" validate:"omitnil,datetime=2006-01-02"`
	Data     json.RawMessage `json:"data" validate:"required,titled"`
}

type replaceDataInput struct {
	Data json.RawMessage `json:"data" validate:"required,titled"`
}

type lookupInput struct {
	Type   model.ItemType `json:"type" validate:"required,itemtype"`
	ItemID string         `json:"itemId" validate:"notblank"`
}

// FavoritesService owns each user's catalog of saved NASA/NOAA items.
type FavoritesService struct {
	repo   repository.FavoriteRepository
	logger *slog.Logger
}

func NewFavoritesService(repo repository.FavoriteRepository, logger *slog.Logger) *FavoritesService {
	return &FavoritesService{
		repo:   repo,
		logger: logger,
	}
}

// List returns one page of the user's favorites, newest first.
func (s *FavoritesService) List(ctx context.Context, userID string, params ListFavoritesParams) (*model.FavoritePage, error) {
	if err := validation.Struct(&params); err != nil {
		return nil, err
	}

	items, total, err := s.repo.ListFavorites(ctx, userID, repository.ListFavoritesOptions{
		ItemType: params.Type,
		Limit:    params.Limit,
		Offset:   (params.Page - 1) * params.Limit,
	})
	if err != nil {
		logFailure(s.logger, "failed to list favorites", err, slog.String("userID", userID))
		return nil, fmt.Errorf("listing favorites: %w", err)
	}

	return &model.FavoritePage{
		Items:      items,
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: (total + params.Limit - 1) / params.Limit,
	}, nil
}

// Add saves an external item. The payload is stored exactly as received; only
// its title is checked. A second save of the same (type, itemId) is a
// conflict, decided by the repository's unique index.
func (s *FavoritesService) Add(ctx context.Context, userID string, in AddFavoriteInput) (*model.FavoriteItem, error) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	item := &model.FavoriteItem{
		UserID:   userID,
		ItemType: in.ItemType,
		ItemID:   in.ItemID,
		ItemDate: in.ItemDate,
		Data:     in.Data,
	}
	if err := s.repo.CreateFavorite(ctx, item); err != nil {
		logFailure(s.logger, "failed to add favorite", err,
			slog.String("userID", userID),
			slog.String("itemType", string(in.ItemType)),
			slog.String("itemID", in.ItemID),
		)
		return nil, fmt.Errorf("adding favorite: %w", err)
	}

	metrics.RecordFavoriteMutation("added", string(item.ItemType))
	s.logger.Info("favorite added",
		slog.String("userID", userID),
		slog.String("id", item.ID),
		slog.String("itemType", string(item.ItemType)),
		slog.String("itemID", item.ItemID),
	)
	return item, nil
}

func (s *FavoritesService) Get(ctx context.Context, userID, id string) (*model.FavoriteItem, error) {
	item, err := s.repo.GetFavorite(ctx, userID, id)
	if err != nil {
		logFailure(s.logger, "failed to get favorite", err, slog.String("id", id))
		return nil, err
	}
	return item, nil
}

// Lookup finds the user's favorite for an external item, if any.
func (s *FavoritesService) Lookup(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.FavoriteItem, error) {
	in := lookupInput{Type: itemType, ItemID: strings.TrimSpace(itemID)}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	item, err := s.repo.FindFavoriteByItem(ctx, userID, in.Type, in.ItemID)
	if err != nil {
		logFailure(s.logger, "failed to look up favorite", err, slog.String("itemID", in.ItemID))
		return nil, err
	}
	return item, nil
}

// ReplaceData swaps the stored payload for data. Fields are never merged.
func (s *FavoritesService) ReplaceData(ctx context.Context, userID, id string, data json.RawMessage) (*model.FavoriteItem, error) {
	if err := validation.Struct(&replaceDataInput{Data: data}); err != nil {
		return nil, err
	}

	item, err := s.repo.ReplaceFavoriteData(ctx, userID, id, data)
	if err != nil {
		logFailure(s.logger, "failed to replace favorite data", err, slog.String("id", id))
		return nil, fmt.Errorf("replacing favorite data: %w", err)
	}

	metrics.RecordFavoriteMutation("replaced", string(item.ItemType))
	s.logger.Info("favorite data replaced", slog.String("userID", userID), slog.String("id", id))
	return item, nil
}

// Remove deletes the favorite and its collection memberships. It reports
// false when there was nothing of the user's to delete.
func (s *FavoritesService) Remove(ctx context.Context, userID, id string) (bool, error) {
	deleted, err := s.repo.DeleteFavorite(ctx, userID, id)
	if err != nil {
		logFailure(s.logger, "failed to remove favorite", err, slog.String("id", id))
		return false, fmt.Errorf("removing favorite: %w", err)
	}
	if deleted {
		metrics.RecordFavoriteMutation("removed", "")
		s.logger.Info("favorite removed", slog.String("userID", userID), slog.String("id", id))
	}
	return deleted, nil
}
