package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/spacedesk/internal/metrics"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
	"github.com/sakif/spacedesk/internal/validation"
)

// CreateCollectionInput is the body of POST /api/collections.
type CreateCollectionInput struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    bool   `json:"is_public"`
}

// UpdateCollectionInput is a partial update: nil fields are left alone.
type UpdateCollectionInput struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	IsPublic    *bool   `json:"is_public"`
}

type membershipInput struct {
	ItemID string `json:"itemId" validate:"notblank"`
}

// CollectionsService manages named groupings of a user's favorites.
type CollectionsService struct {
	repo   repository.CollectionRepository
	logger *slog.Logger
}

func NewCollectionsService(repo repository.CollectionRepository, logger *slog.Logger) *CollectionsService {
	return &CollectionsService{
		repo:   repo,
		logger: logger,
	}
}

// List returns the user's collections, newest first.
func (s *CollectionsService) List(ctx context.Context, userID string) ([]model.Collection, error) {
	collections, err := s.repo.ListCollections(ctx, userID)
	if err != nil {
		logFailure(s.logger, "failed to list collections", err, slog.String("userID", userID))
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

func (s *CollectionsService) Create(ctx context.Context, userID string, in CreateCollectionInput) (*model.Collection, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	c := &model.Collection{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
	}
	if err := s.repo.CreateCollection(ctx, c); err != nil {
		logFailure(s.logger, "failed to create collection", err, slog.String("userID", userID))
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	metrics.RecordCollectionMutation("created")
	s.logger.Info("collection created",
		slog.String("userID", userID),
		slog.String("id", c.ID),
		slog.String("name", c.Name),
	)
	return c, nil
}

func (s *CollectionsService) Get(ctx context.Context, userID, id string) (*model.Collection, error) {
	c, err := s.repo.GetCollection(ctx, userID, id)
	if err != nil {
		logFailure(s.logger, "failed to get collection", err, slog.String("id", id))
		return nil, err
	}
	return c, nil
}

// Update applies the supplied fields, validated with the same rules as
// Create, and refreshes updated_at even when nothing else changed.
func (s *CollectionsService) Update(ctx context.Context, userID, id string, in UpdateCollectionInput) (*model.Collection, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		in.Description = &desc
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	c, err := s.repo.UpdateCollection(ctx, userID, id, repository.CollectionPatch{
		Name:        in.Name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
	})
	if err != nil {
		logFailure(s.logger, "failed to update collection", err, slog.String("id", id))
		return nil, fmt.Errorf("updating collection: %w", err)
	}

	metrics.RecordCollectionMutation("updated")
	s.logger.Info("collection updated", slog.String("userID", userID), slog.String("id", id))
	return c, nil
}

// Delete removes the collection and its memberships. The favorites stay.
func (s *CollectionsService) Delete(ctx context.Context, userID, id string) (bool, error) {
	deleted, err := s.repo.DeleteCollection(ctx, userID, id)
	if err != nil {
		logFailure(s.logger, "failed to delete collection", err, slog.String("id", id))
		return false, fmt.Errorf("deleting collection: %w", err)
	}
	if deleted {
		metrics.RecordCollectionMutation("deleted")
		s.logger.Info("collection deleted", slog.String("userID", userID), slog.String("id", id))
	}
	return deleted, nil
}

// Items lists the collection's members joined with their favorites.
func (s *CollectionsService) Items(ctx context.Context, userID, collectionID string) ([]model.CollectionItemDetail, error) {
	if _, err := s.Get(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListCollectionItems(ctx, collectionID)
	if err != nil {
		logFailure(s.logger, "failed to list collection items", err, slog.String("collectionID", collectionID))
		return nil, fmt.Errorf("listing collection items: %w", err)
	}
	return items, nil
}

// AddItem puts one of the user's favorites into one of the user's
// collections. The repository runs the ownership checks and the insert as one
// transaction, failing with "Collection not found", then "Item not found in
// favorites", then "Item already in collection".
func (s *CollectionsService) AddItem(ctx context.Context, userID, collectionID, favoriteID string) (*model.CollectionItem, error) {
	in := membershipInput{ItemID: strings.TrimSpace(favoriteID)}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	item, err := s.repo.AddCollectionItem(ctx, userID, collectionID, in.ItemID)
	if err != nil {
		logFailure(s.logger, "failed to add collection item", err,
			slog.String("collectionID", collectionID),
			slog.String("favoriteID", in.ItemID),
		)
		return nil, fmt.Errorf("adding collection item: %w", err)
	}

	metrics.RecordCollectionMutation("item_added")
	s.logger.Info("collection item added",
		slog.String("userID", userID),
		slog.String("collectionID", collectionID),
		slog.String("favoriteID", in.ItemID),
	)
	return item, nil
}

// RemoveItem checks collection ownership, then removes the membership. A
// membership that was never there is reported as false, not as an error.
func (s *CollectionsService) RemoveItem(ctx context.Context, userID, collectionID, favoriteID string) (bool, error) {
	if _, err := s.Get(ctx, userID, collectionID); err != nil {
		return false, err
	}

	removed, err := s.repo.RemoveCollectionItem(ctx, collectionID, favoriteID)
	if err != nil {
		logFailure(s.logger, "failed to remove collection item", err,
			slog.String("collectionID", collectionID),
			slog.String("favoriteID", favoriteID),
		)
		return false, fmt.Errorf("removing collection item: %w", err)
	}
	if removed {
		metrics.RecordCollectionMutation("item_removed")
		s.logger.Info("collection item removed",
			slog.String("userID", userID),
			slog.String("collectionID", collectionID),
			slog.String("favoriteID", favoriteID),
		)
	}
	return removed, nil
}

// GetPublic returns a collection shared with is_public, for anyone.
func (s *CollectionsService) GetPublic(ctx context.Context, id string) (*model.Collection, error) {
	c, err := s.repo.GetPublicCollection(ctx, id)
	if err != nil {
		logFailure(s.logger, "failed to get public collection", err, slog.String("id", id))
		return nil, err
	}
	return c, nil
}

func (s *CollectionsService) PublicItems(ctx context.Context, id string) ([]model.CollectionItemDetail, error) {
	if _, err := s.GetPublic(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repo.ListCollectionItems(ctx, id)
	if err != nil {
		logFailure(s.logger, "failed to list public collection items", err, slog.String("collectionID", id))
		return nil, fmt.Errorf("listing collection items: %w", err)
	}
	return items, nil
}
