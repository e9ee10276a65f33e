package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
	"github.com/sakif/spacedesk/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory FavoriteRepository and CollectionRepository with
// the same ownership and uniqueness rules as the SQL backends. Setting err
// makes every call fail with it.
type fakeStore struct {
	mu          sync.Mutex
	favorites   map[string]*model.FavoriteItem
	collections map[string]*model.Collection
	members     map[[2]string]time.Time // (collectionID, favoriteID) → added_at
	seq         int
	clock       time.Time
	err         error

	lastListOpts repository.ListFavoritesOptions
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		favorites:   make(map[string]*model.FavoriteItem),
		collections: make(map[string]*model.Collection),
		members:     make(map[[2]string]time.Time),
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp and a fresh ID.
func (f *fakeStore) tick() (string, time.Time) {
	f.seq++
	f.clock = f.clock.Add(time.Second)
	return fmt.Sprintf("id-%03d", f.seq), f.clock
}

var (
	_ repository.FavoriteRepository   = (*fakeStore)(nil)
	_ repository.CollectionRepository = (*fakeStore)(nil)
)

func (f *fakeStore) CreateFavorite(_ context.Context, item *model.FavoriteItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.favorites {
		if existing.UserID == item.UserID && existing.ItemType == item.ItemType && existing.ItemID == item.ItemID {
			return apperror.Conflict(repository.MsgItemAlreadyFavorited)
		}
	}
	item.ID, item.SavedAt = f.tick()
	copied := *item
	f.favorites[item.ID] = &copied
	return nil
}

func (f *fakeStore) GetFavorite(_ context.Context, userID, id string) (*model.FavoriteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.favorites[id]
	if !ok || item.UserID != userID {
		return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
	}
	copied := *item
	return &copied, nil
}

func (f *fakeStore) FindFavoriteByItem(_ context.Context, userID string, itemType model.ItemType, itemID string) (*model.FavoriteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, item := range f.favorites {
		if item.UserID == userID && item.ItemType == itemType && item.ItemID == itemID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
}

func (f *fakeStore) ListFavorites(_ context.Context, userID string, opts repository.ListFavoritesOptions) ([]model.FavoriteItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastListOpts = opts
	if f.err != nil {
		return nil, 0, f.err
	}
	var all []model.FavoriteItem
	for _, item := range f.favorites {
		if item.UserID == userID && (opts.ItemType == "" || item.ItemType == opts.ItemType) {
			all = append(all, *item)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].SavedAt.Equal(all[j].SavedAt) {
			return all[i].SavedAt.After(all[j].SavedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if opts.Offset >= total {
		return []model.FavoriteItem{}, total, nil
	}
	end := min(opts.Offset+opts.Limit, total)
	return all[opts.Offset:end], total, nil
}

func (f *fakeStore) ReplaceFavoriteData(_ context.Context, userID, id string, data json.RawMessage) (*model.FavoriteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.favorites[id]
	if !ok || item.UserID != userID {
		return nil, apperror.NotFoundMessage(repository.MsgFavoriteNotFound)
	}
	item.Data = data
	copied := *item
	return &copied, nil
}

func (f *fakeStore) DeleteFavorite(_ context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	item, ok := f.favorites[id]
	if !ok || item.UserID != userID {
		return false, nil
	}
	delete(f.favorites, id)
	for key := range f.members {
		if key[1] == id {
			delete(f.members, key)
		}
	}
	return true, nil
}

func (f *fakeStore) CreateCollection(_ context.Context, c *model.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	c.ID, c.CreatedAt = f.tick()
	c.UpdatedAt = c.CreatedAt
	copied := *c
	f.collections[c.ID] = &copied
	return nil
}

func (f *fakeStore) getCollection(userID, id string) (*model.Collection, error) {
	c, ok := f.collections[id]
	if !ok || c.UserID != userID {
		return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
	}
	return c, nil
}

func (f *fakeStore) GetCollection(_ context.Context, userID, id string) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, err := f.getCollection(userID, id)
	if err != nil {
		return nil, err
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) GetPublicCollection(_ context.Context, id string) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.collections[id]
	if !ok || !c.IsPublic {
		return nil, apperror.NotFoundMessage(repository.MsgCollectionNotFound)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) ListCollections(_ context.Context, userID string) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	list := []model.Collection{}
	for _, c := range f.collections {
		if c.UserID == userID {
			list = append(list, *c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (f *fakeStore) UpdateCollection(_ context.Context, userID, id string, patch repository.CollectionPatch) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, err := f.getCollection(userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		c.IsPublic = *patch.IsPublic
	}
	_, c.UpdatedAt = f.tick()
	copied := *c
	return &copied, nil
}

func (f *fakeStore) DeleteCollection(_ context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, err := f.getCollection(userID, id); err != nil {
		return false, nil
	}
	delete(f.collections, id)
	for key := range f.members {
		if key[0] == id {
			delete(f.members, key)
		}
	}
	return true, nil
}

func (f *fakeStore) ListCollectionItems(_ context.Context, collectionID string) ([]model.CollectionItemDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	items := []model.CollectionItemDetail{}
	for key, addedAt := range f.members {
		if key[0] != collectionID {
			continue
		}
		items = append(items, model.CollectionItemDetail{
			CollectionItem: model.CollectionItem{CollectionID: key[0], FavoriteItemID: key[1], AddedAt: addedAt},
			Item:           *f.favorites[key[1]],
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AddedAt.After(items[j].AddedAt) })
	return items, nil
}

func (f *fakeStore) AddCollectionItem(_ context.Context, userID, collectionID, favoriteID string) (*model.CollectionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, err := f.getCollection(userID, collectionID)
	if err != nil {
		return nil, err
	}
	if fav, ok := f.favorites[favoriteID]; !ok || fav.UserID != userID {
		return nil, apperror.NotFoundMessage(repository.MsgItemNotInFavorites)
	}
	key := [2]string{collectionID, favoriteID}
	if _, exists := f.members[key]; exists {
		return nil, apperror.Conflict(repository.MsgItemAlreadyInCollection)
	}
	_, addedAt := f.tick()
	f.members[key] = addedAt
	c.UpdatedAt = addedAt
	return &model.CollectionItem{CollectionID: collectionID, FavoriteItemID: favoriteID, AddedAt: addedAt}, nil
}

func (f *fakeStore) RemoveCollectionItem(_ context.Context, collectionID, favoriteID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	key := [2]string{collectionID, favoriteID}
	if _, exists := f.members[key]; !exists {
		return false, nil
	}
	delete(f.members, key)
	return true, nil
}
