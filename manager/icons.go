package manager

import (
	"context"
	"sync"
)

// IconStore is the part of the database the index writes through to.
type IconStore interface {
	IconTitles(ctx context.Context) ([]string, error)
	UpsertIcon(ctx context.Context, title string, icon []byte) error
}

// IconIndex garde en mémoire les titres qui ont déjà une icône en base,
// pour éviter un aller-retour SQL à chaque changement de fenêtre.
type IconIndex struct {
	store  IconStore
	titles map[string]struct{}
	mutex  sync.RWMutex
}

func NewIconIndex(ctx context.Context, store IconStore) (*IconIndex, error) {
	idx := &IconIndex{
		store:  store,
		titles: make(map[string]struct{}),
	}
	if err := idx.Refresh(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Refresh reloads the known titles from the database.
func (idx *IconIndex) Refresh(ctx context.Context) error {
	titles, err := idx.store.IconTitles(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		known[title] = struct{}{}
	}

	idx.mutex.Lock()
	idx.titles = known
	idx.mutex.Unlock()
	return nil
}

func (idx *IconIndex) Known(title string) bool {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	_, ok := idx.titles[title]
	return ok
}

func (idx *IconIndex) Len() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return len(idx.titles)
}

// Remember stores the icon of a title the first time one is available. Titles
// seen without an icon stay unknown so a later sighting can still fill them in.
func (idx *IconIndex) Remember(ctx context.Context, title string, icon []byte) error {
	if len(icon) == 0 || idx.Known(title) {
		return nil
	}
	if err := idx.store.UpsertIcon(ctx, title, icon); err != nil {
		return err
	}

	idx.mutex.Lock()
	idx.titles[title] = struct{}{}
	idx.mutex.Unlock()
	return nil
}
