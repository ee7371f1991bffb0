package query

import (
	"context"

	"windowtracker/entity"
)

// UpsertIcon caches the icon of a title. Nothing happens when icon is empty or
// the title already has an entry: the first icon seen for a title wins.
func (db *Database) UpsertIcon(ctx context.Context, title string, icon []byte) error {
	if len(icon) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO icons (title, icon_data) VALUES (?, ?)", title, icon)
	return storeErr("UpsertIcon", err)
}

func (db *Database) GetIcon(ctx context.Context, title string) (entity.IconCacheEntry, bool, error) {
	var entries []entity.IconCacheEntry
	err := db.SelectContext(ctx, &entries, "SELECT id, title, icon_data FROM icons WHERE title = ? LIMIT 1", title)
	if err != nil {
		return entity.IconCacheEntry{}, false, storeErr("GetIcon", err)
	}
	if len(entries) == 0 {
		return entity.IconCacheEntry{}, false, nil
	}
	return entries[0], true, nil
}

func (db *Database) IconTitles(ctx context.Context) ([]string, error) {
	var titles []string
	if err := db.SelectContext(ctx, &titles, "SELECT title FROM icons"); err != nil {
		return nil, storeErr("IconTitles", err)
	}
	return titles, nil
}

func (db *Database) CountIcons(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM icons"); err != nil {
		return 0, storeErr("CountIcons", err)
	}
	return n, nil
}
