package entity

type IconCacheEntry struct {
	ID       int64  `db:"id"`
	Title    string `db:"title"`
	IconData []byte `db:"icon_data"`
}
