package store

// CreateStickerPackIfAbsent inserts a pack only when missing; first
// sticker uploads auto-vivify their pack through this.
func (db *DB) CreateStickerPackIfAbsent(id, name string) (bool, error) {
	res, err := db.Exec(`
		INSERT INTO sticker_packs (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`, id, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertSticker records an uploaded sticker in its pack.
func (db *DB) InsertSticker(packID, id, url string) error {
	_, err := db.Exec(`INSERT INTO stickers (id, pack_id, url) VALUES (?, ?, ?)`, id, packID, url)
	return err
}

// ListStickerPacks returns every pack with its stickers.
func (db *DB) ListStickerPacks() ([]StickerPack, error) {
	rows, err := db.Query(`SELECT id, name FROM sticker_packs ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var packs []StickerPack
	for rows.Next() {
		var p StickerPack
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range packs {
		srows, err := db.Query(`SELECT id, url FROM stickers WHERE pack_id = ? ORDER BY id ASC`, packs[i].ID)
		if err != nil {
			return nil, err
		}
		for srows.Next() {
			var s Sticker
			if err := srows.Scan(&s.ID, &s.URL); err != nil {
				_ = srows.Close()
				return nil, err
			}
			packs[i].Stickers = append(packs[i].Stickers, s)
		}
		if err := srows.Err(); err != nil {
			_ = srows.Close()
			return nil, err
		}
		_ = srows.Close()
	}
	return packs, nil
}
