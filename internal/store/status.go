package store

import (
	"database/sql"
	"time"
)

// InsertStatus stores a new admin broadcast.
func (db *DB) InsertStatus(s *Status) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO statuses (id, image_url, caption, timestamp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.ImageURL, s.Caption, s.Timestamp, now, now)
	return err
}

// ListStatuses returns all stored statuses newest-first, including
// expired ones. Expiry is a read-side filter applied by consumers, not a
// storage guarantee.
func (db *DB) ListStatuses() ([]Status, error) {
	rows, err := db.Query(`
		SELECT id, image_url, caption, timestamp, created_at, updated_at
		FROM statuses ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var statuses []Status
	for rows.Next() {
		var s Status
		if err := rows.Scan(&s.ID, &s.ImageURL, &s.Caption, &s.Timestamp, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// GetStatus returns one status by ID, or nil when absent.
func (db *DB) GetStatus(id string) (*Status, error) {
	var s Status
	err := db.QueryRow(`
		SELECT id, image_url, caption, timestamp, created_at, updated_at
		FROM statuses WHERE id = ?`, id).
		Scan(&s.ID, &s.ImageURL, &s.Caption, &s.Timestamp, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteStatus removes a status document. Returns whether a row existed.
func (db *DB) DeleteStatus(id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM statuses WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
