package store

import (
	"database/sql"
	"time"
)

// CreateProfileIfAbsent inserts a profile only if none exists for the
// phone key. Returns whether this call created the row.
func (db *DB) CreateProfileIfAbsent(p *Profile) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO profiles (phone_key, name, avatar, about, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_key) DO NOTHING`,
		p.PhoneKey, p.Name, p.Avatar, p.About, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetProfile returns a user profile by phone key, or nil when absent.
func (db *DB) GetProfile(phoneKey string) (*Profile, error) {
	var p Profile
	err := db.QueryRow(`
		SELECT phone_key, name, avatar, about, created_at, updated_at
		FROM profiles WHERE phone_key = ?`, phoneKey).
		Scan(&p.PhoneKey, &p.Name, &p.Avatar, &p.About, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfileFields writes only non-empty fields; empty strings are a
// no-op, never a clear.
func (db *DB) UpdateProfileFields(phoneKey, name, avatar, about string) error {
	_, err := db.Exec(`
		UPDATE profiles SET
			name = CASE WHEN ? != '' THEN ? ELSE name END,
			avatar = CASE WHEN ? != '' THEN ? ELSE avatar END,
			about = CASE WHEN ? != '' THEN ? ELSE about END,
			updated_at = ?
		WHERE phone_key = ?`,
		name, name, avatar, avatar, about, about, time.Now().UnixMilli(), phoneKey)
	return err
}

// GetAdminProfile returns the singleton admin profile, or nil when it has
// not been written yet.
func (db *DB) GetAdminProfile() (*AdminProfile, error) {
	var a AdminProfile
	err := db.QueryRow(`SELECT name, avatar, about, online FROM admin_profile WHERE id = 'main'`).
		Scan(&a.Name, &a.Avatar, &a.About, &a.Online)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAdminProfile writes the singleton admin profile.
func (db *DB) UpsertAdminProfile(a *AdminProfile) error {
	_, err := db.Exec(`
		INSERT INTO admin_profile (id, name, avatar, about, online)
		VALUES ('main', ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar = excluded.avatar,
			about = excluded.about,
			online = excluded.online`,
		a.Name, a.Avatar, a.About, a.Online)
	return err
}
