package store

import (
	"database/sql"
	"time"
)

// CreateThreadIfAbsent inserts a thread only if no row exists for its
// phone key. Returns whether this call created the row. Safe under
// concurrent callers: exactly one of them observes created == true.
func (db *DB) CreateThreadIfAbsent(t *Thread) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO threads (phone_key, name, is_agendado, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone_key) DO NOTHING`,
		t.PhoneKey, t.Name, t.IsAgendado, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetThread returns a thread by phone key, or nil when absent.
func (db *DB) GetThread(phoneKey string) (*Thread, error) {
	var t Thread
	err := db.QueryRow(`
		SELECT phone_key, name, about, last_message, last_message_status, last_message_status_ts,
			last_message_admin, last_message_admin_ts, user_last_read_at, admin_last_read_at, last_error,
			unread_count, is_agendado, is_blocked, user_avatar, photo_url, avatar,
			created_at, updated_at
		FROM threads WHERE phone_key = ?`, phoneKey).
		Scan(&t.PhoneKey, &t.Name, &t.About, &t.LastMessage, &t.LastMessageStatus, &t.LastMessageStatusTS,
			&t.LastMessageAdmin, &t.LastMessageAdminTS, &t.UserLastReadAt, &t.AdminLastReadAt, &t.LastError,
			&t.UnreadCount, &t.IsAgendado, &t.IsBlocked, &t.UserAvatar, &t.PhotoURL, &t.Avatar,
			&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreads returns threads newest-activity-first for the admin list view.
func (db *DB) ListThreads() ([]Thread, error) {
	rows, err := db.Query(`
		SELECT phone_key, name, about, last_message, last_message_status, last_message_status_ts,
			last_message_admin, last_message_admin_ts, user_last_read_at, admin_last_read_at, last_error,
			unread_count, is_agendado, is_blocked, user_avatar, photo_url, avatar,
			created_at, updated_at
		FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var threads []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.PhoneKey, &t.Name, &t.About, &t.LastMessage, &t.LastMessageStatus, &t.LastMessageStatusTS,
			&t.LastMessageAdmin, &t.LastMessageAdminTS, &t.UserLastReadAt, &t.AdminLastReadAt, &t.LastError,
			&t.UnreadCount, &t.IsAgendado, &t.IsBlocked, &t.UserAvatar, &t.PhotoURL, &t.Avatar,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// RecordAdminMessage patches the thread summary after an admin-authored
// send: preview fields plus an unread reset, since the admin has the
// thread open while sending.
func (db *DB) RecordAdminMessage(phoneKey, preview string, ts int64) error {
	_, err := db.Exec(`
		UPDATE threads SET
			last_message = ?,
			last_message_admin = ?,
			last_message_admin_ts = ?,
			unread_count = 0,
			updated_at = ?
		WHERE phone_key = ?`,
		preview, preview, ts, time.Now().UnixMilli(), phoneKey)
	return err
}

// RecordUserMessage patches the thread summary after a user-authored send
// and bumps the unread counter. The increment is performed in SQL so it
// cannot race a concurrent reset into a negative count.
func (db *DB) RecordUserMessage(phoneKey, preview string) error {
	_, err := db.Exec(`
		UPDATE threads SET
			last_message = ?,
			unread_count = unread_count + 1,
			updated_at = ?
		WHERE phone_key = ?`,
		preview, time.Now().UnixMilli(), phoneKey)
	return err
}

// ResetUnread zeroes the unread counter and advances the admin's
// monotonic read marker. Only the admin side resets unread; the user's
// marker is never touched here, so an admin open cannot make the
// admin's own messages look read. The marker never moves backwards, so
// a stale reset cannot clobber a newer one.
func (db *DB) ResetUnread(phoneKey string, ts int64) error {
	_, err := db.Exec(`
		UPDATE threads SET
			unread_count = 0,
			admin_last_read_at = MAX(admin_last_read_at, ?),
			updated_at = ?
		WHERE phone_key = ?`,
		ts, time.Now().UnixMilli(), phoneKey)
	return err
}

// SetThreadBlocked toggles the blocked flag.
func (db *DB) SetThreadBlocked(phoneKey string, blocked bool) error {
	_, err := db.Exec(`UPDATE threads SET is_blocked = ?, updated_at = ? WHERE phone_key = ?`,
		blocked, time.Now().UnixMilli(), phoneKey)
	return err
}

// SetThreadAgendado toggles the saved-contact flag.
func (db *DB) SetThreadAgendado(phoneKey string, agendado bool) error {
	_, err := db.Exec(`UPDATE threads SET is_agendado = ?, updated_at = ? WHERE phone_key = ?`,
		agendado, time.Now().UnixMilli(), phoneKey)
	return err
}

// SetThreadDeliveryStatus records the latest provider-reported status on
// the thread so list views can render it without opening the thread.
func (db *DB) SetThreadDeliveryStatus(phoneKey, status string, ts int64) error {
	_, err := db.Exec(`
		UPDATE threads SET last_message_status = ?, last_message_status_ts = ?, updated_at = ?
		WHERE phone_key = ?`,
		status, ts, time.Now().UnixMilli(), phoneKey)
	return err
}

// SetThreadUserRead advances the user-side read marker monotonically.
// Written only for user activity: the opened-chat ack and provider read
// callbacks.
func (db *DB) SetThreadUserRead(phoneKey string, ts int64) error {
	_, err := db.Exec(`
		UPDATE threads SET user_last_read_at = MAX(user_last_read_at, ?), updated_at = ?
		WHERE phone_key = ?`,
		ts, time.Now().UnixMilli(), phoneKey)
	return err
}

// SetThreadLastError records a provider failure message on the thread.
func (db *DB) SetThreadLastError(phoneKey, msg string) error {
	_, err := db.Exec(`UPDATE threads SET last_error = ?, updated_at = ? WHERE phone_key = ?`,
		msg, time.Now().UnixMilli(), phoneKey)
	return err
}

// MirrorProfile copies the allowed profile subset onto the thread display
// fields. Empty values are skipped, never cleared. Returns false when the
// thread does not exist yet (the mirror is skipped, not an error).
func (db *DB) MirrorProfile(phoneKey, name, avatar, about string) (bool, error) {
	res, err := db.Exec(`
		UPDATE threads SET
			name = CASE WHEN ? != '' THEN ? ELSE name END,
			user_avatar = CASE WHEN ? != '' THEN ? ELSE user_avatar END,
			about = CASE WHEN ? != '' THEN ? ELSE about END,
			updated_at = ?
		WHERE phone_key = ?`,
		name, name, avatar, avatar, about, about, time.Now().UnixMilli(), phoneKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
