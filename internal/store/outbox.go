package store

import "time"

// QueueOutbox enqueues a single provider dispatch for a message. The
// message ID doubles as the idempotency key: re-queueing is a conflict.
func (db *DB) QueueOutbox(messageID, phoneKey, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (message_id, phone_key, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		messageID, phoneKey, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending'.
func (db *DB) MarkOutboxSending(messageID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE message_id = ?`, now, messageID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the provider SID.
func (db *DB) MarkOutboxSent(messageID, providerSID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', provider_sid = ?, updated_at = ? WHERE message_id = ?`,
		providerSID, now, messageID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed'. There is no
// retry: one attempt per entry.
func (db *DB) MarkOutboxFailed(messageID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE message_id = ?`,
		errMsg, now, messageID)
	return err
}

// PendingOutbox returns entries still awaiting their single attempt.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, message_id, phone_key, body, status, error_message, provider_sid
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.PhoneKey, &e.Body, &e.Status, &e.ErrorMessage, &e.ProviderSID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
