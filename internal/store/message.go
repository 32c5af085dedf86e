package store

import "database/sql"

// InsertMessage appends a message to its thread. Timestamp and receipt
// fields are set by the caller (the gateway assigns server time).
func (db *DB) InsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, phone_key, content, msg_type, is_outgoing, status,
			provider_sid, filename, sent_at, delivered_at, read_at, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.PhoneKey, m.Content, m.Type, m.IsOutgoing, m.Status,
		m.ProviderSID, m.Filename, m.SentAt, m.DeliveredAt, m.ReadAt, m.Timestamp)
	return err
}

// ListMessages returns a thread's messages in ascending timestamp order.
func (db *DB) ListMessages(phoneKey string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, phone_key, content, msg_type, is_outgoing, status,
			provider_sid, filename, sent_at, delivered_at, read_at, timestamp
		FROM messages WHERE phone_key = ? ORDER BY timestamp ASC, id ASC`, phoneKey)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PhoneKey, &m.Content, &m.Type, &m.IsOutgoing, &m.Status,
			&m.ProviderSID, &m.Filename, &m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage returns one message by ID, or nil when absent.
func (db *DB) GetMessage(id string) (*Message, error) {
	return db.scanOne(`
		SELECT id, phone_key, content, msg_type, is_outgoing, status,
			provider_sid, filename, sent_at, delivered_at, read_at, timestamp
		FROM messages WHERE id = ?`, id)
}

// GetMessageBySID returns the message correlated with a provider SID, or
// nil when no local message carries it (webhook-only flows).
func (db *DB) GetMessageBySID(sid string) (*Message, error) {
	if sid == "" {
		return nil, nil
	}
	return db.scanOne(`
		SELECT id, phone_key, content, msg_type, is_outgoing, status,
			provider_sid, filename, sent_at, delivered_at, read_at, timestamp
		FROM messages WHERE provider_sid = ?`, sid)
}

func (db *DB) scanOne(query string, arg any) (*Message, error) {
	var m Message
	err := db.QueryRow(query, arg).
		Scan(&m.ID, &m.PhoneKey, &m.Content, &m.Type, &m.IsOutgoing, &m.Status,
			&m.ProviderSID, &m.Filename, &m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkMessageDelivered advances a message to delivered and records the
// delivery receipt time. Only status and receipts ever mutate.
func (db *DB) MarkMessageDelivered(id string, ts int64) error {
	_, err := db.Exec(`UPDATE messages SET status = 'delivered', delivered_at = ? WHERE id = ?`, ts, id)
	return err
}

// MarkMessageRead advances a message to read and records the read receipt.
func (db *DB) MarkMessageRead(id string, ts int64) error {
	_, err := db.Exec(`UPDATE messages SET status = 'read', read_at = ? WHERE id = ?`, ts, id)
	return err
}

// MarkMessageFailed marks a message as terminally failed.
func (db *DB) MarkMessageFailed(id string) error {
	_, err := db.Exec(`UPDATE messages SET status = 'failed' WHERE id = ?`, id)
	return err
}

// MarkOutgoingMessagesRead advances every still-pending outgoing message
// in a thread to read. Used by the local opened-chat acknowledgement,
// which may arrive before the provider's read callback.
func (db *DB) MarkOutgoingMessagesRead(phoneKey string, ts int64) error {
	_, err := db.Exec(`
		UPDATE messages SET status = 'read', read_at = ?
		WHERE phone_key = ? AND is_outgoing = 1 AND status IN ('sent', 'delivered')`,
		ts, phoneKey)
	return err
}

// SetMessageProviderSID correlates a local message with the provider's
// message SID once the dispatch is acknowledged.
func (db *DB) SetMessageProviderSID(id, sid string) error {
	_, err := db.Exec(`UPDATE messages SET provider_sid = ? WHERE id = ?`, sid, id)
	return err
}
