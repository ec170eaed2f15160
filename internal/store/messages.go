package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mailmirror/mailmirror/internal/mail"
)

// MessageStore persists mail messages keyed on
// (owner_user_id, provider_message_id).
type MessageStore struct {
	db *sql.DB
}

// Upsert inserts the record or fully replaces the existing one for the
// same key. Concurrent calls for the same key race; the last successful
// write wins.
func (s *MessageStore) Upsert(ctx context.Context, m mail.Message) error {
	recipients, err := json.Marshal(m.Recipients)
	if err != nil {
		return &PersistenceError{Op: "upsert", Key: m.ProviderMessageID, Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages
		(owner_user_id, provider_message_id, subject, body_preview, sender, recipients,
		 received_at, created_at, current_folder_id, original_folder_id, flag_status,
		 is_read, is_deleted, is_flagged, is_moved, is_new)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_user_id, provider_message_id) DO UPDATE SET
			subject = excluded.subject,
			body_preview = excluded.body_preview,
			sender = excluded.sender,
			recipients = excluded.recipients,
			received_at = excluded.received_at,
			created_at = excluded.created_at,
			current_folder_id = excluded.current_folder_id,
			original_folder_id = excluded.original_folder_id,
			flag_status = excluded.flag_status,
			is_read = excluded.is_read,
			is_deleted = excluded.is_deleted,
			is_flagged = excluded.is_flagged,
			is_moved = excluded.is_moved,
			is_new = excluded.is_new
	`, m.OwnerUserID, m.ProviderMessageID, m.Subject, m.BodyPreview, m.Sender, string(recipients),
		m.ReceivedAt.Unix(), m.CreatedAt.Unix(), m.CurrentFolderID, m.OriginalFolderID, m.FlagStatus,
		m.IsRead, m.IsDeleted, m.IsFlagged, m.IsMoved, m.IsNew)

	if err != nil {
		return &PersistenceError{Op: "upsert", Key: m.ProviderMessageID, Err: err}
	}
	return nil
}

// Find looks up a message by its natural key. The second return value
// is false when no record exists.
func (s *MessageStore) Find(ctx context.Context, ownerUserID int64, providerMessageID string) (mail.Message, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, provider_message_id, subject, body_preview, sender, recipients,
		       received_at, created_at, current_folder_id, original_folder_id, flag_status,
		       is_read, is_deleted, is_flagged, is_moved, is_new
		FROM messages
		WHERE owner_user_id = ? AND provider_message_id = ?
	`, ownerUserID, providerMessageID)

	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return mail.Message{}, false, nil
	}
	if err != nil {
		return mail.Message{}, false, &PersistenceError{Op: "find", Key: providerMessageID, Err: err}
	}
	return m, true, nil
}

// Delete removes a message by its natural key. Deleting an absent key
// is a no-op, not an error.
func (s *MessageStore) Delete(ctx context.Context, ownerUserID int64, providerMessageID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE owner_user_id = ? AND provider_message_id = ?
	`, ownerUserID, providerMessageID)
	if err != nil {
		return &PersistenceError{Op: "delete", Key: providerMessageID, Err: err}
	}
	return nil
}

// ListByOwner returns all stored messages for a mailbox owner, newest
// first.
func (s *MessageStore) ListByOwner(ctx context.Context, ownerUserID int64) ([]mail.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_user_id, provider_message_id, subject, body_preview, sender, recipients,
		       received_at, created_at, current_folder_id, original_folder_id, flag_status,
		       is_read, is_deleted, is_flagged, is_moved, is_new
		FROM messages
		WHERE owner_user_id = ?
		ORDER BY received_at DESC
	`, ownerUserID)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Key: "", Err: err}
	}
	defer rows.Close()

	var msgs []mail.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "list", Key: "", Err: err}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Key: "", Err: err}
	}
	return msgs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (mail.Message, error) {
	var m mail.Message
	var recipients string
	var receivedAt, createdAt int64

	err := row.Scan(&m.ID, &m.OwnerUserID, &m.ProviderMessageID, &m.Subject, &m.BodyPreview,
		&m.Sender, &recipients, &receivedAt, &createdAt, &m.CurrentFolderID,
		&m.OriginalFolderID, &m.FlagStatus, &m.IsRead, &m.IsDeleted, &m.IsFlagged,
		&m.IsMoved, &m.IsNew)
	if err != nil {
		return mail.Message{}, err
	}

	if err := json.Unmarshal([]byte(recipients), &m.Recipients); err != nil {
		return mail.Message{}, err
	}
	m.ReceivedAt = time.Unix(receivedAt, 0).UTC()
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	return m, nil
}
