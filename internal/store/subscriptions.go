package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/mailmirror/mailmirror/internal/mail"
)

// SubscriptionStore tracks the single live change subscription per
// mailbox owner.
type SubscriptionStore struct {
	db *sql.DB
}

// Active returns the stored subscription for the owner if one exists
// and has not passed its expiry.
func (s *SubscriptionStore) Active(ctx context.Context, ownerUserID int64) (mail.Subscription, bool, error) {
	var sub mail.Subscription
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT resource, notification_url, client_state, expires_at
		FROM subscriptions WHERE owner_user_id = ?
	`, ownerUserID).Scan(&sub.Resource, &sub.NotificationURL, &sub.ClientState, &expiresAt)
	if err == sql.ErrNoRows {
		return mail.Subscription{}, false, nil
	}
	if err != nil {
		return mail.Subscription{}, false, &PersistenceError{Op: "find subscription", Key: "", Err: err}
	}

	sub.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if !sub.Active(time.Now()) {
		return mail.Subscription{}, false, nil
	}
	return sub, true, nil
}

// Save records the subscription as the owner's current one, replacing
// any previous row.
func (s *SubscriptionStore) Save(ctx context.Context, ownerUserID int64, sub mail.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (owner_user_id, resource, notification_url, client_state, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_user_id) DO UPDATE SET
			resource = excluded.resource,
			notification_url = excluded.notification_url,
			client_state = excluded.client_state,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, ownerUserID, sub.Resource, sub.NotificationURL, sub.ClientState, sub.ExpiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return &PersistenceError{Op: "save subscription", Key: sub.Resource, Err: err}
	}
	return nil
}
