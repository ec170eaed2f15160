package sync

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/mailmirror/mailmirror/internal/mail"
)

// DefaultSubscriptionTTL is the provider-bounded subscription lifetime
// requested at creation.
const DefaultSubscriptionTTL = 48 * time.Hour

// SubscriptionError means the provider rejected a subscription request.
// Non-fatal: the pull still succeeds, without live-update capability.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription creation failed: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// SubscriptionManager creates and tracks the provider-side change
// subscription for a mailbox. There is no renewal loop: once a
// subscription expires, notifications silently stop until the next pull
// re-creates one.
type SubscriptionManager struct {
	// PublicURL is the externally reachable base URL for callbacks,
	// resolved once at startup.
	PublicURL     string
	Subscriptions SubscriptionGateway
	TTL           time.Duration

	now func() time.Time
}

// Ensure returns the owner's live subscription, creating one when none
// is active. The access token is embedded in the callback URL so
// inbound notifications can be correlated to a principal without
// server-side session state.
func (m *SubscriptionManager) Ensure(ctx context.Context, mb Mailbox, accessToken string, ownerUserID int64, address string) (mail.Subscription, error) {
	if sub, ok, err := m.Subscriptions.Active(ctx, ownerUserID); err != nil {
		log.Printf("subscription lookup for %s: %v", address, err)
	} else if ok {
		return sub, nil
	}

	state, err := clientState()
	if err != nil {
		return mail.Subscription{}, &SubscriptionError{Err: err}
	}

	ttl := m.TTL
	if ttl == 0 {
		ttl = DefaultSubscriptionTTL
	}
	sub := mail.Subscription{
		Resource:        fmt.Sprintf("users/%s/messages", address),
		NotificationURL: fmt.Sprintf("%s/api/email/listen?token=%s", m.PublicURL, url.QueryEscape(accessToken)),
		ClientState:     state,
		ExpiresAt:       m.timeNow().Add(ttl),
	}

	created, err := mb.CreateSubscription(ctx, sub)
	if err != nil {
		return mail.Subscription{}, &SubscriptionError{Err: err}
	}

	if err := m.Subscriptions.Save(ctx, ownerUserID, created); err != nil {
		// The provider-side subscription exists; losing the local row
		// only means the next pull creates a redundant one.
		log.Printf("subscription save for %s: %v", address, err)
	}
	return created, nil
}

func (m *SubscriptionManager) timeNow() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// clientState generates the opaque random token sent with the
// subscription. It is not currently validated against inbound
// callbacks.
func clientState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
