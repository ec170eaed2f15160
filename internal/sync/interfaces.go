// Package sync reconciles the provider mailbox with the local replica:
// initial pull, change-subscription setup, and idempotent application
// of webhook notifications.
package sync

import (
	"context"

	"github.com/mailmirror/mailmirror/internal/mail"
)

// Mailbox is the provider API surface for one authenticated mailbox.
type Mailbox interface {
	Profile(ctx context.Context) (string, error)
	ListMessages(ctx context.Context) ([]mail.Message, error)
	GetMessage(ctx context.Context, id string) (mail.Message, error)
	CreateSubscription(ctx context.Context, sub mail.Subscription) (mail.Subscription, error)
}

// MailboxFactory builds a Mailbox bound to an access token.
type MailboxFactory func(accessToken string) (Mailbox, error)

// MessageGateway is the keyed upsert/find/delete capability over stored
// messages. The concrete store is substitutable in tests.
type MessageGateway interface {
	Upsert(ctx context.Context, m mail.Message) error
	Find(ctx context.Context, ownerUserID int64, providerMessageID string) (mail.Message, bool, error)
	Delete(ctx context.Context, ownerUserID int64, providerMessageID string) error
}

// UserGateway resolves mailbox owners by address.
type UserGateway interface {
	Ensure(ctx context.Context, address string) (mail.User, error)
}

// SubscriptionGateway tracks the live change subscription per owner.
type SubscriptionGateway interface {
	Active(ctx context.Context, ownerUserID int64) (mail.Subscription, bool, error)
	Save(ctx context.Context, ownerUserID int64, sub mail.Subscription) error
}

// Broadcaster pushes an event to currently connected clients.
// Fire-and-forget: no delivery guarantee.
type Broadcaster interface {
	Emit(event string, payload any)
}

// Fanout broadcasts to several sinks.
type Fanout []Broadcaster

func (f Fanout) Emit(event string, payload any) {
	for _, b := range f {
		b.Emit(event, payload)
	}
}

// Real-time event names.
const (
	EventCreated = "emailCreated"
	EventUpdated = "emailUpdated"
	EventDeleted = "emailDeleted"
)

// pinOriginalFolder carries the first-seen folder forward across full
// replaces. The provider never reports an original folder, so the
// folder a message is first persisted in is pinned as its origin; later
// ingests inherit it, which is what makes moves detectable.
func pinOriginalFolder(m *mail.Message, prev mail.Message, existed bool) {
	if existed && prev.OriginalFolderID != "" {
		m.OriginalFolderID = prev.OriginalFolderID
		return
	}
	if m.OriginalFolderID == "" {
		m.OriginalFolderID = m.CurrentFolderID
	}
}
