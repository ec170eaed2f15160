package sync

import (
	"context"
	"log"

	"github.com/mailmirror/mailmirror/internal/mail"
	"github.com/mailmirror/mailmirror/internal/metrics"
)

// Change types the provider sends. Anything else is logged and ignored.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Notification is one entry from a webhook delivery batch.
type Notification struct {
	ProviderMessageID string
	ChangeType        string
}

// Dispatcher applies webhook notifications to the replica and
// broadcasts genuine state changes. Notifications within one delivery
// are applied sequentially; deliveries run concurrently against the
// shared store, last write wins per key.
type Dispatcher struct {
	Mailboxes MailboxFactory
	Messages  MessageGateway
	Users     UserGateway
	Broadcast Broadcaster
}

// HandleBatch processes one webhook delivery. A failing item is logged
// and the rest of the batch still runs; the caller acknowledges receipt
// regardless.
func (d *Dispatcher) HandleBatch(ctx context.Context, accessToken string, notifications []Notification) {
	mb, err := d.Mailboxes(accessToken)
	if err != nil {
		log.Printf("webhook: mailbox client: %v", err)
		return
	}

	address, err := mb.Profile(ctx)
	if err != nil {
		log.Printf("webhook: profile lookup: %v", err)
		return
	}
	owner, err := d.Users.Ensure(ctx, address)
	if err != nil {
		log.Printf("webhook: resolve owner %s: %v", address, err)
		return
	}

	for _, n := range notifications {
		metrics.Notifications.WithLabelValues(n.ChangeType).Inc()
		if err := d.handle(ctx, mb, owner.ID, n); err != nil {
			log.Printf("webhook: %s %s: %v", n.ChangeType, n.ProviderMessageID, err)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, mb Mailbox, ownerUserID int64, n Notification) error {
	switch n.ChangeType {
	case ChangeCreated:
		return d.created(ctx, mb, ownerUserID, n.ProviderMessageID)
	case ChangeUpdated:
		return d.updated(ctx, mb, ownerUserID, n.ProviderMessageID)
	case ChangeDeleted:
		return d.deleted(ctx, ownerUserID, n.ProviderMessageID)
	default:
		log.Printf("webhook: unhandled change type %q for %s", n.ChangeType, n.ProviderMessageID)
		return nil
	}
}

// created stores and announces a new message. Providers may send the
// same created notification more than once; an already-known id is a
// no-op.
func (d *Dispatcher) created(ctx context.Context, mb Mailbox, ownerUserID int64, id string) error {
	m, err := mb.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	m.OwnerUserID = ownerUserID

	_, existed, err := d.Messages.Find(ctx, ownerUserID, id)
	if err != nil {
		return err
	}
	if existed {
		return nil
	}

	pinOriginalFolder(&m, mail.Message{}, false)
	mail.Derive(&m)
	if err := d.Messages.Upsert(ctx, m); err != nil {
		metrics.PersistenceErrors.Inc()
		return err
	}

	d.emit(EventCreated, m)
	return nil
}

// updated persists the authoritative record unconditionally, so the
// replica is never stale, but only broadcasts when one of the
// client-visible flags actually changed.
func (d *Dispatcher) updated(ctx context.Context, mb Mailbox, ownerUserID int64, id string) error {
	m, err := mb.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	m.OwnerUserID = ownerUserID

	prev, existed, err := d.Messages.Find(ctx, ownerUserID, id)
	if err != nil {
		return err
	}

	pinOriginalFolder(&m, prev, existed)
	mail.Derive(&m)
	if err := d.Messages.Upsert(ctx, m); err != nil {
		metrics.PersistenceErrors.Inc()
		return err
	}

	if existed && flagsChanged(prev, m) {
		d.emit(EventUpdated, m)
	}
	return nil
}

// deleted removes the local record if present. A duplicate delete
// notification is harmless.
func (d *Dispatcher) deleted(ctx context.Context, ownerUserID int64, id string) error {
	_, existed, err := d.Messages.Find(ctx, ownerUserID, id)
	if err != nil {
		return err
	}
	if !existed {
		log.Printf("webhook: no local record for deleted message %s", id)
		return nil
	}

	if err := d.Messages.Delete(ctx, ownerUserID, id); err != nil {
		metrics.PersistenceErrors.Inc()
		return err
	}

	d.emit(EventDeleted, id)
	return nil
}

// flagsChanged compares the client-visible state of two records.
// Metadata-only churn from the provider does not count.
func flagsChanged(prev, next mail.Message) bool {
	return prev.IsFlagged != next.IsFlagged ||
		prev.IsMoved != next.IsMoved ||
		prev.IsDeleted != next.IsDeleted ||
		prev.IsRead != next.IsRead
}

func (d *Dispatcher) emit(event string, payload any) {
	metrics.Broadcasts.WithLabelValues(event).Inc()
	d.Broadcast.Emit(event, payload)
}
