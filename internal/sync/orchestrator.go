package sync

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/mailmirror/mailmirror/internal/mail"
	"github.com/mailmirror/mailmirror/internal/metrics"
)

// persistConcurrency bounds parallel store writes during a pull.
const persistConcurrency = 8

// Orchestrator drives the initial full pull: fetch, derive, persist,
// then make sure a change subscription is in place.
type Orchestrator struct {
	Mailboxes     MailboxFactory
	Messages      MessageGateway
	Users         UserGateway
	Subscriptions *SubscriptionManager
}

// Synchronize fetches the caller's full message list, persists every
// message with derived state, ensures a change subscription exists
// (best-effort), and returns the batch. Individual persistence failures
// are logged and skipped; they do not abort the pull. No broadcast
// events are emitted here, so the client that triggered the pull does
// not get a self-echo.
func (o *Orchestrator) Synchronize(ctx context.Context, accessToken string) ([]mail.Message, error) {
	mb, err := o.Mailboxes(accessToken)
	if err != nil {
		return nil, err
	}

	address, err := mb.Profile(ctx)
	if err != nil {
		return nil, err
	}

	owner, err := o.Users.Ensure(ctx, address)
	if err != nil {
		return nil, err
	}

	fetched, err := mb.ListMessages(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]mail.Message, len(fetched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(persistConcurrency)
	for i, m := range fetched {
		g.Go(func() error {
			m.OwnerUserID = owner.ID

			prev, existed, err := o.Messages.Find(gctx, m.OwnerUserID, m.ProviderMessageID)
			if err != nil {
				metrics.PersistenceErrors.Inc()
				log.Printf("pull: lookup %s: %v", m.ProviderMessageID, err)
				existed = false
			}
			pinOriginalFolder(&m, prev, existed)
			mail.Derive(&m)

			if err := o.Messages.Upsert(gctx, m); err != nil {
				metrics.PersistenceErrors.Inc()
				log.Printf("pull: store %s: %v", m.ProviderMessageID, err)
			}
			out[i] = m
			return nil
		})
	}
	g.Wait()

	if o.Subscriptions != nil {
		if _, err := o.Subscriptions.Ensure(ctx, mb, accessToken, owner.ID, address); err != nil {
			log.Printf("pull: subscription setup for %s: %v", address, err)
		}
	}

	return out, nil
}
