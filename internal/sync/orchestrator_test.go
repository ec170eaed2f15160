package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mailmirror/mailmirror/internal/mail"
)

func TestSynchronizeDerivesAndPersists(t *testing.T) {
	mb := &fakeMailbox{
		address: "owner@example.com",
		list: []mail.Message{
			{ProviderMessageID: "A", IsRead: false},
			{ProviderMessageID: "B", IsRead: true, CurrentFolderID: "F1", OriginalFolderID: "F2"},
		},
	}
	gw := newMemGateway()
	subs := newMemSubs()
	o := &Orchestrator{
		Mailboxes:     factoryFor(mb),
		Messages:      gw,
		Users:         newMemUsers(),
		Subscriptions: &SubscriptionManager{PublicURL: "https://abc.ngrok.io", Subscriptions: subs},
	}

	batch, err := o.Synchronize(context.Background(), "token")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}

	a, ok, _ := gw.Find(context.Background(), 1, "A")
	if !ok {
		t.Fatal("A not stored")
	}
	if !a.IsNew || a.IsMoved {
		t.Errorf("A: IsNew=%v IsMoved=%v, want true/false", a.IsNew, a.IsMoved)
	}

	b, ok, _ := gw.Find(context.Background(), 1, "B")
	if !ok {
		t.Fatal("B not stored")
	}
	if b.IsNew || !b.IsMoved {
		t.Errorf("B: IsNew=%v IsMoved=%v, want false/true", b.IsNew, b.IsMoved)
	}

	if b.OwnerUserID != 1 {
		t.Errorf("OwnerUserID = %d, want resolved owner", b.OwnerUserID)
	}
	if subs.saves != 1 {
		t.Errorf("subscription saves = %d, want 1", subs.saves)
	}
}

func TestSynchronizeSubscriptionFailureIsNotFatal(t *testing.T) {
	mb := &fakeMailbox{
		address: "owner@example.com",
		list:    []mail.Message{{ProviderMessageID: "A", IsRead: true}},
		subErr:  errors.New("provider said no"),
	}
	o := &Orchestrator{
		Mailboxes:     factoryFor(mb),
		Messages:      newMemGateway(),
		Users:         newMemUsers(),
		Subscriptions: &SubscriptionManager{PublicURL: "https://abc.ngrok.io", Subscriptions: newMemSubs()},
	}

	batch, err := o.Synchronize(context.Background(), "token")
	if err != nil {
		t.Fatalf("pull failed on subscription error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch size = %d, want 1", len(batch))
	}
}

func TestSynchronizePersistFailureSkipsMessage(t *testing.T) {
	mb := &fakeMailbox{
		address: "owner@example.com",
		list: []mail.Message{
			{ProviderMessageID: "good", IsRead: true},
			{ProviderMessageID: "bad", IsRead: true},
		},
	}
	gw := newMemGateway()
	gw.upsertErr["bad"] = persistFailure("bad")
	o := &Orchestrator{
		Mailboxes: factoryFor(mb),
		Messages:  gw,
		Users:     newMemUsers(),
	}

	batch, err := o.Synchronize(context.Background(), "token")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size = %d; a skipped persist must not shrink the result", len(batch))
	}
	if _, ok, _ := gw.Find(context.Background(), 1, "good"); !ok {
		t.Error("good message not stored")
	}
}

func TestSynchronizeProfileErrorAbortsPull(t *testing.T) {
	wantErr := errors.New("bad token")
	mb := &fakeMailbox{profileErr: wantErr}
	o := &Orchestrator{
		Mailboxes: factoryFor(mb),
		Messages:  newMemGateway(),
		Users:     newMemUsers(),
	}

	if _, err := o.Synchronize(context.Background(), "token"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestSynchronizePreservesPinnedOriginAcrossPulls(t *testing.T) {
	mb := &fakeMailbox{
		address: "owner@example.com",
		list:    []mail.Message{{ProviderMessageID: "A", IsRead: true, CurrentFolderID: "F1"}},
	}
	gw := newMemGateway()
	o := &Orchestrator{
		Mailboxes: factoryFor(mb),
		Messages:  gw,
		Users:     newMemUsers(),
	}

	if _, err := o.Synchronize(context.Background(), "token"); err != nil {
		t.Fatal(err)
	}

	mb.list = []mail.Message{{ProviderMessageID: "A", IsRead: true, CurrentFolderID: "F2"}}
	if _, err := o.Synchronize(context.Background(), "token"); err != nil {
		t.Fatal(err)
	}

	stored, _, _ := gw.Find(context.Background(), 1, "A")
	if stored.OriginalFolderID != "F1" {
		t.Errorf("original folder = %q, want F1 pinned from the first pull", stored.OriginalFolderID)
	}
	if !stored.IsMoved {
		t.Error("message seen in a new folder must derive IsMoved")
	}
}

func TestSynchronizeReusesActiveSubscription(t *testing.T) {
	mb := &fakeMailbox{address: "owner@example.com"}
	subs := newMemSubs()
	subs.active[1] = mail.Subscription{
		Resource:  "users/owner@example.com/messages",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	o := &Orchestrator{
		Mailboxes:     factoryFor(mb),
		Messages:      newMemGateway(),
		Users:         newMemUsers(),
		Subscriptions: &SubscriptionManager{PublicURL: "https://abc.ngrok.io", Subscriptions: subs},
	}

	if _, err := o.Synchronize(context.Background(), "token"); err != nil {
		t.Fatal(err)
	}
	if len(mb.createdSubs) != 0 {
		t.Errorf("created %d subscriptions, want 0 while one is active", len(mb.createdSubs))
	}
}
