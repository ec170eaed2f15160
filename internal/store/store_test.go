package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mailmirror/mailmirror/internal/mail"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mailmirror.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessageUpsertIsFullReplace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := mail.Message{
		OwnerUserID:       1,
		ProviderMessageID: "A",
		Subject:           "v1",
		Sender:            "alice@example.com",
		Recipients:        []string{"bob@example.com", "carol@example.com"},
		ReceivedAt:        time.Unix(1700000000, 0).UTC(),
		CreatedAt:         time.Unix(1700000000, 0).UTC(),
		CurrentFolderID:   "F1",
		OriginalFolderID:  "F1",
		FlagStatus:        "flagged",
		IsRead:            false,
		IsFlagged:         true,
		IsNew:             true,
	}
	if err := s.Messages.Upsert(ctx, msg); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Messages.Find(ctx, 1, "A")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	got.ID = 0
	if diff := cmp.Diff(msg, got); diff != "" {
		t.Errorf("roundtrip (-want +got):\n%s", diff)
	}

	msg.Subject = "v2"
	msg.IsRead = true
	msg.IsNew = false
	if err := s.Messages.Upsert(ctx, msg); err != nil {
		t.Fatal(err)
	}

	got, _, _ = s.Messages.Find(ctx, 1, "A")
	if got.Subject != "v2" || !got.IsRead {
		t.Errorf("replace did not take: %+v", got)
	}

	all, err := s.Messages.ListByOwner(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("rows = %d, want exactly one per natural key", len(all))
	}
}

func TestMessageKeyIsScopedByOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, owner := range []int64{1, 2} {
		if err := s.Messages.Upsert(ctx, mail.Message{OwnerUserID: owner, ProviderMessageID: "A"}); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok, _ := s.Messages.Find(ctx, 1, "A"); !ok {
		t.Error("owner 1 record missing")
	}
	if _, ok, _ := s.Messages.Find(ctx, 2, "A"); !ok {
		t.Error("owner 2 record missing")
	}
}

func TestMessageDeleteAbsentKeyIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := s.Messages.Delete(context.Background(), 1, "ghost"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
}

func TestUserEnsureIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Users.Ensure(ctx, "owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Users.Ensure(ctx, "owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
}

func TestSubscriptionActiveHonorsExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	expired := mail.Subscription{
		Resource:        "users/owner@example.com/messages",
		NotificationURL: "https://abc.ngrok.io/api/email/listen?token=t",
		ClientState:     "deadbeef",
		ExpiresAt:       time.Now().Add(-time.Hour),
	}
	if err := s.Subscriptions.Save(ctx, 1, expired); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Subscriptions.Active(ctx, 1); ok {
		t.Error("expired subscription reported active")
	}

	live := expired
	live.ExpiresAt = time.Now().Add(24 * time.Hour)
	if err := s.Subscriptions.Save(ctx, 1, live); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Subscriptions.Active(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("active: ok=%v err=%v", ok, err)
	}
	if got.ClientState != "deadbeef" {
		t.Errorf("client state = %q", got.ClientState)
	}
}
