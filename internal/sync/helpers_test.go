package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/mailmirror/mailmirror/internal/mail"
	"github.com/mailmirror/mailmirror/internal/store"
)

type fakeMailbox struct {
	address    string
	list       []mail.Message
	byID       map[string]mail.Message
	profileErr error
	listErr    error
	getErr     error
	subErr     error

	createdSubs []mail.Subscription
	getCalls    int
}

func (f *fakeMailbox) Profile(ctx context.Context) (string, error) {
	if f.profileErr != nil {
		return "", f.profileErr
	}
	return f.address, nil
}

func (f *fakeMailbox) ListMessages(ctx context.Context) ([]mail.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeMailbox) GetMessage(ctx context.Context, id string) (mail.Message, error) {
	f.getCalls++
	if f.getErr != nil {
		return mail.Message{}, f.getErr
	}
	m, ok := f.byID[id]
	if !ok {
		return mail.Message{}, fmt.Errorf("no such message %s", id)
	}
	return m, nil
}

func (f *fakeMailbox) CreateSubscription(ctx context.Context, sub mail.Subscription) (mail.Subscription, error) {
	if f.subErr != nil {
		return mail.Subscription{}, f.subErr
	}
	f.createdSubs = append(f.createdSubs, sub)
	return sub, nil
}

func factoryFor(mb Mailbox) MailboxFactory {
	return func(accessToken string) (Mailbox, error) { return mb, nil }
}

// memGateway is an in-memory MessageGateway with injectable per-key
// upsert failures.
type memGateway struct {
	mu        sync.Mutex
	msgs      map[string]mail.Message
	upsertErr map[string]error
	upserts   int
}

func newMemGateway() *memGateway {
	return &memGateway{msgs: make(map[string]mail.Message), upsertErr: make(map[string]error)}
}

func gatewayKey(owner int64, id string) string {
	return fmt.Sprintf("%d|%s", owner, id)
}

func (g *memGateway) Upsert(ctx context.Context, m mail.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.upsertErr[m.ProviderMessageID]; err != nil {
		return err
	}
	g.upserts++
	g.msgs[gatewayKey(m.OwnerUserID, m.ProviderMessageID)] = m
	return nil
}

func (g *memGateway) Find(ctx context.Context, owner int64, id string) (mail.Message, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.msgs[gatewayKey(owner, id)]
	return m, ok, nil
}

func (g *memGateway) Delete(ctx context.Context, owner int64, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.msgs, gatewayKey(owner, id))
	return nil
}

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byAddr map[string]mail.User
}

func newMemUsers() *memUsers {
	return &memUsers{byAddr: make(map[string]mail.User)}
}

func (u *memUsers) Ensure(ctx context.Context, address string) (mail.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.byAddr[address]; ok {
		return user, nil
	}
	u.nextID++
	user := mail.User{ID: u.nextID, Address: address}
	u.byAddr[address] = user
	return user, nil
}

type memSubs struct {
	active  map[int64]mail.Subscription
	saveErr error
	saves   int
}

func newMemSubs() *memSubs {
	return &memSubs{active: make(map[int64]mail.Subscription)}
}

func (s *memSubs) Active(ctx context.Context, owner int64) (mail.Subscription, bool, error) {
	sub, ok := s.active[owner]
	return sub, ok, nil
}

func (s *memSubs) Save(ctx context.Context, owner int64, sub mail.Subscription) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.active[owner] = sub
	return nil
}

type recordedEvent struct {
	Event   string
	Payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) Emit(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Event: event, Payload: payload})
}

func (b *recordingBroadcaster) recorded() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

// persistFailure mimics what the sqlite-backed store returns.
func persistFailure(key string) error {
	return &store.PersistenceError{Op: "upsert", Key: key, Err: fmt.Errorf("disk full")}
}
