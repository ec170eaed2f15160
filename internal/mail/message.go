package mail

import "time"

// Message is the local replica of one provider mailbox message.
// At most one Message exists per (OwnerUserID, ProviderMessageID).
type Message struct {
	ID                int64     `json:"id"`
	OwnerUserID       int64     `json:"ownerUserId"`
	ProviderMessageID string    `json:"providerMessageId"`
	Subject           string    `json:"subject"`
	BodyPreview       string    `json:"bodyPreview"`
	Sender            string    `json:"senderAddress"`
	Recipients        []string  `json:"recipientAddresses"`
	ReceivedAt        time.Time `json:"receivedAt"`
	CreatedAt         time.Time `json:"createdAt"`
	CurrentFolderID   string    `json:"currentFolderId"`
	OriginalFolderID  string    `json:"originalFolderId"`
	FlagStatus        string    `json:"flagStatus"`

	// Provider-reported state.
	IsRead    bool `json:"isRead"`
	IsDeleted bool `json:"isDeleted"`

	// Derived state, recomputed on every write. Never trusted from
	// upstream payloads.
	IsFlagged bool `json:"isFlagged"`
	IsMoved   bool `json:"isMoved"`
	IsNew     bool `json:"isNew"`
}

// Subscription is a provider-side change subscription for one mailbox.
type Subscription struct {
	Resource        string    `json:"resource"`
	NotificationURL string    `json:"notificationUrl"`
	ClientState     string    `json:"clientState"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Active reports whether the subscription can still be relied on to
// deliver callbacks.
func (s Subscription) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// User is the mailbox owner, resolved by address.
type User struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}
