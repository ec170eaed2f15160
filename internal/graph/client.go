// Package graph talks to the Microsoft Graph mail API on behalf of one
// bearer token.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/mailmirror/mailmirror/internal/mail"
)

var selectFields = []string{
	"id", "subject", "bodyPreview", "from", "toRecipients",
	"receivedDateTime", "createdDateTime", "parentFolderId", "isRead", "flag",
}

// Client is a Graph mailbox client bound to a single access token.
type Client struct {
	sdk *msgraphsdk.GraphServiceClient
}

// NewClient builds a Graph client that authorizes every call with the
// given bearer token.
func NewClient(accessToken string) (*Client, error) {
	cred := &staticTokenCredential{token: accessToken}
	sdk, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}
	return &Client{sdk: sdk}, nil
}

// Profile returns the authenticated user's mailbox address.
func (c *Client) Profile(ctx context.Context) (string, error) {
	me, err := c.sdk.Me().Get(ctx, nil)
	if err != nil {
		return "", classify(err)
	}
	if addr := me.GetMail(); addr != nil && *addr != "" {
		return *addr, nil
	}
	if upn := me.GetUserPrincipalName(); upn != nil {
		return *upn, nil
	}
	return "", fmt.Errorf("profile has no mailbox address")
}

// ListMessages fetches the current message list for the mailbox.
func (c *Client) ListMessages(ctx context.Context) ([]mail.Message, error) {
	requestConfig := &users.ItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMessagesRequestBuilderGetQueryParameters{
			Top:    int32Ptr(100),
			Select: selectFields,
		},
	}

	result, err := c.sdk.Me().Messages().Get(ctx, requestConfig)
	if err != nil {
		return nil, classify(err)
	}

	var msgs []mail.Message
	for _, m := range result.GetValue() {
		msgs = append(msgs, normalize(m))
	}
	return msgs, nil
}

// GetMessage fetches the authoritative current record for one message.
func (c *Client) GetMessage(ctx context.Context, id string) (mail.Message, error) {
	m, err := c.sdk.Me().Messages().ByMessageId(id).Get(ctx, nil)
	if err != nil {
		return mail.Message{}, classify(err)
	}
	return normalize(m), nil
}

// CreateSubscription registers a change subscription with the provider
// and returns it as accepted, with the provider-assigned expiry.
func (c *Client) CreateSubscription(ctx context.Context, sub mail.Subscription) (mail.Subscription, error) {
	req := models.NewSubscription()
	req.SetChangeType(strPtr("created,updated,deleted"))
	req.SetNotificationUrl(strPtr(sub.NotificationURL))
	req.SetResource(strPtr(sub.Resource))
	req.SetClientState(strPtr(sub.ClientState))
	expires := sub.ExpiresAt
	req.SetExpirationDateTime(&expires)

	created, err := c.sdk.Subscriptions().Post(ctx, req, nil)
	if err != nil {
		return mail.Subscription{}, classify(err)
	}

	if exp := created.GetExpirationDateTime(); exp != nil {
		sub.ExpiresAt = *exp
	}
	return sub, nil
}

// normalize converts a Graph message to the local record shape. Derived
// fields are left unset; callers run mail.Derive before persisting.
func normalize(m models.Messageable) mail.Message {
	var msg mail.Message

	if id := m.GetId(); id != nil {
		msg.ProviderMessageID = *id
	}
	if subject := m.GetSubject(); subject != nil {
		msg.Subject = *subject
	}
	if preview := m.GetBodyPreview(); preview != nil {
		msg.BodyPreview = *preview
	}
	if from := m.GetFrom(); from != nil {
		if emailAddr := from.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				msg.Sender = *addr
			}
		}
	}
	if to := m.GetToRecipients(); to != nil {
		msg.Recipients = extractAddresses(to)
	}
	if rcvd := m.GetReceivedDateTime(); rcvd != nil {
		msg.ReceivedAt = *rcvd
	}
	if created := m.GetCreatedDateTime(); created != nil {
		msg.CreatedAt = *created
	}
	if folder := m.GetParentFolderId(); folder != nil {
		msg.CurrentFolderID = *folder
	}
	if isRead := m.GetIsRead(); isRead != nil {
		msg.IsRead = *isRead
	}
	if flag := m.GetFlag(); flag != nil {
		if status := flag.GetFlagStatus(); status != nil {
			msg.FlagStatus = status.String()
		}
	}

	return msg
}

// extractAddresses extracts email addresses from recipients, preserving
// order.
func extractAddresses(recipients []models.Recipientable) []string {
	var addrs []string
	for _, r := range recipients {
		if emailAddr := r.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				addrs = append(addrs, *addr)
			}
		}
	}
	return addrs
}

// staticTokenCredential satisfies the Azure credential interface with a
// caller-supplied bearer token.
type staticTokenCredential struct {
	token string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(1 * time.Hour),
	}, nil
}

func int32Ptr(i int32) *int32 { return &i }

func strPtr(s string) *string { return &s }
