package backend

import (
	"context"
	"fmt"

	"github.com/consentdesk/console/internal/console"
	"github.com/consentdesk/console/internal/dsar"
)

// Resource paths, relative to the base URL.
const (
	ResourceDSARRequests     = "dsar/requests"
	ResourceRules            = "compliance/rules"
	ResourceCustomers        = "customers"
	ResourceGuardianConsents = "guardian-consents"
	ResourcePrivacyNotices   = "privacy-notices"
	ResourceTopicPreferences = "topic-preferences"
)

// DSAR is the client for data subject access requests. It serves as both
// the request source and the processor of a dsar.Board.
type DSAR struct {
	requests *Collection[dsar.Request]
	client   *Client
}

// NewDSAR creates the DSAR client.
func NewDSAR(client *Client) *DSAR {
	return &DSAR{
		requests: NewCollection[dsar.Request](client, ResourceDSARRequests),
		client:   client,
	}
}

// List fetches every request.
func (d *DSAR) List(ctx context.Context) ([]dsar.Request, error) {
	return d.requests.List(ctx)
}

// AutoProcess asks the backend to process a request automatically.
func (d *DSAR) AutoProcess(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errMissingID)
	}
	return d.client.Action(ctx, ResourceDSARRequests, id, "auto-process", nil, nil)
}

type statusUpdate struct {
	Status dsar.Status `json:"status"`
}

// UpdateStatus sets a request's status.
func (d *DSAR) UpdateStatus(ctx context.Context, id string, status dsar.Status) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errMissingID)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return d.client.Update(ctx, ResourceDSARRequests, id, statusUpdate{Status: status}, nil)
}

// Console bundles the typed collections for the admin resources.
type Console struct {
	Rules            *Collection[console.Rule]
	Customers        *Collection[console.Customer]
	GuardianConsents *Collection[console.GuardianConsent]
	PrivacyNotices   *Collection[console.PrivacyNotice]
	TopicPreferences *Collection[console.TopicPreference]
}

// NewConsole binds every admin resource on client.
func NewConsole(client *Client) *Console {
	return &Console{
		Rules:            NewCollection[console.Rule](client, ResourceRules),
		Customers:        NewCollection[console.Customer](client, ResourceCustomers),
		GuardianConsents: NewCollection[console.GuardianConsent](client, ResourceGuardianConsents),
		PrivacyNotices:   NewCollection[console.PrivacyNotice](client, ResourcePrivacyNotices),
		TopicPreferences: NewCollection[console.TopicPreference](client, ResourceTopicPreferences),
	}
}
