package payment

import (
	"context"
	"errors"
	"net/http"
)

// ErrProcessorUnavailable marks a failed round-trip to the payment processor.
// The authorization amount may or may not have been updated; callers must
// retry the full pricing pass rather than assume either outcome.
var ErrProcessorUnavailable = errors.New("payment: processor unavailable")

// Destination is the shipping address pushed onto the authorization.
type Destination struct {
	Name       string
	Line1      string
	City       string
	PostalCode string
	Country    string
}

// AuthorizationUpdate carries everything synchronised onto a pending payment
// authorization in one request: the amount to capture later, the destination,
// and the audit payload read back during webhook reconciliation.
type AuthorizationUpdate struct {
	AuthorizationID string
	AmountMinor     int64
	Currency        string
	Destination     Destination
	Metadata        map[string]string
}

// Authorizer abstracts the processor operation the checkout synchronizer
// depends on. Updates are idempotent on the processor side while the
// authorization is uncaptured: re-sending simply overwrites the prior amount.
type Authorizer interface {
	UpdateAuthorization(ctx context.Context, upd AuthorizationUpdate) error
}

// WebhookVerifyResult contains the normalised data extracted from a
// confirmation webhook after signature verification.
type WebhookVerifyResult struct {
	Valid           bool
	OrderID         string
	AmountMinor     int64
	Status          string
	ProviderPayload []byte
	Err             error
}

// WebhookVerifier validates inbound processor notifications.
type WebhookVerifier interface {
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}
