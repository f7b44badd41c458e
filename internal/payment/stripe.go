package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-souk/internal/resilience"
)

// Stripe talks to a Stripe-compatible payment intents API. The checkout
// synchronizer updates the pending intent's amount, shipping address and
// audit metadata in a single request; Stripe treats repeated updates to an
// uncaptured intent as plain overwrites, which gives us idempotence for free.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTP          *resilience.HTTPClient
}

func (s Stripe) apiHost() string {
	host := strings.TrimSpace(s.BaseURL)
	if host == "" {
		return "https://api.stripe.com"
	}
	return strings.TrimRight(host, "/")
}

// UpdateAuthorization pushes amount, destination and audit metadata onto the
// pending payment intent. Any transport or non-2xx failure maps onto
// ErrProcessorUnavailable so the caller can retry the whole pricing pass.
func (s Stripe) UpdateAuthorization(ctx context.Context, upd AuthorizationUpdate) error {
	if strings.TrimSpace(upd.AuthorizationID) == "" {
		return errors.New("payment: authorization id is required")
	}
	if s.HTTP == nil {
		return errors.New("payment: stripe client not configured")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(upd.AmountMinor, 10))
	form.Set("currency", strings.ToLower(upd.Currency))
	if upd.Destination.Name != "" {
		form.Set("shipping[name]", upd.Destination.Name)
	}
	form.Set("shipping[address][line1]", upd.Destination.Line1)
	form.Set("shipping[address][city]", upd.Destination.City)
	form.Set("shipping[address][postal_code]", upd.Destination.PostalCode)
	form.Set("shipping[address][country]", upd.Destination.Country)
	for key, value := range upd.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s", s.apiHost(), url.PathEscape(upd.AuthorizationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: status %d: %s", ErrProcessorUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header (HMAC-SHA256 over
// "<timestamp>.<payload>") and normalises the event into WebhookVerifyResult.
func (s Stripe) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	timestamp, provided := parseSignatureHeader(r.Header.Get("Stripe-Signature"))
	if timestamp == "" || provided == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing signature header")}, nil
	}
	expected := s.computeSignature(timestamp, body)
	if expected == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID             string            `json:"id"`
				Amount         int64             `json:"amount"`
				AmountReceived int64             `json:"amount_received"`
				Metadata       map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}

	amount := event.Data.Object.AmountReceived
	if amount == 0 {
		amount = event.Data.Object.Amount
	}
	orderID := strings.TrimSpace(event.Data.Object.Metadata["orderId"])
	if orderID == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing order id in metadata")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		OrderID:         orderID,
		AmountMinor:     amount,
		Status:          normaliseStripeEvent(event.Type),
		ProviderPayload: body,
	}, nil
}

func (s Stripe) computeSignature(timestamp string, body []byte) string {
	key := strings.TrimSpace(s.WebhookSecret)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (timestamp, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			v1 = value
		}
	}
	return timestamp, v1
}

func normaliseStripeEvent(eventType string) string {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "payment_intent.succeeded":
		return "PAID"
	case "payment_intent.payment_failed":
		return "FAILED"
	case "payment_intent.canceled":
		return "CANCELED"
	default:
		return "IGNORED"
	}
}
