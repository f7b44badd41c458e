package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-souk/internal/resilience"
)

func stripeClient(baseURL string) Stripe {
	return Stripe{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		BaseURL:       baseURL,
		HTTP: &resilience.HTTPClient{
			Client:      &http.Client{},
			MaxAttempts: 1,
		},
	}
}

func TestUpdateAuthorizationSendsFormPayload(t *testing.T) {
	var captured url.Values
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := stripeClient(srv.URL)
	err := s.UpdateAuthorization(context.Background(), AuthorizationUpdate{
		AuthorizationID: "pi_abc",
		AmountMinor:     6640,
		Currency:        "EUR",
		Destination: Destination{
			Name:       "Nadia B",
			Line1:      "12 rue des Rosiers",
			City:       "Paris",
			PostalCode: "75004",
			Country:    "FR",
		},
		Metadata: map[string]string{"orderId": "ord-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "/v1/payment_intents/pi_abc", path)
	require.Equal(t, "Bearer sk_test_123", auth)
	require.Equal(t, "6640", captured.Get("amount"))
	require.Equal(t, "eur", captured.Get("currency"))
	require.Equal(t, "FR", captured.Get("shipping[address][country]"))
	require.Equal(t, "ord-1", captured.Get("metadata[orderId]"))
}

func TestUpdateAuthorizationProcessorDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := stripeClient(srv.URL)
	err := s.UpdateAuthorization(context.Background(), AuthorizationUpdate{AuthorizationID: "pi_abc", AmountMinor: 100, Currency: "EUR"})
	require.ErrorIs(t, err, ErrProcessorUnavailable)
}

func signedRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()
	ts := "1756380000"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment/stripe", strings.NewReader(string(body)))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, sig))
	return req
}

func TestVerifyWebhookValidSignature(t *testing.T) {
	s := stripeClient("")
	body := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_abc","amount_received":6640,"metadata":{"orderId":"3f1c7a9e-8a1a-4f6e-9a51-8f2f4f9b1c11"}}}}`)

	res, err := s.VerifyWebhook(signedRequest(t, "whsec_test", body), body)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "PAID", res.Status)
	require.Equal(t, int64(6640), res.AmountMinor)
	require.Equal(t, "3f1c7a9e-8a1a-4f6e-9a51-8f2f4f9b1c11", res.OrderID)
}

func TestVerifyWebhookBadSignature(t *testing.T) {
	s := stripeClient("")
	body := []byte(`{"type":"payment_intent.succeeded"}`)
	req := signedRequest(t, "wrong_secret", body)

	res, err := s.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.False(t, res.Valid)
}

func TestVerifyWebhookMissingHeader(t *testing.T) {
	s := stripeClient("")
	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))

	res, err := s.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.False(t, res.Valid)
}

func TestNormaliseStripeEvent(t *testing.T) {
	cases := map[string]string{
		"payment_intent.succeeded":      "PAID",
		"payment_intent.payment_failed": "FAILED",
		"payment_intent.canceled":       "CANCELED",
		"charge.refunded":               "IGNORED",
	}
	for event, want := range cases {
		require.Equal(t, want, normaliseStripeEvent(event), event)
	}
}
