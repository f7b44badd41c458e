package payment

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-souk/internal/common"
	"github.com/noah-isme/backend-souk/internal/notify"
	"github.com/noah-isme/backend-souk/internal/obs"
	"github.com/noah-isme/backend-souk/internal/order"
)

// Webhook handles payment processor confirmation callbacks. Settlement is
// idempotent: the order status guard ensures stock is decremented exactly
// once no matter how many times the processor re-delivers the event.
type Webhook struct {
	Pool      *pgxpool.Pool
	Verifiers map[string]WebhookVerifier
	Replay    *redis.Client
	ReplayTTL time.Duration
	Tasks     *asynq.Client
}

// Handle processes a confirmation webhook for the provider named in the URL.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	verifier, ok := h.Verifiers[providerKey]
	if !ok || h.Pool == nil {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	result := "error"
	defer func() {
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues(providerKey, result).Inc()
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	verified, err := verifier.VerifyWebhook(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !verified.Valid {
		result = "invalid_signature"
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if verified.Status == "IGNORED" {
		result = "ignored"
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerKey, common.Sha256Hex(string(body)))
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !fresh {
			result = "replay"
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}

	orderID, err := uuid.Parse(verified.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}

	tx, err := h.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "TX_ERROR", err.Error(), nil)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()
	store := order.Store{DB: tx}

	o, err := store.GetByID(ctx, orderID)
	if err != nil {
		if err == order.ErrOrderNotFound {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "ORDER_FETCH_ERROR", err.Error(), nil)
		return
	}
	if verified.AmountMinor > 0 && verified.AmountMinor != o.AmountMinor {
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "captured amount does not match order", nil)
		return
	}

	settled := false
	switch verified.Status {
	case "PAID":
		settled, err = store.MarkPaid(ctx, orderID)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
			return
		}
		if settled {
			for _, line := range o.Lines {
				if err := store.DecrementStock(ctx, line); err != nil {
					common.JSONError(w, http.StatusInternalServerError, "STOCK_UPDATE_ERROR", err.Error(), nil)
					return
				}
			}
		}
	case "FAILED", "CANCELED":
		if _, err := store.MarkCanceled(ctx, orderID); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "TX_COMMIT_ERROR", err.Error(), nil)
		return
	}

	if settled && h.Tasks != nil {
		task, err := notify.NewOrderPaidTask(notify.OrderPaidPayload{
			OrderID:     orderID.String(),
			AmountMinor: o.AmountMinor,
			Currency:    o.Currency,
		})
		if err == nil {
			_, _ = h.Tasks.EnqueueContext(ctx, task)
		}
	}

	result = "ok"
	w.WriteHeader(http.StatusNoContent)
}
