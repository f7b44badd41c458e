package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-souk/internal/common"
)

// TaskOrderPaid is the asynq task type enqueued after a payment settles.
const TaskOrderPaid = "order:paid"

// OrderPaidPayload carries the settled order details to the worker.
type OrderPaidPayload struct {
	OrderID     string `json:"orderId"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
}

// NewOrderPaidTask builds the asynq task for a settled order.
func NewOrderPaidTask(p OrderPaidPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPaid, data, asynq.MaxRetry(5)), nil
}

// Worker consumes settlement tasks and notifies the shop operators.
type Worker struct {
	Mail    common.EmailSender
	OpsAddr string
	Logger  *zerolog.Logger
}

// HandleOrderPaid sends the operator notification for a settled order.
func (w Worker) HandleOrderPaid(ctx context.Context, t *asynq.Task) error {
	var p OrderPaidPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("notify: decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if w.Logger != nil {
		w.Logger.Info().Str("orderId", p.OrderID).Int64("amountMinor", p.AmountMinor).Msg("order paid")
	}
	if w.Mail == nil || w.OpsAddr == "" {
		return nil
	}
	subject := fmt.Sprintf("Order %s paid", p.OrderID)
	html := fmt.Sprintf("<p>Order <strong>%s</strong> settled for %d %s. Prepare the shipment.</p>",
		p.OrderID, p.AmountMinor, p.Currency)
	if err := w.Mail.Send(w.OpsAddr, subject, html); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

// Mux returns the asynq handler mux with all task routes registered.
func (w Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOrderPaid, w.HandleOrderPaid)
	return mux
}
