package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-souk/internal/common"
)

func TestHandleOrderPaidSendsMail(t *testing.T) {
	mail := &common.InMemoryEmail{}
	w := Worker{Mail: mail, OpsAddr: "ops@souk.example"}

	task, err := NewOrderPaidTask(OrderPaidPayload{OrderID: "ord-1", AmountMinor: 6640, Currency: "EUR"})
	require.NoError(t, err)
	require.NoError(t, w.HandleOrderPaid(context.Background(), task))

	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "ops@souk.example", mail.Outbox[0].To)
	require.Contains(t, mail.Outbox[0].Subject, "ord-1")
	require.Contains(t, mail.Outbox[0].HTML, "6640 EUR")
}

func TestHandleOrderPaidMalformedPayloadSkipsRetry(t *testing.T) {
	w := Worker{Mail: &common.InMemoryEmail{}, OpsAddr: "ops@souk.example"}

	err := w.HandleOrderPaid(context.Background(), asynq.NewTask(TaskOrderPaid, []byte("{nope")))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleOrderPaidWithoutMailerIsNoop(t *testing.T) {
	w := Worker{}
	task, err := NewOrderPaidTask(OrderPaidPayload{OrderID: "ord-2"})
	require.NoError(t, err)
	require.NoError(t, w.HandleOrderPaid(context.Background(), task))
}
