package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	event := Event{
		Type: TransactionCreated,
		Data: map[string]any{
			"transactionId":  "txn-abc",
			"organizationId": "org-1",
			"amount":         125.5,
			"type":           "income",
			"occurredAt":     occurred.Format(time.RFC3339),
		},
	}

	got, err := Decode[TransactionCreatedEvent](event)
	require.NoError(t, err)
	assert.Equal(t, "txn-abc", got.TransactionID)
	assert.Equal(t, 125.5, got.Amount)
	assert.True(t, occurred.Equal(got.OccurredAt))
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	_, err := Decode[TransactionCreatedEvent](Event{Type: TransactionCreated, Data: "not an object"})
	assert.Error(t, err)
}

func TestParseMessage(t *testing.T) {
	ok := redis.XMessage{ID: "1-0", Values: map[string]any{"event": `{"id":"e1","type":"invoice.paid","data":{"invoiceId":"inv-1"}}`}}
	event, err := parseMessage(ok)
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, event.Type)

	_, err = parseMessage(redis.XMessage{ID: "2-0", Values: map[string]any{"other": "x"}})
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	var handled []string
	h := Dispatch(map[string]Handler{
		InvoicePaid: func(ctx context.Context, e Event) error {
			handled = append(handled, e.Type)
			return nil
		},
		InvoiceOverdue: func(ctx context.Context, e Event) error { return errors.New("boom") },
	})

	require.NoError(t, h(context.Background(), Event{Type: InvoicePaid}))
	require.NoError(t, h(context.Background(), Event{Type: InvoiceCreated}))
	assert.Error(t, h(context.Background(), Event{Type: InvoiceOverdue}))
	assert.Equal(t, []string{InvoicePaid}, handled)
}
