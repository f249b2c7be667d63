package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
)

type recordingSender struct {
	to, subject, text, html string
	calls                   int
	err                     error
}

func (s *recordingSender) Send(_ context.Context, to, subject, text, html string) error {
	s.calls++
	s.to, s.subject, s.text, s.html = to, subject, text, html
	return s.err
}

func event(eventType string, qty int) entity.StockEvent {
	return entity.StockEvent{
		Type:       eventType,
		SweetID:    "s-1",
		Name:       "Gulab <Jamun>",
		Quantity:   qty,
		OccurredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestLowStockAlert(t *testing.T) {
	msg, ok := LowStockAlert(event(entity.EventSweetPurchased, 3), 5)
	require.True(t, ok)
	assert.Equal(t, "Low stock: Gulab <Jamun> (3 left)", msg.Subject)
	assert.Contains(t, msg.HTML, "Gulab &lt;Jamun&gt;")

	msg, ok = LowStockAlert(event(entity.EventSweetPurchased, 0), 5)
	require.True(t, ok)
	assert.Equal(t, "Out of stock: Gulab <Jamun>", msg.Subject)

	_, ok = LowStockAlert(event(entity.EventSweetPurchased, 6), 5)
	assert.False(t, ok)
	_, ok = LowStockAlert(event(entity.EventSweetDeleted, 0), 5)
	assert.False(t, ok)
	_, ok = LowStockAlert(event(entity.EventSweetCreated, 0), 5)
	assert.False(t, ok)
}

func TestStockAlerterHandle(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	a := &StockAlerter{Sender: sender, To: "ops@example.com", Threshold: 2}

	body, err := json.Marshal(event(entity.EventSweetPurchased, 1))
	require.NoError(t, err)
	sent, err := a.Handle(ctx, body)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "ops@example.com", sender.to)

	body, _ = json.Marshal(event(entity.EventSweetRestocked, 40))
	sent, err = a.Handle(ctx, body)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, sender.calls)

	_, err = a.Handle(ctx, []byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedEvent)
	_, err = a.Handle(ctx, []byte(`{"type":"sweet.purchased"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	sender.err = errors.New("mailgun down")
	body, _ = json.Marshal(event(entity.EventSweetPurchased, 0))
	_, err = a.Handle(ctx, body)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedEvent)
}
