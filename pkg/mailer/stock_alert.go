package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
)

// ErrMalformedEvent marks a message that can never be processed.
var ErrMalformedEvent = errors.New("malformed stock event")

// Message is a rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// LowStockAlert renders an alert when ev leaves a sweet at or below
// threshold. Only purchases, restocks and updates can trigger one.
func LowStockAlert(ev entity.StockEvent, threshold int) (Message, bool) {
	switch ev.Type {
	case entity.EventSweetPurchased, entity.EventSweetUpdated, entity.EventSweetRestocked:
	default:
		return Message{}, false
	}
	if ev.Quantity > threshold {
		return Message{}, false
	}

	subject := fmt.Sprintf("Low stock: %s (%d left)", ev.Name, ev.Quantity)
	if ev.Quantity == 0 {
		subject = fmt.Sprintf("Out of stock: %s", ev.Name)
	}
	text := fmt.Sprintf("%s (id %s) has %d units left as of %s.\nThe alert threshold is %d.\n",
		ev.Name, ev.SweetID, ev.Quantity, ev.OccurredAt.Format("2006-01-02 15:04 MST"), threshold)
	body := fmt.Sprintf("<p><strong>%s</strong> (id <code>%s</code>) has <strong>%d</strong> units left as of %s.</p><p>The alert threshold is %d.</p>",
		html.EscapeString(ev.Name), html.EscapeString(ev.SweetID), ev.Quantity, ev.OccurredAt.Format("2006-01-02 15:04 MST"), threshold)
	return Message{Subject: subject, Text: text, HTML: body}, true
}

// StockAlerter turns stock events into alert emails.
type StockAlerter struct {
	Sender    Sender
	To        string
	Threshold int
}

// Handle processes one broker message body. It returns ErrMalformedEvent for
// bodies that should be dropped; other errors are worth a retry.
func (a *StockAlerter) Handle(ctx context.Context, body []byte) (bool, error) {
	var ev entity.StockEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Type == "" || ev.SweetID == "" {
		return false, fmt.Errorf("%w: missing type or sweet id", ErrMalformedEvent)
	}
	msg, ok := LowStockAlert(ev, a.Threshold)
	if !ok {
		return false, nil
	}
	if err := a.Sender.Send(ctx, a.To, msg.Subject, msg.Text, msg.HTML); err != nil {
		return false, fmt.Errorf("send alert for %s: %w", ev.SweetID, err)
	}
	return true, nil
}
