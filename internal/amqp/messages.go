package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"crm/internal/core"
)

// EventInvoiceGenerated is emitted after an invoice and its time entry claims commit.
const EventInvoiceGenerated = "invoice.generated"

// InvoiceEventMessage announces a new invoice. Consumers load nothing from the
// database to build notifications or ledger rows; the message carries the
// fields they need.
type InvoiceEventMessage struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	InvoiceID  int64     `json:"invoice_id"`
	Number     string    `json:"number"`
	ClientID   int64     `json:"client_id"`
	ProjectID  *int64    `json:"project_id"`
	TotalCents int64     `json:"total_cents"`
	IssueDate  string    `json:"issue_date"`
	DueDate    string    `json:"due_date"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewInvoiceGeneratedMessage builds the event for a freshly generated invoice.
func NewInvoiceGeneratedMessage(inv core.Invoice) *InvoiceEventMessage {
	return &InvoiceEventMessage{
		ID:         uuid.NewString(),
		Event:      EventInvoiceGenerated,
		InvoiceID:  inv.ID,
		Number:     inv.Number,
		ClientID:   inv.ClientID,
		ProjectID:  inv.ProjectID,
		TotalCents: inv.TotalAmount.Cents,
		IssueDate:  inv.IssueDate.String(),
		DueDate:    inv.DueDate.String(),
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceEventMessageFromJSON creates a message from JSON bytes
func InvoiceEventMessageFromJSON(data []byte) (*InvoiceEventMessage, error) {
	var msg InvoiceEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
