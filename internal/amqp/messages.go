package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"boothmetrics/internal/core"
)

// TransactionMessage is the ingestion payload read from the ingest queue.
// Revenue is never carried; it is derived on ingestion.
type TransactionMessage struct {
	Booth     string     `json:"booth"`
	Service   string     `json:"service"`
	Amount    float64    `json:"amount"`
	Rate      float64    `json:"rate"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ToInput converts the message for the ingestion path. A missing timestamp
// means the time of ingestion.
func (m *TransactionMessage) ToInput() core.TransactionInput {
	in := core.TransactionInput{
		Booth:   m.Booth,
		Service: m.Service,
		Amount:  m.Amount,
		Rate:    m.Rate,
	}
	if m.Timestamp != nil {
		in.Timestamp = *m.Timestamp
	}
	return in
}

func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionMessageFromJSON rejects bodies that are not a JSON object with
// the expected field types.
func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode transaction message: %w", err)
	}
	return &msg, nil
}

// AlertMessage is published for every threshold alert.
type AlertMessage struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAlertMessage(a core.Alert) *AlertMessage {
	return &AlertMessage{
		ID:        a.ID,
		Type:      string(a.Type),
		Severity:  string(a.Severity),
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
