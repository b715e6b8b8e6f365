package amqp

import (
	"encoding/json"
	"time"

	"budgetintel/internal/core"
)

// LedgerCommittedMessage announces that a ledger was saved. Consumers reload
// the ledger and re-evaluate alerts for the listed months.
type LedgerCommittedMessage struct {
	LedgerKey string    `json:"ledgerKey"`
	Months    []string  `json:"months"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerCommittedMessage(ledgerKey string, months []core.MonthKey, revision int64) *LedgerCommittedMessage {
	ms := make([]string, len(months))
	for i, m := range months {
		ms[i] = string(m)
	}
	return &LedgerCommittedMessage{
		LedgerKey: ledgerKey,
		Months:    ms,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

// MonthKeys drops entries that are not valid month keys.
func (m *LedgerCommittedMessage) MonthKeys() []core.MonthKey {
	var out []core.MonthKey
	for _, s := range m.Months {
		if k, err := core.ParseMonthKey(s); err == nil {
			out = append(out, k)
		}
	}
	return out
}

func (m *LedgerCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerCommittedMessageFromJSON(data []byte) (*LedgerCommittedMessage, error) {
	var msg LedgerCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NotificationMessage carries a notification request to the delivery side.
// DeliverAt is nil for immediate delivery.
type NotificationMessage struct {
	LedgerKey  string     `json:"ledgerKey"`
	Identifier string     `json:"identifier"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	DeliverAt  *time.Time `json:"deliverAt,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewNotificationMessage(ledgerKey string, req core.NotificationRequest) *NotificationMessage {
	msg := &NotificationMessage{
		LedgerKey:  ledgerKey,
		Identifier: req.Identifier,
		Title:      req.Title,
		Body:       req.Body,
		Timestamp:  time.Now(),
	}
	if !req.DeliverAt.Immediate {
		at := req.DeliverAt.At
		msg.DeliverAt = &at
	}
	return msg
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
