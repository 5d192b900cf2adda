package models

import "time"

// SettlementEventType enumerates the outbound events the core emits. They
// are fire-and-forget: delivery is the notification collaborator's problem
// and the core's consistency never depends on it.
type SettlementEventType string

const (
	EventEarningConfirmed SettlementEventType = "earning_confirmed"
	EventFeeChargeFailed  SettlementEventType = "fee_charge_failed"
	EventAccountBlocked   SettlementEventType = "account_blocked"
	EventPayoutCompleted  SettlementEventType = "payout_completed"
	EventPayoutFailed     SettlementEventType = "payout_failed"
)

// SettlementEvent is the payload handed to the notification dispatcher.
type SettlementEvent struct {
	Type           SettlementEventType `json:"type"`
	ProfessionalID string              `json:"professionalId"`
	Data           map[string]string   `json:"data,omitempty"`
	OccurredAt     time.Time           `json:"occurredAt"`
}
