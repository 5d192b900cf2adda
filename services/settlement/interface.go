package settlement

import (
	"context"
	"time"

	"bookly/models"
)

// DisputeAction is the admin's decision on a disputed confirmation.
type DisputeAction string

const (
	ActionConfirmCancel DisputeAction = "confirm_cancel"
	ActionDeny          DisputeAction = "deny"
)

// ConfirmationManager runs the two-party confirmation state machine per
// completed appointment.
type ConfirmationManager interface {
	CreateConfirmation(ctx context.Context, appointmentID string) (*models.AppointmentConfirmation, error)
	ConfirmAsClient(ctx context.Context, confirmationID string, accepted bool, reason string) (*models.AppointmentConfirmation, error)
	ConfirmAsProfessional(ctx context.Context, confirmationID string, accepted bool, reason string) (*models.AppointmentConfirmation, error)
	// AutoConfirmExpired treats a party that never responded within the
	// configured window as an implicit accept. Returns how many
	// confirmations were advanced.
	AutoConfirmExpired(ctx context.Context, now time.Time) (int, error)
	ResolveDispute(ctx context.Context, confirmationID string, action DisputeAction, notes string) (*models.AppointmentConfirmation, error)
	GetConfirmation(ctx context.Context, confirmationID string) (*models.AppointmentConfirmation, error)
	ListByProfessional(ctx context.Context, professionalID string) ([]models.AppointmentConfirmation, error)
}

// EarningsLedger owns the Earning lifecycle and is the source of truth for
// money owed.
type EarningsLedger interface {
	// MaterializeEarning is idempotent: a retried finalize returns the
	// existing earning rather than duplicating it.
	MaterializeEarning(ctx context.Context, appointmentID string, session models.SessionData) (*models.Earning, error)
	CancelEarning(ctx context.Context, earningID string) error
	DisputeEarning(ctx context.Context, earningID string) error
	// ReverseEarningForAppointment undoes whatever earning the appointment
	// produced: cancel while still cancelable, dispute once money moved,
	// no-op when there is none.
	ReverseEarningForAppointment(ctx context.Context, appointmentID string) error
	MarkCharged(ctx context.Context, earningIDs []string, feeChargeID string) error
	MarkPaid(ctx context.Context, earningIDs []string, payoutID string) error
	ListByProfessional(ctx context.Context, professionalID string) ([]models.Earning, error)
}

// CycleScheduler partitions time into payout cycles and owns their status.
type CycleScheduler interface {
	GetOrCreateCurrentCycle(ctx context.Context) (*models.PayoutCycle, error)
	GetCycleForDate(ctx context.Context, date time.Time) (*models.PayoutCycle, error)
	// AdvanceDueCycles moves every open cycle past its cutoff to processing
	// and returns the ones this caller won; racing callers skip.
	AdvanceDueCycles(ctx context.Context, now time.Time) ([]models.PayoutCycle, error)
	ListProcessingCycles(ctx context.Context) ([]models.PayoutCycle, error)
	CloseCycle(ctx context.Context, cycleID string) error
	FailCycle(ctx context.Context, cycleID string) error
}

// FeeChargeProcessor collects the platform fee per (professional, cycle).
type FeeChargeProcessor interface {
	ChargeCycle(ctx context.Context, professionalID, cycleID string) (*models.FeeCharge, error)
	// ChargeDueRetries re-attempts every pending charge whose backoff has
	// elapsed. Returns attempted and succeeded counts.
	ChargeDueRetries(ctx context.Context, now time.Time) (int, int, []string)
	WaiveFee(ctx context.Context, feeChargeID string) (*models.FeeCharge, error)
}

// PayoutProcessor disburses a professional's charged earnings for a cycle.
type PayoutProcessor interface {
	ProcessCycle(ctx context.Context, professionalID, cycleID string) (*models.Payout, error)
	// ReprocessPayout is the manual path for failed payouts; they never
	// retry automatically.
	ReprocessPayout(ctx context.Context, payoutID string) (*models.Payout, error)
	ProcessAllReadyCycles(ctx context.Context) (*models.PayoutBatchSummary, error)
}

// Orchestrator is the single entry point the scheduling trigger calls.
type Orchestrator interface {
	RunOnce(ctx context.Context) (*models.RunReport, error)
}

// --- Collaborator ports. The settlement core defines what it consumes;
// implementations live at the edges. ---

// AppointmentSource is the read seam into the booking engine.
type AppointmentSource interface {
	GetAppointment(ctx context.Context, appointmentID string) (*models.CompletedAppointment, error)
	ListCompletedWithoutConfirmation(ctx context.Context, endedBefore time.Time, limit int64) ([]models.CompletedAppointment, error)
}

// SlotRestorer frees the slot a canceled session occupied.
type SlotRestorer interface {
	RestoreSlot(ctx context.Context, professionalID, dayOfWeek string, startMinute int) error
}

// PaymentGateway moves actual money. Amounts are in the platform currency;
// the idempotency key makes retried calls safe on the gateway side.
type PaymentGateway interface {
	ChargeFee(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error)
	Transfer(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error)
}

// EventEmitter hands outbound settlement events to the dispatcher. Delivery
// is fire-and-forget; the core logs emit failures and moves on.
type EventEmitter interface {
	Emit(ctx context.Context, event models.SettlementEvent) error
}

// PlatformFeeSource provides the current platform fee percent, a
// slowly-changing configuration value.
type PlatformFeeSource interface {
	FeePercent(ctx context.Context) (float64, error)
}
