package settlementRepo

import (
	"context"
	"errors"
	"time"

	"bookly/models"
)

// Sentinel errors shared by all settlement repositories. ErrConflict means a
// conditional update found the record no longer in the expected prior state;
// callers treat it as "already done, skip".
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("state conflict")
)

// ConfirmationRepository is the store for AppointmentConfirmation records.
type ConfirmationRepository interface {
	Create(ctx context.Context, conf *models.AppointmentConfirmation) error
	GetByID(ctx context.Context, id string) (*models.AppointmentConfirmation, error)
	GetByAppointmentID(ctx context.Context, appointmentID string) (*models.AppointmentConfirmation, error)

	// SetClientConfirmation and SetProfessionalConfirmation record a party's
	// answer once. The update only matches while the flag is still unset;
	// a second answer from the same party returns ErrConflict.
	SetClientConfirmation(ctx context.Context, id string, value models.TriState, at time.Time) error
	SetProfessionalConfirmation(ctx context.Context, id string, value models.TriState, at time.Time) error

	// SetFinalStatus transitions finalStatus conditionally from one of the
	// expected prior statuses.
	SetFinalStatus(ctx context.Context, id string, from []models.ConfirmationStatus, to models.ConfirmationStatus) error
	// OpenDispute moves the confirmation to disputed and records the reason.
	OpenDispute(ctx context.Context, id string, from []models.ConfirmationStatus, reason string, at time.Time) error
	// ResolveDispute records the admin's decision; only matches while the
	// confirmation is still disputed.
	ResolveDispute(ctx context.Context, id string, resolution models.DisputeResolution, to models.ConfirmationStatus, notes string, at time.Time) error

	// ListAwaitingResponseBefore returns confirmations still waiting for at
	// least one party, created before the cutoff.
	ListAwaitingResponseBefore(ctx context.Context, cutoff time.Time) ([]models.AppointmentConfirmation, error)
	ListByProfessional(ctx context.Context, professionalID string) ([]models.AppointmentConfirmation, error)
}

// EarningRepository is the store for Earning records.
type EarningRepository interface {
	Insert(ctx context.Context, earning *models.Earning) error
	GetByID(ctx context.Context, id string) (*models.Earning, error)
	GetByAppointmentID(ctx context.Context, appointmentID string) (*models.Earning, error)

	ListByProfessionalCycle(ctx context.Context, professionalID, cycleID string, statuses ...models.EarningStatus) ([]models.Earning, error)
	ListByProfessional(ctx context.Context, professionalID string) ([]models.Earning, error)
	DistinctProfessionalsByCycle(ctx context.Context, cycleID string, status models.EarningStatus) ([]string, error)
	CountByCycle(ctx context.Context, cycleID string, statuses ...models.EarningStatus) (int64, error)
	// TotalsByProfessionalCycle aggregates gross, fee and net sums plus the
	// earning IDs for one (professional, cycle) pair in one status.
	TotalsByProfessionalCycle(ctx context.Context, professionalID, cycleID string, status models.EarningStatus) (*EarningTotals, error)

	// Transition moves one earning between statuses conditionally.
	Transition(ctx context.Context, id string, from []models.EarningStatus, to models.EarningStatus) error
	// MarkCharged and MarkPaid are bulk and idempotent: earnings already in
	// the target status are simply not matched again.
	MarkCharged(ctx context.Context, ids []string, feeChargeID string) (int64, error)
	MarkPaid(ctx context.Context, ids []string, payoutID string) (int64, error)
}

// EarningTotals is the aggregation result for one (professional, cycle) pair.
type EarningTotals struct {
	Gross      float64  `bson:"gross"`
	Fee        float64  `bson:"fee"`
	Net        float64  `bson:"net"`
	Count      int      `bson:"count"`
	EarningIDs []string `bson:"earningIds"`
}

// CycleRepository is the store for PayoutCycle records.
type CycleRepository interface {
	Insert(ctx context.Context, cycle *models.PayoutCycle) error
	GetByID(ctx context.Context, id string) (*models.PayoutCycle, error)
	FindCovering(ctx context.Context, date time.Time) (*models.PayoutCycle, error)
	ListOpenPastCutoff(ctx context.Context, now time.Time) ([]models.PayoutCycle, error)
	ListByStatus(ctx context.Context, status models.CycleStatus) ([]models.PayoutCycle, error)
	// Transition moves a cycle between statuses conditionally; the loser of
	// a racing transition gets ErrConflict.
	Transition(ctx context.Context, id string, from, to models.CycleStatus, processedAt *time.Time) error
}

// FeeChargeRepository is the store for FeeCharge records.
type FeeChargeRepository interface {
	Insert(ctx context.Context, charge *models.FeeCharge) error
	GetByID(ctx context.Context, id string) (*models.FeeCharge, error)
	GetByPair(ctx context.Context, professionalID, cycleID string) (*models.FeeCharge, error)
	ListByCycle(ctx context.Context, cycleID string, statuses ...models.FeeChargeStatus) ([]models.FeeCharge, error)
	ListDueRetries(ctx context.Context, now time.Time) ([]models.FeeCharge, error)

	// ClaimAttempt bumps the attempt counter conditionally on the previous
	// count; of two racing chargers exactly one wins the claim.
	ClaimAttempt(ctx context.Context, id string, fromAttempts int) error
	// MarkSucceeded, MarkWaived and RecordFailure finalize an attempt.
	// The confirmed set may have shrunk since the charge was created, so
	// MarkSucceeded records the amount the gateway actually collected.
	MarkSucceeded(ctx context.Context, id, gatewayRef string, amount float64) error
	MarkWaived(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, reason string, nextRetryAt *time.Time, final bool) error
}

// PayoutRepository is the store for Payout records.
type PayoutRepository interface {
	Insert(ctx context.Context, payout *models.Payout) error
	GetByID(ctx context.Context, id string) (*models.Payout, error)
	GetByPair(ctx context.Context, professionalID, cycleID string) (*models.Payout, error)
	ListByCycle(ctx context.Context, cycleID string, statuses ...models.PayoutStatus) ([]models.Payout, error)

	// Transition moves a payout between statuses conditionally, optionally
	// recording the transfer reference or failure reason.
	Transition(ctx context.Context, id string, from []models.PayoutStatus, to models.PayoutStatus, update PayoutUpdate) error
}

// PayoutUpdate carries the optional fields set alongside a payout transition.
type PayoutUpdate struct {
	TransferRef   string
	FailureReason string
	ProcessedAt   *time.Time
}
