package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	settlementRepo "bookly/database/repository/settlement"
	"bookly/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultEarningsLedger implements EarningsLedger.
type DefaultEarningsLedger struct {
	Repo   settlementRepo.EarningRepository
	Cycles CycleScheduler
	Fees   PlatformFeeSource
	Events EventEmitter
	Logger *zap.Logger
}

// MaterializeEarning turns a finalized session into a ledger record. Calling
// it again for the same appointment returns the existing earning unchanged.
func (l *DefaultEarningsLedger) MaterializeEarning(ctx context.Context, appointmentID string, session models.SessionData) (*models.Earning, error) {
	existing, err := l.Repo.GetByAppointmentID(ctx, appointmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, settlementRepo.ErrNotFound) {
		return nil, err
	}

	feePct, err := l.Fees.FeePercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform fee percent: %w", err)
	}

	durationMin := session.DurationMinutes()
	if durationMin <= 0 || session.HourlyRate <= 0 {
		return nil, NewError(CodeFatalData, "appointment %s has invalid session data (duration %dmin, rate %.2f)",
			appointmentID, durationMin, session.HourlyRate)
	}

	gross := models.RoundCents(session.HourlyRate * float64(durationMin) / 60)
	fee := models.RoundCents(gross * feePct / 100)
	net := models.RoundCents(gross - fee)

	cycle, err := l.Cycles.GetCycleForDate(ctx, session.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cycle for appointment %s: %w", appointmentID, err)
	}
	if cycle.Status != models.CycleOpen {
		// The covering window already went into settlement; its fee charge
		// will not run again, so a late-confirmed earning rolls forward
		// into the cycle still accepting entries.
		cycle, err = l.Cycles.GetOrCreateCurrentCycle(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve rollover cycle for appointment %s: %w", appointmentID, err)
		}
		l.Logger.Info("Earning rolled into current cycle",
			zap.String("appointmentId", appointmentID),
			zap.String("cycleId", cycle.ID))
	}

	now := time.Now()
	earning := &models.Earning{
		ID:              uuid.New().String(),
		ProfessionalID:  session.ProfessionalID,
		AppointmentID:   appointmentID,
		CycleID:         cycle.ID,
		GrossAmount:     gross,
		PlatformFeePct:  feePct,
		PlatformFee:     fee,
		NetAmount:       net,
		SessionStart:    session.StartTime,
		SessionEnd:      session.EndTime,
		DurationMinutes: durationMin,
		HourlyRate:      session.HourlyRate,
		Status:          models.EarningConfirmed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.Repo.Insert(ctx, earning); err != nil {
		if errors.Is(err, settlementRepo.ErrDuplicate) {
			// A retried finalize raced us; the first writer's record wins.
			return l.Repo.GetByAppointmentID(ctx, appointmentID)
		}
		return nil, fmt.Errorf("failed to create earning: %w", err)
	}

	l.Logger.Info("Earning materialized",
		zap.String("earningId", earning.ID),
		zap.String("professionalId", earning.ProfessionalID),
		zap.Float64("net", earning.NetAmount))

	l.emit(ctx, models.SettlementEvent{
		Type:           models.EventEarningConfirmed,
		ProfessionalID: earning.ProfessionalID,
		Data: map[string]string{
			"earningId": earning.ID,
			"net":       fmt.Sprintf("%.2f", earning.NetAmount),
		},
		OccurredAt: now,
	})
	return earning, nil
}

// CancelEarning voids an earning that has not been charged or paid yet.
func (l *DefaultEarningsLedger) CancelEarning(ctx context.Context, earningID string) error {
	err := l.Repo.Transition(ctx, earningID,
		[]models.EarningStatus{models.EarningPendingConfirmation, models.EarningConfirmed},
		models.EarningCanceled)
	if err == nil {
		return nil
	}
	if !errors.Is(err, settlementRepo.ErrConflict) {
		return err
	}

	earning, gerr := l.Repo.GetByID(ctx, earningID)
	if gerr != nil {
		if errors.Is(gerr, settlementRepo.ErrNotFound) {
			return NewError(CodeNotFound, "earning %s not found", earningID)
		}
		return gerr
	}
	switch earning.Status {
	case models.EarningCanceled:
		return nil
	case models.EarningCharged, models.EarningPaid:
		return NewError(CodeInvalidTransition,
			"earning %s is %s; a charged or paid earning must be disputed, not canceled", earningID, earning.Status)
	default:
		return NewError(CodeInvalidTransition, "earning %s is %s and cannot be canceled", earningID, earning.Status)
	}
}

// DisputeEarning records a reversal for money that already moved. History is
// kept; the earning flips to disputed rather than disappearing.
func (l *DefaultEarningsLedger) DisputeEarning(ctx context.Context, earningID string) error {
	err := l.Repo.Transition(ctx, earningID,
		[]models.EarningStatus{models.EarningCharged, models.EarningPaid},
		models.EarningDisputed)
	if err == nil {
		return nil
	}
	if !errors.Is(err, settlementRepo.ErrConflict) {
		return err
	}

	earning, gerr := l.Repo.GetByID(ctx, earningID)
	if gerr != nil {
		if errors.Is(gerr, settlementRepo.ErrNotFound) {
			return NewError(CodeNotFound, "earning %s not found", earningID)
		}
		return gerr
	}
	if earning.Status == models.EarningDisputed {
		return nil
	}
	return NewError(CodeInvalidTransition, "earning %s is %s and cannot be disputed", earningID, earning.Status)
}

// ReverseEarningForAppointment undoes the earning an appointment produced,
// picking the transition its current status allows.
func (l *DefaultEarningsLedger) ReverseEarningForAppointment(ctx context.Context, appointmentID string) error {
	earning, err := l.Repo.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, settlementRepo.ErrNotFound) {
			return nil
		}
		return err
	}

	switch earning.Status {
	case models.EarningPendingConfirmation, models.EarningConfirmed:
		return l.CancelEarning(ctx, earning.ID)
	case models.EarningCharged, models.EarningPaid:
		return l.DisputeEarning(ctx, earning.ID)
	default:
		return nil
	}
}

// MarkCharged moves the earnings under a settled fee charge to charged.
// Batch retries re-matching already-charged earnings are no-ops.
func (l *DefaultEarningsLedger) MarkCharged(ctx context.Context, earningIDs []string, feeChargeID string) error {
	if len(earningIDs) == 0 {
		return nil
	}
	modified, err := l.Repo.MarkCharged(ctx, earningIDs, feeChargeID)
	if err != nil {
		return err
	}
	l.Logger.Debug("Earnings marked charged",
		zap.String("feeChargeId", feeChargeID),
		zap.Int64("modified", modified))
	return nil
}

// MarkPaid moves the earnings under a completed payout to paid.
func (l *DefaultEarningsLedger) MarkPaid(ctx context.Context, earningIDs []string, payoutID string) error {
	if len(earningIDs) == 0 {
		return nil
	}
	modified, err := l.Repo.MarkPaid(ctx, earningIDs, payoutID)
	if err != nil {
		return err
	}
	l.Logger.Debug("Earnings marked paid",
		zap.String("payoutId", payoutID),
		zap.Int64("modified", modified))
	return nil
}

// ListByProfessional returns a professional's earnings.
func (l *DefaultEarningsLedger) ListByProfessional(ctx context.Context, professionalID string) ([]models.Earning, error) {
	return l.Repo.ListByProfessional(ctx, professionalID)
}

func (l *DefaultEarningsLedger) emit(ctx context.Context, event models.SettlementEvent) {
	if l.Events == nil {
		return
	}
	if err := l.Events.Emit(ctx, event); err != nil {
		l.Logger.Warn("Event emit failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
