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

// nonTerminalStatuses are the confirmation states party input can still move.
var nonTerminalStatuses = []models.ConfirmationStatus{
	models.ConfirmationPending,
	models.ConfirmationClientConfirmed,
	models.ConfirmationProfessionalConfirmed,
}

// DefaultConfirmationManager implements ConfirmationManager.
type DefaultConfirmationManager struct {
	Repo         settlementRepo.ConfirmationRepository
	Ledger       EarningsLedger
	Appointments AppointmentSource
	Slots        SlotRestorer
	Timeout      time.Duration
	Logger       *zap.Logger
}

// CreateConfirmation opens a pending confirmation for a completed
// appointment whose end time has passed.
func (m *DefaultConfirmationManager) CreateConfirmation(ctx context.Context, appointmentID string) (*models.AppointmentConfirmation, error) {
	appt, err := m.Appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, NewError(CodeNotEligible, "appointment %s: %v", appointmentID, err)
	}
	if appt.Status != models.AppointmentCompleted {
		return nil, NewError(CodeNotEligible, "appointment %s is %s, not completed", appointmentID, appt.Status)
	}
	if appt.EndTime.After(time.Now()) {
		return nil, NewError(CodeNotEligible, "appointment %s has not ended yet", appointmentID)
	}

	now := time.Now()
	conf := &models.AppointmentConfirmation{
		ID:                       uuid.New().String(),
		AppointmentID:            appt.ID,
		ClientID:                 appt.ClientID,
		ProfessionalID:           appt.ProfessionalID,
		ClientConfirmation:       models.TriStateUnset,
		ProfessionalConfirmation: models.TriStateUnset,
		FinalStatus:              models.ConfirmationPending,
		DisputeResolution:        models.DisputeResolutionNone,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := m.Repo.Create(ctx, conf); err != nil {
		if errors.Is(err, settlementRepo.ErrDuplicate) {
			return nil, NewError(CodeAlreadyExists, "confirmation already exists for appointment %s", appointmentID)
		}
		return nil, fmt.Errorf("failed to create confirmation: %w", err)
	}

	m.Logger.Info("Confirmation created",
		zap.String("confirmationId", conf.ID),
		zap.String("appointmentId", appointmentID))
	return conf, nil
}

// ConfirmAsClient records the client's answer once, then recomputes the
// final status.
func (m *DefaultConfirmationManager) ConfirmAsClient(ctx context.Context, confirmationID string, accepted bool, reason string) (*models.AppointmentConfirmation, error) {
	return m.confirm(ctx, confirmationID, accepted, reason, m.Repo.SetClientConfirmation)
}

// ConfirmAsProfessional records the professional's answer once, then
// recomputes the final status.
func (m *DefaultConfirmationManager) ConfirmAsProfessional(ctx context.Context, confirmationID string, accepted bool, reason string) (*models.AppointmentConfirmation, error) {
	return m.confirm(ctx, confirmationID, accepted, reason, m.Repo.SetProfessionalConfirmation)
}

func (m *DefaultConfirmationManager) confirm(
	ctx context.Context,
	confirmationID string,
	accepted bool,
	reason string,
	setParty func(context.Context, string, models.TriState, time.Time) error,
) (*models.AppointmentConfirmation, error) {
	value := models.TriStateAccepted
	if !accepted {
		value = models.TriStateDeclined
	}

	if err := setParty(ctx, confirmationID, value, time.Now()); err != nil {
		if errors.Is(err, settlementRepo.ErrConflict) {
			if _, gerr := m.Repo.GetByID(ctx, confirmationID); errors.Is(gerr, settlementRepo.ErrNotFound) {
				return nil, NewError(CodeNotFound, "confirmation %s not found", confirmationID)
			}
			return nil, NewError(CodeAlreadyConfirmed, "confirmation %s already answered by this party", confirmationID)
		}
		return nil, fmt.Errorf("failed to record confirmation: %w", err)
	}

	return m.finalize(ctx, confirmationID, reason)
}

// finalize recomputes finalStatus from the party flags and applies the
// side effects of a terminal outcome. It is safe to call repeatedly: the
// status transition is conditional and earning creation is idempotent.
func (m *DefaultConfirmationManager) finalize(ctx context.Context, confirmationID, reason string) (*models.AppointmentConfirmation, error) {
	conf, err := m.Repo.GetByID(ctx, confirmationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload confirmation: %w", err)
	}

	next := models.DeriveConfirmationStatus(conf.ClientConfirmation, conf.ProfessionalConfirmation, conf.DisputeResolution)
	if next == conf.FinalStatus {
		return conf, nil
	}

	switch next {
	case models.ConfirmationDisputed:
		if reason == "" {
			reason = "session rejected by a party"
		}
		if err := m.Repo.OpenDispute(ctx, confirmationID, nonTerminalStatuses, reason, time.Now()); err != nil {
			if !errors.Is(err, settlementRepo.ErrConflict) {
				return nil, fmt.Errorf("failed to open dispute: %w", err)
			}
			m.Logger.Debug("Dispute already opened by a concurrent caller", zap.String("confirmationId", confirmationID))
		}

	case models.ConfirmationConfirmed:
		err := m.Repo.SetFinalStatus(ctx, confirmationID, nonTerminalStatuses, models.ConfirmationConfirmed)
		if err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, fmt.Errorf("failed to finalize confirmation: %w", err)
		}
		// Materialize regardless of who won the transition race; the
		// ledger call is idempotent.
		if err := m.materializeFor(ctx, conf.AppointmentID); err != nil {
			return nil, err
		}

	default:
		err := m.Repo.SetFinalStatus(ctx, confirmationID, nonTerminalStatuses, next)
		if err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, fmt.Errorf("failed to update confirmation status: %w", err)
		}
	}

	return m.Repo.GetByID(ctx, confirmationID)
}

func (m *DefaultConfirmationManager) materializeFor(ctx context.Context, appointmentID string) error {
	appt, err := m.Appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return NewError(CodeFatalData, "confirmed appointment %s no longer readable: %v", appointmentID, err)
	}
	session := models.SessionData{
		ProfessionalID: appt.ProfessionalID,
		ClientID:       appt.ClientID,
		StartTime:      appt.StartTime,
		EndTime:        appt.EndTime,
		HourlyRate:     appt.HourlyRate,
	}
	if _, err := m.Ledger.MaterializeEarning(ctx, appointmentID, session); err != nil {
		return fmt.Errorf("failed to materialize earning for appointment %s: %w", appointmentID, err)
	}
	return nil
}

// AutoConfirmExpired fills in an implicit accept for every party that stayed
// silent past the timeout. Both sides are treated the same.
func (m *DefaultConfirmationManager) AutoConfirmExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-m.Timeout)
	waiting, err := m.Repo.ListAwaitingResponseBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired confirmations: %w", err)
	}

	advanced := 0
	for i := range waiting {
		conf := &waiting[i]
		if !conf.ClientConfirmation.Answered() {
			if err := m.Repo.SetClientConfirmation(ctx, conf.ID, models.TriStateAccepted, now); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
				m.Logger.Warn("Auto-confirm failed for client side", zap.String("confirmationId", conf.ID), zap.Error(err))
				continue
			}
		}
		if !conf.ProfessionalConfirmation.Answered() {
			if err := m.Repo.SetProfessionalConfirmation(ctx, conf.ID, models.TriStateAccepted, now); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
				m.Logger.Warn("Auto-confirm failed for professional side", zap.String("confirmationId", conf.ID), zap.Error(err))
				continue
			}
		}
		if _, err := m.finalize(ctx, conf.ID, ""); err != nil {
			m.Logger.Warn("Auto-confirm finalize failed", zap.String("confirmationId", conf.ID), zap.Error(err))
			continue
		}
		advanced++
	}
	return advanced, nil
}

// ResolveDispute applies the admin's decision to a disputed confirmation.
func (m *DefaultConfirmationManager) ResolveDispute(ctx context.Context, confirmationID string, action DisputeAction, notes string) (*models.AppointmentConfirmation, error) {
	conf, err := m.Repo.GetByID(ctx, confirmationID)
	if err != nil {
		if errors.Is(err, settlementRepo.ErrNotFound) {
			return nil, NewError(CodeNotFound, "confirmation %s not found", confirmationID)
		}
		return nil, err
	}
	if conf.FinalStatus != models.ConfirmationDisputed {
		return nil, NewError(CodeAlreadyResolved, "confirmation %s is %s, not disputed", confirmationID, conf.FinalStatus)
	}

	now := time.Now()
	switch action {
	case ActionConfirmCancel:
		err := m.Repo.ResolveDispute(ctx, confirmationID, models.DisputeResolutionAdminConfirmed, models.ConfirmationConfirmedCanceled, notes, now)
		if err != nil {
			if errors.Is(err, settlementRepo.ErrConflict) {
				return nil, NewError(CodeAlreadyResolved, "confirmation %s was resolved concurrently", confirmationID)
			}
			return nil, fmt.Errorf("failed to resolve dispute: %w", err)
		}
		if err := m.Ledger.ReverseEarningForAppointment(ctx, conf.AppointmentID); err != nil {
			return nil, fmt.Errorf("failed to reverse earning for appointment %s: %w", conf.AppointmentID, err)
		}
		m.restoreSlot(ctx, conf)

	case ActionDeny:
		err := m.Repo.ResolveDispute(ctx, confirmationID, models.DisputeResolutionAdminDenied, models.ConfirmationDenied, notes, now)
		if err != nil {
			if errors.Is(err, settlementRepo.ErrConflict) {
				return nil, NewError(CodeAlreadyResolved, "confirmation %s was resolved concurrently", confirmationID)
			}
			return nil, fmt.Errorf("failed to resolve dispute: %w", err)
		}
		// A denied dispute proceeds as if normally confirmed.
		if err := m.materializeFor(ctx, conf.AppointmentID); err != nil {
			return nil, err
		}

	default:
		return nil, NewError(CodeNotEligible, "unknown dispute action %q", action)
	}

	m.Logger.Info("Dispute resolved",
		zap.String("confirmationId", confirmationID),
		zap.String("action", string(action)))
	return m.Repo.GetByID(ctx, confirmationID)
}

// restoreSlot is best-effort: the booking engine owns availability, and a
// restore failure must not roll back the resolution.
func (m *DefaultConfirmationManager) restoreSlot(ctx context.Context, conf *models.AppointmentConfirmation) {
	appt, err := m.Appointments.GetAppointment(ctx, conf.AppointmentID)
	if err != nil {
		m.Logger.Warn("Slot restore skipped, appointment unreadable",
			zap.String("appointmentId", conf.AppointmentID), zap.Error(err))
		return
	}
	day := appt.StartTime.UTC().Weekday().String()[:3]
	minute := appt.StartTime.UTC().Hour()*60 + appt.StartTime.UTC().Minute()
	if err := m.Slots.RestoreSlot(ctx, conf.ProfessionalID, day, minute); err != nil {
		m.Logger.Warn("Slot restore failed",
			zap.String("professionalId", conf.ProfessionalID), zap.Error(err))
	}
}

// GetConfirmation returns one confirmation by ID.
func (m *DefaultConfirmationManager) GetConfirmation(ctx context.Context, confirmationID string) (*models.AppointmentConfirmation, error) {
	conf, err := m.Repo.GetByID(ctx, confirmationID)
	if errors.Is(err, settlementRepo.ErrNotFound) {
		return nil, NewError(CodeNotFound, "confirmation %s not found", confirmationID)
	}
	return conf, err
}

// ListByProfessional returns a professional's confirmations.
func (m *DefaultConfirmationManager) ListByProfessional(ctx context.Context, professionalID string) ([]models.AppointmentConfirmation, error) {
	return m.Repo.ListByProfessional(ctx, professionalID)
}
