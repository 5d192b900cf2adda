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

// DefaultFeeChargeProcessor implements FeeChargeProcessor.
type DefaultFeeChargeProcessor struct {
	Charges        settlementRepo.FeeChargeRepository
	Earnings       settlementRepo.EarningRepository
	Ledger         EarningsLedger
	Gateway        PaymentGateway
	Events         EventEmitter
	Logger         *zap.Logger
	MaxAttempts    int
	BaseRetryDelay time.Duration
}

// ChargeCycle collects the platform fee for one (professional, cycle) pair.
// Calling it again after success or waiver is a no-op with no gateway call;
// a racing caller loses the attempt claim and skips.
func (p *DefaultFeeChargeProcessor) ChargeCycle(ctx context.Context, professionalID, cycleID string) (*models.FeeCharge, error) {
	charge, err := p.Charges.GetByPair(ctx, professionalID, cycleID)
	if err != nil {
		if !errors.Is(err, settlementRepo.ErrNotFound) {
			return nil, err
		}
		charge, err = p.createCharge(ctx, professionalID, cycleID)
		if err != nil {
			return nil, err
		}
	}

	if charge.Status.Settled() {
		return charge, nil
	}
	if charge.Status == models.FeeChargeFailed {
		// Terminal; only an admin waiver revives this pair.
		return charge, nil
	}
	now := time.Now()
	if charge.NextRetryAt != nil && now.Before(*charge.NextRetryAt) {
		return charge, nil
	}

	if err := p.Charges.ClaimAttempt(ctx, charge.ID, charge.Attempts); err != nil {
		if errors.Is(err, settlementRepo.ErrConflict) {
			p.Logger.Debug("Fee charge attempt already claimed", zap.String("feeChargeId", charge.ID))
			return charge, nil
		}
		return nil, err
	}
	attempt := charge.Attempts + 1

	// The chargeable set may have shrunk since the charge was created
	// (cancellations, disputes); bill what is actually still confirmed.
	totals, err := p.Earnings.TotalsByProfessionalCycle(ctx, professionalID, cycleID, models.EarningConfirmed)
	if err != nil {
		return nil, err
	}
	if totals.Count == 0 {
		// Nothing left to collect; settle the pair without a gateway call.
		if err := p.Charges.MarkWaived(ctx, charge.ID); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, err
		}
		return p.Charges.GetByID(ctx, charge.ID)
	}

	ref, gatewayErr := p.Gateway.ChargeFee(ctx, professionalID, totals.Fee,
		fmt.Sprintf("%s-%d", charge.ID, attempt))
	if gatewayErr == nil {
		if err := p.Charges.MarkSucceeded(ctx, charge.ID, ref, totals.Fee); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, err
		}
		if err := p.Ledger.MarkCharged(ctx, totals.EarningIDs, charge.ID); err != nil {
			return nil, err
		}
		p.Logger.Info("Fee charge succeeded",
			zap.String("feeChargeId", charge.ID),
			zap.String("professionalId", professionalID),
			zap.Float64("amount", totals.Fee))
		return p.Charges.GetByID(ctx, charge.ID)
	}

	return p.recordFailure(ctx, charge, attempt, professionalID, cycleID, gatewayErr)
}

func (p *DefaultFeeChargeProcessor) createCharge(ctx context.Context, professionalID, cycleID string) (*models.FeeCharge, error) {
	totals, err := p.Earnings.TotalsByProfessionalCycle(ctx, professionalID, cycleID, models.EarningConfirmed)
	if err != nil {
		return nil, err
	}
	if totals.Count == 0 {
		return nil, NewError(CodeNoEarnings, "no confirmed earnings for professional %s in cycle %s", professionalID, cycleID)
	}

	now := time.Now()
	charge := &models.FeeCharge{
		ID:             uuid.New().String(),
		ProfessionalID: professionalID,
		CycleID:        cycleID,
		Amount:         totals.Fee,
		Status:         models.FeeChargePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Charges.Insert(ctx, charge); err != nil {
		if errors.Is(err, settlementRepo.ErrDuplicate) {
			return p.Charges.GetByPair(ctx, professionalID, cycleID)
		}
		return nil, fmt.Errorf("failed to create fee charge: %w", err)
	}
	return charge, nil
}

func (p *DefaultFeeChargeProcessor) recordFailure(ctx context.Context, charge *models.FeeCharge, attempt int, professionalID, cycleID string, gatewayErr error) (*models.FeeCharge, error) {
	final := attempt >= p.MaxAttempts
	now := time.Now()

	if final {
		if err := p.Charges.RecordFailure(ctx, charge.ID, gatewayErr.Error(), nil, true); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, err
		}
		p.Logger.Error("Fee charge failed permanently, account blocked",
			zap.String("feeChargeId", charge.ID),
			zap.String("professionalId", professionalID),
			zap.Int("attempts", attempt),
			zap.Error(gatewayErr))
		p.emit(ctx, models.EventAccountBlocked, professionalID, map[string]string{
			"feeChargeId": charge.ID,
			"cycleId":     cycleID,
			"reason":      gatewayErr.Error(),
		})
	} else {
		// Exponential backoff: base, 2x base, 4x base, ...
		next := now.Add(p.BaseRetryDelay << (attempt - 1))
		if err := p.Charges.RecordFailure(ctx, charge.ID, gatewayErr.Error(), &next, false); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, err
		}
		p.Logger.Warn("Fee charge attempt failed, retry scheduled",
			zap.String("feeChargeId", charge.ID),
			zap.Int("attempt", attempt),
			zap.Time("nextRetry", next),
			zap.Error(gatewayErr))
	}

	p.emit(ctx, models.EventFeeChargeFailed, professionalID, map[string]string{
		"feeChargeId": charge.ID,
		"cycleId":     cycleID,
		"attempt":     fmt.Sprintf("%d", attempt),
		"final":       fmt.Sprintf("%t", final),
	})
	return p.Charges.GetByID(ctx, charge.ID)
}

// ChargeDueRetries re-attempts every pending charge whose backoff elapsed.
func (p *DefaultFeeChargeProcessor) ChargeDueRetries(ctx context.Context, now time.Time) (int, int, []string) {
	due, err := p.Charges.ListDueRetries(ctx, now)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("failed to list due fee charge retries: %v", err)}
	}

	var attempted, succeeded int
	var errs []string
	for i := range due {
		attempted++
		charge, err := p.ChargeCycle(ctx, due[i].ProfessionalID, due[i].CycleID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("fee charge retry %s: %v", due[i].ID, err))
			continue
		}
		if charge != nil && charge.Status.Settled() {
			succeeded++
		}
	}
	return attempted, succeeded, errs
}

// WaiveFee settles a pair without collecting; goodwill or error correction.
// The failure counter does not carry over: the waiver supersedes it.
func (p *DefaultFeeChargeProcessor) WaiveFee(ctx context.Context, feeChargeID string) (*models.FeeCharge, error) {
	charge, err := p.Charges.GetByID(ctx, feeChargeID)
	if err != nil {
		if errors.Is(err, settlementRepo.ErrNotFound) {
			return nil, NewError(CodeNotFound, "fee charge %s not found", feeChargeID)
		}
		return nil, err
	}
	if charge.Status.Settled() {
		return charge, nil
	}

	if err := p.Charges.MarkWaived(ctx, charge.ID); err != nil {
		if errors.Is(err, settlementRepo.ErrConflict) {
			return p.Charges.GetByID(ctx, charge.ID)
		}
		return nil, err
	}

	totals, err := p.Earnings.TotalsByProfessionalCycle(ctx, charge.ProfessionalID, charge.CycleID, models.EarningConfirmed)
	if err != nil {
		return nil, err
	}
	if err := p.Ledger.MarkCharged(ctx, totals.EarningIDs, charge.ID); err != nil {
		return nil, err
	}

	p.Logger.Info("Fee charge waived",
		zap.String("feeChargeId", charge.ID),
		zap.String("professionalId", charge.ProfessionalID))
	return p.Charges.GetByID(ctx, charge.ID)
}

func (p *DefaultFeeChargeProcessor) emit(ctx context.Context, eventType models.SettlementEventType, professionalID string, data map[string]string) {
	if p.Events == nil {
		return
	}
	event := models.SettlementEvent{
		Type:           eventType,
		ProfessionalID: professionalID,
		Data:           data,
		OccurredAt:     time.Now(),
	}
	if err := p.Events.Emit(ctx, event); err != nil {
		p.Logger.Warn("Event emit failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}
