package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	settlementRepo "bookly/database/repository/settlement"
	"bookly/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPayoutProcessor implements PayoutProcessor.
type DefaultPayoutProcessor struct {
	Payouts  settlementRepo.PayoutRepository
	Charges  settlementRepo.FeeChargeRepository
	Earnings settlementRepo.EarningRepository
	Ledger   EarningsLedger
	Cycles   CycleScheduler
	Gateway  PaymentGateway
	Events   EventEmitter
	Logger   *zap.Logger
}

// ProcessCycle aggregates one professional's charged earnings for a cycle
// into a single disbursement. A failed transfer is recorded and NOT retried
// automatically; money movement failures need a human.
func (p *DefaultPayoutProcessor) ProcessCycle(ctx context.Context, professionalID, cycleID string) (*models.Payout, error) {
	charge, err := p.Charges.GetByPair(ctx, professionalID, cycleID)
	if err != nil {
		if errors.Is(err, settlementRepo.ErrNotFound) {
			return nil, NewError(CodeFeesNotSettled, "no fee charge for professional %s in cycle %s", professionalID, cycleID)
		}
		return nil, err
	}
	if !charge.Status.Settled() {
		return nil, NewError(CodeFeesNotSettled, "fee charge for professional %s in cycle %s is %s", professionalID, cycleID, charge.Status)
	}

	payout, err := p.Payouts.GetByPair(ctx, professionalID, cycleID)
	if err != nil {
		if !errors.Is(err, settlementRepo.ErrNotFound) {
			return nil, err
		}
		payout, err = p.createPayout(ctx, professionalID, cycleID)
		if err != nil || payout == nil {
			return payout, err
		}
	}

	switch payout.Status {
	case models.PayoutCompleted:
		return payout, nil
	case models.PayoutProcessing:
		// Another run holds it; skip.
		return payout, nil
	case models.PayoutFailed:
		// Manual reprocessing only.
		return payout, nil
	}

	if err := p.Payouts.Transition(ctx, payout.ID,
		[]models.PayoutStatus{models.PayoutPending}, models.PayoutProcessing, settlementRepo.PayoutUpdate{}); err != nil {
		if errors.Is(err, settlementRepo.ErrConflict) {
			p.Logger.Debug("Payout already claimed", zap.String("payoutId", payout.ID))
			return payout, nil
		}
		return nil, err
	}

	return p.disburse(ctx, payout)
}

// createPayout builds the pending payout from the pair's charged earnings.
// Returns nil with no error when nothing remains to disburse.
func (p *DefaultPayoutProcessor) createPayout(ctx context.Context, professionalID, cycleID string) (*models.Payout, error) {
	totals, err := p.Earnings.TotalsByProfessionalCycle(ctx, professionalID, cycleID, models.EarningCharged)
	if err != nil {
		return nil, err
	}
	if totals.Count == 0 {
		return nil, nil
	}

	now := time.Now()
	payout := &models.Payout{
		ID:             uuid.New().String(),
		ProfessionalID: professionalID,
		CycleID:        cycleID,
		GrossTotal:     models.RoundCents(totals.Gross),
		FeeTotal:       models.RoundCents(totals.Fee),
		NetTotal:       models.RoundCents(totals.Net),
		EarningsCount:  totals.Count,
		Status:         models.PayoutPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Payouts.Insert(ctx, payout); err != nil {
		if errors.Is(err, settlementRepo.ErrDuplicate) {
			return p.Payouts.GetByPair(ctx, professionalID, cycleID)
		}
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}
	return payout, nil
}

func (p *DefaultPayoutProcessor) disburse(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	ref, gatewayErr := p.Gateway.Transfer(ctx, payout.ProfessionalID, payout.NetTotal, payout.ID)
	now := time.Now()

	if gatewayErr != nil {
		if err := p.Payouts.Transition(ctx, payout.ID,
			[]models.PayoutStatus{models.PayoutProcessing}, models.PayoutFailed,
			settlementRepo.PayoutUpdate{FailureReason: gatewayErr.Error()}); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
			return nil, err
		}
		p.Logger.Error("Payout transfer failed",
			zap.String("payoutId", payout.ID),
			zap.String("professionalId", payout.ProfessionalID),
			zap.Error(gatewayErr))
		p.emit(ctx, models.EventPayoutFailed, payout.ProfessionalID, map[string]string{
			"payoutId": payout.ID,
			"reason":   gatewayErr.Error(),
		})
		refreshed, _ := p.Payouts.GetByID(ctx, payout.ID)
		if refreshed == nil {
			refreshed = payout
		}
		return refreshed, NewError(CodeTransferFailed, "payout %s transfer failed: %v", payout.ID, gatewayErr)
	}

	if err := p.Payouts.Transition(ctx, payout.ID,
		[]models.PayoutStatus{models.PayoutProcessing}, models.PayoutCompleted,
		settlementRepo.PayoutUpdate{TransferRef: ref, ProcessedAt: &now}); err != nil && !errors.Is(err, settlementRepo.ErrConflict) {
		return nil, err
	}

	totals, err := p.Earnings.TotalsByProfessionalCycle(ctx, payout.ProfessionalID, payout.CycleID, models.EarningCharged)
	if err != nil {
		return nil, err
	}
	if err := p.Ledger.MarkPaid(ctx, totals.EarningIDs, payout.ID); err != nil {
		return nil, err
	}

	p.Logger.Info("Payout completed",
		zap.String("payoutId", payout.ID),
		zap.String("professionalId", payout.ProfessionalID),
		zap.Float64("net", payout.NetTotal))
	p.emit(ctx, models.EventPayoutCompleted, payout.ProfessionalID, map[string]string{
		"payoutId":    payout.ID,
		"transferRef": ref,
		"net":         fmt.Sprintf("%.2f", payout.NetTotal),
	})
	return p.Payouts.GetByID(ctx, payout.ID)
}

// ReprocessPayout is the admin path for a failed payout.
func (p *DefaultPayoutProcessor) ReprocessPayout(ctx context.Context, payoutID string) (*models.Payout, error) {
	payout, err := p.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, settlementRepo.ErrNotFound) {
			return nil, NewError(CodeNotFound, "payout %s not found", payoutID)
		}
		return nil, err
	}
	if payout.Status == models.PayoutCompleted {
		return payout, nil
	}
	if payout.Status != models.PayoutFailed {
		return nil, NewError(CodeInvalidTransition, "payout %s is %s, only failed payouts can be reprocessed", payoutID, payout.Status)
	}

	if err := p.Payouts.Transition(ctx, payoutID,
		[]models.PayoutStatus{models.PayoutFailed}, models.PayoutProcessing, settlementRepo.PayoutUpdate{}); err != nil {
		if errors.Is(err, settlementRepo.ErrConflict) {
			return nil, NewError(CodeConflict, "payout %s changed state concurrently", payoutID)
		}
		return nil, err
	}
	return p.disburse(ctx, payout)
}

// ProcessAllReadyCycles disburses every (professional, cycle) pair whose
// fees settled, across all cycles in processing. Professionals are
// independent and run concurrently; one failure never halts the batch.
func (p *DefaultPayoutProcessor) ProcessAllReadyCycles(ctx context.Context) (*models.PayoutBatchSummary, error) {
	cycles, err := p.Cycles.ListProcessingCycles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing cycles: %w", err)
	}

	summary := &models.PayoutBatchSummary{}
	for i := range cycles {
		p.processCyclePayouts(ctx, &cycles[i], summary)
	}
	return summary, nil
}

func (p *DefaultPayoutProcessor) processCyclePayouts(ctx context.Context, cycle *models.PayoutCycle, summary *models.PayoutBatchSummary) {
	settled, err := p.Charges.ListByCycle(ctx, cycle.ID, models.FeeChargeSucceeded, models.FeeChargeWaived)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s: %v", cycle.ID, err))
		return
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range settled {
		professionalID := settled[i].ProfessionalID
		wg.Add(1)
		go func() {
			defer wg.Done()
			payout, err := p.ProcessCycle(ctx, professionalID, cycle.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("professional %s cycle %s: %v", professionalID, cycle.ID, err))
			case payout == nil:
				summary.Skipped++
			case payout.Status == models.PayoutCompleted:
				summary.Processed++
			default:
				summary.Skipped++
			}
		}()
	}
	wg.Wait()

	p.settleCycleStatus(ctx, cycle, summary)
}

// settleCycleStatus closes a fully settled cycle, or fails one whose
// remaining work is all terminal failures.
func (p *DefaultPayoutProcessor) settleCycleStatus(ctx context.Context, cycle *models.PayoutCycle, summary *models.PayoutBatchSummary) {
	remaining, err := p.Earnings.CountByCycle(ctx, cycle.ID, models.EarningConfirmed, models.EarningCharged)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s: %v", cycle.ID, err))
		return
	}
	if remaining == 0 {
		if err := p.Cycles.CloseCycle(ctx, cycle.ID); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s close: %v", cycle.ID, err))
		}
		return
	}

	pendingCharges, err := p.Charges.ListByCycle(ctx, cycle.ID, models.FeeChargePending)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s: %v", cycle.ID, err))
		return
	}
	if len(pendingCharges) > 0 {
		// Retries still scheduled; leave the cycle processing.
		return
	}

	failedCharges, err := p.Charges.ListByCycle(ctx, cycle.ID, models.FeeChargeFailed)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s: %v", cycle.ID, err))
		return
	}
	failedPayouts, err := p.Payouts.ListByCycle(ctx, cycle.ID, models.PayoutFailed)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s: %v", cycle.ID, err))
		return
	}
	if len(failedCharges) > 0 || len(failedPayouts) > 0 {
		if err := p.Cycles.FailCycle(ctx, cycle.ID); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("cycle %s fail-mark: %v", cycle.ID, err))
		}
	}
}

func (p *DefaultPayoutProcessor) emit(ctx context.Context, eventType models.SettlementEventType, professionalID string, data map[string]string) {
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
