package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	settlementRepo "bookly/database/repository/settlement"
	"bookly/models"

	"go.uber.org/zap"
)

// DefaultOrchestrator chains the settlement phases into one idempotent pass.
type DefaultOrchestrator struct {
	Appointments  AppointmentSource
	Confirmations ConfirmationManager
	Earnings      settlementRepo.EarningRepository
	Cycles        CycleScheduler
	Charges       FeeChargeProcessor
	Payouts       PayoutProcessor
	Logger        *zap.Logger

	// SweepLimit caps how many unconfirmed appointments one run picks up.
	SweepLimit int64
}

// RunOnce executes a full settlement pass: sweep completed appointments
// into confirmations, auto-confirm expired ones, advance due cycles and
// charge their fees, retry due charges, then disburse payouts. Every phase
// tolerates a crashed or concurrent previous run; item failures are
// collected, never fatal.
func (o *DefaultOrchestrator) RunOnce(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{StartedAt: time.Now()}

	o.sweepConfirmations(ctx, report)
	o.autoConfirm(ctx, report)
	o.chargeCycles(ctx, report)
	o.disbursePayouts(ctx, report)

	// Keep the current cycle materialized so earnings always land somewhere.
	if _, err := o.Cycles.GetOrCreateCurrentCycle(ctx); err != nil {
		report.AddError(fmt.Sprintf("current cycle: %v", err))
	}

	report.FinishedAt = time.Now()
	o.Logger.Info("Settlement run finished",
		zap.Int("confirmationsCreated", report.ConfirmationsCreated),
		zap.Int("autoConfirmed", report.AutoConfirmed),
		zap.Int("cyclesAdvanced", report.CyclesAdvanced),
		zap.Int("chargesAttempted", report.ChargesAttempted),
		zap.Int("payoutsCompleted", report.PayoutsCompleted),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (o *DefaultOrchestrator) sweepConfirmations(ctx context.Context, report *models.RunReport) {
	limit := o.SweepLimit
	if limit <= 0 {
		limit = 500
	}
	appointments, err := o.Appointments.ListCompletedWithoutConfirmation(ctx, time.Now(), limit)
	if err != nil {
		report.AddError(fmt.Sprintf("sweep completed appointments: %v", err))
		return
	}
	for i := range appointments {
		if _, err := o.Confirmations.CreateConfirmation(ctx, appointments[i].ID); err != nil {
			if HasCode(err, CodeAlreadyExists) {
				continue
			}
			report.AddError(fmt.Sprintf("create confirmation for appointment %s: %v", appointments[i].ID, err))
			continue
		}
		report.ConfirmationsCreated++
	}
}

func (o *DefaultOrchestrator) autoConfirm(ctx context.Context, report *models.RunReport) {
	advanced, err := o.Confirmations.AutoConfirmExpired(ctx, time.Now())
	if err != nil {
		report.AddError(fmt.Sprintf("auto-confirm: %v", err))
	}
	report.AutoConfirmed = advanced
}

// chargeCycles advances due cycles and charges fees for every cycle in
// processing, not only the freshly advanced ones, so a run that died
// between advancing and charging gets picked up here.
func (o *DefaultOrchestrator) chargeCycles(ctx context.Context, report *models.RunReport) {
	advanced, err := o.Cycles.AdvanceDueCycles(ctx, time.Now())
	if err != nil {
		report.AddError(fmt.Sprintf("advance cycles: %v", err))
	}
	report.CyclesAdvanced = len(advanced)

	processing, err := o.Cycles.ListProcessingCycles(ctx)
	if err != nil {
		report.AddError(fmt.Sprintf("list processing cycles: %v", err))
		return
	}
	for i := range processing {
		o.chargeCycle(ctx, &processing[i], report)
	}

	attempted, succeeded, errs := o.Charges.ChargeDueRetries(ctx, time.Now())
	report.ChargesAttempted += attempted
	report.ChargesSucceeded += succeeded
	report.Errors = append(report.Errors, errs...)
}

func (o *DefaultOrchestrator) chargeCycle(ctx context.Context, cycle *models.PayoutCycle, report *models.RunReport) {
	professionals, err := o.Earnings.DistinctProfessionalsByCycle(ctx, cycle.ID, models.EarningConfirmed)
	if err != nil {
		report.AddError(fmt.Sprintf("cycle %s professionals: %v", cycle.ID, err))
		return
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, professionalID := range professionals {
		professionalID := professionalID
		wg.Add(1)
		go func() {
			defer wg.Done()
			charge, err := o.Charges.ChargeCycle(ctx, professionalID, cycle.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if HasCode(err, CodeNoEarnings) {
					return
				}
				report.AddError(fmt.Sprintf("charge professional %s cycle %s: %v", professionalID, cycle.ID, err))
				return
			}
			report.ChargesAttempted++
			if charge != nil && charge.Status.Settled() {
				report.ChargesSucceeded++
			}
		}()
	}
	wg.Wait()
}

func (o *DefaultOrchestrator) disbursePayouts(ctx context.Context, report *models.RunReport) {
	summary, err := o.Payouts.ProcessAllReadyCycles(ctx)
	if err != nil {
		report.AddError(fmt.Sprintf("process payouts: %v", err))
		return
	}
	report.PayoutsCompleted = summary.Processed
	report.PayoutsFailed = summary.Failed
	report.Errors = append(report.Errors, summary.Errors...)
}
