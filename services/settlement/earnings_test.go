package settlement

import (
	"context"
	"testing"
	"time"

	"bookly/models"

	"go.uber.org/zap"
)

type ledgerFixture struct {
	ledger    *DefaultEarningsLedger
	earnRepo  *memEarningRepo
	cycleRepo *memCycleRepo
	emitter   *capturingEmitter
}

func newLedgerFixture(feePercent float64) *ledgerFixture {
	f := &ledgerFixture{
		earnRepo:  newMemEarningRepo(),
		cycleRepo: newMemCycleRepo(),
		emitter:   &capturingEmitter{},
	}
	scheduler := &DefaultCycleScheduler{Repo: f.cycleRepo, LengthDays: 7, GraceDays: 2, Logger: zap.NewNop()}
	f.ledger = &DefaultEarningsLedger{
		Repo:   f.earnRepo,
		Cycles: scheduler,
		Fees:   staticFeeSource{percent: feePercent},
		Events: f.emitter,
		Logger: zap.NewNop(),
	}
	return f
}

func sessionAt(end time.Time, minutes int, rate float64) models.SessionData {
	return models.SessionData{
		ProfessionalID: "pro-1",
		ClientID:       "client-1",
		StartTime:      end.Add(-time.Duration(minutes) * time.Minute),
		EndTime:        end,
		HourlyRate:     rate,
	}
}

func TestMaterializeEarningAmounts(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(15)

	// 50 minutes at 45/hr: gross 37.50, fee 5.63 (rounded up from 5.625),
	// net 31.87.
	earning, err := f.ledger.MaterializeEarning(ctx, "appt-1", sessionAt(time.Now().Add(-time.Hour), 50, 45))
	if err != nil {
		t.Fatalf("MaterializeEarning: %v", err)
	}
	if earning.GrossAmount != 37.5 {
		t.Errorf("gross = %v, want 37.5", earning.GrossAmount)
	}
	if earning.PlatformFee != 5.63 {
		t.Errorf("fee = %v, want 5.63", earning.PlatformFee)
	}
	if earning.NetAmount != 31.87 {
		t.Errorf("net = %v, want 31.87", earning.NetAmount)
	}
	if earning.PlatformFeePct != 15 {
		t.Errorf("fee pct snapshot = %v, want 15", earning.PlatformFeePct)
	}
	if earning.DurationMinutes != 50 {
		t.Errorf("duration = %d, want 50", earning.DurationMinutes)
	}
	if earning.Status != models.EarningConfirmed {
		t.Errorf("status = %s, want confirmed", earning.Status)
	}

	cycle, err := f.cycleRepo.GetByID(ctx, earning.CycleID)
	if err != nil {
		t.Fatalf("cycle not created: %v", err)
	}
	if !cycle.Covers(earning.SessionEnd) {
		t.Error("earning assigned to a cycle that does not cover its session end")
	}
}

func TestMaterializeEarningIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)
	session := sessionAt(time.Now().Add(-time.Hour), 60, 80)

	first, err := f.ledger.MaterializeEarning(ctx, "appt-1", session)
	if err != nil {
		t.Fatalf("first materialize: %v", err)
	}
	second, err := f.ledger.MaterializeEarning(ctx, "appt-1", session)
	if err != nil {
		t.Fatalf("second materialize: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("retry created a new earning: %s vs %s", first.ID, second.ID)
	}
	if events := f.emitter.byType(models.EventEarningConfirmed); len(events) != 1 {
		t.Errorf("earning_confirmed events = %d, want 1", len(events))
	}
}

func TestMaterializeEarningInvalidSession(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)
	end := time.Now().Add(-time.Hour)

	zeroDuration := sessionAt(end, 0, 60)
	if _, err := f.ledger.MaterializeEarning(ctx, "appt-1", zeroDuration); !HasCode(err, CodeFatalData) {
		t.Errorf("zero duration: got %v, want %s", err, CodeFatalData)
	}

	zeroRate := sessionAt(end, 60, 0)
	if _, err := f.ledger.MaterializeEarning(ctx, "appt-2", zeroRate); !HasCode(err, CodeFatalData) {
		t.Errorf("zero rate: got %v, want %s", err, CodeFatalData)
	}

	negative := sessionAt(end, 60, 50)
	negative.EndTime = negative.StartTime.Add(-time.Hour)
	if _, err := f.ledger.MaterializeEarning(ctx, "appt-3", negative); !HasCode(err, CodeFatalData) {
		t.Errorf("negative duration: got %v, want %s", err, CodeFatalData)
	}
}

func TestMaterializeEarningRollsForwardFromSettledCycle(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)

	closedEnd := time.Now().AddDate(0, 0, -21)
	closed, err := f.ledger.Cycles.GetCycleForDate(ctx, closedEnd)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.cycleRepo.Transition(ctx, closed.ID, models.CycleOpen, models.CycleProcessing, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.cycleRepo.Transition(ctx, closed.ID, models.CycleProcessing, models.CycleClosed, nil); err != nil {
		t.Fatal(err)
	}

	processingEnd := time.Now().AddDate(0, 0, -14)
	processing, err := f.ledger.Cycles.GetCycleForDate(ctx, processingEnd)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.cycleRepo.Transition(ctx, processing.ID, models.CycleOpen, models.CycleProcessing, nil); err != nil {
		t.Fatal(err)
	}

	late1, err := f.ledger.MaterializeEarning(ctx, "appt-late-1", sessionAt(closedEnd, 60, 60))
	if err != nil {
		t.Fatalf("materialize into closed window: %v", err)
	}
	late2, err := f.ledger.MaterializeEarning(ctx, "appt-late-2", sessionAt(processingEnd, 60, 60))
	if err != nil {
		t.Fatalf("materialize into processing window: %v", err)
	}

	for _, earning := range []*models.Earning{late1, late2} {
		if earning.CycleID == closed.ID || earning.CycleID == processing.ID {
			t.Fatalf("earning %s landed in a settled cycle", earning.ID)
		}
		cycle, err := f.cycleRepo.GetByID(ctx, earning.CycleID)
		if err != nil {
			t.Fatal(err)
		}
		if cycle.Status != models.CycleOpen {
			t.Errorf("rollover cycle status = %s, want open", cycle.Status)
		}
		if !cycle.Covers(time.Now().UTC()) {
			t.Error("rollover cycle does not cover now, a later run would never advance it")
		}
	}
	if late1.CycleID != late2.CycleID {
		t.Errorf("both late earnings should share the current cycle: %s vs %s", late1.CycleID, late2.CycleID)
	}

	// An earning whose window is still open stays in that window.
	onTime, err := f.ledger.MaterializeEarning(ctx, "appt-on-time", sessionAt(time.Now(), 60, 60))
	if err != nil {
		t.Fatal(err)
	}
	if onTime.CycleID != late1.CycleID {
		t.Errorf("current-window earning landed in %s, want the open cycle %s", onTime.CycleID, late1.CycleID)
	}
}

func seedEarning(t *testing.T, repo *memEarningRepo, id, appointmentID string, status models.EarningStatus) *models.Earning {
	t.Helper()
	now := time.Now()
	earning := &models.Earning{
		ID:             id,
		ProfessionalID: "pro-1",
		AppointmentID:  appointmentID,
		CycleID:        "cycle-1",
		GrossAmount:    100,
		PlatformFee:    10,
		NetAmount:      90,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Insert(context.Background(), earning); err != nil {
		t.Fatalf("seed earning: %v", err)
	}
	return earning
}

func TestCancelEarning(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)
	seedEarning(t, f.earnRepo, "e-confirmed", "a-1", models.EarningConfirmed)
	seedEarning(t, f.earnRepo, "e-charged", "a-2", models.EarningCharged)

	if err := f.ledger.CancelEarning(ctx, "e-confirmed"); err != nil {
		t.Fatalf("cancel confirmed: %v", err)
	}
	got, _ := f.earnRepo.GetByID(ctx, "e-confirmed")
	if got.Status != models.EarningCanceled {
		t.Errorf("status = %s, want canceled", got.Status)
	}
	// Already canceled is a no-op, not an error.
	if err := f.ledger.CancelEarning(ctx, "e-confirmed"); err != nil {
		t.Errorf("re-cancel: %v", err)
	}

	if err := f.ledger.CancelEarning(ctx, "e-charged"); !HasCode(err, CodeInvalidTransition) {
		t.Errorf("cancel charged: got %v, want %s", err, CodeInvalidTransition)
	}
	if err := f.ledger.CancelEarning(ctx, "missing"); !HasCode(err, CodeNotFound) {
		t.Errorf("cancel missing: got %v, want %s", err, CodeNotFound)
	}
}

func TestDisputeEarning(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)
	seedEarning(t, f.earnRepo, "e-paid", "a-1", models.EarningPaid)
	seedEarning(t, f.earnRepo, "e-confirmed", "a-2", models.EarningConfirmed)

	if err := f.ledger.DisputeEarning(ctx, "e-paid"); err != nil {
		t.Fatalf("dispute paid: %v", err)
	}
	got, _ := f.earnRepo.GetByID(ctx, "e-paid")
	if got.Status != models.EarningDisputed {
		t.Errorf("status = %s, want disputed", got.Status)
	}
	if err := f.ledger.DisputeEarning(ctx, "e-paid"); err != nil {
		t.Errorf("re-dispute: %v", err)
	}

	if err := f.ledger.DisputeEarning(ctx, "e-confirmed"); !HasCode(err, CodeInvalidTransition) {
		t.Errorf("dispute confirmed: got %v, want %s", err, CodeInvalidTransition)
	}
}

func TestReverseEarningForAppointment(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)
	seedEarning(t, f.earnRepo, "e-1", "a-confirmed", models.EarningConfirmed)
	seedEarning(t, f.earnRepo, "e-2", "a-paid", models.EarningPaid)
	seedEarning(t, f.earnRepo, "e-3", "a-canceled", models.EarningCanceled)

	if err := f.ledger.ReverseEarningForAppointment(ctx, "a-confirmed"); err != nil {
		t.Fatalf("reverse confirmed: %v", err)
	}
	if got, _ := f.earnRepo.GetByID(ctx, "e-1"); got.Status != models.EarningCanceled {
		t.Errorf("confirmed earning reversed to %s, want canceled", got.Status)
	}

	if err := f.ledger.ReverseEarningForAppointment(ctx, "a-paid"); err != nil {
		t.Fatalf("reverse paid: %v", err)
	}
	if got, _ := f.earnRepo.GetByID(ctx, "e-2"); got.Status != models.EarningDisputed {
		t.Errorf("paid earning reversed to %s, want disputed", got.Status)
	}

	// Already reversed and nonexistent are both quiet no-ops.
	if err := f.ledger.ReverseEarningForAppointment(ctx, "a-canceled"); err != nil {
		t.Errorf("reverse canceled: %v", err)
	}
	if err := f.ledger.ReverseEarningForAppointment(ctx, "a-none"); err != nil {
		t.Errorf("reverse without earning: %v", err)
	}
}

func TestMarkChargedAndPaid(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(10)
	seedEarning(t, f.earnRepo, "e-1", "a-1", models.EarningConfirmed)
	seedEarning(t, f.earnRepo, "e-2", "a-2", models.EarningConfirmed)
	seedEarning(t, f.earnRepo, "e-3", "a-3", models.EarningCanceled)

	if err := f.ledger.MarkCharged(ctx, []string{"e-1", "e-2", "e-3"}, "fc-1"); err != nil {
		t.Fatalf("MarkCharged: %v", err)
	}
	for _, id := range []string{"e-1", "e-2"} {
		got, _ := f.earnRepo.GetByID(ctx, id)
		if got.Status != models.EarningCharged || got.FeeChargeID != "fc-1" {
			t.Errorf("%s: status=%s feeChargeId=%q, want charged/fc-1", id, got.Status, got.FeeChargeID)
		}
	}
	if got, _ := f.earnRepo.GetByID(ctx, "e-3"); got.Status != models.EarningCanceled {
		t.Errorf("canceled earning was charged: %s", got.Status)
	}

	if err := f.ledger.MarkPaid(ctx, []string{"e-1", "e-2"}, "po-1"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if got, _ := f.earnRepo.GetByID(ctx, "e-1"); got.Status != models.EarningPaid || got.PayoutID != "po-1" {
		t.Errorf("e-1: status=%s payoutId=%q, want paid/po-1", got.Status, got.PayoutID)
	}

	if err := f.ledger.MarkCharged(ctx, nil, "fc-1"); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}
