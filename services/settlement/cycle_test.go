package settlement

import (
	"context"
	"testing"
	"time"

	"bookly/models"

	"go.uber.org/zap"
)

func newCycleScheduler(repo *memCycleRepo) *DefaultCycleScheduler {
	return &DefaultCycleScheduler{Repo: repo, LengthDays: 7, GraceDays: 2, Logger: zap.NewNop()}
}

func TestGetCycleForDateDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newCycleScheduler(newMemCycleRepo())

	// 2026-03-04 is a Wednesday; its weekly window opens Monday 2026-03-02.
	wednesday := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	first, err := s.GetCycleForDate(ctx, wednesday)
	if err != nil {
		t.Fatalf("GetCycleForDate: %v", err)
	}

	wantStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !first.StartDate.Equal(wantStart) {
		t.Errorf("start = %v, want %v", first.StartDate, wantStart)
	}
	if !first.EndDate.Equal(wantStart.AddDate(0, 0, 7)) {
		t.Errorf("end = %v, want start+7d", first.EndDate)
	}
	if !first.CutoffAt.Equal(first.EndDate.AddDate(0, 0, 2)) {
		t.Errorf("cutoff = %v, want end+2d", first.CutoffAt)
	}
	if first.Status != models.CycleOpen {
		t.Errorf("status = %s, want open", first.Status)
	}

	// Any instant in the same window maps to the same cycle record.
	sunday := time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC)
	again, err := s.GetCycleForDate(ctx, sunday)
	if err != nil {
		t.Fatalf("second GetCycleForDate: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("same window produced two cycles: %s vs %s", first.ID, again.ID)
	}
}

func TestGetCycleForDateWindowBoundary(t *testing.T) {
	ctx := context.Background()
	s := newCycleScheduler(newMemCycleRepo())

	lastInstant := time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC)
	nextMonday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	a, err := s.GetCycleForDate(ctx, lastInstant)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GetCycleForDate(ctx, nextMonday)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("window end must open a new cycle")
	}
	if !a.EndDate.Equal(b.StartDate) {
		t.Errorf("windows not contiguous: %v vs %v", a.EndDate, b.StartDate)
	}
}

func TestGetOrCreateCurrentCycleCoversNow(t *testing.T) {
	ctx := context.Background()
	s := newCycleScheduler(newMemCycleRepo())

	cycle, err := s.GetOrCreateCurrentCycle(ctx)
	if err != nil {
		t.Fatalf("GetOrCreateCurrentCycle: %v", err)
	}
	if !cycle.Covers(time.Now().UTC()) {
		t.Error("current cycle does not cover now")
	}
}

func TestAdvanceDueCycles(t *testing.T) {
	ctx := context.Background()
	repo := newMemCycleRepo()
	s := newCycleScheduler(repo)
	now := time.Now()

	past, err := s.GetCycleForDate(ctx, now.AddDate(0, 0, -21))
	if err != nil {
		t.Fatal(err)
	}
	current, err := s.GetCycleForDate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}

	advanced, err := s.AdvanceDueCycles(ctx, now)
	if err != nil {
		t.Fatalf("AdvanceDueCycles: %v", err)
	}
	if len(advanced) != 1 || advanced[0].ID != past.ID {
		t.Fatalf("advanced %d cycles, want only the past one", len(advanced))
	}
	if advanced[0].Status != models.CycleProcessing {
		t.Errorf("advanced status = %s, want processing", advanced[0].Status)
	}

	got, _ := repo.GetByID(ctx, current.ID)
	if got.Status != models.CycleOpen {
		t.Errorf("current cycle advanced before its cutoff: %s", got.Status)
	}

	// A second run finds nothing left to claim.
	again, err := s.AdvanceDueCycles(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second run advanced %d cycles, want 0", len(again))
	}
}

func TestCloseAndFailCycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemCycleRepo()
	s := newCycleScheduler(repo)

	cycle, err := s.GetCycleForDate(ctx, time.Now().AddDate(0, 0, -21))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AdvanceDueCycles(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := s.CloseCycle(ctx, cycle.ID); err != nil {
		t.Fatalf("CloseCycle: %v", err)
	}
	got, _ := repo.GetByID(ctx, cycle.ID)
	if got.Status != models.CycleClosed {
		t.Errorf("status = %s, want closed", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Error("close must record the processing timestamp")
	}

	// Closing or failing a settled cycle is a quiet no-op.
	if err := s.CloseCycle(ctx, cycle.ID); err != nil {
		t.Errorf("re-close: %v", err)
	}
	if err := s.FailCycle(ctx, cycle.ID); err != nil {
		t.Errorf("fail after close: %v", err)
	}
	got, _ = repo.GetByID(ctx, cycle.ID)
	if got.Status != models.CycleClosed {
		t.Errorf("closed cycle flipped to %s", got.Status)
	}
}
