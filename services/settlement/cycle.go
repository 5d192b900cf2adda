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

// cycleAnchor is a Monday; every window boundary is a whole number of cycle
// lengths away from it. Boundaries come from wall-clock date arithmetic,
// never from the first earning seen, so two earnings on the same calendar
// day always share a cycle.
var cycleAnchor = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)

// DefaultCycleScheduler implements CycleScheduler.
type DefaultCycleScheduler struct {
	Repo       settlementRepo.CycleRepository
	LengthDays int
	GraceDays  int
	Logger     *zap.Logger
}

// windowStart maps any instant to the UTC midnight opening its cycle window.
func (s *DefaultCycleScheduler) windowStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int(day.Sub(cycleAnchor).Hours() / 24)
	offset := days % s.LengthDays
	if offset < 0 {
		offset += s.LengthDays
	}
	return day.AddDate(0, 0, -offset)
}

// GetOrCreateCurrentCycle returns the open cycle covering now, creating it
// if this is the first use of the window.
func (s *DefaultCycleScheduler) GetOrCreateCurrentCycle(ctx context.Context) (*models.PayoutCycle, error) {
	return s.GetCycleForDate(ctx, time.Now())
}

// GetCycleForDate deterministically maps a date to its cycle, creating the
// cycle on first use. Late-materialized earnings land in the correct bucket
// no matter when this runs.
func (s *DefaultCycleScheduler) GetCycleForDate(ctx context.Context, date time.Time) (*models.PayoutCycle, error) {
	cycle, err := s.Repo.FindCovering(ctx, date.UTC())
	if err == nil {
		return cycle, nil
	}
	if !errors.Is(err, settlementRepo.ErrNotFound) {
		return nil, err
	}

	start := s.windowStart(date)
	end := start.AddDate(0, 0, s.LengthDays)
	now := time.Now()
	cycle = &models.PayoutCycle{
		ID:        uuid.New().String(),
		StartDate: start,
		EndDate:   end,
		CutoffAt:  end.AddDate(0, 0, s.GraceDays),
		Status:    models.CycleOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repo.Insert(ctx, cycle); err != nil {
		if errors.Is(err, settlementRepo.ErrDuplicate) {
			// A concurrent caller created the window first; use theirs.
			return s.Repo.FindCovering(ctx, date.UTC())
		}
		return nil, fmt.Errorf("failed to create cycle: %w", err)
	}

	s.Logger.Info("Payout cycle created",
		zap.String("cycleId", cycle.ID),
		zap.Time("start", start),
		zap.Time("cutoff", cycle.CutoffAt))
	return cycle, nil
}

// AdvanceDueCycles moves every open cycle past its cutoff to processing and
// returns the ones this caller won. A racing orchestrator run observes the
// conflict and skips.
func (s *DefaultCycleScheduler) AdvanceDueCycles(ctx context.Context, now time.Time) ([]models.PayoutCycle, error) {
	due, err := s.Repo.ListOpenPastCutoff(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due cycles: %w", err)
	}

	var advanced []models.PayoutCycle
	for i := range due {
		cycle := due[i]
		if err := s.Repo.Transition(ctx, cycle.ID, models.CycleOpen, models.CycleProcessing, nil); err != nil {
			if errors.Is(err, settlementRepo.ErrConflict) {
				s.Logger.Debug("Cycle already advanced by a concurrent run", zap.String("cycleId", cycle.ID))
				continue
			}
			return advanced, fmt.Errorf("failed to advance cycle %s: %w", cycle.ID, err)
		}
		cycle.Status = models.CycleProcessing
		advanced = append(advanced, cycle)
	}
	return advanced, nil
}

// ListProcessingCycles returns cycles whose earnings are being settled.
func (s *DefaultCycleScheduler) ListProcessingCycles(ctx context.Context) ([]models.PayoutCycle, error) {
	return s.Repo.ListByStatus(ctx, models.CycleProcessing)
}

// CloseCycle finishes a fully settled cycle.
func (s *DefaultCycleScheduler) CloseCycle(ctx context.Context, cycleID string) error {
	now := time.Now()
	err := s.Repo.Transition(ctx, cycleID, models.CycleProcessing, models.CycleClosed, &now)
	if errors.Is(err, settlementRepo.ErrConflict) {
		s.Logger.Debug("Cycle close skipped, no longer processing", zap.String("cycleId", cycleID))
		return nil
	}
	return err
}

// FailCycle marks a cycle whose settlement hit a terminal failure; it is
// never silently left processing forever.
func (s *DefaultCycleScheduler) FailCycle(ctx context.Context, cycleID string) error {
	now := time.Now()
	err := s.Repo.Transition(ctx, cycleID, models.CycleProcessing, models.CycleFailed, &now)
	if errors.Is(err, settlementRepo.ErrConflict) {
		return nil
	}
	return err
}
