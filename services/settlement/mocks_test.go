package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	settlementRepo "bookly/database/repository/settlement"
	"bookly/models"
)

// In-memory repositories mirroring the conditional-update semantics of the
// mongo implementations: a guard that matches nothing returns ErrConflict,
// unique indexes return ErrDuplicate.

type memConfirmationRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.AppointmentConfirmation
	byAppt map[string]string
}

func newMemConfirmationRepo() *memConfirmationRepo {
	return &memConfirmationRepo{
		byID:   make(map[string]*models.AppointmentConfirmation),
		byAppt: make(map[string]string),
	}
}

func (r *memConfirmationRepo) Create(ctx context.Context, conf *models.AppointmentConfirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAppt[conf.AppointmentID]; ok {
		return settlementRepo.ErrDuplicate
	}
	cp := *conf
	r.byID[conf.ID] = &cp
	r.byAppt[conf.AppointmentID] = conf.ID
	return nil
}

func (r *memConfirmationRepo) GetByID(ctx context.Context, id string) (*models.AppointmentConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.byID[id]
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	cp := *conf
	return &cp, nil
}

func (r *memConfirmationRepo) GetByAppointmentID(ctx context.Context, appointmentID string) (*models.AppointmentConfirmation, error) {
	r.mu.Lock()
	id, ok := r.byAppt[appointmentID]
	r.mu.Unlock()
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memConfirmationRepo) SetClientConfirmation(ctx context.Context, id string, value models.TriState, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.byID[id]
	if !ok || conf.ClientConfirmation != models.TriStateUnset {
		return settlementRepo.ErrConflict
	}
	conf.ClientConfirmation = value
	conf.ClientConfirmedAt = &at
	conf.UpdatedAt = at
	return nil
}

func (r *memConfirmationRepo) SetProfessionalConfirmation(ctx context.Context, id string, value models.TriState, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.byID[id]
	if !ok || conf.ProfessionalConfirmation != models.TriStateUnset {
		return settlementRepo.ErrConflict
	}
	conf.ProfessionalConfirmation = value
	conf.ProfessionalConfirmedAt = &at
	conf.UpdatedAt = at
	return nil
}

func statusIn(status models.ConfirmationStatus, from []models.ConfirmationStatus) bool {
	for _, s := range from {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memConfirmationRepo) SetFinalStatus(ctx context.Context, id string, from []models.ConfirmationStatus, to models.ConfirmationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.byID[id]
	if !ok || !statusIn(conf.FinalStatus, from) {
		return settlementRepo.ErrConflict
	}
	conf.FinalStatus = to
	conf.UpdatedAt = time.Now()
	return nil
}

func (r *memConfirmationRepo) OpenDispute(ctx context.Context, id string, from []models.ConfirmationStatus, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.byID[id]
	if !ok || !statusIn(conf.FinalStatus, from) {
		return settlementRepo.ErrConflict
	}
	conf.FinalStatus = models.ConfirmationDisputed
	conf.DisputeReason = reason
	conf.DisputeCreatedAt = &at
	conf.UpdatedAt = at
	return nil
}

func (r *memConfirmationRepo) ResolveDispute(ctx context.Context, id string, resolution models.DisputeResolution, to models.ConfirmationStatus, notes string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf, ok := r.byID[id]
	if !ok || conf.FinalStatus != models.ConfirmationDisputed {
		return settlementRepo.ErrConflict
	}
	conf.DisputeResolution = resolution
	conf.FinalStatus = to
	conf.DisputeNotes = notes
	conf.DisputeResolvedAt = &at
	conf.UpdatedAt = at
	return nil
}

func (r *memConfirmationRepo) ListAwaitingResponseBefore(ctx context.Context, cutoff time.Time) ([]models.AppointmentConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	awaiting := []models.ConfirmationStatus{
		models.ConfirmationPending,
		models.ConfirmationClientConfirmed,
		models.ConfirmationProfessionalConfirmed,
	}
	var out []models.AppointmentConfirmation
	for _, conf := range r.byID {
		if statusIn(conf.FinalStatus, awaiting) && conf.CreatedAt.Before(cutoff) {
			out = append(out, *conf)
		}
	}
	return out, nil
}

func (r *memConfirmationRepo) ListByProfessional(ctx context.Context, professionalID string) ([]models.AppointmentConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AppointmentConfirmation
	for _, conf := range r.byID {
		if conf.ProfessionalID == professionalID {
			out = append(out, *conf)
		}
	}
	return out, nil
}

type memEarningRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.Earning
	byAppt map[string]string
}

func newMemEarningRepo() *memEarningRepo {
	return &memEarningRepo{
		byID:   make(map[string]*models.Earning),
		byAppt: make(map[string]string),
	}
}

func (r *memEarningRepo) Insert(ctx context.Context, earning *models.Earning) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAppt[earning.AppointmentID]; ok {
		return settlementRepo.ErrDuplicate
	}
	cp := *earning
	r.byID[earning.ID] = &cp
	r.byAppt[earning.AppointmentID] = earning.ID
	return nil
}

func (r *memEarningRepo) GetByID(ctx context.Context, id string) (*models.Earning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEarningRepo) GetByAppointmentID(ctx context.Context, appointmentID string) (*models.Earning, error) {
	r.mu.Lock()
	id, ok := r.byAppt[appointmentID]
	r.mu.Unlock()
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func earningStatusIn(status models.EarningStatus, statuses []models.EarningStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memEarningRepo) ListByProfessionalCycle(ctx context.Context, professionalID, cycleID string, statuses ...models.EarningStatus) ([]models.Earning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Earning
	for _, e := range r.byID {
		if e.ProfessionalID != professionalID || e.CycleID != cycleID {
			continue
		}
		if len(statuses) > 0 && !earningStatusIn(e.Status, statuses) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (r *memEarningRepo) ListByProfessional(ctx context.Context, professionalID string) ([]models.Earning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Earning
	for _, e := range r.byID {
		if e.ProfessionalID == professionalID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memEarningRepo) DistinctProfessionalsByCycle(ctx context.Context, cycleID string, status models.EarningStatus) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.byID {
		if e.CycleID == cycleID && e.Status == status && !seen[e.ProfessionalID] {
			seen[e.ProfessionalID] = true
			out = append(out, e.ProfessionalID)
		}
	}
	return out, nil
}

func (r *memEarningRepo) CountByCycle(ctx context.Context, cycleID string, statuses ...models.EarningStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.byID {
		if e.CycleID == cycleID && earningStatusIn(e.Status, statuses) {
			n++
		}
	}
	return n, nil
}

func (r *memEarningRepo) TotalsByProfessionalCycle(ctx context.Context, professionalID, cycleID string, status models.EarningStatus) (*settlementRepo.EarningTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := &settlementRepo.EarningTotals{}
	for _, e := range r.byID {
		if e.ProfessionalID != professionalID || e.CycleID != cycleID || e.Status != status {
			continue
		}
		totals.Gross += e.GrossAmount
		totals.Fee += e.PlatformFee
		totals.Net += e.NetAmount
		totals.Count++
		totals.EarningIDs = append(totals.EarningIDs, e.ID)
	}
	return totals, nil
}

func (r *memEarningRepo) Transition(ctx context.Context, id string, from []models.EarningStatus, to models.EarningStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok || !earningStatusIn(e.Status, from) {
		return settlementRepo.ErrConflict
	}
	e.Status = to
	e.UpdatedAt = time.Now()
	return nil
}

func (r *memEarningRepo) MarkCharged(ctx context.Context, ids []string, feeChargeID string) (int64, error) {
	return r.markBulk(ids, models.EarningConfirmed, models.EarningCharged, func(e *models.Earning) {
		e.FeeChargeID = feeChargeID
	})
}

func (r *memEarningRepo) MarkPaid(ctx context.Context, ids []string, payoutID string) (int64, error) {
	return r.markBulk(ids, models.EarningCharged, models.EarningPaid, func(e *models.Earning) {
		e.PayoutID = payoutID
	})
}

func (r *memEarningRepo) markBulk(ids []string, from, to models.EarningStatus, set func(*models.Earning)) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		e, ok := r.byID[id]
		if !ok || e.Status != from {
			continue
		}
		e.Status = to
		set(e)
		e.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

type memCycleRepo struct {
	mu   sync.Mutex
	byID map[string]*models.PayoutCycle
}

func newMemCycleRepo() *memCycleRepo {
	return &memCycleRepo{byID: make(map[string]*models.PayoutCycle)}
}

func (r *memCycleRepo) Insert(ctx context.Context, cycle *models.PayoutCycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.StartDate.Equal(cycle.StartDate) {
			return settlementRepo.ErrDuplicate
		}
	}
	cp := *cycle
	r.byID[cycle.ID] = &cp
	return nil
}

func (r *memCycleRepo) GetByID(ctx context.Context, id string) (*models.PayoutCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCycleRepo) FindCovering(ctx context.Context, date time.Time) (*models.PayoutCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.Covers(date) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, settlementRepo.ErrNotFound
}

func (r *memCycleRepo) ListOpenPastCutoff(ctx context.Context, now time.Time) ([]models.PayoutCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PayoutCycle
	for _, c := range r.byID {
		if c.Status == models.CycleOpen && !c.CutoffAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memCycleRepo) ListByStatus(ctx context.Context, status models.CycleStatus) ([]models.PayoutCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PayoutCycle
	for _, c := range r.byID {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memCycleRepo) Transition(ctx context.Context, id string, from, to models.CycleStatus, processedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.Status != from {
		return settlementRepo.ErrConflict
	}
	c.Status = to
	if processedAt != nil {
		c.ProcessedAt = processedAt
	}
	c.UpdatedAt = time.Now()
	return nil
}

type memFeeChargeRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.FeeCharge
	byPair map[string]string
}

func newMemFeeChargeRepo() *memFeeChargeRepo {
	return &memFeeChargeRepo{
		byID:   make(map[string]*models.FeeCharge),
		byPair: make(map[string]string),
	}
}

func pairKey(professionalID, cycleID string) string {
	return professionalID + "|" + cycleID
}

func (r *memFeeChargeRepo) Insert(ctx context.Context, charge *models.FeeCharge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(charge.ProfessionalID, charge.CycleID)
	if _, ok := r.byPair[key]; ok {
		return settlementRepo.ErrDuplicate
	}
	cp := *charge
	r.byID[charge.ID] = &cp
	r.byPair[key] = charge.ID
	return nil
}

func (r *memFeeChargeRepo) GetByID(ctx context.Context, id string) (*models.FeeCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memFeeChargeRepo) GetByPair(ctx context.Context, professionalID, cycleID string) (*models.FeeCharge, error) {
	r.mu.Lock()
	id, ok := r.byPair[pairKey(professionalID, cycleID)]
	r.mu.Unlock()
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func feeStatusIn(status models.FeeChargeStatus, statuses []models.FeeChargeStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memFeeChargeRepo) ListByCycle(ctx context.Context, cycleID string, statuses ...models.FeeChargeStatus) ([]models.FeeCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeeCharge
	for _, c := range r.byID {
		if c.CycleID != cycleID {
			continue
		}
		if len(statuses) > 0 && !feeStatusIn(c.Status, statuses) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *memFeeChargeRepo) ListDueRetries(ctx context.Context, now time.Time) ([]models.FeeCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeeCharge
	for _, c := range r.byID {
		if c.Status == models.FeeChargePending && c.NextRetryAt != nil && !c.NextRetryAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memFeeChargeRepo) ClaimAttempt(ctx context.Context, id string, fromAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.Attempts != fromAttempts || c.Status != models.FeeChargePending {
		return settlementRepo.ErrConflict
	}
	c.Attempts++
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memFeeChargeRepo) MarkSucceeded(ctx context.Context, id, gatewayRef string, amount float64) error {
	return r.finalize(id, func(c *models.FeeCharge) {
		c.Status = models.FeeChargeSucceeded
		c.GatewayRef = gatewayRef
		c.Amount = amount
		c.FailureReason = ""
	})
}

func (r *memFeeChargeRepo) MarkWaived(ctx context.Context, id string) error {
	return r.finalize(id, func(c *models.FeeCharge) {
		c.Status = models.FeeChargeWaived
		c.FailureReason = ""
	})
}

func (r *memFeeChargeRepo) finalize(id string, set func(*models.FeeCharge)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || (c.Status != models.FeeChargePending && c.Status != models.FeeChargeFailed) {
		return settlementRepo.ErrConflict
	}
	set(c)
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memFeeChargeRepo) RecordFailure(ctx context.Context, id string, reason string, nextRetryAt *time.Time, final bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.Status != models.FeeChargePending {
		return settlementRepo.ErrConflict
	}
	c.FailureReason = reason
	if final {
		c.Status = models.FeeChargeFailed
		c.NextRetryAt = nil
	} else if nextRetryAt != nil {
		c.NextRetryAt = nextRetryAt
	}
	c.UpdatedAt = time.Now()
	return nil
}

type memPayoutRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.Payout
	byPair map[string]string
}

func newMemPayoutRepo() *memPayoutRepo {
	return &memPayoutRepo{
		byID:   make(map[string]*models.Payout),
		byPair: make(map[string]string),
	}
}

func (r *memPayoutRepo) Insert(ctx context.Context, payout *models.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(payout.ProfessionalID, payout.CycleID)
	if _, ok := r.byPair[key]; ok {
		return settlementRepo.ErrDuplicate
	}
	cp := *payout
	r.byID[payout.ID] = &cp
	r.byPair[key] = payout.ID
	return nil
}

func (r *memPayoutRepo) GetByID(ctx context.Context, id string) (*models.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPayoutRepo) GetByPair(ctx context.Context, professionalID, cycleID string) (*models.Payout, error) {
	r.mu.Lock()
	id, ok := r.byPair[pairKey(professionalID, cycleID)]
	r.mu.Unlock()
	if !ok {
		return nil, settlementRepo.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func payoutStatusIn(status models.PayoutStatus, statuses []models.PayoutStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memPayoutRepo) ListByCycle(ctx context.Context, cycleID string, statuses ...models.PayoutStatus) ([]models.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payout
	for _, p := range r.byID {
		if p.CycleID != cycleID {
			continue
		}
		if len(statuses) > 0 && !payoutStatusIn(p.Status, statuses) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memPayoutRepo) Transition(ctx context.Context, id string, from []models.PayoutStatus, to models.PayoutStatus, update settlementRepo.PayoutUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || !payoutStatusIn(p.Status, from) {
		return settlementRepo.ErrConflict
	}
	p.Status = to
	if update.TransferRef != "" {
		p.TransferRef = update.TransferRef
	}
	if update.FailureReason != "" {
		p.FailureReason = update.FailureReason
	}
	if update.ProcessedAt != nil {
		p.ProcessedAt = update.ProcessedAt
	}
	p.UpdatedAt = time.Now()
	return nil
}

// memAppointments serves canned appointments and records slot restores.

type memAppointments struct {
	mu       sync.Mutex
	byID     map[string]*models.CompletedAppointment
	restored []string
}

func newMemAppointments(appts ...*models.CompletedAppointment) *memAppointments {
	m := &memAppointments{byID: make(map[string]*models.CompletedAppointment)}
	for _, a := range appts {
		m.byID[a.ID] = a
	}
	return m
}

func (m *memAppointments) GetAppointment(ctx context.Context, appointmentID string) (*models.CompletedAppointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[appointmentID]
	if !ok {
		return nil, fmt.Errorf("appointment %s not found", appointmentID)
	}
	cp := *a
	return &cp, nil
}

func (m *memAppointments) ListCompletedWithoutConfirmation(ctx context.Context, endedBefore time.Time, limit int64) ([]models.CompletedAppointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CompletedAppointment
	for _, a := range m.byID {
		if a.Status == models.AppointmentCompleted && a.EndTime.Before(endedBefore) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAppointments) RestoreSlot(ctx context.Context, professionalID, dayOfWeek string, startMinute int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = append(m.restored, fmt.Sprintf("%s/%s/%d", professionalID, dayOfWeek, startMinute))
	return nil
}

// scriptedGateway fails the first N calls of each kind, then succeeds. It
// remembers references per idempotency key like a real gateway would.

type scriptedGateway struct {
	mu            sync.Mutex
	failCharges   int
	failTransfers int
	chargeCalls   int
	transferCalls int
	refs          map[string]string
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{refs: make(map[string]string)}
}

func (g *scriptedGateway) ChargeFee(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeCalls++
	if g.failCharges > 0 {
		g.failCharges--
		return "", fmt.Errorf("card declined")
	}
	if ref, ok := g.refs[idempotencyKey]; ok {
		return ref, nil
	}
	ref := fmt.Sprintf("ch_%d", len(g.refs)+1)
	g.refs[idempotencyKey] = ref
	return ref, nil
}

func (g *scriptedGateway) Transfer(ctx context.Context, professionalID string, amount float64, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferCalls++
	if g.failTransfers > 0 {
		g.failTransfers--
		return "", fmt.Errorf("bank account closed")
	}
	if ref, ok := g.refs[idempotencyKey]; ok {
		return ref, nil
	}
	ref := fmt.Sprintf("tr_%d", len(g.refs)+1)
	g.refs[idempotencyKey] = ref
	return ref, nil
}

// capturingEmitter records emitted events for assertions.

type capturingEmitter struct {
	mu     sync.Mutex
	events []models.SettlementEvent
}

func (e *capturingEmitter) Emit(ctx context.Context, event models.SettlementEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *capturingEmitter) byType(t models.SettlementEventType) []models.SettlementEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.SettlementEvent
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// staticFeeSource serves a fixed percent.

type staticFeeSource struct{ percent float64 }

func (s staticFeeSource) FeePercent(ctx context.Context) (float64, error) {
	return s.percent, nil
}
