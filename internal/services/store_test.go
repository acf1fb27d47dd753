package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"booking-engine/internal/status"
	"booking-engine/models"

	"github.com/shopspring/decimal"
)

type holdKey struct {
	kind  models.Kind
	scope string
	unit  string
}

// memStore is an in-memory Store with snapshot rollback.
type memStore struct {
	mu         sync.Mutex
	bookings   map[string]*models.Booking
	holds      map[holdKey]string
	attendance map[string]map[string]models.AttendanceRecord
	audit      []models.AuditEntry

	// failAttendanceAfter makes the n-th SaveAttendance (1-based) fail.
	failAttendanceAfter int
	attendanceSaves     int
	failHold            error
}

func newMemStore() *memStore {
	return &memStore{
		bookings:   map[string]*models.Booking{},
		holds:      map[holdKey]string{},
		attendance: map[string]map[string]models.AttendanceRecord{},
	}
}

func (s *memStore) addBooking(b *models.Booking) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b.Clone()
	return b
}

func (s *memStore) hold(kind models.Kind, scope, unit, bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[holdKey{kind, scope, unit}] = bookingID
}

func (s *memStore) holder(kind models.Kind, scope, unit string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds[holdKey{kind, scope, unit}]
}

func (s *memStore) booking(id string) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil
	}
	return b.Clone()
}

func (s *memStore) unitStatus(bookingID, unit string) models.AttendanceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attendance[bookingID][unit].Status
}

func (s *memStore) auditActions() []models.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditAction, 0, len(s.audit))
	for _, e := range s.audit {
		out = append(out, e.Action)
	}
	return out
}

func (s *memStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Booking
	for _, b := range s.bookings {
		if filter.Kind != "" && b.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && b.EventDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && b.EventDate.After(filter.To) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type memSnapshot struct {
	bookings   map[string]*models.Booking
	holds      map[holdKey]string
	attendance map[string]map[string]models.AttendanceRecord
	audit      int
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		bookings:   make(map[string]*models.Booking, len(s.bookings)),
		holds:      make(map[holdKey]string, len(s.holds)),
		attendance: make(map[string]map[string]models.AttendanceRecord, len(s.attendance)),
		audit:      len(s.audit),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v.Clone()
	}
	for k, v := range s.holds {
		snap.holds[k] = v
	}
	for k, recs := range s.attendance {
		cp := make(map[string]models.AttendanceRecord, len(recs))
		for u, r := range recs {
			cp[u] = r
		}
		snap.attendance[k] = cp
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.bookings = snap.bookings
	s.holds = snap.holds
	s.attendance = snap.attendance
	s.audit = s.audit[:snap.audit]
}

type memTx struct {
	s *memStore
}

func (t *memTx) GetBooking(id string) (*models.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, status.NotFound("booking %s", id)
	}
	return b.Clone(), nil
}

func (t *memTx) SaveBooking(b *models.Booking) error {
	t.s.bookings[b.ID] = b.Clone()
	return nil
}

func (t *memTx) DeleteBooking(id string) error {
	if _, ok := t.s.bookings[id]; !ok {
		return status.NotFound("booking %s", id)
	}
	delete(t.s.bookings, id)
	return nil
}

func (t *memTx) HoldOf(kind models.Kind, scope, unitID string) (string, error) {
	if t.s.failHold != nil {
		return "", t.s.failHold
	}
	return t.s.holds[holdKey{kind, scope, unitID}], nil
}

func (t *memTx) DeleteHold(kind models.Kind, scope, unitID string) error {
	delete(t.s.holds, holdKey{kind, scope, unitID})
	return nil
}

func (t *memTx) ListAttendance(bookingID string) ([]models.AttendanceRecord, error) {
	recs := t.s.attendance[bookingID]
	out := make([]models.AttendanceRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out, nil
}

func (t *memTx) SaveAttendance(rec models.AttendanceRecord) error {
	t.s.attendanceSaves++
	if t.s.failAttendanceAfter > 0 && t.s.attendanceSaves >= t.s.failAttendanceAfter {
		return errors.New("attendance write failed")
	}
	if t.s.attendance[rec.BookingID] == nil {
		t.s.attendance[rec.BookingID] = map[string]models.AttendanceRecord{}
	}
	t.s.attendance[rec.BookingID][rec.UnitID] = rec
	return nil
}

func (t *memTx) DeleteAttendance(bookingID string) error {
	delete(t.s.attendance, bookingID)
	return nil
}

func (t *memTx) AppendAudit(entry models.AuditEntry) error {
	t.s.audit = append(t.s.audit, entry)
	return nil
}

// fixture helpers

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

var (
	admin      = models.NewActor("adm1", "Asha", models.RoleAdmin)
	superAdmin = models.NewActor("adm0", "Ravi", models.RoleSuperAdmin,
		models.CapabilityUndoParticipation, models.CapabilityHardDelete)
)

func newBooking(id string, kind models.Kind, st models.Status, units ...string) *models.Booking {
	return &models.Booking{
		ID:                 id,
		Kind:               kind,
		Status:             st,
		Units:              units,
		Scope:              "2026-03-15",
		EventDate:          time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC),
		Amount:             decimal.NewFromInt(100),
		CancellationStatus: models.CancellationNone,
		CreatedAt:          testNow.Add(-48 * time.Hour),
		UpdatedAt:          testNow.Add(-48 * time.Hour),
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, entry models.AuditEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entry)
	return nil
}

type recordingMirror struct {
	cleared []string
	err     error
}

func (m *recordingMirror) ClearUnits(ctx context.Context, kind models.Kind, scope, bookingID string, units []string) error {
	m.cleared = append(m.cleared, units...)
	return m.err
}

type engine struct {
	store      *memStore
	publisher  *recordingPublisher
	mirror     *recordingMirror
	ledger     *InventoryLedger
	attendance *AttendanceTracker
	lifecycle  *LifecycleController
	checkin    *CheckInService
}

func newEngine() *engine {
	store := newMemStore()
	pub := &recordingPublisher{}
	mirror := &recordingMirror{}
	deps := Deps{Store: store, Publisher: pub, Now: fixedNow}

	ledger := NewInventoryLedger(store, mirror, nil, nil)
	attendance := NewAttendanceTracker(deps)
	lifecycle := NewLifecycleController(deps, ledger, attendance)
	return &engine{
		store:      store,
		publisher:  pub,
		mirror:     mirror,
		ledger:     ledger,
		attendance: attendance,
		lifecycle:  lifecycle,
		checkin:    NewCheckInService(attendance, lifecycle, nil),
	}
}
