package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/gateway"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/notify"
)

// memDB хранилище в памяти с теми же условными обновлениями, что и в Postgres.
// WithinTx откатывает все изменения, если fn вернула ошибку.
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	now    func() time.Time
	nextID int64

	slots       map[int64]model.TimeSlot
	requests    map[int64]model.BookingRequest
	sessions    map[int64]model.Session
	attendances map[[2]int64]model.Attendance
	earnings    map[int64]model.EarningRecord
	payments    map[string]model.PaymentRecord
	courses     map[int64]model.Course
	schedules   map[int64]model.RecurringSchedule
	seriesDates map[[2]int64]int64

	earningCreateErr error
}

type memTxKey struct{}

func newMemDB(now func() time.Time) *memDB {
	return &memDB{
		now:         now,
		slots:       map[int64]model.TimeSlot{},
		requests:    map[int64]model.BookingRequest{},
		sessions:    map[int64]model.Session{},
		attendances: map[[2]int64]model.Attendance{},
		earnings:    map[int64]model.EarningRecord{},
		payments:    map[string]model.PaymentRecord{},
		courses:     map[int64]model.Course{},
		schedules:   map[int64]model.RecurringSchedule{},
		seriesDates: map[[2]int64]int64{},
	}
}

type memSnapshot struct {
	nextID      int64
	slots       map[int64]model.TimeSlot
	requests    map[int64]model.BookingRequest
	sessions    map[int64]model.Session
	attendances map[[2]int64]model.Attendance
	earnings    map[int64]model.EarningRecord
	payments    map[string]model.PaymentRecord
	schedules   map[int64]model.RecurringSchedule
	seriesDates map[[2]int64]int64
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snap := memSnapshot{
		nextID:      db.nextID,
		slots:       cloneMap(db.slots),
		requests:    cloneMap(db.requests),
		sessions:    cloneMap(db.sessions),
		attendances: cloneMap(db.attendances),
		earnings:    cloneMap(db.earnings),
		payments:    cloneMap(db.payments),
		schedules:   cloneMap(db.schedules),
		seriesDates: cloneMap(db.seriesDates),
	}
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		db.mu.Lock()
		db.nextID = snap.nextID
		db.slots = snap.slots
		db.requests = snap.requests
		db.sessions = snap.sessions
		db.attendances = snap.attendances
		db.earnings = snap.earnings
		db.payments = snap.payments
		db.schedules = snap.schedules
		db.seriesDates = snap.seriesDates
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// --- slots

type memSlots struct{ db *memDB }

func (s memSlots) Create(_ context.Context, slot *model.TimeSlot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot.ID = s.db.id()
	slot.CreatedAt = s.db.now()
	s.db.slots[slot.ID] = *slot
	return nil
}

func (s memSlots) GetByID(_ context.Context, id int64) (*model.TimeSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (s memSlots) ListAvailable(_ context.Context, providerID int64, today time.Time, nowClock time.Duration) ([]*model.TimeSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.TimeSlot
	for _, slot := range s.db.slots {
		if slot.ProviderID != providerID || slot.Status != model.SlotStatusAvailable {
			continue
		}
		if slot.Date.Before(today) || (slot.Date.Equal(today) && slot.StartTime <= nowClock) {
			continue
		}
		slot := slot
		out = append(out, &slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s memSlots) Reserve(_ context.Context, slotID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[slotID]
	if !ok || slot.Status != model.SlotStatusAvailable || slot.BookedCount >= slot.Capacity {
		return false, nil
	}
	slot.BookedCount++
	if slot.Capacity == 1 {
		slot.Status = model.SlotStatusBooked
	}
	s.db.slots[slotID] = slot
	return true, nil
}

func (s memSlots) Release(_ context.Context, slotID int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[slotID]
	if !ok || slot.BookedCount <= 0 {
		return false, nil
	}
	slot.BookedCount--
	if slot.Capacity == 1 && slot.Status == model.SlotStatusBooked {
		slot.Status = model.SlotStatusAvailable
	}
	s.db.slots[slotID] = slot
	return true, nil
}

func (s memSlots) UpdateStatus(_ context.Context, slotID int64, from, to model.SlotStatus) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[slotID]
	if !ok || slot.Status != from {
		return false, nil
	}
	slot.Status = to
	s.db.slots[slotID] = slot
	return true, nil
}

func (s memSlots) ExpireBefore(_ context.Context, date time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, slot := range s.db.slots {
		if slot.Status == model.SlotStatusAvailable && slot.Date.Before(date) {
			slot.Status = model.SlotStatusExpired
			s.db.slots[id] = slot
			n++
		}
	}
	return n, nil
}

// --- booking requests

type memRequests struct{ db *memDB }

func (s memRequests) Create(_ context.Context, req *model.BookingRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req.ID = s.db.id()
	req.CreatedAt = s.db.now()
	req.UpdatedAt = req.CreatedAt
	s.db.requests[req.ID] = *req
	return nil
}

func (s memRequests) GetByID(_ context.Context, id int64) (*model.BookingRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req, ok := s.db.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (s memRequests) filter(keep func(model.BookingRequest) bool) []*model.BookingRequest {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.BookingRequest
	for _, req := range s.db.requests {
		if keep(req) {
			req := req
			out = append(out, &req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memRequests) ListByProvider(_ context.Context, providerID int64, status model.BookingStatus) ([]*model.BookingRequest, error) {
	return s.filter(func(r model.BookingRequest) bool {
		return r.ProviderID == providerID && r.Status == status
	}), nil
}

func (s memRequests) ListByRequester(_ context.Context, requesterID int64) ([]*model.BookingRequest, error) {
	return s.filter(func(r model.BookingRequest) bool { return r.RequesterID == requesterID }), nil
}

func (s memRequests) ListUnpaidHolds(_ context.Context, before time.Time) ([]*model.BookingRequest, error) {
	return s.filter(func(r model.BookingRequest) bool {
		return (r.Status == model.BookingStatusDraft || r.Status == model.BookingStatusAwaitingPayment) &&
			r.PaymentStatus != model.PaymentStatusPaid &&
			r.SlotReserved &&
			r.UpdatedAt.Before(before)
	}), nil
}

func (s memRequests) UpdateState(_ context.Context, id int64, from, to model.RequestState) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req, ok := s.db.requests[id]
	if !ok || req.State() != from {
		return false, nil
	}
	req.Apply(to)
	req.UpdatedAt = s.db.now()
	s.db.requests[id] = req
	return true, nil
}

// --- sessions

type memSessions struct{ db *memDB }

var errMemDuplicateSession = errors.New("duplicate session for booking request")

func (s memSessions) Create(_ context.Context, session *model.Session) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.sessions {
		if existing.BookingRequestID == session.BookingRequestID {
			return errMemDuplicateSession
		}
	}
	session.ID = s.db.id()
	session.CreatedAt = s.db.now()
	s.db.sessions[session.ID] = *session
	return nil
}

func (s memSessions) GetByID(_ context.Context, id int64) (*model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	session, ok := s.db.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s memSessions) GetByBookingRequest(_ context.Context, requestID int64) (*model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, session := range s.db.sessions {
		if session.BookingRequestID == requestID {
			return &session, nil
		}
	}
	return nil, nil
}

func (s memSessions) ListByProvider(_ context.Context, providerID int64, from, to time.Time) ([]*model.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.Session
	for _, session := range s.db.sessions {
		if session.ProviderID == providerID && !session.StartTime.Before(from) && session.StartTime.Before(to) {
			session := session
			out = append(out, &session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s memSessions) UpdateStatus(_ context.Context, id int64, from, to model.SessionStatus, at time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	session, ok := s.db.sessions[id]
	if !ok || session.Status != from {
		return false, nil
	}
	session.Status = to
	if to == model.SessionStatusInProgress {
		session.StartedAt = &at
	} else {
		session.EndedAt = &at
	}
	s.db.sessions[id] = session
	return true, nil
}

func (s memSessions) SetMeetingRef(_ context.Context, id int64, ref string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	session, ok := s.db.sessions[id]
	if !ok || session.MeetingRef != nil {
		return false, nil
	}
	session.MeetingRef = &ref
	s.db.sessions[id] = session
	return true, nil
}

// --- attendances

type memAttendances struct{ db *memDB }

func (s memAttendances) Create(_ context.Context, a *model.Attendance) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.attendances[[2]int64{a.SessionID, a.RequesterID}] = *a
	return nil
}

func (s memAttendances) Get(_ context.Context, sessionID, requesterID int64) (*model.Attendance, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.attendances[[2]int64{sessionID, requesterID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s memAttendances) ListBySession(_ context.Context, sessionID int64) ([]*model.Attendance, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.Attendance
	for key, a := range s.db.attendances {
		if key[0] == sessionID {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (s memAttendances) MarkJoined(_ context.Context, sessionID, requesterID int64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := [2]int64{sessionID, requesterID}
	a, ok := s.db.attendances[key]
	if !ok || a.JoinedAt != nil {
		return nil
	}
	a.JoinedAt = &at
	s.db.attendances[key] = a
	return nil
}

// --- earnings

type memEarnings struct{ db *memDB }

func (s memEarnings) Create(_ context.Context, e *model.EarningRecord) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.earningCreateErr != nil {
		return s.db.earningCreateErr
	}
	e.ID = s.db.id()
	e.CreatedAt = s.db.now()
	s.db.earnings[e.ID] = *e
	return nil
}

func (s memEarnings) GetBySession(_ context.Context, sessionID int64) (*model.EarningRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, e := range s.db.earnings {
		if e.SessionID == sessionID {
			return &e, nil
		}
	}
	return nil, nil
}

func (s memEarnings) ListByProvider(_ context.Context, providerID int64) ([]*model.EarningRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.EarningRecord
	for _, e := range s.db.earnings {
		if e.ProviderID == providerID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- payments

type memPayments struct{ db *memDB }

func (s memPayments) Create(_ context.Context, p *model.PaymentRecord) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.payments[p.GatewayOrderID]; ok {
		return fmt.Errorf("duplicate gateway order %s", p.GatewayOrderID)
	}
	p.ID = s.db.id()
	p.CreatedAt = s.db.now()
	p.UpdatedAt = p.CreatedAt
	s.db.payments[p.GatewayOrderID] = *p
	return nil
}

func (s memPayments) GetByOrderID(_ context.Context, orderID string) (*model.PaymentRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s memPayments) GetLatestByBookingRequest(_ context.Context, requestID int64) (*model.PaymentRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var latest *model.PaymentRecord
	for _, p := range s.db.payments {
		if p.BookingRequestID != requestID {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			p := p
			latest = &p
		}
	}
	return latest, nil
}

func (s memPayments) ListPending(_ context.Context, before time.Time) ([]*model.PaymentRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range s.db.payments {
		if p.Status == model.PaymentRecordPending && p.CreatedAt.Before(before) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memPayments) UpdateStatus(_ context.Context, orderID string, from, to model.PaymentRecordStatus) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[orderID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = s.db.now()
	s.db.payments[orderID] = p
	return true, nil
}

// --- courses

type memCourses struct{ db *memDB }

func (s memCourses) GetByID(_ context.Context, id int64) (*model.Course, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// --- collaborators

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	orders    map[string]string
	created   int
	statusErr error
	createErr error
	// initial статус новых заказов
	initial string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]string{}, initial: gateway.StatusPending}
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	g.created++
	id := fmt.Sprintf("chrg_test_%d", g.seq)
	g.orders[id] = g.initial
	return &gateway.Order{ID: id, SessionToken: "https://pay.example/" + id, Status: g.initial}, nil
}

func (g *fakeGateway) GetOrderStatus(_ context.Context, orderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	status, ok := g.orders[orderID]
	if !ok {
		return "", fmt.Errorf("order %s not found", orderID)
	}
	return status, nil
}

func (g *fakeGateway) ParseWebhook(_ context.Context, payload []byte) (*gateway.WebhookEvent, error) {
	var ev gateway.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidRequest, err)
	}
	return &ev, nil
}

func (g *fakeGateway) set(orderID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[orderID] = status
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) count(event notify.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.msgs {
		if m.Event == event {
			c++
		}
	}
	return c
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// --- recurring schedules

type memSchedules struct{ db *memDB }

func (s memSchedules) Create(_ context.Context, sch *model.RecurringSchedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sch.ID = s.db.id()
	sch.CreatedAt = s.db.now()
	sch.UpdatedAt = sch.CreatedAt
	s.db.schedules[sch.ID] = *sch
	return nil
}

func (s memSchedules) GetByID(_ context.Context, id int64) (*model.RecurringSchedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sch, ok := s.db.schedules[id]
	if !ok {
		return nil, nil
	}
	return &sch, nil
}

func (s memSchedules) ListByProvider(_ context.Context, providerID int64) ([]*model.RecurringSchedule, error) {
	return s.list(func(sch model.RecurringSchedule) bool { return sch.ProviderID == providerID })
}

func (s memSchedules) ListActive(_ context.Context) ([]*model.RecurringSchedule, error) {
	return s.list(func(sch model.RecurringSchedule) bool { return sch.IsActive })
}

func (s memSchedules) list(keep func(model.RecurringSchedule) bool) ([]*model.RecurringSchedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*model.RecurringSchedule
	for _, sch := range s.db.schedules {
		if keep(sch) {
			sch := sch
			out = append(out, &sch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memSchedules) Deactivate(_ context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sch, ok := s.db.schedules[id]
	if !ok || !sch.IsActive {
		return false, nil
	}
	sch.IsActive = false
	s.db.schedules[id] = sch
	return true, nil
}

func (s memSchedules) CreateSlot(_ context.Context, scheduleID int64, slot *model.TimeSlot) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := [2]int64{scheduleID, slot.Date.Unix()}
	if _, ok := s.db.seriesDates[key]; ok {
		return false, nil
	}
	slot.ID = s.db.id()
	slot.CreatedAt = s.db.now()
	s.db.slots[slot.ID] = *slot
	s.db.seriesDates[key] = slot.ID
	return true, nil
}
