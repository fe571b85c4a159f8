package admissionservice

import (
	"context"
	"sync"
	"time"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
	"github.com/crowdlunch/admission/internal/shared/contracts"
)

// fakeClock pins "now" so boundary instants are exact.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeStore is an in-memory stand-in for the Postgres layer. WithinTx holds
// one mutex for the whole transaction and restores a snapshot on error, so
// transactions are serialized and roll back exactly like the real unit of
// work — which is what the concurrency tests lean on.
type fakeStore struct {
	mu       sync.Mutex
	menus    map[int64]*admission.MenuItem
	slots    map[int64]*admission.TimeSlot
	orders   []*admission.Order
	counters map[string]int

	nextOrderID int64
	nextSlotID  int64

	// txErr makes every transaction fail, standing in for an unreachable
	// database.
	txErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		menus:       make(map[int64]*admission.MenuItem),
		slots:       make(map[int64]*admission.TimeSlot),
		counters:    make(map[string]int),
		nextOrderID: 1,
		nextSlotID:  1,
	}
}

func (s *fakeStore) addMenu(item admission.MenuItem) {
	s.menus[item.ID] = &item
}

func (s *fakeStore) addSlot(slot admission.TimeSlot) int64 {
	slot.ID = s.nextSlotID
	s.nextSlotID++
	s.slots[slot.ID] = &slot
	return slot.ID
}

type storeSnapshot struct {
	menus    map[int64]*admission.MenuItem
	slots    map[int64]*admission.TimeSlot
	orderLen int
	counters map[string]int
}

func (s *fakeStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		menus:    make(map[int64]*admission.MenuItem, len(s.menus)),
		slots:    make(map[int64]*admission.TimeSlot, len(s.slots)),
		orderLen: len(s.orders),
		counters: make(map[string]int, len(s.counters)),
	}
	for id, m := range s.menus {
		cp := *m
		if m.StockQuantity != nil {
			v := *m.StockQuantity
			cp.StockQuantity = &v
		}
		if m.DailyLimit != nil {
			v := *m.DailyLimit
			cp.DailyLimit = &v
		}
		snap.menus[id] = &cp
	}
	for id, sl := range s.slots {
		cp := *sl
		snap.slots[id] = &cp
	}
	for k, v := range s.counters {
		snap.counters[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.menus = snap.menus
	s.slots = snap.slots
	s.orders = s.orders[:snap.orderLen]
	s.counters = snap.counters
}

// WithinTx implements ports.UnitOfWork.
func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return s.txErr
	}
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- ports.OrderRepository ---

func (s *fakeStore) NextDaySeq(_ context.Context, date admission.ServiceDate) (int, error) {
	s.counters[date.String()]++
	return s.counters[date.String()], nil
}

func (s *fakeStore) CreateOrder(_ context.Context, o *admission.Order) error {
	o.ID = s.nextOrderID
	s.nextOrderID++
	o.CreatedAt = time.Now()
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	s.orders = append(s.orders, o)
	return nil
}

// --- ports.SlotRepository ---

func (s *fakeStore) EnsureGenerated(_ context.Context, date admission.ServiceDate) ([]admission.TimeSlot, error) {
	var existing []admission.TimeSlot
	for _, sl := range s.slots {
		if sl.ServeDate == date {
			existing = append(existing, *sl)
		}
	}
	if len(existing) == 0 {
		for _, sl := range admission.BuildSchedule(date) {
			sl.ID = s.nextSlotID
			s.nextSlotID++
			cp := sl
			s.slots[sl.ID] = &cp
			existing = append(existing, sl)
		}
	}
	return existing, nil
}

func (s *fakeStore) Get(_ context.Context, slotID int64) (*admission.TimeSlot, error) {
	sl, ok := s.slots[slotID]
	if !ok {
		return nil, nil
	}
	cp := *sl
	return &cp, nil
}

func (s *fakeStore) Reserve(_ context.Context, slotID int64) (bool, error) {
	sl, ok := s.slots[slotID]
	if !ok || sl.ReservedCount >= sl.MaxOrders {
		return false, nil
	}
	sl.ReservedCount++
	return true, nil
}

// --- ports.MenuRepository ---

func (s *fakeStore) GetItemForUpdate(_ context.Context, menuItemID int64, date admission.ServiceDate) (*admission.MenuItem, error) {
	m, ok := s.menus[menuItemID]
	if !ok || m.ServeDate != date {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) DailyConsumed(_ context.Context, menuItemID int64, date admission.ServiceDate) (int, error) {
	var used int
	for _, o := range s.orders {
		if o.ServeDate != date {
			continue
		}
		for _, it := range o.Items {
			if it.MenuItemID == menuItemID {
				used += it.Quantity
			}
		}
	}
	return used, nil
}

func (s *fakeStore) ConsumeStock(_ context.Context, menuItemID int64, qty int) (bool, error) {
	m, ok := s.menus[menuItemID]
	if !ok || m.StockQuantity == nil || *m.StockQuantity < qty {
		return false, nil
	}
	*m.StockQuantity -= qty
	m.IsAvailable = *m.StockQuantity > 0
	return true, nil
}

var (
	_ ports.UnitOfWork      = (*fakeStore)(nil)
	_ ports.OrderRepository = (*fakeStore)(nil)
	_ ports.SlotRepository  = (*fakeStore)(nil)
	_ ports.MenuRepository  = (*fakeStore)(nil)
)

// fakePublisher records published events and can be made to fail.
type fakePublisher struct {
	mu       sync.Mutex
	messages []contracts.OrderAdmittedMessage
	err      error
}

func (p *fakePublisher) PublishAdmitted(_ context.Context, msg contracts.OrderAdmittedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) published() []contracts.OrderAdmittedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.OrderAdmittedMessage(nil), p.messages...)
}
