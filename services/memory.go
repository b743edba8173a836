package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"food-ordering/models"
)

type cartKey struct {
	owner string
	item  int64
}

// MemoryCartStore is a process-local CartStore used with STORE=memory and in tests.
type MemoryCartStore struct {
	mu    sync.Mutex
	seq   int64
	lines map[cartKey]memoryLine
}

type memoryLine struct {
	line models.CartLine
	seq  int64
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{lines: make(map[cartKey]memoryLine)}
}

func (s *MemoryCartStore) Upsert(_ context.Context, line models.CartLine) (bool, error) {
	if err := checkLine("cart.upsert", line); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cartKey{owner: line.OwnerEmail, item: line.ItemNumber}
	if cur, ok := s.lines[k]; ok {
		s.lines[k] = memoryLine{line: line, seq: cur.seq}
		return false, nil
	}
	s.seq++
	s.lines[k] = memoryLine{line: line, seq: s.seq}
	return true, nil
}

func (s *MemoryCartStore) AdjustQuantity(_ context.Context, ownerEmail string, itemNumber int64, delta int64) (AdjustResult, error) {
	const op = "cart.adjust"
	if err := checkDelta(op, delta); err != nil {
		return AdjustResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := cartKey{owner: ownerEmail, item: itemNumber}
	cur, ok := s.lines[k]
	if !ok {
		return AdjustResult{}, NotFoundError(op, "cart item not found", ErrLineNotFound)
	}
	cur.line.Quantity += delta
	if cur.line.Quantity <= 0 {
		delete(s.lines, k)
		return AdjustResult{Quantity: 0, Removed: true}, nil
	}
	s.lines[k] = cur
	return AdjustResult{Quantity: cur.line.Quantity}, nil
}

func (s *MemoryCartStore) Remove(_ context.Context, ownerEmail string, itemNumber int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, cartKey{owner: ownerEmail, item: itemNumber})
	return nil
}

func (s *MemoryCartStore) ListByOwner(_ context.Context, ownerEmail string) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []memoryLine
	for k, l := range s.lines {
		if k.owner == ownerEmail {
			owned = append(owned, l)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].seq < owned[j].seq })

	lines := make([]models.CartLine, 0, len(owned))
	for _, l := range owned {
		lines = append(lines, l.line)
	}
	return lines, nil
}

func (s *MemoryCartStore) TotalQuantity(_ context.Context, ownerEmail string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for k, l := range s.lines {
		if k.owner == ownerEmail {
			total += l.line.Quantity
		}
	}
	return total, nil
}

func (s *MemoryCartStore) Clear(_ context.Context, ownerEmail string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k := range s.lines {
		if k.owner == ownerEmail {
			delete(s.lines, k)
			n++
		}
	}
	return n, nil
}

type MemoryFavoriteStore struct {
	mu      sync.Mutex
	seq     int64
	entries map[cartKey]int64
}

func NewMemoryFavoriteStore() *MemoryFavoriteStore {
	return &MemoryFavoriteStore{entries: make(map[cartKey]int64)}
}

func (s *MemoryFavoriteStore) Toggle(_ context.Context, ownerEmail string, itemNumber int64) (ToggleAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cartKey{owner: ownerEmail, item: itemNumber}
	if _, ok := s.entries[k]; ok {
		delete(s.entries, k)
		return FavoriteRemoved, nil
	}
	s.seq++
	s.entries[k] = s.seq
	return FavoriteAdded, nil
}

func (s *MemoryFavoriteStore) ListByOwner(_ context.Context, ownerEmail string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct{ item, seq int64 }
	var owned []entry
	for k, seq := range s.entries {
		if k.owner == ownerEmail {
			owned = append(owned, entry{item: k.item, seq: seq})
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].seq < owned[j].seq })

	items := make([]int64, 0, len(owned))
	for _, e := range owned {
		items = append(items, e.item)
	}
	return items, nil
}

type MemoryLedger struct {
	mu        sync.Mutex
	orders    []models.OrderRecord
	bySession map[string]int
	now       func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{bySession: make(map[string]int), now: time.Now}
}

func (l *MemoryLedger) Append(_ context.Context, order models.OrderRecord) (*models.OrderRecord, error) {
	const op = "ledger.append"
	if order.ExternalSessionID == "" {
		return nil, ValidationError(op, "external session id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.bySession[order.ExternalSessionID]; ok {
		return nil, PersistenceError(op, ErrDuplicateOrder)
	}
	order.ID = int64(len(l.orders) + 1)
	order.CreatedAt = l.now().UTC()
	order.LineItems = append([]models.OrderLine(nil), order.LineItems...)
	l.orders = append(l.orders, order)
	l.bySession[order.ExternalSessionID] = len(l.orders) - 1

	out := order
	return &out, nil
}

func (l *MemoryLedger) FindBySessionID(_ context.Context, sessionID string) (*models.OrderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	out := l.orders[i]
	return &out, nil
}

func (l *MemoryLedger) ListByOwner(_ context.Context, ownerEmail string) ([]models.OrderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders := []models.OrderRecord{}
	for i := len(l.orders) - 1; i >= 0; i-- {
		if l.orders[i].OwnerEmail == ownerEmail {
			orders = append(orders, l.orders[i])
		}
	}
	return orders, nil
}

func (l *MemoryLedger) AggregateRevenue(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, o := range l.orders {
		total += o.TotalAmount
	}
	return total, nil
}

// MemoryMenuCatalog serves a fixed item list.
type MemoryMenuCatalog struct {
	items []models.MenuItem
}

func NewMemoryMenuCatalog(items ...models.MenuItem) *MemoryMenuCatalog {
	return &MemoryMenuCatalog{items: items}
}

func (c *MemoryMenuCatalog) ListMenu(_ context.Context, category string) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	for _, m := range c.items {
		if category == "" || category == models.CategoryAll || m.Category == category {
			items = append(items, m)
		}
	}
	return items, nil
}

func (c *MemoryMenuCatalog) GetMenuItem(_ context.Context, itemNumber int64) (*models.MenuItem, error) {
	for _, m := range c.items {
		if m.ItemNumber == itemNumber {
			out := m
			return &out, nil
		}
	}
	return nil, NotFoundError("menu.get", "Item not found", nil)
}
