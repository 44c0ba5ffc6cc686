package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

// ErrInvariantViolation marks cart contents with a quantity below one or
// two lines sharing an identity key. It is never produced by the Store's own
// mutations; Restore returns it for bad external input.
var ErrInvariantViolation = errors.New("cart: invariant violation")

// Snapshot is a consistent read-only view of the cart.
type Snapshot struct {
	Lines      []domain.CartLine `json:"items"`
	IsOpen     bool              `json:"isOpen"`
	TotalItems int               `json:"totalItems"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
}

// Listener receives the cart state after a mutation. Listeners may read the
// store, Subscribe and unsubscribe, but must not mutate the store.
type Listener func(Snapshot)

// Store is the cart for one shopping session. The zero value is not usable;
// construct with NewStore. All methods are safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	lines  []domain.CartLine
	isOpen bool

	// deliverMu serializes delivery so listeners see mutations in order.
	// subMu guards the registrations only and is never held while a
	// listener runs.
	deliverMu sync.Mutex
	subMu     sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewStore returns an empty, closed cart.
func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// AddToCart increments the line matching (product, color, size) or appends
// a new line with quantity 1. Stock is not checked.
func (s *Store) AddToCart(p domain.Product, color, size string) {
	key := domain.LineKey{ProductID: p.ID, Color: color, Size: size}
	s.mutate(func() bool {
		for i := range s.lines {
			if s.lines[i].Key() == key {
				s.lines[i].Quantity++
				return true
			}
		}
		s.lines = append(s.lines, domain.CartLine{
			Product:       p,
			Quantity:      1,
			SelectedColor: color,
			SelectedSize:  size,
		})
		return true
	})
}

// RemoveFromCart deletes every line for productID, whatever variant was
// selected. Removing an absent product is a no-op.
func (s *Store) RemoveFromCart(productID string) {
	s.mutate(func() bool {
		return s.removeLocked(productID)
	})
}

// UpdateQuantity sets the quantity of every line for productID. A quantity
// of zero or less removes those lines.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	s.mutate(func() bool {
		if quantity <= 0 {
			return s.removeLocked(productID)
		}
		changed := false
		for i := range s.lines {
			if s.lines[i].ID == productID && s.lines[i].Quantity != quantity {
				s.lines[i].Quantity = quantity
				changed = true
			}
		}
		return changed
	})
}

// Clear empties the cart. The open flag is left as is.
func (s *Store) Clear() {
	s.mutate(func() bool {
		if len(s.lines) == 0 {
			return false
		}
		s.lines = nil
		return true
	})
}

// SetCartOpen sets the slide-over panel visibility.
func (s *Store) SetCartOpen(open bool) {
	s.mutate(func() bool {
		if s.isOpen == open {
			return false
		}
		s.isOpen = open
		return true
	})
}

// IsCartOpen reports the panel visibility.
func (s *Store) IsCartOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

// TotalItems is the sum of line quantities.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.lines)
}

// TotalPrice is the subtotal: the sum of price × quantity over all lines.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.lines)
}

// Snapshot reads lines, open flag and totals under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Restore replaces the cart contents with lines previously taken from a
// Snapshot. The cart is left untouched if lines break an invariant.
func (s *Store) Restore(lines []domain.CartLine) error {
	if err := CheckInvariants(lines); err != nil {
		return err
	}
	s.mutate(func() bool {
		s.lines = copyLines(lines)
		return true
	})
	return nil
}

// Subscribe registers fn to be called after every mutation that changes the
// cart. The returned func removes the registration; a delivery already in
// progress still completes with the listeners it started with.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			s.subMu.Unlock()
		})
	}
}

// mutate applies fn under the state lock and, if fn reports a change,
// delivers the resulting snapshot to listeners after the lock is released.
func (s *Store) mutate(fn func() bool) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	changed := fn()
	var snap Snapshot
	if changed {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range s.listenersInOrder() {
		l(snap)
	}
}

func (s *Store) listenersInOrder() []Listener {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) removeLocked(productID string) bool {
	kept := s.lines[:0]
	for _, l := range s.lines {
		if l.ID != productID {
			kept = append(kept, l)
		}
	}
	removed := len(kept) != len(s.lines)
	// clear the tail so dropped lines do not linger in the backing array
	for i := len(kept); i < len(s.lines); i++ {
		s.lines[i] = domain.CartLine{}
	}
	s.lines = kept
	return removed
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:      copyLines(s.lines),
		IsOpen:     s.isOpen,
		TotalItems: totalItems(s.lines),
		TotalPrice: totalPrice(s.lines),
	}
}

// CheckInvariants reports ErrInvariantViolation when a line has quantity
// below one or two lines share an identity key.
func CheckInvariants(lines []domain.CartLine) error {
	seen := make(map[domain.LineKey]struct{}, len(lines))
	for i, l := range lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d (%s) has quantity %d", ErrInvariantViolation, i, l.ID, l.Quantity)
		}
		k := l.Key()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: duplicate line for product %s (color %q, size %q)", ErrInvariantViolation, k.ProductID, k.Color, k.Size)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func copyLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}

func totalItems(lines []domain.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func totalPrice(lines []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}
