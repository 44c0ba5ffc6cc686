package cart

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
)

func product(id string, price string) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Category: domain.CategoryElectronics,
		Price:    decimal.RequireFromString(price),
		Images:   []string{"/img/" + id + ".jpg"},
	}
}

func TestStore_AddToCart_NewLine(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ID)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, 1, s.TotalItems())
}

func TestStore_AddToCart_SameKeyAccumulates(t *testing.T) {
	s := NewStore()
	p := product("A", "20")
	s.AddToCart(p, "Black", "M")
	s.AddToCart(p, "Black", "M")

	lines := s.Lines()
	require.Len(t, lines, 1, "same product and variant should share one line")
	assert.Equal(t, 2, lines[0].Quantity)
	require.NoError(t, CheckInvariants(lines))
}

func TestStore_AddToCart_DifferentVariantsAreSeparateLines(t *testing.T) {
	s := NewStore()
	p := product("A", "20")
	s.AddToCart(p, "Black", "M")
	s.AddToCart(p, "White", "M")
	s.AddToCart(p, "Black", "L")

	lines := s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, domain.LineKey{ProductID: "A", Color: "Black", Size: "M"}, lines[0].Key())
	assert.Equal(t, domain.LineKey{ProductID: "A", Color: "White", Size: "M"}, lines[1].Key())
	assert.Equal(t, domain.LineKey{ProductID: "A", Color: "Black", Size: "L"}, lines[2].Key())
	require.NoError(t, CheckInvariants(lines))
}

func TestStore_AddToCart_IgnoresStock(t *testing.T) {
	s := NewStore()
	p := product("A", "1")
	p.Stock = 1
	for i := 0; i < 5; i++ {
		s.AddToCart(p, "", "")
	}
	assert.Equal(t, 5, s.TotalItems())
}

func TestStore_AddToCart_PreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("C", "1"), "", "")
	s.AddToCart(product("A", "1"), "", "")
	s.AddToCart(product("B", "1"), "", "")
	s.AddToCart(product("A", "1"), "", "")

	var ids []string
	for _, l := range s.Lines() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
}

func TestStore_RemoveFromCart(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")
	s.AddToCart(product("B", "15"), "", "")

	s.RemoveFromCart("A")
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].ID)
}

func TestStore_RemoveFromCart_Idempotent(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")
	s.AddToCart(product("B", "15"), "", "")

	s.RemoveFromCart("A")
	once := s.Snapshot()
	s.RemoveFromCart("A")
	twice := s.Snapshot()

	assert.Equal(t, once.Lines, twice.Lines)
	assert.Equal(t, once.TotalItems, twice.TotalItems)
	assert.True(t, once.TotalPrice.Equal(twice.TotalPrice))
}

func TestStore_RemoveFromCart_AbsentIsNoop(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")

	s.RemoveFromCart("missing")
	assert.Len(t, s.Lines(), 1)
}

// Removal and quantity updates are keyed by product ID only, so every
// variant of the product is affected. This pins the current behavior until
// the identity-key granularity for these operations is settled.
func TestStore_RemoveFromCart_AffectsAllVariants(t *testing.T) {
	s := NewStore()
	p := product("A", "20")
	s.AddToCart(p, "Black", "")
	s.AddToCart(p, "White", "")
	s.AddToCart(product("B", "5"), "", "")

	s.RemoveFromCart("A")
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].ID)
}

func TestStore_UpdateQuantity_AffectsAllVariants(t *testing.T) {
	s := NewStore()
	p := product("A", "20")
	s.AddToCart(p, "Black", "")
	s.AddToCart(p, "White", "")

	s.UpdateQuantity("A", 3)
	for _, l := range s.Lines() {
		assert.Equal(t, 3, l.Quantity, "line %v", l.Key())
	}
	assert.Equal(t, 6, s.TotalItems())
}

func TestStore_UpdateQuantity(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")

	s.UpdateQuantity("A", 4)
	assert.Equal(t, 4, s.TotalItems())
	assert.Equal(t, "80.00", s.TotalPrice().StringFixed(2))
}

func TestStore_UpdateQuantity_ZeroRemovesLine(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")
	s.AddToCart(product("B", "15"), "", "")
	s.AddToCart(product("B", "15"), "", "")

	s.UpdateQuantity("A", 0)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].ID)
	assert.Equal(t, 2, s.TotalItems())
}

func TestStore_UpdateQuantity_QuantityFloor(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")
	s.AddToCart(product("B", "15"), "", "")
	s.AddToCart(product("C", "5"), "", "")

	updates := []struct {
		id  string
		qty int
	}{
		{"A", 5}, {"B", -3}, {"C", 1}, {"A", 0}, {"C", 2}, {"missing", 7},
	}
	for _, u := range updates {
		s.UpdateQuantity(u.id, u.qty)
		lines := s.Lines()
		require.NoError(t, CheckInvariants(lines))
		for _, l := range lines {
			assert.GreaterOrEqual(t, l.Quantity, 1)
		}
	}

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "C", lines[0].ID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestStore_UpdateQuantity_AbsentIsNoop(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")

	s.UpdateQuantity("missing", 3)
	assert.Equal(t, 1, s.TotalItems())
}

func TestStore_Totals(t *testing.T) {
	s := NewStore()
	a := product("A", "20")
	b := product("B", "15")
	s.AddToCart(a, "", "")
	s.AddToCart(b, "", "")
	s.AddToCart(b, "", "")

	assert.Equal(t, 3, s.TotalItems())
	assert.Equal(t, "50.00", s.TotalPrice().StringFixed(2))

	sum := decimal.Zero
	qty := 0
	for _, l := range s.Lines() {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		qty += l.Quantity
	}
	assert.True(t, sum.Equal(s.TotalPrice()))
	assert.Equal(t, qty, s.TotalItems())
}

func TestStore_TotalPrice_DecimalPrecision(t *testing.T) {
	s := NewStore()
	p := product("A", "0.10")
	for i := 0; i < 3; i++ {
		s.AddToCart(p, "", "")
	}
	assert.True(t, s.TotalPrice().Equal(decimal.RequireFromString("0.30")))
}

func TestStore_EmptyTotals(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.TotalItems())
	assert.True(t, s.TotalPrice().IsZero())
	assert.NotNil(t, s.Lines())
	assert.Empty(t, s.Lines())
}

func TestStore_SetCartOpen(t *testing.T) {
	s := NewStore()
	assert.False(t, s.IsCartOpen())

	s.SetCartOpen(true)
	assert.True(t, s.IsCartOpen())

	s.AddToCart(product("A", "1"), "", "")
	s.Clear()
	assert.True(t, s.IsCartOpen(), "visibility is independent of contents")

	s.SetCartOpen(false)
	assert.False(t, s.IsCartOpen())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")
	s.AddToCart(product("B", "15"), "", "")

	s.Clear()
	assert.Empty(t, s.Lines())
	assert.Equal(t, 0, s.TotalItems())
}

func TestStore_LinesIsACopy(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "", "")

	lines := s.Lines()
	lines[0].Quantity = 0

	fresh := s.Lines()
	require.Len(t, fresh, 1)
	assert.Equal(t, 1, fresh[0].Quantity)
}

func TestStore_Restore(t *testing.T) {
	s := NewStore()
	s.AddToCart(product("A", "20"), "Black", "")
	s.AddToCart(product("B", "15"), "", "")
	s.UpdateQuantity("B", 2)
	saved := s.Snapshot()

	restored := NewStore()
	require.NoError(t, restored.Restore(saved.Lines))
	assert.Equal(t, saved.Lines, restored.Lines())
	assert.True(t, saved.TotalPrice.Equal(restored.TotalPrice()))
}

func TestStore_Restore_RejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name  string
		lines []domain.CartLine
	}{
		{
			name:  "zero quantity",
			lines: []domain.CartLine{{Product: product("A", "1"), Quantity: 0}},
		},
		{
			name:  "negative quantity",
			lines: []domain.CartLine{{Product: product("A", "1"), Quantity: -2}},
		},
		{
			name: "duplicate identity key",
			lines: []domain.CartLine{
				{Product: product("A", "1"), Quantity: 1, SelectedColor: "Red"},
				{Product: product("A", "1"), Quantity: 2, SelectedColor: "Red"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.AddToCart(product("Z", "9"), "", "")

			err := s.Restore(tt.lines)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvariantViolation)

			lines := s.Lines()
			require.Len(t, lines, 1, "cart must be untouched")
			assert.Equal(t, "Z", lines[0].ID)
		})
	}
}

func TestStore_Subscribe_NotifiesAfterMutation(t *testing.T) {
	s := NewStore()
	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		// listeners may read the store
		assert.Equal(t, snap.TotalItems, s.TotalItems())
		got = append(got, snap)
	})

	s.AddToCart(product("A", "20"), "", "")
	s.AddToCart(product("A", "20"), "", "")
	s.SetCartOpen(true)

	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].TotalItems)
	assert.Equal(t, 2, got[1].TotalItems)
	assert.True(t, got[2].IsOpen)

	unsubscribe()
	unsubscribe()
	s.RemoveFromCart("A")
	assert.Len(t, got, 3, "no delivery after unsubscribe")
}

func TestStore_Subscribe_SkipsNoopMutations(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })

	s.RemoveFromCart("missing")
	s.UpdateQuantity("missing", 2)
	s.SetCartOpen(false)
	s.Clear()
	assert.Equal(t, 0, calls)

	s.AddToCart(product("A", "20"), "", "")
	s.UpdateQuantity("A", 1)
	assert.Equal(t, 1, calls)
}

func TestStore_Subscribe_DeliveryOrder(t *testing.T) {
	s := NewStore()
	var order []string
	s.Subscribe(func(Snapshot) { order = append(order, "first") })
	s.Subscribe(func(Snapshot) { order = append(order, "second") })

	s.AddToCart(product("A", "20"), "", "")
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestStore_Subscribe_ListenerUnsubscribesItself(t *testing.T) {
	s := NewStore()
	calls := 0
	var unsubscribe func()
	unsubscribe = s.Subscribe(func(Snapshot) {
		calls++
		unsubscribe()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.AddToCart(product("A", "20"), "", "")
		s.AddToCart(product("A", "20"), "", "")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AddToCart blocked while a listener unsubscribed itself")
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, s.TotalItems())
}

func TestStore_Subscribe_ListenerSubscribesAnother(t *testing.T) {
	s := NewStore()
	late := 0
	var once sync.Once
	s.Subscribe(func(Snapshot) {
		once.Do(func() { s.Subscribe(func(Snapshot) { late++ }) })
	})

	s.AddToCart(product("A", "20"), "", "")
	assert.Equal(t, 0, late, "a listener added during delivery waits for the next mutation")
	s.AddToCart(product("A", "20"), "", "")
	assert.Equal(t, 1, late)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := NewStore()
	p := product("A", "2.50")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddToCart(p, "", "")
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 50, lines[0].Quantity)
	assert.Equal(t, "125.00", s.TotalPrice().StringFixed(2))
}
