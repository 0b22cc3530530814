package sessions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/coupons"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

type stubCoupons struct{}

func (stubCoupons) Validate(context.Context, string, int64) (*coupons.Result, error) {
	return &coupons.Result{Valid: false}, nil
}

type blockingOrders struct {
	during func()
}

func (b *blockingOrders) CreateOrder(context.Context, orders.CreateOrderRequest, string) (*orders.Order, error) {
	if b.during != nil {
		b.during()
	}
	return &orders.Order{ID: "o1", OrderNumber: "SO-1"}, nil
}

type failingSnapshots struct {
	*cart.MemorySnapshotStore
}

func (failingSnapshots) Save(context.Context, string, []models.CartSnapshotItem) error {
	return errors.New("disk full")
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestRegistry(t *testing.T, snapshots cart.SnapshotStore, ord *blockingOrders, clk *clock) *Registry {
	t.Helper()
	if ord == nil {
		ord = &blockingOrders{}
	}
	reg, err := NewRegistry(Params{
		Snapshots: snapshots,
		Checkout:  checkout.Deps{Coupons: stubCoupons{}, Orders: ord},
		Metrics:   metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
		IdleTTL:   time.Hour,
		Clock:     clk.Now,
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestNewRegistryValidatesParams(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry(Params{}); err == nil {
		t.Fatal("expected error without snapshot store")
	}
	if _, err := NewRegistry(Params{Snapshots: cart.NewMemorySnapshotStore()}); err == nil {
		t.Fatal("expected error without coupon validator")
	}
}

func TestGetCreatesOncePerBuyerAndRehydrates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	snapshots := cart.NewMemorySnapshotStore()
	reg := newTestRegistry(t, snapshots, nil, clk)

	first, err := reg.Get(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	again, _ := reg.Get(ctx, " buyer-1 ")
	if first != again {
		t.Fatal("expected the same buyer state")
	}
	if _, err := reg.Get(ctx, ""); err == nil {
		t.Fatal("expected error for empty buyer id")
	}

	first.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p1", UnitPriceCents: 100, Quantity: 3})
	if err := reg.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected registry emptied, got %d", reg.Len())
	}

	reloaded, err := reg.Get(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("get after close: %v", err)
	}
	if reloaded == first || reloaded.Cart.ItemCount() != 3 {
		t.Fatalf("expected fresh state rehydrated from snapshot, count=%d", reloaded.Cart.ItemCount())
	}
}

func TestSweepEvictsIdleBuyersAndDiscardsCheckout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reg := newTestRegistry(t, cart.NewMemorySnapshotStore(), nil, clk)

	idle, _ := reg.Get(ctx, "idle")
	idle.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p1", UnitPriceCents: 100, Quantity: 1})
	if _, err := idle.Checkout.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	clk.now = clk.now.Add(50 * time.Minute)
	if _, err := reg.Get(ctx, "active"); err != nil {
		t.Fatalf("get: %v", err)
	}

	clk.now = clk.now.Add(20 * time.Minute)
	if evicted := reg.Sweep(ctx); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected active buyer kept, got %d", reg.Len())
	}
	if _, ok := idle.Checkout.Session(); ok {
		t.Fatal("expected idle checkout discarded")
	}

	back, _ := reg.Get(ctx, "idle")
	if back.Cart.ItemCount() != 1 {
		t.Fatalf("expected cart restored from snapshot, got %d", back.Cart.ItemCount())
	}
}

func TestSweepKeepsBuyerWithSubmissionInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ord := &blockingOrders{}
	reg := newTestRegistry(t, cart.NewMemorySnapshotStore(), ord, clk)

	buyer, _ := reg.Get(ctx, "buyer-1")
	buyer.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p1", UnitPriceCents: 100, Quantity: 1})
	orch := buyer.Checkout
	if _, err := orch.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	addr := types.ShippingAddress{Name: "A", Phone: "5550100", Line1: "1 Main", City: "X", State: "Y", PostalCode: "1"}
	if _, err := orch.SetShippingAddress(ctx, addr); err != nil {
		t.Fatalf("address: %v", err)
	}
	_, _ = orch.Next(ctx)
	_, _ = orch.SelectPaymentMethod(ctx, "cod")
	_, _ = orch.Next(ctx)

	evicted := -1
	ord.during = func() {
		clk.now = clk.now.Add(2 * time.Hour)
		evicted = reg.Sweep(ctx)
	}
	if _, err := orch.SubmitOrder(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if evicted != 0 {
		t.Fatalf("expected pending buyer kept, evicted=%d", evicted)
	}
}

func TestCloseAggregatesFlushErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	reg := newTestRegistry(t, failingSnapshots{cart.NewMemorySnapshotStore()}, nil, clk)

	for _, id := range []string{"a", "b"} {
		buyer, err := reg.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		buyer.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p1", UnitPriceCents: 100, Quantity: 1})
	}

	err := reg.Close(ctx)
	if err == nil {
		t.Fatal("expected flush errors")
	}
	if !strings.Contains(err.Error(), "flush cart a") || !strings.Contains(err.Error(), "flush cart b") {
		t.Fatalf("expected both failures reported, got %v", err)
	}
}

func TestSweepRetiresEvictedCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	snapshots := cart.NewMemorySnapshotStore()
	reg := newTestRegistry(t, snapshots, nil, clk)

	held, _ := reg.Get(ctx, "buyer-1")
	held.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p1", UnitPriceCents: 100, Quantity: 1})

	clk.now = clk.now.Add(3 * time.Hour)
	if evicted := reg.Sweep(ctx); evicted != 1 {
		t.Fatalf("expected eviction, got %d", evicted)
	}
	fresh, _ := reg.Get(ctx, "buyer-1")
	fresh.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p2", UnitPriceCents: 200, Quantity: 1})

	if _, ok := held.Cart.AddItem(ctx, cart.AddItemInput{ProductID: "p3", UnitPriceCents: 300, Quantity: 1}); ok {
		t.Fatal("expected the evicted cart to reject writes")
	}
	held.Cart.Clear(ctx)

	saved, err := snapshots.Load(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(saved) != 2 || saved[0].ProductID != "p1" || saved[1].ProductID != "p2" {
		t.Fatalf("expected the live cart to own the snapshot, got %+v", saved)
	}
}
