// Package sessions keeps the per-buyer cart and checkout state of the process.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"go.uber.org/multierr"
)

const defaultIdleTTL = 2 * time.Hour

// Params configure a Registry. Checkout.Cart is ignored; every buyer gets their own.
type Params struct {
	Snapshots cart.SnapshotStore
	Checkout  checkout.Deps
	Options   checkout.Options
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	IdleTTL   time.Duration
	Clock     func() time.Time
}

// Buyer is the live state of one buyer.
type Buyer struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Orchestrator
}

type entry struct {
	buyer    *Buyer
	lastSeen time.Time
}

// Registry lazily creates buyer state and evicts it after IdleTTL without activity.
type Registry struct {
	mu      sync.Mutex
	buyers  map[string]*entry
	params  Params
	logg    *logger.Logger
	idleTTL time.Duration
	now     func() time.Time
}

// NewRegistry validates params and builds an empty registry.
func NewRegistry(params Params) (*Registry, error) {
	if params.Snapshots == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if params.Checkout.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.Checkout.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	params.Checkout.Logger = logg
	if params.Metrics != nil {
		params.Checkout.Metrics = params.Metrics
	}
	idle := params.IdleTTL
	if idle <= 0 {
		idle = defaultIdleTTL
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &Registry{
		buyers:  make(map[string]*entry),
		params:  params,
		logg:    logg,
		idleTTL: idle,
		now:     now,
	}, nil
}

// Get returns the buyer's state, rehydrating the cart from its snapshot on first use.
func (r *Registry) Get(ctx context.Context, buyerID string) (*Buyer, error) {
	buyerID = strings.TrimSpace(buyerID)
	if buyerID == "" {
		return nil, fmt.Errorf("buyer id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.buyers[buyerID]; ok {
		e.lastSeen = r.now()
		return e.buyer, nil
	}

	var opts []cart.StoreOption
	if r.params.Metrics != nil {
		opts = append(opts, cart.WithMutationRecorder(r.params.Metrics))
	}
	store, err := cart.NewStore(ctx, buyerID, r.params.Snapshots, r.logg, opts...)
	if err != nil {
		return nil, err
	}
	deps := r.params.Checkout
	deps.Cart = store
	orch, err := checkout.NewOrchestrator(deps, r.params.Options)
	if err != nil {
		return nil, err
	}

	buyer := &Buyer{ID: buyerID, Cart: store, Checkout: orch}
	r.buyers[buyerID] = &entry{buyer: buyer, lastSeen: r.now()}
	r.params.Metrics.SetActiveBuyers(len(r.buyers))
	r.logg.Debug(r.logg.WithBuyerID(ctx, buyerID), "buyer state loaded")
	return buyer, nil
}

// Len is the number of buyers currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buyers)
}

// Sweep evicts buyers idle for longer than IdleTTL. Their checkout sessions are
// discarded as on navigation away; carts live on in the snapshot store. Evicted
// stores are retired so the next Get is the only writer of the buyer's snapshot.
// Buyers with a submission in flight are kept until it completes.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	for id, e := range r.buyers {
		if e.lastSeen.After(cutoff) || e.buyer.Checkout.Pending() {
			continue
		}
		e.buyer.Checkout.Discard(r.logg.WithBuyerID(ctx, id))
		e.buyer.Cart.Retire()
		delete(r.buyers, id)
		evicted++
	}
	r.params.Metrics.SetActiveBuyers(len(r.buyers))
	if evicted > 0 {
		r.logg.Info(r.logg.WithField(ctx, "evicted", evicted), "idle buyers evicted")
	}
	return evicted
}

// Close flushes every cart to the snapshot store and drops all state.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.buyers))
	for id := range r.buyers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs error
	for _, id := range ids {
		buyer := r.buyers[id].buyer
		buyer.Checkout.Discard(ctx)
		if err := buyer.Cart.Flush(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flush cart %s: %w", id, err))
		}
		buyer.Cart.Retire()
	}
	r.buyers = make(map[string]*entry)
	r.params.Metrics.SetActiveBuyers(0)
	return errs
}
