// Package breaker guards outbound calls to the order and promotions services.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

// Breaker trips after MaxFailures consecutive dependency failures.
// Errors that are not DEPENDENCY_ERROR (bad input, declined coupons) do not count.
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

func New[T any](settings Settings, logg *logger.Logger) *Breaker[T] {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	if logg == nil {
		logg = logger.Nop()
	}
	name := settings.Name
	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:     name,
		Interval: settings.Interval,
		Timeout:  settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.HasCode(err, pkgerrors.CodeDependency)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state changed")
		},
	})
	return &Breaker[T]{name: name, cb: cb}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s temporarily unavailable", b.name))
	}
	return result, err
}

// State exposes the breaker state for readiness reporting.
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
