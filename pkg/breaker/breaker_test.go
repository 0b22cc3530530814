package breaker

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

func TestBreakerOpensAfterDependencyFailures(t *testing.T) {
	b := New[int](Settings{Name: "orders", MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	calls := 0
	failing := func() (int, error) {
		calls++
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "boom")
	}

	for i := 0; i < 2; i++ {
		if _, err := b.Execute(failing); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if b.State() != "open" {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	_, err := b.Execute(failing)
	if calls != 2 {
		t.Fatalf("expected open breaker to short-circuit, calls=%d", calls)
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error when open, got %v", err)
	}
}

func TestBreakerIgnoresNonDependencyErrors(t *testing.T) {
	b := New[string](Settings{Name: "coupons", MaxFailures: 1, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (string, error) {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "bad code")
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error passthrough, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("expected closed breaker, got %s", b.State())
	}

	got, err := b.Execute(func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q (%v)", got, err)
	}
}

func TestBreakerCountsPlainErrorsAsSuccess(t *testing.T) {
	b := New[int](Settings{Name: "x", MaxFailures: 1}, nil)
	_, err := b.Execute(func() (int, error) { return 0, errors.New("plain") })
	if err == nil || b.State() != "closed" {
		t.Fatalf("expected plain error to pass through with closed breaker, state=%s err=%v", b.State(), err)
	}
}
