package enums

import "fmt"

// CheckoutStep is the position of a checkout session in its linear flow.
type CheckoutStep string

const (
	CheckoutStepAddress CheckoutStep = "address"
	CheckoutStepPayment CheckoutStep = "payment"
	CheckoutStepReview  CheckoutStep = "review"
)

var checkoutStepOrder = []CheckoutStep{
	CheckoutStepAddress,
	CheckoutStepPayment,
	CheckoutStepReview,
}

// String implements fmt.Stringer.
func (s CheckoutStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutStep.
func (s CheckoutStep) IsValid() bool {
	return s.index() >= 0
}

// Next returns the following step and false when s is the last one.
func (s CheckoutStep) Next() (CheckoutStep, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(checkoutStepOrder) {
		return s, false
	}
	return checkoutStepOrder[i+1], true
}

// Previous returns the preceding step and false when s is the first one.
func (s CheckoutStep) Previous() (CheckoutStep, bool) {
	i := s.index()
	if i <= 0 {
		return s, false
	}
	return checkoutStepOrder[i-1], true
}

func (s CheckoutStep) index() int {
	for i, candidate := range checkoutStepOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	step := CheckoutStep(value)
	if !step.IsValid() {
		return "", fmt.Errorf("invalid checkout step %q", value)
	}
	return step, nil
}
