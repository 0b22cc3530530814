package pricing

const basisPoints = 10000

// Policy derives shipping and tax from the cart subtotal.
type Policy struct {
	FlatShippingCents int64
	// FreeShippingAboveCents waives shipping when the subtotal reaches it. Zero disables the waiver.
	FreeShippingAboveCents int64
	TaxRateBps             int64
}

// Shipping returns the shipping charge for a subtotal. Empty carts ship for free.
func (p Policy) Shipping(subtotal int64) int64 {
	if subtotal <= 0 || p.FlatShippingCents <= 0 {
		return 0
	}
	if p.FreeShippingAboveCents > 0 && subtotal >= p.FreeShippingAboveCents {
		return 0
	}
	return p.FlatShippingCents
}

// Tax applies the rate to the subtotal, rounding down.
func (p Policy) Tax(subtotal int64) int64 {
	if subtotal <= 0 || p.TaxRateBps <= 0 {
		return 0
	}
	return subtotal * p.TaxRateBps / basisPoints
}

// Quote computes the breakdown for lines under this policy.
func (p Policy) Quote(lines []Line, discount int64) Breakdown {
	subtotal := Subtotal(lines)
	return Compute(lines, discount, p.Shipping(subtotal), p.Tax(subtotal))
}
