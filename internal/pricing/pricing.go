// Package pricing aggregates line totals into an order breakdown using integer minor units.
package pricing

// Line is the priced view of a cart line.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// Breakdown is the result of Compute. All values are minor units.
type Breakdown struct {
	Subtotal int64 `json:"subtotal_cents"`
	Shipping int64 `json:"shipping_cents"`
	Tax      int64 `json:"tax_cents"`
	Discount int64 `json:"discount_cents"`
	Total    int64 `json:"total_cents"`
}

// Subtotal sums unit price times quantity.
func Subtotal(lines []Line) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return subtotal
}

// Compute returns subtotal + shipping + tax - discount, floored at zero.
// The discount is reported as given; only the total is clamped.
func Compute(lines []Line, discount, shipping, tax int64) Breakdown {
	subtotal := Subtotal(lines)
	total := subtotal + shipping + tax - discount
	if total < 0 {
		total = 0
	}
	return Breakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}

// PreDiscountTotal is what coupon validation is priced against.
func (b Breakdown) PreDiscountTotal() int64 {
	return b.Subtotal + b.Shipping + b.Tax
}
