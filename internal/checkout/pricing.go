package checkout

import (
	"math"

	"shoplite/backend/internal/domain"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeTotals derives the pricing breakdown from the cart, the applied
// coupon and the selected shipping method's cost. Rounding happens only at
// the tax and total stages; subtotal and discount keep full precision so
// the derivation matches the documented formula exactly.
func ComputeTotals(cart []domain.CartLine, coupon *domain.Coupon, shippingCost float64, taxRate float64) domain.Totals {
	subtotal := 0.0
	for _, line := range cart {
		subtotal += line.Price * float64(line.Quantity)
	}

	discount := 0.0
	shipping := shippingCost
	if coupon != nil {
		switch coupon.Kind {
		case domain.CouponPercent:
			discount = subtotal * coupon.Value / 100
		case domain.CouponFixed:
			discount = math.Min(coupon.Value, subtotal)
		case domain.CouponFreeShipping:
			// The discount applies to the shipping cost instead.
			shipping = 0
		}
	}

	taxable := subtotal - discount
	if taxable < 0 {
		taxable = 0
	}
	tax := round2(taxable * taxRate)
	total := round2(taxable + tax + shipping)

	return domain.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    total,
	}
}
