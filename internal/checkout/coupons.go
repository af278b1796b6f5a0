package checkout

import (
	"strings"

	"shoplite/backend/internal/domain"
)

// couponRegistry is the static coupon table. Percent values are bounded by
// 100 so a percent discount can never exceed the subtotal; fixed amounts
// are capped at the subtotal during pricing.
var couponRegistry = map[string]domain.Coupon{
	"SAVE10":   {Code: "SAVE10", Kind: domain.CouponPercent, Value: 10},
	"SAVE20":   {Code: "SAVE20", Kind: domain.CouponPercent, Value: 20},
	"FLAT5":    {Code: "FLAT5", Kind: domain.CouponFixed, Value: 5},
	"FREESHIP": {Code: "FREESHIP", Kind: domain.CouponFreeShipping},
}

// LookupCoupon case-normalizes the submitted code and matches it against
// the registry.
func LookupCoupon(code string) (domain.Coupon, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	coupon, ok := couponRegistry[normalized]
	return coupon, ok
}
