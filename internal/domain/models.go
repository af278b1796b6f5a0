package domain

import (
	"strings"
	"time"
)

type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Category       string  `json:"category"`
	SKU            string  `json:"sku"`
	Brand          string  `json:"brand"`
	Image          string  `json:"image,omitempty"`
	InStock        *bool   `json:"in_stock,omitempty"`
	InventoryCount *int    `json:"inventory_count,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// Available is the single stock-gating predicate used everywhere: an unset
// in_stock flag counts as available, an unset inventory count counts as 1.
func (p Product) Available() bool {
	if p.InStock != nil && !*p.InStock {
		return false
	}
	return p.Stock() > 0
}

// Stock returns the effective inventory count used as the quantity ceiling
// for cart lines.
func (p Product) Stock() int {
	if p.InventoryCount == nil {
		return 1
	}
	return *p.InventoryCount
}

// CartLine is one product entry in the cart. Name, price, image and stock
// are denormalized snapshots taken at add time; stock is the quantity
// ceiling enforced on every mutation.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Stock     int     `json:"stock"`
	Quantity  int     `json:"quantity"`
}

type CouponKind string

const (
	CouponPercent      CouponKind = "percent"
	CouponFixed        CouponKind = "fixed"
	CouponFreeShipping CouponKind = "shipping"
)

type Coupon struct {
	Code  string     `json:"code"`
	Kind  CouponKind `json:"kind"`
	Value float64    `json:"value"`
}

type Address struct {
	ID         string `json:"id,omitempty"`
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Complete reports whether all required fields are non-empty. This is the
// details-step guard for a newly entered address.
func (a Address) Complete() bool {
	for _, field := range []string{a.FullName, a.Line1, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

type ShippingMethod struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Cost  float64 `json:"cost"`
	ETA   string  `json:"eta,omitempty"`
}

type PaymentMethod struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type CheckoutStep string

const (
	StepCart     CheckoutStep = "cart"
	StepDetails  CheckoutStep = "details"
	StepShipping CheckoutStep = "shipping"
	StepPayment  CheckoutStep = "payment"
	StepReview   CheckoutStep = "review"
	StepSuccess  CheckoutStep = "success"
)

// Totals is the pricing breakdown derived from the current cart, coupon
// and shipping selection. Amounts are float64; rounding to two decimals
// happens only at the tax and total stages, subtotal and discount carry
// full precision.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Order is the snapshot composed at place-order time. It is handed to the
// order submitter and not retained by the checkout session.
type Order struct {
	ID             string         `json:"id"`
	Items          []CartLine     `json:"items"`
	Subtotal       float64        `json:"subtotal"`
	Discount       float64        `json:"discount"`
	Shipping       float64        `json:"shipping"`
	Tax            float64        `json:"tax"`
	Total          float64        `json:"total"`
	Currency       string         `json:"currency"`
	Address        Address        `json:"address"`
	ShippingMethod ShippingMethod `json:"shipping_method"`
	PaymentMethod  PaymentMethod  `json:"payment_method"`
	Email          string         `json:"email,omitempty"`
	Note           string         `json:"note,omitempty"`
	CouponCode     string         `json:"coupon_code,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type SortOption string

const (
	SortRelevance SortOption = "relevance"
	SortPriceAsc  SortOption = "price_asc"
	SortPriceDesc SortOption = "price_desc"
	SortNameAsc   SortOption = "name_asc"
	SortNameDesc  SortOption = "name_desc"
	SortNewest    SortOption = "newest"
)

// CategoryAll is the sentinel category that disables category filtering.
const CategoryAll = "all"

type CatalogQuery struct {
	Query        string              `json:"query"`
	Category     string              `json:"category"`
	Sort         SortOption          `json:"sort"`
	PageSize     int                 `json:"page_size"`
	Page         int                 `json:"page"`
	OnlyInStock  bool                `json:"only_in_stock"`
	OnlyWishlist bool                `json:"only_wishlist"`
	Wishlist     map[string]struct{} `json:"-"`
}

type CatalogPage struct {
	Total       int       `json:"total"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	Items       []Product `json:"items"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type SignupRequest struct {
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type Actor struct {
	Email string
	Role  string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Email     string
	Password  string
	FullName  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// SavedPaymentMethod is a stored card reference. Only the last four digits
// of the card number are retained.
type SavedPaymentMethod struct {
	ID        string    `json:"id"`
	Holder    string    `json:"holder"`
	Last4     string    `json:"last4"`
	Expiry    string    `json:"expiry"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentMethodCreateRequest struct {
	Holder     string `json:"holder"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
}

type SupportMessage struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type SupportRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type QuantityUpdateRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CouponApplyRequest struct {
	Code string `json:"code"`
}

type DetailsRequest struct {
	Email         string   `json:"email"`
	GuestCheckout *bool    `json:"guest_checkout,omitempty"`
	AddressID     string   `json:"address_id,omitempty"`
	Address       *Address `json:"address,omitempty"`
	Note          string   `json:"note"`
}

type SelectMethodRequest struct {
	MethodID string `json:"method_id"`
}

type CheckoutStateResponse struct {
	Step           CheckoutStep `json:"step"`
	Cart           []CartLine   `json:"cart"`
	Totals         Totals       `json:"totals"`
	CouponCode     string       `json:"coupon_code,omitempty"`
	ShippingMethod string       `json:"shipping_method,omitempty"`
	PaymentMethod  string       `json:"payment_method,omitempty"`
	Email          string       `json:"email,omitempty"`
	GuestCheckout  bool         `json:"guest_checkout"`
	Note           string       `json:"note,omitempty"`
	Placing        bool         `json:"placing"`
}

type BulkProductActionRequest struct {
	Action     string   `json:"action"`
	ProductIDs []string `json:"product_ids"`
}

type BulkProductActionResponse struct {
	Action  string `json:"action"`
	Applied int    `json:"applied"`
}

// SalesSummary is the merchant dashboard headline block.
type SalesSummary struct {
	Currency      string  `json:"currency"`
	Revenue       float64 `json:"revenue"`
	Orders        int     `json:"orders"`
	AvgOrderValue float64 `json:"avg_order_value"`
	LowStockCount int     `json:"low_stock_count"`
	TopCategory   string  `json:"top_category,omitempty"`
}

type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type SalesSeries struct {
	Metric string        `json:"metric"`
	Days   int           `json:"days"`
	Points []SeriesPoint `json:"points"`
}

const (
	RoleShopper  = "shopper"
	RoleMerchant = "merchant"
)
