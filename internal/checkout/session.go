// Package checkout implements the cart, the pricing derivation and the
// step state machine for the multi-step checkout flow. Session state is
// persisted best-effort through an injected key-value store and rehydrated
// on the next load.
package checkout

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shoplite/backend/internal/domain"
	"shoplite/backend/internal/kvstore"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrQuantityExceedsStock = errors.New("quantity exceeds available stock")
	ErrOutOfStock           = errors.New("product is out of stock")
	ErrLineNotFound         = errors.New("cart line not found")
	ErrUnknownCoupon        = errors.New("unknown coupon code")
	ErrUnknownMethod        = errors.New("unknown method id")
	ErrStepLocked           = errors.New("step requirements not met")
	ErrNoBackTransition     = errors.New("no backward transition from this step")
	ErrPlacingInProgress    = errors.New("order placement already in progress")
	ErrInvalidEmail         = errors.New("a valid email is required")
)

var stepOrder = []domain.CheckoutStep{
	domain.StepCart,
	domain.StepDetails,
	domain.StepShipping,
	domain.StepPayment,
	domain.StepReview,
	domain.StepSuccess,
}

func stepIndex(step domain.CheckoutStep) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

func DefaultShippingMethods() []domain.ShippingMethod {
	return []domain.ShippingMethod{
		{ID: "standard", Label: "Standard", Cost: 6.00, ETA: "3-5 business days"},
		{ID: "express", Label: "Express", Cost: 12.50, ETA: "1-2 business days"},
		{ID: "pickup", Label: "Store Pickup", Cost: 0, ETA: "same day"},
	}
}

func DefaultPaymentMethods() []domain.PaymentMethod {
	return []domain.PaymentMethod{
		{ID: "card", Label: "Credit / Debit Card", Kind: "card"},
		{ID: "wallet", Label: "Digital Wallet", Kind: "wallet"},
		{ID: "cod", Label: "Cash on Delivery", Kind: "cod"},
	}
}

// Manager owns the checkout sessions, one per session id. Each session's
// state is exclusive to that session; the manager only hands out the
// instance.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	kv        kvstore.Store
	submitter OrderSubmitter
	taxRate   float64
	currency  string
	shipping  []domain.ShippingMethod
	payments  []domain.PaymentMethod
}

func NewManager(kv kvstore.Store, submitter OrderSubmitter, taxRate float64, currency string) *Manager {
	if currency == "" {
		currency = "USD"
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		kv:        kv,
		submitter: submitter,
		taxRate:   taxRate,
		currency:  currency,
		shipping:  DefaultShippingMethods(),
		payments:  DefaultPaymentMethods(),
	}
}

func (m *Manager) ShippingMethods() []domain.ShippingMethod {
	return m.shipping
}

func (m *Manager) PaymentMethods() []domain.PaymentMethod {
	return m.payments
}

// Session returns the session for id, rehydrating persisted state on first
// load. Missing or corrupt entries fall back silently to defaults.
func (m *Manager) Session(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := newSession(m, id)
	s.load(ctx)
	m.sessions[id] = s
	return s
}

type Session struct {
	mu      sync.Mutex
	manager *Manager
	id      string

	step         domain.CheckoutStep
	cart         []domain.CartLine
	coupon       *domain.Coupon
	shippingID   string
	paymentID    string
	guest        bool
	email        string
	note         string
	address      domain.Address
	addressSaved bool
	placing      bool
}

func newSession(m *Manager, id string) *Session {
	s := &Session{
		manager: m,
		id:      id,
		step:    domain.StepCart,
	}
	// Non-empty default lists mean a method is always selected.
	if len(m.shipping) > 0 {
		s.shippingID = m.shipping[0].ID
	}
	if len(m.payments) > 0 {
		s.paymentID = m.payments[0].ID
	}
	return s
}

func (s *Session) Step() domain.CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Cart() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartCopyLocked()
}

func (s *Session) cartCopyLocked() []domain.CartLine {
	copied := make([]domain.CartLine, len(s.cart))
	copy(copied, s.cart)
	return copied
}

// AddItem appends a line with a denormalized snapshot of the product, or
// bumps the quantity of an existing line. Stock gating uses the unified
// availability predicate; quantities above the stock ceiling are rejected
// with the prior quantity retained.
func (s *Session) AddItem(ctx context.Context, product domain.Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if !product.Available() {
		return ErrOutOfStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cart {
		if s.cart[i].ProductID == product.ID {
			next := s.cart[i].Quantity + qty
			if next > s.cart[i].Stock {
				return ErrQuantityExceedsStock
			}
			s.cart[i].Quantity = next
			s.persistLocked(ctx)
			return nil
		}
	}

	if qty > product.Stock() {
		return ErrQuantityExceedsStock
	}
	s.cart = append(s.cart, domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image,
		Stock:     product.Stock(),
		Quantity:  qty,
	})
	s.persistLocked(ctx)
	return nil
}

// UpdateQuantity validates the requested quantity against the line's
// recorded stock ceiling. On rejection the previous quantity is retained.
func (s *Session) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cart {
		if s.cart[i].ProductID != productID {
			continue
		}
		if qty > s.cart[i].Stock {
			return ErrQuantityExceedsStock
		}
		s.cart[i].Quantity = qty
		s.persistLocked(ctx)
		return nil
	}
	return ErrLineNotFound
}

func (s *Session) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cart {
		if s.cart[i].ProductID == productID {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			s.persistLocked(ctx)
			return nil
		}
	}
	return ErrLineNotFound
}

// ApplyCoupon matches the normalized code against the static registry.
// Unknown codes are rejected with no state change; a match replaces any
// currently applied coupon.
func (s *Session) ApplyCoupon(ctx context.Context, code string) error {
	coupon, ok := LookupCoupon(code)
	if !ok {
		return ErrUnknownCoupon
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = &coupon
	s.persistLocked(ctx)
	return nil
}

func (s *Session) RemoveCoupon(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupon = nil
	s.persistLocked(ctx)
}

func (s *Session) Coupon() *domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coupon == nil {
		return nil
	}
	copied := *s.coupon
	return &copied
}

// SetDetails records the details-step fields. It performs no validation of
// its own; the guard runs when the shopper advances.
func (s *Session) SetDetails(ctx context.Context, req domain.DetailsRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.email = req.Email
	if req.GuestCheckout != nil {
		s.guest = *req.GuestCheckout
	}
	s.note = req.Note
	if req.Address != nil {
		s.address = *req.Address
		// Only a reference the caller resolved from the address book counts
		// as a saved selection. An id embedded in an inline address does
		// not; the completeness guard still applies to it.
		s.addressSaved = req.AddressID != ""
	}
	s.persistLocked(ctx)
}

func (s *Session) SelectShipping(ctx context.Context, methodID string) error {
	if _, ok := s.manager.shippingMethod(methodID); !ok {
		return ErrUnknownMethod
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shippingID = methodID
	s.persistLocked(ctx)
	return nil
}

func (s *Session) SelectPayment(ctx context.Context, methodID string) error {
	if _, ok := s.manager.paymentMethod(methodID); !ok {
		return ErrUnknownMethod
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentID = methodID
	s.persistLocked(ctx)
	return nil
}

func (m *Manager) shippingMethod(id string) (domain.ShippingMethod, bool) {
	for _, method := range m.shipping {
		if method.ID == id {
			return method, true
		}
	}
	return domain.ShippingMethod{}, false
}

func (m *Manager) paymentMethod(id string) (domain.PaymentMethod, bool) {
	for _, method := range m.payments {
		if method.ID == id {
			return method, true
		}
	}
	return domain.PaymentMethod{}, false
}

// Totals derives the pricing breakdown from the current cart, coupon and
// shipping selection.
func (s *Session) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked()
}

func (s *Session) totalsLocked() domain.Totals {
	shippingCost := 0.0
	if method, ok := s.manager.shippingMethod(s.shippingID); ok {
		shippingCost = method.Cost
	}
	return ComputeTotals(s.cart, s.coupon, shippingCost, s.manager.taxRate)
}

// Next advances one step forward when the current step's guard holds. The
// review step does not advance through Next; PlaceOrder owns that
// transition.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case domain.StepCart:
		if len(s.cart) == 0 {
			return ErrEmptyCart
		}
	case domain.StepDetails:
		if s.guest && !validEmail(s.email) {
			return ErrInvalidEmail
		}
		if !s.addressSaved && !s.address.Complete() {
			return ErrStepLocked
		}
	case domain.StepShipping:
		if s.shippingID == "" {
			return ErrStepLocked
		}
	case domain.StepPayment:
		if s.paymentID == "" {
			return ErrStepLocked
		}
	default:
		return ErrStepLocked
	}

	s.step = stepOrder[stepIndex(s.step)+1]
	s.persistLocked(ctx)
	return nil
}

// Back moves one step backward unconditionally. There is no backward
// transition from success or from the first step.
func (s *Session) Back(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == domain.StepSuccess || s.step == domain.StepCart {
		return ErrNoBackTransition
	}
	s.step = stepOrder[stepIndex(s.step)-1]
	s.persistLocked(ctx)
	return nil
}

// PlaceOrder composes the order snapshot, hands it to the submitter and,
// on success, clears the cart and advances to the terminal success step.
// A transient placing flag blocks re-submission while the submitter runs;
// a rejected submission leaves all checkout state unchanged.
func (s *Session) PlaceOrder(ctx context.Context) (domain.Order, error) {
	s.mu.Lock()
	if s.step != domain.StepReview {
		s.mu.Unlock()
		return domain.Order{}, ErrStepLocked
	}
	if len(s.cart) == 0 {
		s.mu.Unlock()
		return domain.Order{}, ErrEmptyCart
	}
	if s.placing {
		s.mu.Unlock()
		return domain.Order{}, ErrPlacingInProgress
	}
	s.placing = true
	order := s.buildOrderLocked()
	s.mu.Unlock()

	err := s.manager.submitter.Submit(ctx, order)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.placing = false
	if err != nil {
		return domain.Order{}, err
	}

	s.cart = nil
	s.coupon = nil
	s.note = ""
	s.step = domain.StepSuccess
	s.persistLocked(ctx)
	return order, nil
}

// ReturnToCart leaves the terminal success step and starts a new cycle
// with an emptied cart and default selections.
func (s *Session) ReturnToCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != domain.StepSuccess {
		return ErrStepLocked
	}
	s.cart = nil
	s.coupon = nil
	s.note = ""
	s.address = domain.Address{}
	s.addressSaved = false
	s.step = domain.StepCart
	if len(s.manager.shipping) > 0 {
		s.shippingID = s.manager.shipping[0].ID
	}
	if len(s.manager.payments) > 0 {
		s.paymentID = s.manager.payments[0].ID
	}
	s.persistLocked(ctx)
	return nil
}

func (s *Session) Placing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placing
}

// State returns a snapshot of the session for the API layer.
func (s *Session) State() domain.CheckoutStateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	couponCode := ""
	if s.coupon != nil {
		couponCode = s.coupon.Code
	}
	return domain.CheckoutStateResponse{
		Step:           s.step,
		Cart:           s.cartCopyLocked(),
		Totals:         s.totalsLocked(),
		CouponCode:     couponCode,
		ShippingMethod: s.shippingID,
		PaymentMethod:  s.paymentID,
		Email:          s.email,
		GuestCheckout:  s.guest,
		Note:           s.note,
		Placing:        s.placing,
	}
}

func (s *Session) buildOrderLocked() domain.Order {
	totals := s.totalsLocked()
	shippingMethod, _ := s.manager.shippingMethod(s.shippingID)
	paymentMethod, _ := s.manager.paymentMethod(s.paymentID)
	couponCode := ""
	if s.coupon != nil {
		couponCode = s.coupon.Code
	}

	return domain.Order{
		ID:             "ord-" + uuid.NewString(),
		Items:          s.cartCopyLocked(),
		Subtotal:       totals.Subtotal,
		Discount:       totals.Discount,
		Shipping:       totals.Shipping,
		Tax:            totals.Tax,
		Total:          totals.Total,
		Currency:       s.manager.currency,
		Address:        s.address,
		ShippingMethod: shippingMethod,
		PaymentMethod:  paymentMethod,
		Email:          s.email,
		Note:           s.note,
		CouponCode:     couponCode,
		CreatedAt:      time.Now().UTC(),
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}
