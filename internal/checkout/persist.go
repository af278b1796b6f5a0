package checkout

import (
	"context"
	"encoding/json"
	"log"

	"shoplite/backend/internal/domain"
)

// Each piece of session state is persisted under its own key so a corrupt
// entry only loses that one field on rehydration.
const (
	keyCart     = "cart"
	keyStep     = "step"
	keyCoupon   = "coupon"
	keyShipping = "shipping_method"
	keyPayment  = "payment_method"
	keyGuest    = "guest_checkout"
	keyNote     = "note"
	keyEmail    = "email"
	keyAddress  = "address_draft"
)

type persistedAddress struct {
	Address domain.Address `json:"address"`
	Saved   bool           `json:"saved"`
}

func (s *Session) key(field string) string {
	return "checkout:" + s.id + ":" + field
}

func (s *Session) persistLocked(ctx context.Context) {
	s.setJSON(ctx, keyCart, s.cart)
	s.setJSON(ctx, keyStep, s.step)
	s.setJSON(ctx, keyShipping, s.shippingID)
	s.setJSON(ctx, keyPayment, s.paymentID)
	s.setJSON(ctx, keyGuest, s.guest)
	s.setJSON(ctx, keyNote, s.note)
	s.setJSON(ctx, keyEmail, s.email)
	s.setJSON(ctx, keyAddress, persistedAddress{Address: s.address, Saved: s.addressSaved})

	if s.coupon != nil {
		s.setJSON(ctx, keyCoupon, s.coupon.Code)
	} else if err := s.manager.kv.Remove(ctx, s.key(keyCoupon)); err != nil {
		log.Printf("[checkout] WARN: failed to remove %s: %v", s.key(keyCoupon), err)
	}
}

func (s *Session) setJSON(ctx context.Context, field string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("[checkout] WARN: failed to encode %s: %v", field, err)
		return
	}
	if err := s.manager.kv.Set(ctx, s.key(field), payload); err != nil {
		log.Printf("[checkout] WARN: failed to persist %s: %v", s.key(field), err)
	}
}

// load rehydrates the session from the key-value store. Missing or corrupt
// entries are ignored silently; the defaults from newSession stand.
func (s *Session) load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cart []domain.CartLine
	if s.getJSON(ctx, keyCart, &cart) && cart != nil {
		s.cart = cart
	}

	var step domain.CheckoutStep
	if s.getJSON(ctx, keyStep, &step) && stepIndex(step) >= 0 {
		s.step = step
	}

	var code string
	if s.getJSON(ctx, keyCoupon, &code) {
		if coupon, ok := LookupCoupon(code); ok {
			s.coupon = &coupon
		}
	}

	var shippingID string
	if s.getJSON(ctx, keyShipping, &shippingID) {
		if _, ok := s.manager.shippingMethod(shippingID); ok {
			s.shippingID = shippingID
		}
	}

	var paymentID string
	if s.getJSON(ctx, keyPayment, &paymentID) {
		if _, ok := s.manager.paymentMethod(paymentID); ok {
			s.paymentID = paymentID
		}
	}

	s.getJSON(ctx, keyGuest, &s.guest)
	s.getJSON(ctx, keyNote, &s.note)
	s.getJSON(ctx, keyEmail, &s.email)

	var addr persistedAddress
	if s.getJSON(ctx, keyAddress, &addr) {
		s.address = addr.Address
		s.addressSaved = addr.Saved
	}
}

func (s *Session) getJSON(ctx context.Context, field string, dest any) bool {
	payload, err := s.manager.kv.Get(ctx, s.key(field))
	if err != nil {
		return false
	}
	return json.Unmarshal(payload, dest) == nil
}
