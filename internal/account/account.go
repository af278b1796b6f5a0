package account

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"shoplite/backend/internal/domain"
	"shoplite/backend/internal/xid"
)

var (
	ErrIncompleteAddress = errors.New("address is missing required fields")
	ErrInvalidCardNumber = errors.New("card number must be 13-19 digits")
	ErrInvalidExpiry     = errors.New("expiry must be in MM/YY format")
	ErrMissingHolder     = errors.New("card holder name is required")
	ErrEmptySupport      = errors.New("support subject and body are required")
	ErrNotFound          = errors.New("account record not found")
)

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{13,19}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
)

// Backend is the external confirmation port for profile mutations. The
// manager applies each change optimistically and rolls it back when the
// backend rejects it.
type Backend interface {
	ConfirmAddressSave(ctx context.Context, email string, address domain.Address) error
	ConfirmAddressRemove(ctx context.Context, email string, addressID string) error
	ConfirmPaymentSave(ctx context.Context, email string, method domain.SavedPaymentMethod) error
	ConfirmPaymentRemove(ctx context.Context, email string, methodID string) error
	ConfirmWishlistToggle(ctx context.Context, email string, productID string, wished bool) error
	ConfirmSupportMessage(ctx context.Context, message domain.SupportMessage) error
}

// AcceptAllBackend confirms every mutation. It is the demo-mode backend.
type AcceptAllBackend struct{}

func (AcceptAllBackend) ConfirmAddressSave(context.Context, string, domain.Address) error {
	return nil
}
func (AcceptAllBackend) ConfirmAddressRemove(context.Context, string, string) error { return nil }
func (AcceptAllBackend) ConfirmPaymentSave(context.Context, string, domain.SavedPaymentMethod) error {
	return nil
}
func (AcceptAllBackend) ConfirmPaymentRemove(context.Context, string, string) error { return nil }
func (AcceptAllBackend) ConfirmWishlistToggle(context.Context, string, string, bool) error {
	return nil
}
func (AcceptAllBackend) ConfirmSupportMessage(context.Context, domain.SupportMessage) error {
	return nil
}

type profile struct {
	addresses []domain.Address
	payments  []domain.SavedPaymentMethod
	wishlist  map[string]struct{}
	support   []domain.SupportMessage
}

// Manager holds per-user profile state: saved addresses, saved payment
// methods, the wishlist and submitted support messages. Mutations follow
// an optimistic two-phase flow: the tentative state is applied first, the
// backend is asked to confirm, and a rejection restores the prior
// snapshot.
type Manager struct {
	mu       sync.Mutex
	backend  Backend
	profiles map[string]*profile
}

func NewManager(backend Backend) *Manager {
	if backend == nil {
		backend = AcceptAllBackend{}
	}
	return &Manager{
		backend:  backend,
		profiles: make(map[string]*profile),
	}
}

func (m *Manager) profileLocked(email string) *profile {
	p, ok := m.profiles[email]
	if !ok {
		p = &profile{wishlist: make(map[string]struct{})}
		m.profiles[email] = p
	}
	return p
}

func (m *Manager) SaveAddress(ctx context.Context, email string, address domain.Address) (domain.Address, error) {
	if !address.Complete() {
		return domain.Address{}, ErrIncompleteAddress
	}
	if address.ID == "" {
		address.ID = xid.New("addr")
	}

	m.mu.Lock()
	p := m.profileLocked(email)
	prior := append([]domain.Address(nil), p.addresses...)
	p.addresses = append(p.addresses, address)
	m.mu.Unlock()

	if err := m.backend.ConfirmAddressSave(ctx, email, address); err != nil {
		m.mu.Lock()
		p.addresses = prior
		m.mu.Unlock()
		return domain.Address{}, err
	}
	return address, nil
}

func (m *Manager) RemoveAddress(ctx context.Context, email string, addressID string) error {
	m.mu.Lock()
	p := m.profileLocked(email)
	prior := append([]domain.Address(nil), p.addresses...)
	kept := make([]domain.Address, 0, len(p.addresses))
	removed := false
	for _, addr := range p.addresses {
		if addr.ID == addressID {
			removed = true
			continue
		}
		kept = append(kept, addr)
	}
	if !removed {
		m.mu.Unlock()
		return ErrNotFound
	}
	p.addresses = kept
	m.mu.Unlock()

	if err := m.backend.ConfirmAddressRemove(ctx, email, addressID); err != nil {
		m.mu.Lock()
		p.addresses = prior
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) ListAddresses(_ context.Context, email string) []domain.Address {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(email)
	return append([]domain.Address(nil), p.addresses...)
}

func (m *Manager) Address(_ context.Context, email string, addressID string) (domain.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(email)
	for _, addr := range p.addresses {
		if addr.ID == addressID {
			return addr, true
		}
	}
	return domain.Address{}, false
}

// AddPaymentMethod validates the raw card input and stores a reference
// carrying only the last four digits of the number.
func (m *Manager) AddPaymentMethod(ctx context.Context, email string, req domain.PaymentMethodCreateRequest) (domain.SavedPaymentMethod, error) {
	holder := strings.TrimSpace(req.Holder)
	number := strings.ReplaceAll(strings.TrimSpace(req.CardNumber), " ", "")
	expiry := strings.TrimSpace(req.Expiry)

	if holder == "" {
		return domain.SavedPaymentMethod{}, ErrMissingHolder
	}
	if !cardNumberPattern.MatchString(number) {
		return domain.SavedPaymentMethod{}, ErrInvalidCardNumber
	}
	if !expiryPattern.MatchString(expiry) {
		return domain.SavedPaymentMethod{}, ErrInvalidExpiry
	}

	method := domain.SavedPaymentMethod{
		ID:        xid.New("pm"),
		Holder:    holder,
		Last4:     number[len(number)-4:],
		Expiry:    expiry,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	p := m.profileLocked(email)
	prior := append([]domain.SavedPaymentMethod(nil), p.payments...)
	p.payments = append(p.payments, method)
	m.mu.Unlock()

	if err := m.backend.ConfirmPaymentSave(ctx, email, method); err != nil {
		m.mu.Lock()
		p.payments = prior
		m.mu.Unlock()
		return domain.SavedPaymentMethod{}, err
	}
	return method, nil
}

func (m *Manager) RemovePaymentMethod(ctx context.Context, email string, methodID string) error {
	m.mu.Lock()
	p := m.profileLocked(email)
	prior := append([]domain.SavedPaymentMethod(nil), p.payments...)
	kept := make([]domain.SavedPaymentMethod, 0, len(p.payments))
	removed := false
	for _, method := range p.payments {
		if method.ID == methodID {
			removed = true
			continue
		}
		kept = append(kept, method)
	}
	if !removed {
		m.mu.Unlock()
		return ErrNotFound
	}
	p.payments = kept
	m.mu.Unlock()

	if err := m.backend.ConfirmPaymentRemove(ctx, email, methodID); err != nil {
		m.mu.Lock()
		p.payments = prior
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) ListPaymentMethods(_ context.Context, email string) []domain.SavedPaymentMethod {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(email)
	return append([]domain.SavedPaymentMethod(nil), p.payments...)
}

// ToggleWishlist flips membership for the given product id and returns the
// new membership state. A backend rejection restores the prior state.
func (m *Manager) ToggleWishlist(ctx context.Context, email string, productID string) (bool, error) {
	m.mu.Lock()
	p := m.profileLocked(email)
	_, was := p.wishlist[productID]
	wished := !was
	if wished {
		p.wishlist[productID] = struct{}{}
	} else {
		delete(p.wishlist, productID)
	}
	m.mu.Unlock()

	if err := m.backend.ConfirmWishlistToggle(ctx, email, productID, wished); err != nil {
		m.mu.Lock()
		if was {
			p.wishlist[productID] = struct{}{}
		} else {
			delete(p.wishlist, productID)
		}
		m.mu.Unlock()
		return was, err
	}
	return wished, nil
}

// Wishlist returns a copy of the membership set, usable directly as the
// catalog query's wishlist filter input.
func (m *Manager) Wishlist(_ context.Context, email string) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(email)
	set := make(map[string]struct{}, len(p.wishlist))
	for id := range p.wishlist {
		set[id] = struct{}{}
	}
	return set
}

func (m *Manager) WishlistIDs(ctx context.Context, email string) []string {
	set := m.Wishlist(ctx, email)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) SubmitSupportMessage(ctx context.Context, email string, req domain.SupportRequest) (domain.SupportMessage, error) {
	subject := strings.TrimSpace(req.Subject)
	body := strings.TrimSpace(req.Body)
	if subject == "" || body == "" {
		return domain.SupportMessage{}, ErrEmptySupport
	}

	message := domain.SupportMessage{
		ID:        xid.New("sup"),
		Email:     email,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	p := m.profileLocked(email)
	prior := append([]domain.SupportMessage(nil), p.support...)
	p.support = append(p.support, message)
	m.mu.Unlock()

	if err := m.backend.ConfirmSupportMessage(ctx, message); err != nil {
		m.mu.Lock()
		p.support = prior
		m.mu.Unlock()
		return domain.SupportMessage{}, err
	}
	return message, nil
}

func (m *Manager) ListSupportMessages(_ context.Context, email string) []domain.SupportMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.profileLocked(email)
	return append([]domain.SupportMessage(nil), p.support...)
}
