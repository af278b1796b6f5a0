package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"shoplite/backend/internal/domain"
	"shoplite/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	productOrder []string
	usersByEmail map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_MERCHANT_PASSWORD and
// SEED_SHOPPER_PASSWORD; hardcoded dev defaults apply when unset, with a
// warning printed to stdout.
func seedUsers() map[string]domain.UserAccount {
	merchantPwd := envOr("SEED_MERCHANT_PASSWORD", "merchant123")
	shopperPwd := envOr("SEED_SHOPPER_PASSWORD", "shopper123")
	if os.Getenv("SEED_MERCHANT_PASSWORD") == "" || os.Getenv("SEED_SHOPPER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_MERCHANT_PASSWORD and SEED_SHOPPER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		email    string
		fullName string
		password string
		role     string
	}{
		{"merchant@shoplite.dev", "Demo Merchant", merchantPwd, domain.RoleMerchant},
		{"shopper@shoplite.dev", "Demo Shopper", shopperPwd, domain.RoleShopper},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		users[u.email] = domain.UserAccount{
			Email:     u.email,
			Password:  string(hash),
			FullName:  u.fullName,
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "p-1001", Name: "Aurora Wireless Headphones", Price: 89.90, Category: "audio", SKU: "AUD-HP-1001", Brand: "Aurora", InventoryCount: intp(24), Description: "Over-ear wireless headphones with 30h battery."},
		{ID: "p-1002", Name: "Aurora Buds Mini", Price: 39.50, Category: "audio", SKU: "AUD-EB-1002", Brand: "Aurora", InventoryCount: intp(60)},
		{ID: "p-1003", Name: "Pulse Smart Watch", Price: 129.00, Category: "wearables", SKU: "WEA-SW-1003", Brand: "Pulse", InventoryCount: intp(15)},
		{ID: "p-1004", Name: "Pulse Fitness Band", Price: 49.00, Category: "wearables", SKU: "WEA-FB-1004", Brand: "Pulse", InventoryCount: intp(0)},
		{ID: "p-1005", Name: "Drift Mechanical Keyboard", Price: 75.00, Category: "accessories", SKU: "ACC-KB-1005", Brand: "Drift", InventoryCount: intp(32)},
		{ID: "p-1006", Name: "Drift Low-Profile Mouse", Price: 28.00, Category: "accessories", SKU: "ACC-MS-1006", Brand: "Drift", InventoryCount: intp(41)},
		{ID: "p-1007", Name: "Nimbus USB-C Hub", Price: 52.00, Category: "accessories", SKU: "ACC-HB-1007", Brand: "Nimbus", InventoryCount: intp(18)},
		{ID: "p-1008", Name: "Nimbus 65W Charger", Price: 33.90, Category: "accessories", SKU: "ACC-CH-1008", Brand: "Nimbus", InventoryCount: intp(55)},
		{ID: "p-1009", Name: "Vista 27\" Monitor", Price: 249.00, Category: "displays", SKU: "DSP-MN-1009", Brand: "Vista", InventoryCount: intp(7)},
		{ID: "p-1010", Name: "Vista Portable Screen", Price: 179.00, Category: "displays", SKU: "DSP-PS-1010", Brand: "Vista", InStock: boolp(false), InventoryCount: intp(4)},
		{ID: "p-1011", Name: "Terra Desk Mat XL", Price: 19.90, Category: "accessories", SKU: "ACC-DM-1011", Brand: "Terra", InventoryCount: intp(90)},
		{ID: "p-1012", Name: "Terra Laptop Stand", Price: 42.50, Category: "accessories", SKU: "ACC-LS-1012", Brand: "Terra", InventoryCount: intp(26)},
	}

	productMap := make(map[string]domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		productMap[p.ID] = p
		order = append(order, p.ID)
	}

	return &Store{
		products:     productMap,
		productOrder: order,
		usersByEmail: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		if p, ok := s.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SetProductsAvailability(_ context.Context, ids []string, inStock bool) (int, error) {
	if len(ids) == 0 {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		flag := inStock
		p.InStock = &flag
		s.products[id] = p
		applied++
	}
	return applied, nil
}

func (s *Store) DeleteProducts(_ context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, id := range ids {
		if _, ok := s.products[id]; !ok {
			continue
		}
		delete(s.products, id)
		applied++
	}
	if applied > 0 {
		kept := make([]string, 0, len(s.productOrder))
		for _, id := range s.productOrder {
			if _, ok := s.products[id]; ok {
				kept = append(kept, id)
			}
		}
		s.productOrder = kept
	}
	return applied, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Email == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return store.ErrInvalidInput
	}
	s.usersByEmail[user.Email] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByEmail))
	for _, user := range s.usersByEmail {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, email string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByEmail[email]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByEmail[email] = user
	return nil
}
