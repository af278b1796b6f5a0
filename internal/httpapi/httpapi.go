package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"

	"shoplite/backend/internal/account"
	"shoplite/backend/internal/analyzer"
	"shoplite/backend/internal/catalog"
	"shoplite/backend/internal/checkout"
	"shoplite/backend/internal/domain"
	"shoplite/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type API struct {
	repo          store.Repository
	checkout      *checkout.Manager
	accounts      *account.Manager
	analyzer      *analyzer.Engine
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	signupLimiter *attemptLimiter
	currency      string

	compareMu sync.Mutex
	compares  map[string]*catalog.CompareSet

	queryMu     sync.Mutex
	lastQueries map[string]domain.CatalogQuery
}

func New(repo store.Repository, checkoutMgr *checkout.Manager, accounts *account.Manager, analyzerEngine *analyzer.Engine, auth *AuthManager, allowedOrigin string, currency string) *API {
	if currency == "" {
		currency = "USD"
	}
	return &API{
		repo:          repo,
		checkout:      checkoutMgr,
		accounts:      accounts,
		analyzer:      analyzerEngine,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		signupLimiter: newAttemptLimiter(3, time.Minute),
		currency:      currency,
		compares:      make(map[string]*catalog.CompareSet),
		lastQueries:   make(map[string]domain.CatalogQuery),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// sessionKey identifies the checkout session and compare set for a request.
// Browsers send an explicit X-Session-ID; a logged-in shopper without one
// falls back to their email so the session follows the account.
func (a *API) sessionKey(r *http.Request) string {
	if sid := strings.TrimSpace(r.Header.Get("X-Session-ID")); sid != "" {
		return sid
	}
	if actor, ok := ActorFromContext(r.Context()); ok {
		return "user:" + actor.Email
	}
	return "anon:" + clientKey(r)
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/signup", a.handleSignup)
	mux.HandleFunc("/api/v1/auth/password-reset", a.handlePasswordReset)

	mux.HandleFunc("/api/v1/products", a.withOptionalAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.withOptionalAuth(a.handleProductByID))
	mux.HandleFunc("/api/v1/catalog/query", a.withOptionalAuth(a.handleCatalogQuery))
	mux.HandleFunc("/api/v1/catalog/compare", a.withOptionalAuth(a.handleCompare))
	mux.HandleFunc("/api/v1/catalog/compare/toggle", a.withOptionalAuth(a.handleCompareToggle))
	mux.HandleFunc("/api/v1/catalog/compare/clear", a.withOptionalAuth(a.handleCompareClear))

	mux.HandleFunc("/api/v1/checkout/state", a.withOptionalAuth(a.handleCheckoutState))
	mux.HandleFunc("/api/v1/checkout/cart/items", a.withOptionalAuth(a.handleCartItems))
	mux.HandleFunc("/api/v1/checkout/coupon", a.withOptionalAuth(a.handleCoupon))
	mux.HandleFunc("/api/v1/checkout/details", a.withOptionalAuth(a.handleDetails))
	mux.HandleFunc("/api/v1/checkout/shipping", a.withOptionalAuth(a.handleShipping))
	mux.HandleFunc("/api/v1/checkout/payment", a.withOptionalAuth(a.handlePayment))
	mux.HandleFunc("/api/v1/checkout/next", a.withOptionalAuth(a.handleNext))
	mux.HandleFunc("/api/v1/checkout/back", a.withOptionalAuth(a.handleBack))
	mux.HandleFunc("/api/v1/checkout/place-order", a.withOptionalAuth(a.handlePlaceOrder))
	mux.HandleFunc("/api/v1/checkout/return-to-cart", a.withOptionalAuth(a.handleReturnToCart))

	mux.HandleFunc("/api/v1/account/addresses", a.requireAuth(a.handleAddresses, domain.RoleShopper, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/account/addresses/", a.requireAuth(a.handleAddressActions, domain.RoleShopper, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/account/payment-methods", a.requireAuth(a.handlePaymentMethods, domain.RoleShopper, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/account/payment-methods/", a.requireAuth(a.handlePaymentMethodActions, domain.RoleShopper, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/account/wishlist", a.requireAuth(a.handleWishlist, domain.RoleShopper, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/account/wishlist/toggle", a.requireAuth(a.handleWishlistToggle, domain.RoleShopper, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/account/support", a.requireAuth(a.handleSupport, domain.RoleShopper, domain.RoleMerchant))

	mux.HandleFunc("/api/v1/dashboard/summary", a.requireAuth(a.handleDashboardSummary, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/dashboard/series", a.requireAuth(a.handleDashboardSeries, domain.RoleMerchant))
	mux.HandleFunc("/api/v1/admin/products/bulk", a.requireAuth(a.handleBulkProductAction, domain.RoleMerchant))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

// withOptionalAuth attaches the actor when a valid bearer token is present
// but lets anonymous requests through. Catalog browsing and guest checkout
// work without an account.
func (a *API) withOptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			token := strings.TrimSpace(authorization[len("Bearer "):])
			if actor, err := a.auth.ParseToken(token); err == nil {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
		}
		next(w, r)
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.signupLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many signup attempts"))
		return
	}

	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Signup(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PasswordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.auth.RequestPasswordReset(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.repo.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/products/"
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	product, err := a.repo.GetProductByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCatalogQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	req := catalog.DefaultQuery()
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// A remembered page only survives when the rest of the query is
	// unchanged since this session's last request.
	key := a.sessionKey(r)
	a.queryMu.Lock()
	if prev, ok := a.lastQueries[key]; ok {
		req = catalog.NextQuery(prev, req)
	}
	a.lastQueries[key] = req
	a.queryMu.Unlock()

	if req.OnlyWishlist {
		if actor, ok := ActorFromContext(r.Context()); ok {
			req.Wishlist = a.accounts.Wishlist(r.Context(), actor.Email)
		} else {
			req.Wishlist = map[string]struct{}{}
		}
	}

	products, err := a.repo.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, catalog.Query(products, req))
}

func (a *API) compareSet(key string) *catalog.CompareSet {
	a.compareMu.Lock()
	defer a.compareMu.Unlock()

	set, ok := a.compares[key]
	if !ok {
		set = catalog.NewCompareSet()
		a.compares[key] = set
	}
	return set
}

func (a *API) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	a.compareMu.Lock()
	defer a.compareMu.Unlock()
	set, ok := a.compares[a.sessionKey(r)]
	members := []string{}
	if ok {
		members = set.Members()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_ids": members,
		"limit":       catalog.MaxCompare,
	})
}

func (a *API) handleCompareToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("product_id required"))
		return
	}

	set := a.compareSet(a.sessionKey(r))
	a.compareMu.Lock()
	applied := set.Toggle(req.ProductID)
	members := set.Members()
	a.compareMu.Unlock()

	// A rejected fifth toggle is a soft warning, not a failure.
	writeJSON(w, http.StatusOK, map[string]any{
		"applied":     applied,
		"product_ids": members,
		"limit":       catalog.MaxCompare,
	})
}

func (a *API) handleCompareClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	set := a.compareSet(a.sessionKey(r))
	a.compareMu.Lock()
	set.Clear()
	a.compareMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) session(r *http.Request) *checkout.Session {
	return a.checkout.Session(r.Context(), a.sessionKey(r))
}

func (a *API) handleCheckoutState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.session(r).State())
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request) {
	session := a.session(r)

	switch r.Method {
	case http.MethodPost:
		var req domain.AddToCartRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.repo.GetProductByID(r.Context(), req.ProductID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, store.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		if err := session.AddItem(r.Context(), *product, req.Quantity); err != nil {
			writeError(w, checkoutStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	case http.MethodPatch:
		var req domain.QuantityUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := session.UpdateQuantity(r.Context(), req.ProductID, req.Quantity); err != nil {
			writeError(w, checkoutStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	case http.MethodDelete:
		productID := strings.TrimSpace(r.URL.Query().Get("product_id"))
		if productID == "" {
			writeError(w, http.StatusBadRequest, errors.New("product_id required"))
			return
		}
		if err := session.RemoveItem(r.Context(), productID); err != nil {
			writeError(w, checkoutStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCoupon(w http.ResponseWriter, r *http.Request) {
	session := a.session(r)

	switch r.Method {
	case http.MethodPost:
		var req domain.CouponApplyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := session.ApplyCoupon(r.Context(), req.Code); err != nil {
			writeError(w, checkoutStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	case http.MethodDelete:
		session.RemoveCoupon(r.Context())
		writeJSON(w, http.StatusOK, session.State())
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.DetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// A saved-address id resolves against the caller's address book.
	if req.AddressID != "" {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("saved addresses require login"))
			return
		}
		addr, found := a.accounts.Address(r.Context(), actor.Email, req.AddressID)
		if !found {
			writeError(w, http.StatusNotFound, errors.New("saved address not found"))
			return
		}
		req.Address = &addr
	}

	session := a.session(r)
	session.SetDetails(r.Context(), req)
	writeJSON(w, http.StatusOK, session.State())
}

func (a *API) handleShipping(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"methods": a.checkout.ShippingMethods()})
	case http.MethodPost:
		var req domain.SelectMethodRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		session := a.session(r)
		if err := session.SelectShipping(r.Context(), req.MethodID); err != nil {
			writeError(w, checkoutStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePayment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"methods": a.checkout.PaymentMethods()})
	case http.MethodPost:
		var req domain.SelectMethodRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		session := a.session(r)
		if err := session.SelectPayment(r.Context(), req.MethodID); err != nil {
			writeError(w, checkoutStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	session := a.session(r)
	if err := session.Next(r.Context()); err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, session.State())
}

func (a *API) handleBack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	session := a.session(r)
	if err := session.Back(r.Context()); err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, session.State())
}

func (a *API) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	session := a.session(r)
	order, err := session.PlaceOrder(r.Context())
	if err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order": order,
		"state": session.State(),
	})
}

func (a *API) handleReturnToCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	session := a.session(r)
	if err := session.ReturnToCart(r.Context()); err != nil {
		writeError(w, checkoutStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, session.State())
}

func (a *API) handleAddresses(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"addresses": a.accounts.ListAddresses(r.Context(), actor.Email)})
	case http.MethodPost:
		var req domain.Address
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.accounts.SaveAddress(r.Context(), actor.Email, req)
		if err != nil {
			writeError(w, accountStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"address": saved})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleAddressActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/account/addresses/"
	addressID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if addressID == "" {
		writeError(w, http.StatusBadRequest, errors.New("address id required"))
		return
	}

	actor, _ := ActorFromContext(r.Context())
	if err := a.accounts.RemoveAddress(r.Context(), actor.Email, addressID); err != nil {
		writeError(w, accountStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"payment_methods": a.accounts.ListPaymentMethods(r.Context(), actor.Email)})
	case http.MethodPost:
		var req domain.PaymentMethodCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		method, err := a.accounts.AddPaymentMethod(r.Context(), actor.Email, req)
		if err != nil {
			writeError(w, accountStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"payment_method": method})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePaymentMethodActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/account/payment-methods/"
	methodID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if methodID == "" {
		writeError(w, http.StatusBadRequest, errors.New("payment method id required"))
		return
	}

	actor, _ := ActorFromContext(r.Context())
	if err := a.accounts.RemovePaymentMethod(r.Context(), actor.Email, methodID); err != nil {
		writeError(w, accountStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleWishlist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"product_ids": a.accounts.WishlistIDs(r.Context(), actor.Email)})
}

func (a *API) handleWishlistToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("product_id required"))
		return
	}

	actor, _ := ActorFromContext(r.Context())
	wished, err := a.accounts.ToggleWishlist(r.Context(), actor.Email, req.ProductID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wished": wished})
}

func (a *API) handleSupport(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"messages": a.accounts.ListSupportMessages(r.Context(), actor.Email)})
	case http.MethodPost:
		var req domain.SupportRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		message, err := a.accounts.SubmitSupportMessage(r.Context(), actor.Email, req)
		if err != nil {
			writeError(w, accountStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": message})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.repo.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, a.analyzer.Summary(r.Context(), products, a.currency))
}

func (a *API) handleDashboardSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	metric := r.URL.Query().Get("metric")
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}
	writeJSON(w, http.StatusOK, a.analyzer.Series(r.Context(), metric, days))
}

func (a *API) handleBulkProductAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.BulkProductActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var applied int
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "set_in_stock":
		applied, err = a.repo.SetProductsAvailability(r.Context(), req.ProductIDs, true)
	case "set_out_of_stock":
		applied, err = a.repo.SetProductsAvailability(r.Context(), req.ProductIDs, false)
	case "delete":
		applied, err = a.repo.DeleteProducts(r.Context(), req.ProductIDs)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown bulk action"))
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.BulkProductActionResponse{
		Action:  strings.ToLower(strings.TrimSpace(req.Action)),
		Applied: applied,
	})
}

// checkoutStatus maps checkout sentinel errors to HTTP status codes.
func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrUnknownCoupon),
		errors.Is(err, checkout.ErrUnknownMethod):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrQuantityExceedsStock),
		errors.Is(err, checkout.ErrOutOfStock),
		errors.Is(err, checkout.ErrStepLocked),
		errors.Is(err, checkout.ErrNoBackTransition),
		errors.Is(err, checkout.ErrPlacingInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func accountStatus(err error) int {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrIncompleteAddress),
		errors.Is(err, account.ErrInvalidCardNumber),
		errors.Is(err, account.ErrInvalidExpiry),
		errors.Is(err, account.ErrMissingHolder),
		errors.Is(err, account.ErrEmptySupport):
		return http.StatusUnprocessableEntity
	default:
		// Backend rejection of an optimistic update.
		return http.StatusBadGateway
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Session-ID"},
		MaxAge:         300,
	})

	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})

	return corsMiddleware.Handler(wrapped)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internal details never reach
	// the client; 4xx messages are user-facing and pass through.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
