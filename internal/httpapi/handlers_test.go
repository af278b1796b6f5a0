package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shoplite/backend/internal/account"
	"shoplite/backend/internal/analyzer"
	"shoplite/backend/internal/cache"
	"shoplite/backend/internal/checkout"
	"shoplite/backend/internal/domain"
	kvmemory "shoplite/backend/internal/kvstore/memory"
	"shoplite/backend/internal/store/memory"
)

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	submitter := checkout.SubmitterFunc(func(_ context.Context, _ domain.Order) error { return nil })
	checkoutMgr := checkout.NewManager(kvmemory.New(), submitter, 0.0725, "USD")
	accounts := account.NewManager(account.AcceptAllBackend{})
	engine := analyzer.NewEngine(cache.NoopAnalyticsCache{}, time.Second)
	auth := NewAuthManager("test-secret-0123456789-0123456789", time.Hour, repo)

	return New(repo, checkoutMgr, accounts, engine, auth, "*", "USD").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func loginAs(t *testing.T, handler http.Handler, email, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", email, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" {
		t.Fatalf("login returned no token: %s", rec.Body.String())
	}
	return resp.AccessToken
}

func TestHealthz(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginSeededAccounts(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Email: "merchant@shoplite.dev", Password: "merchant123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.Role != domain.RoleMerchant {
		t.Fatalf("expected merchant role, got %q", resp.Role)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Email: "merchant@shoplite.dev", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	handler := newTestAPI(t)

	// httptest requests share a RemoteAddr, so five attempts exhaust the
	// per-client window.
	for i := 0; i < 5; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Email: "merchant@shoplite.dev", Password: "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Email: "merchant@shoplite.dev", Password: "merchant123"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the sixth attempt, got %d", rec.Code)
	}
}

func TestSignup(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/signup", "", "", domain.SignupRequest{
		Email: "new@shoplite.dev", FullName: "New Shopper", Password: "short", ConfirmPassword: "short",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a weak password, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/signup", "", "", domain.SignupRequest{
		Email: "new@shoplite.dev", FullName: "New Shopper", Password: "longenough", ConfirmPassword: "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.Role != domain.RoleShopper {
		t.Fatalf("signup must create a shopper, got %q", resp.Role)
	}
}

func TestCatalogQueryEndpoint(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/catalog/query", "", "", map[string]any{
		"query":     "aurora",
		"page_size": 12,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page domain.CatalogPage
	decodeBody(t, rec, &page)
	if page.Total != 2 {
		t.Fatalf("expected 2 Aurora products, got %d", page.Total)
	}
}

func TestCatalogQueryResetsPageOnFilterChange(t *testing.T) {
	handler := newTestAPI(t)
	sid := "catalog-pages"

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/catalog/query", "", sid, map[string]any{
		"page_size": 2,
		"page":      2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page domain.CatalogPage
	decodeBody(t, rec, &page)
	if page.CurrentPage != 2 {
		t.Fatalf("expected page 2 honored, got %d", page.CurrentPage)
	}

	// The accessories category still spans 3 pages at this page size, so a
	// carried-over page 2 would be valid; only the reset lands on page 1.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/catalog/query", "", sid, map[string]any{
		"page_size": 2,
		"page":      2,
		"category":  "accessories",
	})
	decodeBody(t, rec, &page)
	if page.CurrentPage != 1 {
		t.Fatalf("filter change must reset to page 1, got %d", page.CurrentPage)
	}
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 accessory pages, got %d", page.TotalPages)
	}

	// Repeating the same query keeps the page the shopper navigates to.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/catalog/query", "", sid, map[string]any{
		"page_size": 2,
		"page":      3,
		"category":  "accessories",
	})
	decodeBody(t, rec, &page)
	if page.CurrentPage != 3 {
		t.Fatalf("expected page 3 honored on an unchanged query, got %d", page.CurrentPage)
	}
}

func TestCompareToggleCapOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	sid := "cmp-1"

	for i, id := range []string{"p-1001", "p-1002", "p-1003", "p-1005"} {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/catalog/compare/toggle", "", sid, map[string]string{"product_id": id})
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/catalog/compare/toggle", "", sid, map[string]string{"product_id": "p-1006"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a soft 200 on the rejected toggle, got %d", rec.Code)
	}
	var resp struct {
		Applied    bool     `json:"applied"`
		ProductIDs []string `json:"product_ids"`
	}
	decodeBody(t, rec, &resp)
	if resp.Applied {
		t.Fatalf("fifth toggle-on must not apply")
	}
	if len(resp.ProductIDs) != 4 {
		t.Fatalf("expected 4 members after rejection, got %v", resp.ProductIDs)
	}

	// A different session has its own set.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/catalog/compare/toggle", "", "cmp-2", map[string]string{"product_id": "p-1006"})
	decodeBody(t, rec, &resp)
	if !resp.Applied {
		t.Fatalf("fresh session toggle must apply")
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t)
	sid := "flow-1"

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout/cart/items", "", sid, domain.AddToCartRequest{ProductID: "p-1006", Quantity: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("add p-1006: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/cart/items", "", sid, domain.AddToCartRequest{ProductID: "p-1007", Quantity: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("add p-1007: expected 200, got %d", rec.Code)
	}

	// p-1004 has zero inventory and must be rejected.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/cart/items", "", sid, domain.AddToCartRequest{ProductID: "p-1004", Quantity: 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an out-of-stock add, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/coupon", "", sid, domain.CouponApplyRequest{Code: "NOPE"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an unknown coupon, got %d", rec.Code)
	}

	guest := true
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/details", "", sid, domain.DetailsRequest{
		Email:         "guest@example.com",
		GuestCheckout: &guest,
		Address: &domain.Address{
			FullName: "Guest Shopper", Line1: "1 Demo Street", City: "Springfield", PostalCode: "12345", Country: "US",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("details: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	for i := 0; i < 4; i++ {
		rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/next", "", sid, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("next %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	var state domain.CheckoutStateResponse
	decodeBody(t, rec, &state)
	if state.Step != domain.StepReview {
		t.Fatalf("expected review step, got %s", state.Step)
	}
	if state.Totals.Total != 91.80 {
		t.Fatalf("expected total 91.80 on review, got %v", state.Totals.Total)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/place-order", "", sid, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("place-order: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var placed struct {
		Order domain.Order                 `json:"order"`
		State domain.CheckoutStateResponse `json:"state"`
	}
	decodeBody(t, rec, &placed)
	if placed.Order.ID == "" || placed.Order.Total != 91.80 {
		t.Fatalf("unexpected order: %+v", placed.Order)
	}
	if placed.State.Step != domain.StepSuccess || len(placed.State.Cart) != 0 {
		t.Fatalf("expected an empty cart on success, got %+v", placed.State)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/return-to-cart", "", sid, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("return-to-cart: expected 200, got %d", rec.Code)
	}
}

func TestDetailsRejectsFabricatedInlineAddressID(t *testing.T) {
	handler := newTestAPI(t)
	sid := "flow-fake-addr"

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/checkout/cart/items", "", sid, domain.AddToCartRequest{ProductID: "p-1006", Quantity: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/next", "", sid, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cart->details: expected 200, got %d", rec.Code)
	}

	// An inline address carrying only a made-up id is not a saved-address
	// selection, so the details guard must hold the step.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/details", "", sid, domain.DetailsRequest{
		Address: &domain.Address{ID: "addr-fabricated"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("details: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/next", "", sid, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 advancing with an incomplete address, got %d: %s", rec.Code, rec.Body.String())
	}
	var state domain.CheckoutStateResponse
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/checkout/state", "", sid, nil)
	decodeBody(t, rec, &state)
	if state.Step != domain.StepDetails {
		t.Fatalf("expected step held at details, got %s", state.Step)
	}
}

func TestAccountRoutesRequireAuth(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/account/addresses", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	token := loginAs(t, handler, "shopper@shoplite.dev", "shopper123")
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/account/addresses", token, "", domain.Address{
		FullName: "Demo Shopper", Line1: "1 Demo Street", City: "Springfield", PostalCode: "12345", Country: "US",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Address domain.Address `json:"address"`
	}
	decodeBody(t, rec, &created)
	if created.Address.ID == "" {
		t.Fatalf("expected an assigned address id")
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/account/addresses/"+created.Address.ID, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete address: expected 200, got %d", rec.Code)
	}
}

func TestDashboardIsMerchantOnly(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/summary", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	shopperToken := loginAs(t, handler, "shopper@shoplite.dev", "shopper123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/summary", shopperToken, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a shopper, got %d", rec.Code)
	}

	merchantToken := loginAs(t, handler, "merchant@shoplite.dev", "merchant123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/summary", merchantToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a merchant, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary domain.SalesSummary
	decodeBody(t, rec, &summary)
	if summary.Revenue <= 0 || summary.Orders <= 0 {
		t.Fatalf("expected synthetic volume, got %+v", summary)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/series?metric=orders&days=7", merchantToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("series: expected 200, got %d", rec.Code)
	}
	var series domain.SalesSeries
	decodeBody(t, rec, &series)
	if series.Metric != "orders" || len(series.Points) != 7 {
		t.Fatalf("unexpected series: metric=%q points=%d", series.Metric, len(series.Points))
	}
}

func TestBulkProductActions(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAs(t, handler, "merchant@shoplite.dev", "merchant123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/admin/products/bulk", token, "", domain.BulkProductActionRequest{
		Action:     "set_out_of_stock",
		ProductIDs: []string{"p-1001", "p-missing"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.BulkProductActionResponse
	decodeBody(t, rec, &resp)
	if resp.Applied != 1 {
		t.Fatalf("expected 1 applied, got %d", resp.Applied)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/admin/products/bulk", token, "", domain.BulkProductActionRequest{
		Action:     "delete",
		ProductIDs: []string{"p-1011"},
	})
	decodeBody(t, rec, &resp)
	if resp.Applied != 1 {
		t.Fatalf("expected 1 deleted, got %d", resp.Applied)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/p-1011", "", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a deleted product, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/admin/products/bulk", token, "", domain.BulkProductActionRequest{
		Action: "explode", ProductIDs: []string{"p-1002"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown action, got %d", rec.Code)
	}
}
