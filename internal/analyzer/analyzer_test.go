package analyzer

import (
	"context"
	"testing"
	"time"

	"shoplite/backend/internal/domain"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func dashboardProducts() []domain.Product {
	return []domain.Product{
		{ID: "p-01", Name: "Headphones", Category: "audio", Price: 90, InventoryCount: intp(10)},
		{ID: "p-02", Name: "Earbuds", Category: "audio", Price: 40, InventoryCount: intp(0)},
		{ID: "p-03", Name: "Watch", Category: "wearables", Price: 130, InventoryCount: intp(3)},
		{ID: "p-04", Name: "Mouse", Category: "accessories", Price: 28, InStock: boolp(false), InventoryCount: intp(12)},
	}
}

// recordingCache counts round trips so the cache wiring can be observed
// without a running redis.
type recordingCache struct {
	summary    *domain.SalesSummary
	series     *domain.SalesSeries
	summaryGet int
	summarySet int
	seriesGet  int
	seriesSet  int
}

func (c *recordingCache) GetSummary(_ context.Context, _ string) (*domain.SalesSummary, bool, error) {
	c.summaryGet++
	if c.summary == nil {
		return nil, false, nil
	}
	return c.summary, true, nil
}

func (c *recordingCache) SetSummary(_ context.Context, _ string, value *domain.SalesSummary, _ time.Duration) error {
	c.summarySet++
	c.summary = value
	return nil
}

func (c *recordingCache) GetSeries(_ context.Context, _ string) (*domain.SalesSeries, bool, error) {
	c.seriesGet++
	if c.series == nil {
		return nil, false, nil
	}
	return c.series, true, nil
}

func (c *recordingCache) SetSeries(_ context.Context, _ string, value *domain.SalesSeries, _ time.Duration) error {
	c.seriesSet++
	c.series = value
	return nil
}

func TestSummaryIsDeterministic(t *testing.T) {
	engine := NewEngine(nil, time.Second)
	ctx := context.Background()

	first := engine.Summary(ctx, dashboardProducts(), "USD")
	second := engine.Summary(ctx, dashboardProducts(), "USD")

	if first.Revenue != second.Revenue || first.Orders != second.Orders {
		t.Fatalf("summary drifted between runs: %+v vs %+v", first, second)
	}
	if first.Currency != "USD" {
		t.Fatalf("expected currency USD, got %q", first.Currency)
	}
	if first.Orders <= 0 || first.Revenue <= 0 {
		t.Fatalf("expected positive synthetic volume, got %+v", first)
	}
	if first.AvgOrderValue != round2(first.Revenue/float64(first.Orders)) {
		t.Fatalf("avg order value inconsistent: %+v", first)
	}
}

func TestSummaryCountsLowStock(t *testing.T) {
	engine := NewEngine(nil, time.Second)

	// p-02 has zero inventory, p-03 is below the threshold, p-04 is
	// flagged out of stock despite inventory.
	summary := engine.Summary(context.Background(), dashboardProducts(), "USD")
	if summary.LowStockCount != 3 {
		t.Fatalf("expected 3 low-stock products, got %d", summary.LowStockCount)
	}
	if summary.TopCategory == "" {
		t.Fatalf("expected a top category")
	}
}

func TestSummaryUsesCache(t *testing.T) {
	cacheStore := &recordingCache{}
	engine := NewEngine(cacheStore, time.Second)
	ctx := context.Background()

	first := engine.Summary(ctx, dashboardProducts(), "USD")
	if cacheStore.summarySet != 1 {
		t.Fatalf("expected a cache write on miss, got %d", cacheStore.summarySet)
	}

	second := engine.Summary(ctx, dashboardProducts(), "USD")
	if cacheStore.summaryGet != 2 || cacheStore.summarySet != 1 {
		t.Fatalf("expected the second call served from cache, gets=%d sets=%d", cacheStore.summaryGet, cacheStore.summarySet)
	}
	if first.Revenue != second.Revenue {
		t.Fatalf("cached summary diverged: %+v vs %+v", first, second)
	}
}

func TestSeriesShape(t *testing.T) {
	engine := NewEngine(nil, time.Second)
	ctx := context.Background()

	series := engine.Series(ctx, "revenue", 14)
	if series.Days != 14 || len(series.Points) != 14 {
		t.Fatalf("expected 14 points, got days=%d len=%d", series.Days, len(series.Points))
	}

	today := time.Now().UTC().Format("2006-01-02")
	if series.Points[len(series.Points)-1].Date != today {
		t.Fatalf("expected the series to end today, got %s", series.Points[len(series.Points)-1].Date)
	}
	for i, point := range series.Points {
		if point.Value < 0 {
			t.Fatalf("point %d has negative value: %+v", i, point)
		}
	}

	again := engine.Series(ctx, "revenue", 14)
	for i := range series.Points {
		if series.Points[i] != again.Points[i] {
			t.Fatalf("series drifted at %d: %+v vs %+v", i, series.Points[i], again.Points[i])
		}
	}
}

func TestSeriesNormalizesMetricAndWindow(t *testing.T) {
	engine := NewEngine(nil, time.Second)
	ctx := context.Background()

	series := engine.Series(ctx, " ORDERS ", 0)
	if series.Metric != MetricOrders {
		t.Fatalf("expected metric normalized to orders, got %q", series.Metric)
	}
	if series.Days != 30 {
		t.Fatalf("expected default window of 30, got %d", series.Days)
	}

	series = engine.Series(ctx, "made-up", 9999)
	if series.Metric != MetricRevenue {
		t.Fatalf("unknown metric must fall back to revenue, got %q", series.Metric)
	}
	if series.Days != 365 {
		t.Fatalf("expected window clamped to 365, got %d", series.Days)
	}
}
