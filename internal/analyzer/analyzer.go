package analyzer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"shoplite/backend/internal/cache"
	"shoplite/backend/internal/domain"
)

const (
	MetricRevenue = "revenue"
	MetricOrders  = "orders"

	lowStockThreshold = 5
)

// Engine derives the merchant dashboard numbers. There is no real sales
// ledger behind the demo, so both the summary and the chart series are
// deterministic functions of the catalog and the requested window: the
// same inputs always produce the same output, which also makes the cache
// layer safe to keep warm.
type Engine struct {
	cache    cache.AnalyticsCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.AnalyticsCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopAnalyticsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Summary builds the headline block from the current catalog. Per-product
// unit volume is synthesized from a hash of the product id so the demo
// numbers are stable across restarts.
func (e *Engine) Summary(ctx context.Context, products []domain.Product, currency string) domain.SalesSummary {
	key := summaryCacheKey(products, currency)
	if cached, ok, err := e.cache.GetSummary(ctx, key); err == nil && ok {
		return *cached
	}

	revenue := 0.0
	orders := 0
	lowStock := 0
	revenueByCategory := make(map[string]float64)

	for _, p := range products {
		units := syntheticUnits(p.ID)
		sold := p.Price * float64(units)
		revenue += sold
		orders += units
		revenueByCategory[p.Category] += sold

		if !p.Available() || p.Stock() < lowStockThreshold {
			lowStock++
		}
	}

	topCategory := ""
	topRevenue := 0.0
	for category, value := range revenueByCategory {
		if value > topRevenue || (value == topRevenue && category < topCategory) {
			topCategory = category
			topRevenue = value
		}
	}

	summary := domain.SalesSummary{
		Currency:      currency,
		Revenue:       round2(revenue),
		Orders:        orders,
		LowStockCount: lowStock,
		TopCategory:   topCategory,
	}
	if orders > 0 {
		summary.AvgOrderValue = round2(revenue / float64(orders))
	}

	_ = e.cache.SetSummary(ctx, key, &summary, e.cacheTTL)
	return summary
}

// Series produces a daily chart ending today. Values are synthesized from
// a hash of (metric, date) so any given day always plots the same.
func (e *Engine) Series(ctx context.Context, metric string, days int) domain.SalesSeries {
	metric = normalizeMetric(metric)
	if days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	key := seriesCacheKey(metric, days, today)
	if cached, ok, err := e.cache.GetSeries(ctx, key); err == nil && ok {
		return *cached
	}

	base, spread := metricShape(metric)
	points := make([]domain.SeriesPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		date := day.Format("2006-01-02")

		// Weekends dip, and a hashed jitter keeps the line organic.
		factor := 1.0
		switch day.Weekday() {
		case time.Saturday:
			factor = 0.80
		case time.Sunday:
			factor = 0.65
		}
		jitter := hashUnit(metric + "|" + date)

		points = append(points, domain.SeriesPoint{
			Date:  date,
			Value: round2((base + spread*jitter) * factor),
		})
	}

	series := domain.SalesSeries{
		Metric: metric,
		Days:   days,
		Points: points,
	}
	_ = e.cache.SetSeries(ctx, key, &series, e.cacheTTL)
	return series
}

func normalizeMetric(metric string) string {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case MetricOrders:
		return MetricOrders
	default:
		return MetricRevenue
	}
}

func metricShape(metric string) (base float64, spread float64) {
	if metric == MetricOrders {
		return 12, 18
	}
	return 450, 700
}

// syntheticUnits maps a product id to a stable unit count in [3, 42].
func syntheticUnits(id string) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return 3 + int(h.Sum32()%40)
}

// hashUnit maps a string to a stable value in [0, 1).
func hashUnit(s string) float64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return float64(h.Sum64()%10000) / 10000
}

func summaryCacheKey(products []domain.Product, currency string) string {
	parts := make([]string, 0, len(products)+1)
	parts = append(parts, currency)
	for _, p := range products {
		parts = append(parts, fmt.Sprintf("%s:%.2f:%d:%t", p.ID, p.Price, p.Stock(), p.Available()))
	}
	sort.Strings(parts)

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "shoplite:analytics:summary:" + hex.EncodeToString(hash[:])
}

func seriesCacheKey(metric string, days int, today time.Time) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%s", metric, days, today.Format("2006-01-02"))))
	return "shoplite:analytics:series:" + hex.EncodeToString(hash[:])
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
