// Package catalog derives the visible page of products from the full list
// and the current filter/sort/page selection. It is a pure transform: no
// state, no side effects, recomputed on every parameter change.
package catalog

import (
	"math"
	"sort"
	"strings"

	"shoplite/backend/internal/domain"
)

const DefaultPageSize = 12

// DefaultQuery is the state the "reset filters" action restores: all
// filter fields cleared and the page back at 1.
func DefaultQuery() domain.CatalogQuery {
	return domain.CatalogQuery{
		Category: domain.CategoryAll,
		Sort:     domain.SortRelevance,
		PageSize: DefaultPageSize,
		Page:     1,
	}
}

// NextQuery merges a newly submitted query with the previous one for the
// same session. The remembered page carries over only when every other
// parameter is unchanged; any change to a filter, the sort order or the
// page size resets the page to 1.
func NextQuery(prev, next domain.CatalogQuery) domain.CatalogQuery {
	if next.Query != prev.Query ||
		next.Category != prev.Category ||
		next.Sort != prev.Sort ||
		next.PageSize != prev.PageSize ||
		next.OnlyInStock != prev.OnlyInStock ||
		next.OnlyWishlist != prev.OnlyWishlist {
		next.Page = 1
	}
	return next
}

// Query applies the conjunctive filters in order (free text, category,
// in-stock, wishlist), then a stable sort, then pagination. The remembered
// page is clamped down when the filtered set shrinks, never up. An empty
// result is a normal page with Total == 0, not an error.
func Query(products []domain.Product, q domain.CatalogQuery) domain.CatalogPage {
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	category := strings.TrimSpace(q.Category)

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if needle != "" && !matchesQuery(p, needle) {
			continue
		}
		if category != "" && category != domain.CategoryAll && p.Category != category {
			continue
		}
		if q.OnlyInStock && !p.Available() {
			continue
		}
		if q.OnlyWishlist {
			if _, ok := q.Wishlist[p.ID]; !ok {
				continue
			}
		}
		filtered = append(filtered, p)
	}

	sortProducts(filtered, q.Sort)

	total := len(filtered)
	totalPages := int(math.Ceil(float64(total) / float64(q.PageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	page := q.Page
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	return domain.CatalogPage{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		Items:       filtered[start:end],
	}
}

func matchesQuery(p domain.Product, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Brand), needle) ||
		strings.Contains(strings.ToLower(p.SKU), needle)
}

// sortProducts reorders in place. Relevance keeps the input order; all
// other options use a stable sort so equal keys preserve it too.
func sortProducts(products []domain.Product, option domain.SortOption) {
	switch option {
	case domain.SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case domain.SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case domain.SortNameAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
		})
	case domain.SortNameDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Name) > strings.ToLower(products[j].Name)
		})
	case domain.SortNewest:
		// Descending lexical compare on id: a proxy for recency, not a
		// timestamp.
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].ID > products[j].ID
		})
	default:
		// relevance: original order preserved
	}
}
