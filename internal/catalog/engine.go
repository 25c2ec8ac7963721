package catalog

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/store"
)

const (
	PageStep       = 20
	recentSearches = 10
)

// QueryParams are the filter hints carried by an inbound navigation
// link. A param is only consulted when the sidebar facet for the same
// dimension is empty, so a stale link never overrides a deliberate
// sidebar choice.
type QueryParams struct {
	Category string
	Brand    string
	Gender   string
	Product  string
	Search   string
}

// Engine derives the displayed product sequence from the base catalog,
// the sidebar facet state, URL params, free-text search and a
// load-more cursor. One mutex covers everything: even reads move the
// cursor through syncCursor, so there is no read-only fast path.
type Engine struct {
	st *store.Store

	mu      sync.Mutex
	items   []models.CatalogItem
	filters models.FilterState
	params  QueryParams
	search  string

	pageSize    int
	fingerprint string
}

func NewEngine(st *store.Store) (*Engine, error) {
	e := &Engine{st: st, pageSize: PageStep}
	if st != nil {
		if _, err := st.GetJSON(store.KeyFilterState, &e.filters); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetCatalog replaces the base catalog; slice order is the insertion
// order used for tie-breaking. The engine never mutates the slice.
func (e *Engine) SetCatalog(items []models.CatalogItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = items
}

func (e *Engine) Catalog() []models.CatalogItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.items
}

func (e *Engine) Filters() models.FilterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filters
}

func (e *Engine) SetFilters(f models.FilterState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = f
	return e.persistFilters()
}

func (e *Engine) ClearFilters() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = models.FilterState{SortBy: e.filters.SortBy}
	return e.persistFilters()
}

func (e *Engine) SetSortBy(sortBy string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters.SortBy = sortBy
	return e.persistFilters()
}

func (e *Engine) persistFilters() error {
	if e.st == nil {
		return nil
	}
	return e.st.PutJSON(store.KeyFilterState, e.filters)
}

// SetQueryParams replaces the navigation context. The search term
// follows the q param: a navigation that carries none clears any
// previous term instead of letting it constrain unrelated pages.
func (e *Engine) SetQueryParams(p QueryParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p
	e.search = p.Search
}

// SetSearch applies a free-text term and remembers it in the recent
// searches list.
func (e *Engine) SetSearch(term string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.search = term
	if term == "" || e.st == nil {
		return nil
	}

	var recent []string
	if _, err := e.st.GetJSON(store.KeyRecentSearches, &recent); err != nil {
		return err
	}
	next := []string{term}
	for _, s := range recent {
		if !strings.EqualFold(s, term) {
			next = append(next, s)
		}
	}
	if len(next) > recentSearches {
		next = next[:recentSearches]
	}
	return e.st.PutJSON(store.KeyRecentSearches, next)
}

func (e *Engine) RecentSearches() []string {
	var recent []string
	if e.st != nil {
		_, _ = e.st.GetJSON(store.KeyRecentSearches, &recent)
	}
	return recent
}

// LoadMore grows the visible window by one step. Once the whole
// filtered sequence is visible further calls are no-ops.
func (e *Engine) LoadMore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncCursor()
	if e.pageSize < len(e.filtered()) {
		e.pageSize += PageStep
	}
}

// Page runs the full pipeline and returns the visible window. An empty
// result is a valid terminal state, not an error.
func (e *Engine) Page() []models.CatalogItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncCursor()
	seq := e.sorted(e.filtered())
	if len(seq) > e.pageSize {
		seq = seq[:e.pageSize]
	}
	return seq
}

// Matches is the size of the filtered sequence before pagination.
func (e *Engine) Matches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.filtered())
}

func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncCursor()
	return len(e.filtered()) > e.pageSize
}

func (e *Engine) Featured() []models.CatalogItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.CatalogItem
	for _, it := range e.items {
		if it.IsFeatured {
			out = append(out, it)
		}
	}
	return out
}

func (e *Engine) BestSellers() []models.CatalogItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.CatalogItem
	for _, it := range e.items {
		if it.IsBestSeller {
			out = append(out, it)
		}
	}
	return out
}

// syncCursor resets the window to one step whenever the filter
// identity changes; load-more growth survives only while the
// fingerprint stays the same.
func (e *Engine) syncCursor() {
	fp := e.currentFingerprint()
	if fp != e.fingerprint {
		e.fingerprint = fp
		e.pageSize = PageStep
	}
}

func (e *Engine) currentFingerprint() string {
	raw, _ := json.Marshal(struct {
		Filters models.FilterState
		Params  QueryParams
		Search  string
	}{e.filters, e.params, e.search})
	return string(raw)
}

// effective resolves one dimension: a non-empty sidebar facet wins
// outright; otherwise the URL param, when present, acts as a
// single-value constraint.
func effective(facet []string, param string) []string {
	if len(facet) > 0 {
		return facet
	}
	if param != "" {
		return []string{param}
	}
	return nil
}

func (e *Engine) filtered() []models.CatalogItem {
	category := effective(e.filters.Category, e.params.Category)
	brand := effective(e.filters.Brand, e.params.Brand)
	gender := effective(e.filters.Gender, e.params.Gender)
	typ := effective(e.filters.Type, e.params.Product)

	var out []models.CatalogItem
	for _, it := range e.items {
		if !inSet(category, it.Category) {
			continue
		}
		if !inSet(brand, it.Brand) {
			continue
		}
		if !inSet(gender, it.Gender) {
			continue
		}
		if !matchesType(typ, it.Name) {
			continue
		}
		if !intersects(e.filters.Color, it.Colors) {
			continue
		}
		if !intersects(e.filters.Size, it.Sizes) {
			continue
		}
		if !inPriceRange(e.filters.PriceRange, it.Price) {
			continue
		}
		if !matchesSearch(e.search, it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// inSet: no constraint matches everything; otherwise case-insensitive
// membership.
func inSet(constraint []string, value string) bool {
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		if strings.EqualFold(c, value) {
			return true
		}
	}
	return false
}

// intersects: an item matches a multi-valued dimension when any of its
// values is in the constraint set.
func intersects(constraint, values []string) bool {
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		for _, v := range values {
			if strings.EqualFold(c, v) {
				return true
			}
		}
	}
	return false
}

// matchesType tests type constraints against the type-bearing tokens
// of the product name.
func matchesType(constraint []string, name string) bool {
	if len(constraint) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, c := range constraint {
		if strings.Contains(lower, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

// inPriceRange is inclusive on both bounds; a zero max means no upper
// bound.
func inPriceRange(r models.PriceRange, price float64) bool {
	if price < r.Min {
		return false
	}
	if r.Max > 0 && price > r.Max {
		return false
	}
	return true
}

func matchesSearch(term string, it models.CatalogItem) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	return strings.Contains(strings.ToLower(it.Name), needle) ||
		strings.Contains(strings.ToLower(it.Brand), needle) ||
		strings.Contains(strings.ToLower(it.Description), needle)
}

// sorted is stable: ties keep catalog insertion order, and sorting an
// already sorted sequence by the same key is a fixed point.
func (e *Engine) sorted(items []models.CatalogItem) []models.CatalogItem {
	out := make([]models.CatalogItem, len(items))
	copy(out, items)

	switch e.filters.SortBy {
	case models.SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case models.SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Price < out[j].Price
		})
	case models.SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Price > out[j].Price
		})
	case models.SortAlphabetical:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out
}
