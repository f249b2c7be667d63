// Package search turns optional catalog query parameters into a filter over
// sweets. A Filter is evaluated in memory with Match, or translated into a
// SQL predicate or an Elasticsearch query with the same semantics.
package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
)

// AllCategories is the wildcard category value; it imposes no constraint.
const AllCategories = "All"

// Params holds raw query string values. Empty strings are treated as absent.
type Params struct {
	Name     string
	Category string
	MinPrice string
	MaxPrice string
}

// Filter is an AND of the supplied dimensions.
type Filter struct {
	Name     string
	Category *entity.Category
	MinPrice *float64
	MaxPrice *float64

	// none is set when the requested category is outside the enum.
	none bool
}

// Build parses p. Only malformed price bounds are rejected.
func Build(p Params) (Filter, error) {
	var f Filter
	f.Name = strings.TrimSpace(p.Name)

	if cat := strings.TrimSpace(p.Category); cat != "" && cat != AllCategories {
		c, err := entity.ParseCategory(cat)
		if err != nil {
			f.none = true
		} else {
			f.Category = &c
		}
	}

	details := map[string]string{}
	if v, ok, err := parsePrice(p.MinPrice); err != nil {
		details["minPrice"] = "must be a number"
	} else if ok {
		f.MinPrice = &v
	}
	if v, ok, err := parsePrice(p.MaxPrice); err != nil {
		details["maxPrice"] = "must be a number"
	} else if ok {
		f.MaxPrice = &v
	}
	if len(details) > 0 {
		return Filter{}, entity.NewValidationError("invalid search parameters", details)
	}
	return f, nil
}

func parsePrice(raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("price bound %q is not finite", raw)
	}
	return v, true, nil
}

// MatchesNothing reports whether no sweet can satisfy f.
func (f Filter) MatchesNothing() bool {
	return f.none
}

// IsZero reports whether f imposes no constraint at all.
func (f Filter) IsZero() bool {
	return !f.none && f.Name == "" && f.Category == nil && f.MinPrice == nil && f.MaxPrice == nil
}

// Match is the in-memory predicate.
func (f Filter) Match(s entity.Sweet) bool {
	if f.none {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Category != nil && s.Category != *f.Category {
		return false
	}
	if f.MinPrice != nil && s.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && s.Price > *f.MaxPrice {
		return false
	}
	return true
}

// Apply returns the sweets matching f, preserving order.
func Apply(f Filter, sweets []entity.Sweet) []entity.Sweet {
	out := make([]entity.Sweet, 0, len(sweets))
	for _, s := range sweets {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// SQL renders f as a Postgres boolean expression over the sweets table.
// Placeholders are numbered from first. The expression is "TRUE" when f
// imposes no constraint.
func (f Filter) SQL(first int) (string, []any) {
	if f.none {
		return "FALSE", nil
	}
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(first+len(args)-1)
	}
	if f.Name != "" {
		conds = append(conds, `name ILIKE '%' || `+next(escapeLike(f.Name))+` || '%' ESCAPE '\'`)
	}
	if f.Category != nil {
		conds = append(conds, "category = "+next(f.Category.String()))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+next(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+next(*f.MaxPrice))
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// ESQuery renders f as an Elasticsearch query clause. The index must map
// name and category as keyword fields.
func (f Filter) ESQuery() map[string]any {
	if f.none {
		return map[string]any{"match_none": map[string]any{}}
	}
	var filters []any
	if f.Name != "" {
		filters = append(filters, map[string]any{
			"wildcard": map[string]any{
				"name": map[string]any{
					"value":            "*" + wildcardEscaper.Replace(f.Name) + "*",
					"case_insensitive": true,
				},
			},
		})
	}
	if f.Category != nil {
		filters = append(filters, map[string]any{
			"term": map[string]any{"category": f.Category.String()},
		})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		bounds := map[string]any{}
		if f.MinPrice != nil {
			bounds["gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			bounds["lte"] = *f.MaxPrice
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": bounds}})
	}
	if len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": map[string]any{"filter": filters}}
}
