package models

import "slices"

// FacetRow carries the filterable attributes of one active product.
type FacetRow struct {
	Brand    *string
	Color    *string
	Material *string
}

// BuildFacets reduces rows to sorted, distinct brand/color/material lists.
// A row is counted only when it has a brand and at least one of color or
// material. Values are kept as stored; nil and "" both mean unset.
func BuildFacets(rows []FacetRow) Filters {
	brands := map[string]struct{}{}
	colors := map[string]struct{}{}
	materials := map[string]struct{}{}

	for _, r := range rows {
		brand := value(r.Brand)
		color := value(r.Color)
		material := value(r.Material)
		if brand == "" || (color == "" && material == "") {
			continue
		}
		brands[brand] = struct{}{}
		if color != "" {
			colors[color] = struct{}{}
		}
		if material != "" {
			materials[material] = struct{}{}
		}
	}

	return Filters{
		Brands:    sortedKeys(brands),
		Colors:    sortedKeys(colors),
		Materials: sortedKeys(materials),
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
