package catalog

import (
	"context"
	"log/slog"
	"strings"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

// Kind names a reference table.
type Kind string

const (
	KindCategory    Kind = "category"
	KindSubcategory Kind = "subcategory"
	KindBrand       Kind = "brand"
)

// Index resolves facet names to reference ids, trying textual variants in order.
type Index struct {
	lookup ports.IndexLookup
	logger *slog.Logger
}

// NewIndex wires a reference lookup.
func NewIndex(lookup ports.IndexLookup, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{lookup: lookup, logger: logger}
}

// Resolve maps facets to category, subcategory and brand ids.
// The subcategory is only looked up once the category has resolved.
func (x *Index) Resolve(ctx context.Context, facets domain.Facets) domain.Resolution {
	var res domain.Resolution

	if id, ok := x.ResolveCategory(ctx, facets.Category); ok {
		res.CategoryID = &id
		if subID, ok := x.ResolveSubcategory(ctx, facets.Subcategory, id); ok {
			res.SubcategoryID = &subID
		}
	}
	if id, ok := x.ResolveBrand(ctx, facets.Brand); ok {
		res.BrandID = &id
	}

	return res
}

// ResolveCategory looks up a category by name.
func (x *Index) ResolveCategory(ctx context.Context, name string) (int64, bool) {
	return x.first(KindCategory, conjunctionVariants(name), func(v string) (int64, bool, error) {
		return x.lookup.CategoryID(ctx, v)
	})
}

// ResolveSubcategory looks up a subcategory by name within a category.
func (x *Index) ResolveSubcategory(ctx context.Context, name string, categoryID int64) (int64, bool) {
	return x.first(KindSubcategory, conjunctionVariants(name), func(v string) (int64, bool, error) {
		return x.lookup.SubcategoryID(ctx, v, categoryID)
	})
}

// ResolveBrand looks up a brand by name.
func (x *Index) ResolveBrand(ctx context.Context, name string) (int64, bool) {
	return x.first(KindBrand, brandVariants(name), func(v string) (int64, bool, error) {
		return x.lookup.BrandID(ctx, v)
	})
}

func (x *Index) first(kind Kind, variants []string, find func(string) (int64, bool, error)) (int64, bool) {
	if x.lookup == nil {
		return 0, false
	}
	for _, v := range variants {
		id, ok, err := find(v)
		if err != nil {
			// a failed lookup counts as a miss for this variant
			x.logger.Warn("index lookup failed", "kind", kind, "name", v, "error", err)
			continue
		}
		if ok {
			return id, true
		}
	}
	return 0, false
}

func conjunctionVariants(name string) []string {
	if name == "" {
		return nil
	}
	return unique(name, andToAmpersand(name))
}

func brandVariants(name string) []string {
	if name == "" {
		return nil
	}
	dotted := strings.ReplaceAll(name, "dot", ".")
	return unique(name, dotted, andToAmpersand(name), andToAmpersand(dotted))
}

func andToAmpersand(value string) string {
	return strings.ReplaceAll(value, " and ", " & ")
}

func unique(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
