// Package catalog turns raw feed labels into facets and resolves them against
// the reference category, subcategory and brand tables.
package catalog

import (
	"strings"

	"CatalogSync/internal/domain"
)

// rule maps one label shape onto a facet. Rules are checked in order and the
// first match handles the label; later labels overwrite earlier ones.
type rule struct {
	name  string
	match func(label string) bool
	apply func(f *domain.Facets, label string)
}

var rules = []rule{
	{
		name:  "internal",
		match: hasPrefix("Internal."),
		apply: func(*domain.Facets, string) {},
	},
	{
		name:  "brand",
		match: hasPrefix("brand."),
		apply: func(f *domain.Facets, label string) {
			f.Brand = spaced(strings.TrimPrefix(label, "brand."))
		},
	},
	{
		name:  "tag",
		match: contains("-"),
		apply: func(f *domain.Facets, label string) {
			category, subcategory, _ := strings.Cut(label, "-")
			f.RawTag = label
			f.Category = spaced(category)
			f.Subcategory = spaced(subcategory)
		},
	},
	{
		name:  "adult",
		match: hasPrefix("adult."),
		apply: func(f *domain.Facets, _ string) { f.Adult = true },
	},
	{
		name:  "country",
		match: hasPrefix("country."),
		apply: func(f *domain.Facets, label string) {
			f.Country = strings.TrimPrefix(label, "country.")
		},
	},
	{
		name:  "select",
		match: contains("brandish.select"),
		apply: func(f *domain.Facets, _ string) { f.Select = true },
	},
	{
		name:  "feed",
		match: contains("brandish.feed"),
		apply: func(f *domain.Facets, _ string) { f.Feed = true },
	},
}

// Classify derives facets from an entry's label set.
func Classify(labels []string) domain.Facets {
	var facets domain.Facets
	for _, label := range labels {
		for _, r := range rules {
			if r.match(label) {
				r.apply(&facets, label)
				break
			}
		}
	}
	return facets
}

func hasPrefix(prefix string) func(string) bool {
	return func(label string) bool { return strings.HasPrefix(label, prefix) }
}

func contains(substr string) func(string) bool {
	return func(label string) bool { return strings.Contains(label, substr) }
}

func spaced(value string) string {
	return strings.ReplaceAll(value, "_", " ")
}
