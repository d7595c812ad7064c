package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"CatalogSync/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		labels []string
		want   domain.Facets
	}{
		{
			name: "full label set",
			labels: []string{
				"Television-Talk_Shows",
				"country.usa",
				"brand.The_Tonight_Show_Starring_Jimmy_Fallon",
				"language.english",
			},
			want: domain.Facets{
				Country:     "usa",
				Category:    "Television",
				Subcategory: "Talk Shows",
				Brand:       "The Tonight Show Starring Jimmy Fallon",
				RawTag:      "Television-Talk_Shows",
			},
		},
		{
			name:   "extra hyphens fold into subcategory",
			labels: []string{"Home_and_Garden-Do-It_Yourself"},
			want: domain.Facets{
				Category:    "Home and Garden",
				Subcategory: "Do-It Yourself",
				RawTag:      "Home_and_Garden-Do-It_Yourself",
			},
		},
		{
			name:   "flags",
			labels: []string{"adult.yes", "brandish.select", "x.brandish.feed.y"},
			want:   domain.Facets{Adult: true, Select: true, Feed: true},
		},
		{
			name:   "internal labels are ignored",
			labels: []string{"Internal.Sports-MLB", "Internal.brand.Acme"},
			want:   domain.Facets{},
		},
		{
			name:   "brand prefix wins over hyphen",
			labels: []string{"brand.Coca-Cola"},
			want:   domain.Facets{Brand: "Coca-Cola"},
		},
		{
			name:   "last applicable label wins",
			labels: []string{"Sports-MLB", "country.usa", "Luxury-Boating", "country.gbr"},
			want: domain.Facets{
				Country:     "gbr",
				Category:    "Luxury",
				Subcategory: "Boating",
				RawTag:      "Luxury-Boating",
			},
		},
		{
			name:   "empty",
			labels: nil,
			want:   domain.Facets{},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tc.labels)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Classify mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyHyphenatedTagProperty(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"Sports", "MLB"},
		{"Food_and_Drink", "Wine"},
		{"Men's_Apparel", "Formal_Wear"},
		{"A", "B_C_D"},
	}
	for _, p := range pairs {
		tag := p[0] + "-" + p[1]
		got := Classify([]string{tag})
		if got.Category != spaced(p[0]) || got.Subcategory != spaced(p[1]) || got.RawTag != tag {
			t.Fatalf("Classify(%q) = %+v", tag, got)
		}
	}
}
