package api

import (
	"strings"
	"testing"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/store"
)

func strptr(s string) *string { return &s }

func TestDiffListingEditNoOp(t *testing.T) {
	t.Parallel()

	old := &domain.Listing{
		Title:       "2019 Honda Civic",
		Description: "clean title",
		Metadata:    map[string]any{"color": "blue"},
	}

	detail := diffListingEdit(old, store.ListingEdit{
		Title:    strptr("2019 Honda Civic"),
		Metadata: map[string]any{"color": "blue"},
	})
	if detail != nil {
		t.Errorf("identical edit should be a no-op, got %+v", detail)
	}
}

func TestDiffListingEditCapturesAddedText(t *testing.T) {
	t.Parallel()

	old := &domain.Listing{
		Title:       "2019 Honda Civic",
		Description: "clean title",
	}

	detail := diffListingEdit(old, store.ListingEdit{
		Description: strptr("clean title, 42000 miles, one owner"),
	})
	if detail == nil {
		t.Fatal("expected a diff")
	}
	for _, word := range []string{"42000", "miles", "owner"} {
		if !strings.Contains(detail.AddedText, word) {
			t.Errorf("expected %q in added text, got %q", word, detail.AddedText)
		}
	}
	if strings.Contains(detail.AddedText, "clean") {
		t.Errorf("pre-existing words should not count as added: %q", detail.AddedText)
	}
}

func TestDiffListingEditCapturesMetadataKeys(t *testing.T) {
	t.Parallel()

	old := &domain.Listing{
		Title:    "2019 Honda Civic",
		Metadata: map[string]any{"color": "blue"},
	}

	detail := diffListingEdit(old, store.ListingEdit{
		Metadata: map[string]any{"color": "blue", "mileage": "42000", "owners": float64(1)},
	})
	if detail == nil {
		t.Fatal("expected a diff")
	}
	keys := map[string]bool{}
	for _, k := range detail.EditedKeys {
		keys[k] = true
	}
	if !keys["mileage"] || !keys["owners"] {
		t.Errorf("expected new metadata keys, got %v", detail.EditedKeys)
	}
	if keys["color"] {
		t.Errorf("unchanged key should not be reported: %v", detail.EditedKeys)
	}
	// String metadata values feed the text matcher too.
	if !strings.Contains(detail.AddedText, "42000") {
		t.Errorf("expected string metadata value in added text, got %q", detail.AddedText)
	}
}

func TestDiffListingEditScalarChange(t *testing.T) {
	t.Parallel()

	price := 19500.0
	old := &domain.Listing{Title: "2019 Honda Civic", Price: &price}

	newPrice := 18000.0
	detail := diffListingEdit(old, store.ListingEdit{Price: &newPrice})
	if detail == nil {
		t.Fatal("price change should produce a diff")
	}
	if detail.AddedText != "" {
		t.Errorf("scalar change should not add text, got %q", detail.AddedText)
	}
}
