package pricing

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"cafepos/internal/domain"
)

func strPtr(v string) *string {
	return &v
}

func TestResolveBasePrice(t *testing.T) {
	r := New(nil)
	item := domain.MenuItem{ID: "espresso", BasePriceCents: 3500}

	got, err := r.Resolve(item, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3500 {
		t.Fatalf("expected 3500, got %d", got)
	}

	// Size is ignored for untiered items.
	got, err = r.Resolve(item, strPtr("MEDIUM"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3500 {
		t.Fatalf("expected 3500, got %d", got)
	}
}

func TestResolveSizeTier(t *testing.T) {
	r := New(nil)
	item := domain.MenuItem{
		ID:             "latte",
		BasePriceCents: 5000,
		Sizes: []domain.SizePrice{
			{Size: "MEDIUM", PriceCents: 6000},
			{Size: "LARGE", PriceCents: 7000},
		},
	}

	got, err := r.Resolve(item, strPtr("MEDIUM"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6000 {
		t.Fatalf("expected 6000, got %d", got)
	}
}

func TestResolveMissingSizeIsValidationError(t *testing.T) {
	r := New(nil)
	item := domain.MenuItem{
		ID:             "latte",
		BasePriceCents: 5000,
		Sizes:          []domain.SizePrice{{Size: "MEDIUM", PriceCents: 6000}},
	}

	_, err := r.Resolve(item, nil)
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveUnknownTierFallsBackAndLogs(t *testing.T) {
	var buf bytes.Buffer
	r := New(log.New(&buf, "", 0))
	item := domain.MenuItem{
		ID:             "latte",
		BasePriceCents: 5000,
		Sizes:          []domain.SizePrice{{Size: "MEDIUM", PriceCents: 6000}},
	}

	got, err := r.Resolve(item, strPtr("SMALL"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5000 {
		t.Fatalf("expected base price fallback 5000, got %d", got)
	}
	if !strings.Contains(buf.String(), "falling back to base price") {
		t.Fatalf("expected fallback to be logged, got %q", buf.String())
	}
}

func TestExtrasTotal(t *testing.T) {
	extras := []domain.ExtraSelection{
		{ExtraID: "oat", PriceCents: 800, Quantity: 1},
		{ExtraID: "shot", PriceCents: 1000, Quantity: 2},
	}
	if got := ExtrasTotal(extras); got != 2800 {
		t.Fatalf("expected 2800, got %d", got)
	}
	if got := ExtrasTotal(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestLineSubtotal(t *testing.T) {
	extras := []domain.ExtraSelection{{ExtraID: "oat", PriceCents: 800, Quantity: 1}}
	if got := LineSubtotal(6000, extras, 2); got != 13600 {
		t.Fatalf("expected 13600, got %d", got)
	}
}
