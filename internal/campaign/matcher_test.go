package campaign

import (
	"testing"

	"cafepos/internal/domain"
)

func strPtr(v string) *string {
	return &v
}

func breakfast() domain.Campaign {
	return domain.Campaign{
		ID:         "breakfast",
		Name:       "Breakfast Deal",
		PriceCents: 8000,
		Active:     true,
		Items: []domain.CampaignItem{
			{MenuItemID: "itemA", Quantity: 1},
			{MenuItemID: "itemB", Quantity: 1},
		},
	}
}

func TestMatchExactMultiset(t *testing.T) {
	m := NewMatcher()
	cart := []domain.CartLine{
		{MenuItemID: "itemA", Quantity: 1},
		{MenuItemID: "itemB", Quantity: 1},
	}

	got := m.Match(cart, []domain.Campaign{breakfast()})
	if got == nil || got.ID != "breakfast" {
		t.Fatalf("expected breakfast match, got %+v", got)
	}
}

func TestMatchRejectsExtraItem(t *testing.T) {
	m := NewMatcher()
	cart := []domain.CartLine{
		{MenuItemID: "itemA", Quantity: 1},
		{MenuItemID: "itemB", Quantity: 1},
		{MenuItemID: "itemC", Quantity: 1},
	}

	if got := m.Match(cart, []domain.Campaign{breakfast()}); got != nil {
		t.Fatalf("cart with an extra item must not match, got %+v", got)
	}
}

func TestMatchRejectsMissingItem(t *testing.T) {
	m := NewMatcher()
	cart := []domain.CartLine{{MenuItemID: "itemA", Quantity: 1}}

	if got := m.Match(cart, []domain.Campaign{breakfast()}); got != nil {
		t.Fatalf("cart missing a required item must not match, got %+v", got)
	}
}

func TestMatchExpandsQuantities(t *testing.T) {
	m := NewMatcher()
	c := domain.Campaign{
		ID:         "double",
		Active:     true,
		PriceCents: 9000,
		Items:      []domain.CampaignItem{{MenuItemID: "itemA", Quantity: 2}},
	}

	cart := []domain.CartLine{{MenuItemID: "itemA", Quantity: 2}}
	if got := m.Match(cart, []domain.Campaign{c}); got == nil {
		t.Fatalf("quantity 2 line should equal two required entries")
	}

	cart = []domain.CartLine{{MenuItemID: "itemA", Quantity: 3}}
	if got := m.Match(cart, []domain.Campaign{c}); got != nil {
		t.Fatalf("surplus quantity must not match, got %+v", got)
	}
}

func TestMatchDistinguishesSizes(t *testing.T) {
	m := NewMatcher()
	c := domain.Campaign{
		ID:         "sized",
		Active:     true,
		PriceCents: 8000,
		Items:      []domain.CampaignItem{{MenuItemID: "latte", Size: strPtr("MEDIUM"), Quantity: 1}},
	}

	cart := []domain.CartLine{{MenuItemID: "latte", Size: strPtr("LARGE"), Quantity: 1}}
	if got := m.Match(cart, []domain.Campaign{c}); got != nil {
		t.Fatalf("size mismatch must not match, got %+v", got)
	}

	cart = []domain.CartLine{{MenuItemID: "latte", Size: strPtr("MEDIUM"), Quantity: 1}}
	if got := m.Match(cart, []domain.Campaign{c}); got == nil {
		t.Fatalf("expected sized match")
	}
}

func TestMatchSkipsInactive(t *testing.T) {
	m := NewMatcher()
	c := breakfast()
	c.Active = false

	cart := []domain.CartLine{
		{MenuItemID: "itemA", Quantity: 1},
		{MenuItemID: "itemB", Quantity: 1},
	}
	if got := m.Match(cart, []domain.Campaign{c}); got != nil {
		t.Fatalf("inactive campaign must not match, got %+v", got)
	}
}

func TestMatchFirstInListingOrderWins(t *testing.T) {
	m := NewMatcher()
	first := breakfast()
	second := breakfast()
	second.ID = "breakfast-copy"

	cart := []domain.CartLine{
		{MenuItemID: "itemA", Quantity: 1},
		{MenuItemID: "itemB", Quantity: 1},
	}
	got := m.Match(cart, []domain.Campaign{first, second})
	if got == nil || got.ID != "breakfast" {
		t.Fatalf("expected first listed campaign to win, got %+v", got)
	}
}

func TestMatchEmptyCart(t *testing.T) {
	m := NewMatcher()
	if got := m.Match(nil, []domain.Campaign{breakfast()}); got != nil {
		t.Fatalf("empty cart must not match, got %+v", got)
	}
}
