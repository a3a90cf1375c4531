// Package campaign implements bundle campaign matching against a staged
// cart.
package campaign

import (
	"cafepos/internal/domain"
)

// Matcher implements the exact-multiset, first-match-wins policy: a
// campaign applies only when the cart's expanded (item, size) multiset is
// exactly the campaign's required multiset. A cart holding the required
// items plus anything else does not match. Campaigns are tried in listing
// order and the first match wins; the tie-break between overlapping
// campaigns is whatever the listing order says, nothing cleverer.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns the first active campaign whose required multiset exactly
// equals the cart's, or nil when none applies.
func (m *Matcher) Match(lines []domain.CartLine, campaigns []domain.Campaign) *domain.Campaign {
	cart := cartMultiset(lines)
	if len(cart) == 0 {
		return nil
	}
	for i := range campaigns {
		c := &campaigns[i]
		if !c.Active {
			continue
		}
		if multisetEqual(cart, requiredMultiset(c.Items)) {
			return c
		}
	}
	return nil
}

type entry struct {
	menuItemID string
	size       string
}

func cartMultiset(lines []domain.CartLine) map[entry]int {
	set := make(map[entry]int)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		set[entryOf(line.MenuItemID, line.Size)] += line.Quantity
	}
	return set
}

func requiredMultiset(items []domain.CampaignItem) map[entry]int {
	set := make(map[entry]int)
	for _, it := range items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		set[entryOf(it.MenuItemID, it.Size)] += qty
	}
	return set
}

func entryOf(menuItemID string, size *string) entry {
	e := entry{menuItemID: menuItemID}
	if size != nil {
		e.size = *size
	}
	return e
}

func multisetEqual(a, b map[entry]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, n := range a {
		if b[k] != n {
			return false
		}
	}
	return true
}
