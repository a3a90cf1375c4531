package pricing

import (
	"fmt"
	"io"
	"log"

	"cafepos/internal/domain"
)

// Resolver resolves the unit price of a menu item variant and sums extra
// charges.
type Resolver struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{logger: logger}
}

// Resolve returns the unit price for the item at the given size. Items
// without size tiers ignore size and sell at the base price. Items with
// tiers require a size; a tier missing for a known size falls back to the
// base price and is logged as a data-inconsistency signal.
func (r *Resolver) Resolve(item domain.MenuItem, size *string) (int64, error) {
	if len(item.Sizes) == 0 {
		return item.BasePriceCents, nil
	}
	if size == nil {
		return 0, &domain.ValidationError{Reason: fmt.Sprintf("menu item %s is sold by size, size required", item.ID)}
	}
	for _, tier := range item.Sizes {
		if tier.Size == *size {
			return tier.PriceCents, nil
		}
	}
	r.logger.Printf("pricing: menu item %s has no %s tier, falling back to base price", item.ID, *size)
	return item.BasePriceCents, nil
}

// ExtrasTotal sums the extra charges of one unit.
func ExtrasTotal(extras []domain.ExtraSelection) int64 {
	var total int64
	for _, e := range extras {
		total += e.PriceCents * int64(e.Quantity)
	}
	return total
}

// LineSubtotal is the priced-out cart line: (unit price + extras) per
// physical instance, times quantity.
func LineSubtotal(unitPriceCents int64, extras []domain.ExtraSelection, quantity int) int64 {
	return (unitPriceCents + ExtrasTotal(extras)) * int64(quantity)
}
