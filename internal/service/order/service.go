package order

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cafepos/internal/campaign"
	"cafepos/internal/domain"
	"cafepos/internal/pricing"
	campaignrepo "cafepos/internal/repository/campaign"
	orderrepo "cafepos/internal/repository/order"
)

// Service is the single mutation entry point for the order ledger. It
// resolves prices, matches campaigns, expands cart lines into product units
// and delegates the transactional persistence to the order repository.
type Service struct {
	orders    orderRepo
	menu      menuRepo
	campaigns campaignRepo
	resolver  *pricing.Resolver
	matcher   *campaign.Matcher
}

type orderRepo interface {
	Create(ctx context.Context, in orderrepo.CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListOpenByTable(ctx context.Context, tableID string) ([]domain.Order, error)
	Append(ctx context.Context, orderID string, in orderrepo.AppendInput) (*domain.Order, error)
	MarkUnitPaid(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error)
	MarkAllUnitsPaid(ctx context.Context, orderID string) (*domain.Order, error)
	DeleteUnit(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error)
	Transfer(ctx context.Context, sourceTableID, targetTableID string) ([]domain.Order, error)
	Cancel(ctx context.Context, orderID string) error
}

type menuRepo interface {
	GetItem(ctx context.Context, id string) (*domain.MenuItem, error)
	GetExtra(ctx context.Context, id string) (*domain.Extra, error)
}

type campaignRepo interface {
	ListActive(ctx context.Context) ([]domain.Campaign, error)
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
}

func New(orders orderrepo.Repository, menu menuRepo, campaigns campaignrepo.Repository, logger *log.Logger) *Service {
	return &Service{
		orders:    orders,
		menu:      menu,
		campaigns: campaigns,
		resolver:  pricing.New(logger),
		matcher:   campaign.NewMatcher(),
	}
}

type CreateInput struct {
	TableID  *string         `json:"tableId,omitempty"`
	Takeaway bool            `json:"takeaway"`
	StaffID  string          `json:"staffId"`
	Lines    []CartLineInput `json:"lines"`
}

type AppendInput struct {
	Lines []CartLineInput `json:"lines"`
	// CampaignID forces the bundle instead of running the matcher.
	CampaignID *string `json:"campaignId,omitempty"`
}

type CartLineInput struct {
	MenuItemID string       `json:"menuItemId"`
	Quantity   int          `json:"quantity"`
	Size       *string      `json:"size,omitempty"`
	Extras     []ExtraInput `json:"extras,omitempty"`
}

type ExtraInput struct {
	ExtraID  string `json:"extraId"`
	Quantity int    `json:"quantity"`
}

// Create commits a staged cart as a new order. Table orders require the
// table to have no open order; the repository re-checks that inside the
// transaction and a losing concurrent creator receives a ConflictError
// carrying the winner's id.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if in.TableID == nil && !in.Takeaway {
		return nil, &domain.ValidationError{Reason: "either a table or takeaway is required"}
	}
	if in.TableID != nil && in.Takeaway {
		return nil, &domain.ValidationError{Reason: "a table order cannot also be takeaway"}
	}
	if strings.TrimSpace(in.StaffID) == "" {
		return nil, &domain.ValidationError{Reason: "staff required"}
	}

	commit, err := s.priceCart(ctx, in.Lines, nil)
	if err != nil {
		return nil, err
	}

	return s.orders.Create(ctx, orderrepo.CreateOrderInput{
		TableID:    in.TableID,
		Takeaway:   in.Takeaway,
		StaffID:    in.StaffID,
		TotalCents: commit.totalCents,
		CampaignID: commit.campaignID,
		Units:      commit.units,
		Lines:      commit.lines,
	})
}

// Append adds a priced cart to an existing open order. Units are only ever
// appended and the stored total is incremented by the new amount.
func (s *Service) Append(ctx context.Context, orderID string, in AppendInput) (*domain.Order, error) {
	commit, err := s.priceCart(ctx, in.Lines, in.CampaignID)
	if err != nil {
		return nil, err
	}
	return s.orders.Append(ctx, orderID, orderrepo.AppendInput{
		AddedCents: commit.totalCents,
		Units:      commit.units,
		Lines:      commit.lines,
	})
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) OpenOrders(ctx context.Context, tableID string) ([]domain.Order, error) {
	return s.orders.ListOpenByTable(ctx, tableID)
}

func (s *Service) MarkUnitPaid(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error) {
	return s.orders.MarkUnitPaid(ctx, orderID, unitIndex)
}

func (s *Service) MarkAllUnitsPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.MarkAllUnitsPaid(ctx, orderID)
}

// PayTable settles every open order on the table. An empty table is a
// no-op.
func (s *Service) PayTable(ctx context.Context, tableID string) ([]domain.Order, error) {
	open, err := s.orders.ListOpenByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	paid := make([]domain.Order, 0, len(open))
	for _, o := range open {
		settled, err := s.orders.MarkAllUnitsPaid(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		paid = append(paid, *settled)
	}
	return paid, nil
}

func (s *Service) DeleteUnit(ctx context.Context, orderID string, unitIndex int) (*domain.Order, error) {
	return s.orders.DeleteUnit(ctx, orderID, unitIndex)
}

func (s *Service) Transfer(ctx context.Context, sourceTableID, targetTableID string) ([]domain.Order, error) {
	if sourceTableID == targetTableID {
		return nil, &domain.ValidationError{Reason: "source and target table must differ"}
	}
	return s.orders.Transfer(ctx, sourceTableID, targetTableID)
}

func (s *Service) Cancel(ctx context.Context, orderID string) error {
	return s.orders.Cancel(ctx, orderID)
}

// cartCommit is a priced-out cart ready for persistence.
type cartCommit struct {
	units      []domain.ProductUnit
	lines      []orderrepo.LineInput
	totalCents int64
	campaignID *string
}

type resolvedLine struct {
	item      domain.MenuItem
	quantity  int
	size      *string
	unitCents int64
	extras    []domain.ExtraSelection
}

// priceCart validates and prices the staged cart, runs campaign matching and
// expands the result into product units plus the normalized mirror lines.
func (s *Service) priceCart(ctx context.Context, lines []CartLineInput, campaignOverride *string) (*cartCommit, error) {
	if len(lines) == 0 {
		return nil, &domain.ValidationError{Reason: "cart is empty"}
	}

	resolved := make([]resolvedLine, 0, len(lines))
	cartLines := make([]domain.CartLine, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln.MenuItemID) == "" {
			return nil, &domain.ValidationError{Reason: "menu item required"}
		}
		if ln.Quantity <= 0 {
			return nil, &domain.ValidationError{Reason: "quantity must be positive"}
		}

		item, err := s.menu.GetItem(ctx, ln.MenuItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("menu item %s: %w", ln.MenuItemID, domain.ErrNotFound)
			}
			return nil, err
		}

		unitCents, err := s.resolver.Resolve(*item, ln.Size)
		if err != nil {
			return nil, err
		}

		extras := make([]domain.ExtraSelection, 0, len(ln.Extras))
		for _, ex := range ln.Extras {
			if ex.Quantity <= 0 {
				return nil, &domain.ValidationError{Reason: "extra quantity must be positive"}
			}
			extra, err := s.menu.GetExtra(ctx, ex.ExtraID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, fmt.Errorf("extra %s: %w", ex.ExtraID, domain.ErrNotFound)
				}
				return nil, err
			}
			extras = append(extras, domain.ExtraSelection{
				ExtraID:    extra.ID,
				Name:       extra.Name,
				PriceCents: extra.PriceCents,
				Quantity:   ex.Quantity,
			})
		}

		resolved = append(resolved, resolvedLine{
			item:      *item,
			quantity:  ln.Quantity,
			size:      ln.Size,
			unitCents: unitCents,
			extras:    extras,
		})
		cartLines = append(cartLines, domain.CartLine{
			MenuItemID: ln.MenuItemID,
			Quantity:   ln.Quantity,
			Size:       ln.Size,
			Extras:     extras,
		})
	}

	matched, err := s.matchCampaign(ctx, cartLines, campaignOverride)
	if err != nil {
		return nil, err
	}
	if matched != nil {
		return bundleCommit(matched, resolved), nil
	}
	return expandedCommit(resolved), nil
}

func (s *Service) matchCampaign(ctx context.Context, cartLines []domain.CartLine, override *string) (*domain.Campaign, error) {
	if override != nil {
		c, err := s.campaigns.GetByID(ctx, *override)
		if err != nil {
			return nil, err
		}
		if !c.Active {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("campaign %s is not active", c.ID)}
		}
		return c, nil
	}
	campaigns, err := s.campaigns.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.matcher.Match(cartLines, campaigns), nil
}

// bundleCommit collapses the whole cart into one campaign bundle unit
// priced at the campaign price. Constituents ride along as a nested
// breakdown that is not independently payable.
func bundleCommit(c *domain.Campaign, resolved []resolvedLine) *cartCommit {
	var bundle []domain.BundleItem
	for _, ln := range resolved {
		for i := 0; i < ln.quantity; i++ {
			bundle = append(bundle, domain.BundleItem{
				MenuItemID: ln.item.ID,
				Name:       ln.item.Name,
				Size:       ln.size,
			})
		}
	}
	campaignID := c.ID
	unit := domain.ProductUnit{
		ID:          newUnitID(),
		Name:        c.Name,
		PriceCents:  c.PriceCents,
		CampaignID:  &campaignID,
		BundleItems: bundle,
	}
	line := orderrepo.LineInput{
		Name:           c.Name,
		UnitPriceCents: c.PriceCents,
		Quantity:       1,
		SubtotalCents:  c.PriceCents,
	}
	return &cartCommit{
		units:      []domain.ProductUnit{unit},
		lines:      []orderrepo.LineInput{line},
		totalCents: c.PriceCents,
		campaignID: &campaignID,
	}
}

// expandedCommit turns every cart line into quantity-many independent
// units. A unit's price carries its extras, so the sum of unit prices is
// the order total.
func expandedCommit(resolved []resolvedLine) *cartCommit {
	var units []domain.ProductUnit
	var lines []orderrepo.LineInput
	var total int64

	for _, ln := range resolved {
		unitCents := ln.unitCents + pricing.ExtrasTotal(ln.extras)
		for i := 0; i < ln.quantity; i++ {
			units = append(units, domain.ProductUnit{
				ID:         newUnitID(),
				MenuItemID: ln.item.ID,
				Name:       ln.item.Name,
				PriceCents: unitCents,
				Size:       ln.size,
				Extras:     ln.extras,
			})
		}

		extras := make([]orderrepo.LineExtraInput, 0, len(ln.extras))
		for _, ex := range ln.extras {
			qty := ex.Quantity * ln.quantity
			extras = append(extras, orderrepo.LineExtraInput{
				ExtraID:        ex.ExtraID,
				Name:           ex.Name,
				UnitPriceCents: ex.PriceCents,
				Quantity:       qty,
				SubtotalCents:  ex.PriceCents * int64(qty),
			})
		}
		subtotal := pricing.LineSubtotal(ln.unitCents, ln.extras, ln.quantity)
		lines = append(lines, orderrepo.LineInput{
			MenuItemID:     ln.item.ID,
			Name:           ln.item.Name,
			UnitPriceCents: ln.unitCents,
			Quantity:       ln.quantity,
			SubtotalCents:  subtotal,
			Size:           ln.size,
			Extras:         extras,
		})
		total += subtotal
	}

	return &cartCommit{units: units, lines: lines, totalCents: total}
}

func newUnitID() string {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("u%d", time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
