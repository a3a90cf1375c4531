package order

import (
	"context"
	"errors"
	"testing"

	"cafepos/internal/campaign"
	"cafepos/internal/domain"
	"cafepos/internal/pricing"
	orderrepo "cafepos/internal/repository/order"
)

type stubOrderRepo struct {
	lastCreate *orderrepo.CreateOrderInput
	createOut  *domain.Order
	createErr  error

	lastAppendID string
	lastAppend   *orderrepo.AppendInput
	appendOut    *domain.Order
	appendErr    error

	openOrders []domain.Order
	openErr    error

	markAllIDs []string
	markAllOut map[string]*domain.Order
	markAllErr error

	lastPaidID    string
	lastPaidIndex int
	markUnitOut   *domain.Order

	lastDeleteID    string
	lastDeleteIndex int
	deleteOut       *domain.Order

	lastTransferSource string
	lastTransferTarget string
	transferOut        []domain.Order
	transferErr        error

	cancelledID string
	cancelErr   error
}

func (s *stubOrderRepo) Create(_ context.Context, in orderrepo.CreateOrderInput) (*domain.Order, error) {
	s.lastCreate = &in
	return s.createOut, s.createErr
}

func (s *stubOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	return s.createOut, nil
}

func (s *stubOrderRepo) ListOpenByTable(_ context.Context, _ string) ([]domain.Order, error) {
	return s.openOrders, s.openErr
}

func (s *stubOrderRepo) Append(_ context.Context, orderID string, in orderrepo.AppendInput) (*domain.Order, error) {
	s.lastAppendID = orderID
	s.lastAppend = &in
	return s.appendOut, s.appendErr
}

func (s *stubOrderRepo) MarkUnitPaid(_ context.Context, orderID string, unitIndex int) (*domain.Order, error) {
	s.lastPaidID = orderID
	s.lastPaidIndex = unitIndex
	return s.markUnitOut, nil
}

func (s *stubOrderRepo) MarkAllUnitsPaid(_ context.Context, orderID string) (*domain.Order, error) {
	if s.markAllErr != nil {
		return nil, s.markAllErr
	}
	s.markAllIDs = append(s.markAllIDs, orderID)
	if out, ok := s.markAllOut[orderID]; ok {
		return out, nil
	}
	return &domain.Order{ID: orderID, IsPaid: true}, nil
}

func (s *stubOrderRepo) DeleteUnit(_ context.Context, orderID string, unitIndex int) (*domain.Order, error) {
	s.lastDeleteID = orderID
	s.lastDeleteIndex = unitIndex
	return s.deleteOut, nil
}

func (s *stubOrderRepo) Transfer(_ context.Context, sourceTableID, targetTableID string) ([]domain.Order, error) {
	s.lastTransferSource = sourceTableID
	s.lastTransferTarget = targetTableID
	return s.transferOut, s.transferErr
}

func (s *stubOrderRepo) Cancel(_ context.Context, orderID string) error {
	s.cancelledID = orderID
	return s.cancelErr
}

type stubMenuRepo struct {
	items  map[string]domain.MenuItem
	extras map[string]domain.Extra
}

func (s *stubMenuRepo) GetItem(_ context.Context, id string) (*domain.MenuItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (s *stubMenuRepo) GetExtra(_ context.Context, id string) (*domain.Extra, error) {
	extra, ok := s.extras[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &extra, nil
}

type stubCampaignRepo struct {
	active  []domain.Campaign
	byID    map[string]domain.Campaign
	listErr error
}

func (s *stubCampaignRepo) ListActive(_ context.Context) ([]domain.Campaign, error) {
	return s.active, s.listErr
}

func (s *stubCampaignRepo) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func strPtr(v string) *string {
	return &v
}

func newTestService(orders *stubOrderRepo, menu *stubMenuRepo, campaigns *stubCampaignRepo) *Service {
	if menu == nil {
		menu = &stubMenuRepo{}
	}
	if campaigns == nil {
		campaigns = &stubCampaignRepo{}
	}
	return &Service{
		orders:    orders,
		menu:      menu,
		campaigns: campaigns,
		resolver:  pricing.New(nil),
		matcher:   campaign.NewMatcher(),
	}
}

func cafeMenu() *stubMenuRepo {
	return &stubMenuRepo{
		items: map[string]domain.MenuItem{
			"latte": {
				ID:             "latte",
				Name:           "Latte",
				BasePriceCents: 5000,
				Sizes:          []domain.SizePrice{{Size: "MEDIUM", PriceCents: 6000}},
			},
			"itemA": {ID: "itemA", Name: "Item A", BasePriceCents: 3000},
			"itemB": {ID: "itemB", Name: "Item B", BasePriceCents: 4000},
			"itemC": {ID: "itemC", Name: "Item C", BasePriceCents: 2000},
		},
		extras: map[string]domain.Extra{
			"oat": {ID: "oat", Name: "Oat milk", PriceCents: 800},
		},
	}
}

func abCampaign() domain.Campaign {
	return domain.Campaign{
		ID:         "combo",
		Name:       "Combo",
		PriceCents: 8000,
		Active:     true,
		Items: []domain.CampaignItem{
			{MenuItemID: "itemA", Quantity: 1},
			{MenuItemID: "itemB", Quantity: 1},
		},
	}
}

func TestCreateRequiresTableOrTakeaway(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), nil)

	_, err := svc.Create(context.Background(), CreateInput{StaffID: "s1", Lines: []CartLineInput{{MenuItemID: "itemA", Quantity: 1}}})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{TableID: strPtr("t1"), Takeaway: true, StaffID: "s1", Lines: []CartLineInput{{MenuItemID: "itemA", Quantity: 1}}})
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for table+takeaway, got %v", err)
	}
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), nil)
	_, err := svc.Create(context.Background(), CreateInput{Takeaway: true, StaffID: "s1"})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), nil)
	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines:    []CartLineInput{{MenuItemID: "itemA", Quantity: 0}},
	})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateUnknownMenuItem(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), nil)
	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines:    []CartLineInput{{MenuItemID: "nope", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateMissingSizeOnTieredItem(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), nil)
	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines:    []CartLineInput{{MenuItemID: "latte", Quantity: 1}},
	})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for missing size, got %v", err)
	}
}

// Two medium lattes: two units at the tier price, total is their sum.
func TestCreateSizedLineExpandsUnits(t *testing.T) {
	repo := &stubOrderRepo{createOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, cafeMenu(), nil)

	_, err := svc.Create(context.Background(), CreateInput{
		TableID: strPtr("t1"),
		StaffID: "s1",
		Lines:   []CartLineInput{{MenuItemID: "latte", Quantity: 2, Size: strPtr("MEDIUM")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := repo.lastCreate
	if in == nil {
		t.Fatalf("create not called")
	}
	if len(in.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(in.Units))
	}
	for _, u := range in.Units {
		if u.PriceCents != 6000 {
			t.Fatalf("expected tier price 6000, got %d", u.PriceCents)
		}
		if u.IsPaid {
			t.Fatalf("new unit must be unpaid")
		}
	}
	if in.TotalCents != 12000 {
		t.Fatalf("expected total 12000, got %d", in.TotalCents)
	}
	if len(in.Lines) != 1 || in.Lines[0].Quantity != 2 || in.Lines[0].SubtotalCents != 12000 {
		t.Fatalf("unexpected mirror lines %+v", in.Lines)
	}
}

func TestCreateUnitCountMatchesQuantities(t *testing.T) {
	repo := &stubOrderRepo{createOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, cafeMenu(), nil)

	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines: []CartLineInput{
			{MenuItemID: "itemA", Quantity: 3},
			{MenuItemID: "itemB", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lastCreate.Units) != 5 {
		t.Fatalf("expected 5 units, got %d", len(repo.lastCreate.Units))
	}
	if repo.lastCreate.TotalCents != 3*3000+2*4000 {
		t.Fatalf("unexpected total %d", repo.lastCreate.TotalCents)
	}
}

func TestCreateExtrasPricedIntoUnit(t *testing.T) {
	repo := &stubOrderRepo{createOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, cafeMenu(), nil)

	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines: []CartLineInput{{
			MenuItemID: "itemA",
			Quantity:   1,
			Extras:     []ExtraInput{{ExtraID: "oat", Quantity: 2}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := repo.lastCreate
	if len(in.Units) != 1 || in.Units[0].PriceCents != 3000+2*800 {
		t.Fatalf("expected unit price 4600, got %+v", in.Units)
	}
	if in.TotalCents != 4600 {
		t.Fatalf("expected total 4600, got %d", in.TotalCents)
	}
	if len(in.Lines[0].Extras) != 1 || in.Lines[0].Extras[0].SubtotalCents != 1600 {
		t.Fatalf("unexpected mirror extras %+v", in.Lines[0].Extras)
	}
}

func TestCreateUnknownExtra(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), nil)
	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines: []CartLineInput{{
			MenuItemID: "itemA",
			Quantity:   1,
			Extras:     []ExtraInput{{ExtraID: "nope", Quantity: 1}},
		}},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// Exact campaign match collapses the cart into one bundle unit at the
// campaign price.
func TestCreateCampaignMatchCollapsesCart(t *testing.T) {
	repo := &stubOrderRepo{createOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, cafeMenu(), &stubCampaignRepo{active: []domain.Campaign{abCampaign()}})

	_, err := svc.Create(context.Background(), CreateInput{
		TableID: strPtr("t1"),
		StaffID: "s1",
		Lines: []CartLineInput{
			{MenuItemID: "itemA", Quantity: 1},
			{MenuItemID: "itemB", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := repo.lastCreate
	if len(in.Units) != 1 {
		t.Fatalf("expected one bundle unit, got %d", len(in.Units))
	}
	unit := in.Units[0]
	if unit.PriceCents != 8000 || unit.CampaignID == nil || *unit.CampaignID != "combo" {
		t.Fatalf("unexpected bundle unit %+v", unit)
	}
	if len(unit.BundleItems) != 2 {
		t.Fatalf("expected 2 bundle constituents, got %d", len(unit.BundleItems))
	}
	if in.TotalCents != 8000 {
		t.Fatalf("expected campaign price total 8000, got %d", in.TotalCents)
	}
	if in.CampaignID == nil || *in.CampaignID != "combo" {
		t.Fatalf("expected header campaign reference, got %+v", in.CampaignID)
	}
}

// An extra unrelated item disqualifies the campaign and the cart prices
// individually.
func TestCreateCampaignRejectedByExtraItem(t *testing.T) {
	repo := &stubOrderRepo{createOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, cafeMenu(), &stubCampaignRepo{active: []domain.Campaign{abCampaign()}})

	_, err := svc.Create(context.Background(), CreateInput{
		Takeaway: true,
		StaffID:  "s1",
		Lines: []CartLineInput{
			{MenuItemID: "itemA", Quantity: 1},
			{MenuItemID: "itemB", Quantity: 1},
			{MenuItemID: "itemC", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := repo.lastCreate
	if len(in.Units) != 3 {
		t.Fatalf("expected 3 individual units, got %d", len(in.Units))
	}
	if in.TotalCents != 3000+4000+2000 {
		t.Fatalf("expected individual sum 9000, got %d", in.TotalCents)
	}
	if in.CampaignID != nil {
		t.Fatalf("no campaign reference expected, got %v", *in.CampaignID)
	}
}

func TestCreatePropagatesConflict(t *testing.T) {
	conflict := &domain.ConflictError{Reason: "table already has an open order", OpenOrderID: "winner"}
	repo := &stubOrderRepo{createErr: conflict}
	svc := newTestService(repo, cafeMenu(), nil)

	_, err := svc.Create(context.Background(), CreateInput{
		TableID: strPtr("t1"),
		StaffID: "s1",
		Lines:   []CartLineInput{{MenuItemID: "itemA", Quantity: 1}},
	})
	var got *domain.ConflictError
	if !errors.As(err, &got) || got.OpenOrderID != "winner" {
		t.Fatalf("expected conflict carrying winner id, got %v", err)
	}
}

func TestAppendIncrementsByNewAmount(t *testing.T) {
	repo := &stubOrderRepo{appendOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, cafeMenu(), nil)

	_, err := svc.Append(context.Background(), "o1", AppendInput{
		Lines: []CartLineInput{{MenuItemID: "itemC", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastAppendID != "o1" {
		t.Fatalf("append called with id %s", repo.lastAppendID)
	}
	if repo.lastAppend.AddedCents != 4000 {
		t.Fatalf("expected added 4000, got %d", repo.lastAppend.AddedCents)
	}
	if len(repo.lastAppend.Units) != 2 {
		t.Fatalf("expected 2 appended units, got %d", len(repo.lastAppend.Units))
	}
}

func TestAppendCampaignOverride(t *testing.T) {
	repo := &stubOrderRepo{appendOut: &domain.Order{ID: "o1"}}
	campaigns := &stubCampaignRepo{byID: map[string]domain.Campaign{"combo": abCampaign()}}
	svc := newTestService(repo, cafeMenu(), campaigns)

	_, err := svc.Append(context.Background(), "o1", AppendInput{
		Lines: []CartLineInput{
			{MenuItemID: "itemA", Quantity: 1},
			{MenuItemID: "itemB", Quantity: 1},
		},
		CampaignID: strPtr("combo"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lastAppend.Units) != 1 || repo.lastAppend.AddedCents != 8000 {
		t.Fatalf("expected forced bundle of 8000, got %+v", repo.lastAppend)
	}
}

func TestAppendInactiveCampaignOverride(t *testing.T) {
	inactive := abCampaign()
	inactive.Active = false
	campaigns := &stubCampaignRepo{byID: map[string]domain.Campaign{"combo": inactive}}
	svc := newTestService(&stubOrderRepo{}, cafeMenu(), campaigns)

	_, err := svc.Append(context.Background(), "o1", AppendInput{
		Lines:      []CartLineInput{{MenuItemID: "itemA", Quantity: 1}},
		CampaignID: strPtr("combo"),
	})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for inactive campaign, got %v", err)
	}
}

func TestMarkUnitPaidDelegates(t *testing.T) {
	repo := &stubOrderRepo{markUnitOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, nil, nil)

	got, err := svc.MarkUnitPaid(context.Background(), "o1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "o1" || repo.lastPaidID != "o1" || repo.lastPaidIndex != 2 {
		t.Fatalf("mark unit paid not delegated as expected")
	}
}

func TestPayTableSettlesEveryOpenOrder(t *testing.T) {
	repo := &stubOrderRepo{
		openOrders: []domain.Order{{ID: "o1"}, {ID: "o2"}},
	}
	svc := newTestService(repo, nil, nil)

	paid, err := svc.PayTable(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paid) != 2 {
		t.Fatalf("expected 2 settled orders, got %d", len(paid))
	}
	if len(repo.markAllIDs) != 2 || repo.markAllIDs[0] != "o1" || repo.markAllIDs[1] != "o2" {
		t.Fatalf("unexpected settle sequence %v", repo.markAllIDs)
	}
}

func TestPayTableEmptyIsNoop(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := newTestService(repo, nil, nil)

	paid, err := svc.PayTable(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paid) != 0 || len(repo.markAllIDs) != 0 {
		t.Fatalf("expected no settlements, got %v", repo.markAllIDs)
	}
}

func TestDeleteUnitDelegates(t *testing.T) {
	repo := &stubOrderRepo{deleteOut: &domain.Order{ID: "o1"}}
	svc := newTestService(repo, nil, nil)

	_, err := svc.DeleteUnit(context.Background(), "o1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastDeleteID != "o1" || repo.lastDeleteIndex != 0 {
		t.Fatalf("delete unit not delegated as expected")
	}
}

func TestTransferRejectsSameTable(t *testing.T) {
	svc := newTestService(&stubOrderRepo{}, nil, nil)
	_, err := svc.Transfer(context.Background(), "t1", "t1")
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransferDelegates(t *testing.T) {
	repo := &stubOrderRepo{transferOut: []domain.Order{{ID: "moved"}}}
	svc := newTestService(repo, nil, nil)

	moved, err := svc.Transfer(context.Background(), "t1", "t2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moved) != 1 || repo.lastTransferSource != "t1" || repo.lastTransferTarget != "t2" {
		t.Fatalf("transfer not delegated as expected")
	}
}

func TestCancelDelegates(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := newTestService(repo, nil, nil)

	if err := svc.Cancel(context.Background(), "o1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.cancelledID != "o1" {
		t.Fatalf("cancel not delegated, got %s", repo.cancelledID)
	}
}
