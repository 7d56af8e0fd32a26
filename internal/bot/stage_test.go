package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/store"
)

// fakeCatalog is an in-memory Catalog with the same conditional-decrement
// semantics as the SQLite store.
type fakeCatalog struct {
	products   map[int64]*domain.Product
	categories []*domain.Category

	listErr      error
	decrementErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: make(map[int64]*domain.Product)}
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter store.ProductFilter) ([]*domain.Product, bool, error) {
	if f.listErr != nil {
		return nil, false, f.listErr
	}
	ids := make([]int64, 0, len(f.products))
	for id := range f.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []*domain.Product
	for _, id := range ids {
		p := f.products[id]
		if p.IsDeleted {
			continue
		}
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		matched = append(matched, p)
	}
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return nil, false, nil
	}
	end := start + filter.PageSize
	hasNext := end < len(matched)
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], hasNext, nil
}

func (f *fakeCatalog) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListCategories(_ context.Context, page, pageSize int) ([]*domain.Category, bool, error) {
	if f.listErr != nil {
		return nil, false, f.listErr
	}
	start := (page - 1) * pageSize
	if start >= len(f.categories) {
		return nil, false, nil
	}
	end := start + pageSize
	hasNext := end < len(f.categories)
	if end > len(f.categories) {
		end = len(f.categories)
	}
	return f.categories[start:end], hasNext, nil
}

func (f *fakeCatalog) DecrementStockBatch(_ context.Context, lines []store.StockLine) error {
	if f.decrementErr != nil {
		return f.decrementErr
	}
	// All-or-nothing, like the transactional store implementation.
	for _, line := range lines {
		p, ok := f.products[line.ProductID]
		if !ok || p.IsDeleted || p.Quantity < line.Amount {
			var available int64
			if ok {
				available = p.Quantity
			}
			return &store.StockShortError{ProductID: line.ProductID, Available: available}
		}
	}
	for _, line := range lines {
		f.products[line.ProductID].Quantity -= line.Amount
	}
	return nil
}

type fakeSessions struct {
	sessions map[string]*domain.Session
	loadErr  error
	saveErr  error
	saves    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessions) LoadSession(_ context.Context, conversationID string) (*domain.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if s, ok := f.sessions[conversationID]; ok {
		return s, nil
	}
	s := domain.NewSession(conversationID)
	f.sessions[conversationID] = s
	return s, nil
}

func (f *fakeSessions) SaveSession(_ context.Context, s *domain.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.sessions[s.ConversationID] = s
	return nil
}

type fakeSender struct {
	sent    []Reply
	sendErr error
}

func (f *fakeSender) Send(_ context.Context, _ string, r Reply) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, r)
	return nil
}

func (f *fakeSender) texts() []string {
	out := make([]string, len(f.sent))
	for i, r := range f.sent {
		out[i] = r.Text
	}
	return out
}

// tagPresenter renders every reply as a short tag so tests can assert on the
// reply sequence without caring about wording.
type tagPresenter struct{}

func tag(s string) Reply { return Reply{Text: s} }

func (tagPresenter) Greeting() Reply                        { return tag("greeting") }
func (tagPresenter) AddressNeeded() Reply                   { return tag("address-needed") }
func (tagPresenter) AddressSummary(a domain.Address) Reply  { return tag("address:" + a.City) }
func (tagPresenter) MainMenu() Reply                        { return tag("main-menu") }
func (tagPresenter) AddressSaved() Reply                    { return tag("address-saved") }
func (tagPresenter) NoCategories() Reply                    { return tag("no-categories") }
func (tagPresenter) NoProducts() Reply                      { return tag("no-products") }
func (tagPresenter) CartEmpty() Reply                       { return tag("cart-empty") }
func (tagPresenter) CartCleared() Reply                     { return tag("cart-cleared") }
func (tagPresenter) RemovedFromCart() Reply                 { return tag("removed") }
func (tagPresenter) OutOfStock() Reply                      { return tag("out-of-stock") }
func (tagPresenter) ProductNotFound() Reply                 { return tag("product-not-found") }
func (tagPresenter) CategoryNotFound() Reply                { return tag("category-not-found") }
func (tagPresenter) CartLineNotFound() Reply                { return tag("cart-line-not-found") }
func (tagPresenter) InvalidMessage() Reply                  { return tag("invalid-message") }
func (tagPresenter) InvalidState() Reply                    { return tag("invalid-state") }
func (tagPresenter) Failure() Reply                         { return tag("failure") }
func (tagPresenter) AddedToCart(p *domain.Product) Reply    { return tag("added:" + p.Title) }
func (tagPresenter) ProductCard(p *domain.Product) Reply    { return tag("card:" + p.Title) }
func (tagPresenter) ProductDetail(p *domain.Product) Reply  { return tag("detail:" + p.Title) }
func (tagPresenter) CartHeader(_ *domain.Address) Reply     { return tag("cart-header") }
func (tagPresenter) PromptAddressField(step domain.DeliveryStep) Reply {
	return tag("prompt:" + string(step))
}
func (tagPresenter) CategoryList(categories []*domain.Category, nextPage int) Reply {
	return tag(fmt.Sprintf("categories:%d:next=%d", len(categories), nextPage))
}
func (tagPresenter) BrowseFooter(nextPage int) Reply {
	return tag(fmt.Sprintf("footer:next=%d", nextPage))
}
func (tagPresenter) CartLine(p *domain.Product, quantity int64) Reply {
	return tag(fmt.Sprintf("line:%s:%d", p.Title, quantity))
}
func (tagPresenter) CartFooter(total float64) Reply {
	return tag(fmt.Sprintf("total:%.2f", total))
}
func (tagPresenter) Shortfall(title string, available int64) Reply {
	return tag(fmt.Sprintf("shortfall:%s:%d", title, available))
}
func (tagPresenter) Receipt(r *domain.Receipt) Reply {
	return tag(fmt.Sprintf("receipt:%d:%.2f", len(r.Lines), r.Total))
}

func newTestStage(t *testing.T) (*Stage, *fakeCatalog, *fakeSessions, *fakeSender) {
	t.Helper()
	catalog := newFakeCatalog()
	sessions := newFakeSessions()
	sender := &fakeSender{}
	stage := NewStage(catalog, sessions, tagPresenter{}, sender, Options{PageSize: 10})
	return stage, catalog, sessions, sender
}

func dispatch(t *testing.T, stage *Stage, conv string, ev Event) {
	t.Helper()
	if err := stage.Dispatch(context.Background(), conv, ev); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
}

func expectTexts(t *testing.T, sender *fakeSender, want ...string) {
	t.Helper()
	got := sender.texts()
	if len(got) != len(want) {
		t.Fatalf("Expected %d replies %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected reply[%d]=%q, got %q", i, want[i], got[i])
		}
	}
}

func TestStartWithoutAddressEntersDelivery(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	dispatch(t, stage, "c1", CommandEvent(CommandStart))

	expectTexts(t, sender, "greeting", "address-needed", "prompt:name")

	s := sessions.sessions["c1"]
	if s.ActiveScene != domain.SceneDelivery {
		t.Errorf("Expected scene %s, got %s", domain.SceneDelivery, s.ActiveScene)
	}
	if s.DeliveryStep != domain.StepName {
		t.Errorf("Expected delivery step %s, got %s", domain.StepName, s.DeliveryStep)
	}
}

func TestStartWithAddressShowsMenu(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	s := domain.NewSession("c1")
	s.DeliveryAddress = &domain.Address{Name: "Ann", City: "Riga", Street: "Elm", Building: "5"}
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", CommandEvent(CommandStart))

	expectTexts(t, sender, "greeting", "address:Riga", "main-menu")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected to stay in start, got %s", s.ActiveScene)
	}
}

func TestAddressCaptureSequence(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	dispatch(t, stage, "c1", CommandEvent(CommandStart))
	sender.sent = nil

	dispatch(t, stage, "c1", TextEvent("Ann"))
	dispatch(t, stage, "c1", TextEvent("Riga"))
	dispatch(t, stage, "c1", TextEvent("Elm"))
	dispatch(t, stage, "c1", TextEvent("5"))

	expectTexts(t, sender,
		"prompt:city", "prompt:street", "prompt:building",
		"address-saved", "no-categories")

	s := sessions.sessions["c1"]
	if !s.HasAddress() {
		t.Fatal("Expected a complete address")
	}
	if s.DeliveryAddress.Name != "Ann" || s.DeliveryAddress.City != "Riga" ||
		s.DeliveryAddress.Street != "Elm" || s.DeliveryAddress.Building != "5" {
		t.Errorf("Unexpected address: %+v", s.DeliveryAddress)
	}
	if s.DeliveryStep != "" {
		t.Errorf("Expected delivery step cleared, got %q", s.DeliveryStep)
	}
	if s.ActiveScene != domain.SceneCategory {
		t.Errorf("Expected scene %s, got %s", domain.SceneCategory, s.ActiveScene)
	}
}

func TestDeliveryBlankTextRepromptsWithoutAdvancing(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	dispatch(t, stage, "c1", CommandEvent(CommandStart))
	sender.sent = nil

	dispatch(t, stage, "c1", TextEvent("   "))

	expectTexts(t, sender, "invalid-message")
	s := sessions.sessions["c1"]
	if s.ActiveScene != domain.SceneDelivery {
		t.Errorf("Expected to stay in delivery, got %s", s.ActiveScene)
	}
	if s.DeliveryStep != domain.StepName {
		t.Errorf("Expected step to stay %s, got %s", domain.StepName, s.DeliveryStep)
	}
	if s.DeliveryAddress.Name != "" {
		t.Errorf("Expected no field written, got name %q", s.DeliveryAddress.Name)
	}
}

func TestDeliveryNonTextFrameExitsScene(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	dispatch(t, stage, "c1", CommandEvent(CommandStart))
	sender.sent = nil

	// Non-text frames arrive as text events with empty content.
	dispatch(t, stage, "c1", TextEvent(""))

	expectTexts(t, sender, "invalid-message")
	s := sessions.sessions["c1"]
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
}

func TestCategoryPagination(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	for i := 1; i <= 15; i++ {
		catalog.categories = append(catalog.categories,
			&domain.Category{ID: int64(i), Name: fmt.Sprintf("cat %d", i)})
	}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCategory
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionMoreCategoriesPrefix+"2"))

	expectTexts(t, sender, "categories:5:next=0")
	if s.CategoryPage != 2 {
		t.Errorf("Expected category page 2, got %d", s.CategoryPage)
	}
	if s.ActiveScene != domain.SceneCategory {
		t.Errorf("Expected to stay in category, got %s", s.ActiveScene)
	}
}

func TestSelectMissingCategoryResetsToStart(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCategory
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionSelectCategoryPrefix+"99"))

	expectTexts(t, sender, "category-not-found")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
}

func TestAddToCartHonorsStockCeiling(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 2, Quantity: 2}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneProduct
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionAddToCartPrefix+"1"))
	dispatch(t, stage, "c1", ActionEvent(ActionAddToCartPrefix+"1"))
	dispatch(t, stage, "c1", ActionEvent(ActionAddToCartPrefix+"1"))

	expectTexts(t, sender, "added:Milk", "added:Milk", "out-of-stock")
	if got := s.Cart.Quantity(1); got != 2 {
		t.Errorf("Expected cart quantity 2, got %d", got)
	}
	if catalog.products[1].Quantity != 2 {
		t.Errorf("Expected stock untouched before checkout, got %d", catalog.products[1].Quantity)
	}
}

func TestAddToCartMissingProduct(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneProduct
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionAddToCartPrefix+"42"))

	expectTexts(t, sender, "product-not-found")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
}

func TestCheckoutSuccess(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 3.5, Quantity: 2}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	s.Cart.Add(1, 2)
	s.Cart.Increase(1, 2)
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCheckout))

	expectTexts(t, sender, "receipt:1:7.00", "greeting", "address-needed", "prompt:name")
	if !s.Cart.IsEmpty() {
		t.Error("Expected cart cleared after checkout")
	}
	if catalog.products[1].Quantity != 0 {
		t.Errorf("Expected stock 0 after checkout, got %d", catalog.products[1].Quantity)
	}
}

func TestCheckoutShortfallKeepsCartAndStock(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 3.5, Quantity: 2}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	s.Cart.Items[1] = 3 // more than stock
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCheckout))

	expectTexts(t, sender, "shortfall:Milk:2")
	if got := s.Cart.Quantity(1); got != 3 {
		t.Errorf("Expected cart untouched, got quantity %d", got)
	}
	if catalog.products[1].Quantity != 2 {
		t.Errorf("Expected stock untouched, got %d", catalog.products[1].Quantity)
	}
	if s.ActiveScene != domain.SceneCart {
		t.Errorf("Expected to stay in cart, got %s", s.ActiveScene)
	}
}

func TestCheckoutCommitConflictReportedAsShortfall(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 3.5, Quantity: 2}
	// Validation sees enough stock, but another conversation wins the commit.
	catalog.decrementErr = &store.StockShortError{ProductID: 1, Available: 1}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	s.Cart.Items[1] = 2
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCheckout))

	expectTexts(t, sender, "shortfall:Milk:1")
	if got := s.Cart.Quantity(1); got != 2 {
		t.Errorf("Expected cart untouched, got quantity %d", got)
	}
}

func TestCartIncreaseAtCeilingIsSilentNoOp(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 2, Quantity: 2}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	s.Cart.Items[1] = 2
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCartIncPrefix+"1"))

	expectTexts(t, sender, "line:Milk:2")
	if got := s.Cart.Quantity(1); got != 2 {
		t.Errorf("Expected quantity to stay 2, got %d", got)
	}
}

func TestCartRemoveLastLineReturnsToStart(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 2, Quantity: 5}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	s.Cart.Items[1] = 1
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCartRemovePrefix+"1"))

	expectTexts(t, sender, "removed", "cart-empty", "greeting", "address-needed", "prompt:name")
	if s.ActiveScene != domain.SceneDelivery {
		t.Errorf("Expected chained entry into delivery, got %s", s.ActiveScene)
	}
}

func TestCartMissingLineNotFound(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 2, Quantity: 5}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCartIncPrefix+"1"))

	expectTexts(t, sender, "cart-line-not-found")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
}

func TestUnmatchedActionIgnored(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	s := domain.NewSession("c1")
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent("no_such_action"))

	if len(sender.sent) != 0 {
		t.Errorf("Expected no replies, got %v", sender.texts())
	}
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene unchanged, got %s", s.ActiveScene)
	}
}

func TestCorruptSceneResetsToStart(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneID("bogus")
	s.DeliveryStep = domain.StepCity
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", TextEvent("hello"))

	expectTexts(t, sender, "invalid-state")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
	if s.DeliveryStep != "" {
		t.Errorf("Expected delivery step cleared, got %q", s.DeliveryStep)
	}
}

func TestCatalogFailureFallsBackToStart(t *testing.T) {
	stage, catalog, sessions, sender := newTestStage(t)
	catalog.listErr = errors.New("db down")

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCategory
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionMoreCategoriesPrefix+"2"))

	expectTexts(t, sender, "failure")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
}

func TestLoadFailureNotifiesUser(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)
	sessions.loadErr = errors.New("db down")

	err := stage.Dispatch(context.Background(), "c1", CommandEvent(CommandStart))
	if err == nil {
		t.Fatal("Expected dispatch error")
	}
	expectTexts(t, sender, "failure")
}

func TestHandlerPanicBecomesFailure(t *testing.T) {
	stage, _, sessions, sender := newTestStage(t)

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	sessions.sessions["c1"] = s

	// A panicking handler must not take down the router; it resolves like
	// any unexpected error.
	err := stage.safely(func() error { panic("boom") })
	if err == nil {
		t.Fatal("Expected the panic to surface as an error")
	}
	stage.resolve(&Ctx{
		Session: s,
		send:    func(r Reply) error { return sender.Send(context.Background(), "c1", r) },
	}, err)

	expectTexts(t, sender, "failure")
	if s.ActiveScene != domain.SceneStart {
		t.Errorf("Expected scene reset to start, got %s", s.ActiveScene)
	}
}

func TestCheckoutPreservesAddress(t *testing.T) {
	stage, catalog, sessions, _ := newTestStage(t)
	catalog.products[1] = &domain.Product{ID: 1, Title: "Milk", Price: 2, Quantity: 5}

	s := domain.NewSession("c1")
	s.ActiveScene = domain.SceneCart
	s.DeliveryAddress = &domain.Address{Name: "Ann", City: "Riga", Street: "Elm", Building: "5"}
	s.Cart.Items[1] = 1
	sessions.sessions["c1"] = s

	dispatch(t, stage, "c1", ActionEvent(ActionCheckout))

	if !s.Cart.IsEmpty() {
		t.Error("Expected cart cleared after checkout")
	}
	if !s.HasAddress() {
		t.Error("Expected the address to survive checkout")
	}
}

func TestSessionSavedAfterEveryDispatch(t *testing.T) {
	stage, _, sessions, _ := newTestStage(t)

	dispatch(t, stage, "c1", CommandEvent(CommandStart))
	dispatch(t, stage, "c1", TextEvent("Ann"))

	if sessions.saves != 2 {
		t.Errorf("Expected 2 saves, got %d", sessions.saves)
	}
}
