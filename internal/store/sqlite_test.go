package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/okunev/lavka/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close test store: %v", err)
		}
	})
	return repo
}

func TestProductLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	p := &domain.Product{Title: "Milk", Description: "1L", Price: 1.5, Quantity: 10}
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("Expected a product ID to be assigned")
	}

	got, err := repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got == nil || got.Title != "Milk" || got.Quantity != 10 {
		t.Errorf("Unexpected product: %+v", got)
	}

	p.Title = "Whole Milk"
	p.Price = 2.0
	updated, err := repo.UpdateProduct(ctx, p)
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if updated == nil || updated.Title != "Whole Milk" || updated.Price != 2.0 {
		t.Errorf("Unexpected updated product: %+v", updated)
	}

	deleted, err := repo.SoftDeleteProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("SoftDeleteProduct failed: %v", err)
	}
	if deleted == nil || !deleted.IsDeleted {
		t.Errorf("Expected a deleted product, got %+v", deleted)
	}

	// The row survives for receipts but vanishes from listings and updates.
	got, err = repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct after delete failed: %v", err)
	}
	if got == nil || !got.IsDeleted {
		t.Error("Expected soft-deleted product to stay readable")
	}

	products, _, err := repo.ListProducts(ctx, ProductFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("Expected no listed products, got %d", len(products))
	}

	if again, err := repo.UpdateProduct(ctx, p); err != nil || again != nil {
		t.Errorf("Expected update on deleted product to return (nil, nil), got (%+v, %v)", again, err)
	}
}

func TestGetProductAbsentReturnsNil(t *testing.T) {
	repo := newTestStore(t)

	p, err := repo.GetProduct(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if p != nil {
		t.Errorf("Expected nil for absent product, got %+v", p)
	}
}

func TestListProductsPagination(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		p := &domain.Product{Title: fmt.Sprintf("Item %02d", i), Price: 1, Quantity: 1}
		if err := repo.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct failed: %v", err)
		}
	}

	page1, hasNext, err := repo.ListProducts(ctx, ProductFilter{Page: 1, PageSize: 5})
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(page1) != 5 || !hasNext {
		t.Errorf("Expected 5 products with next page, got %d hasNext=%v", len(page1), hasNext)
	}

	page3, hasNext, err := repo.ListProducts(ctx, ProductFilter{Page: 3, PageSize: 5})
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(page3) != 1 || hasNext {
		t.Errorf("Expected 1 product with no next page, got %d hasNext=%v", len(page3), hasNext)
	}

	page4, hasNext, err := repo.ListProducts(ctx, ProductFilter{Page: 4, PageSize: 5})
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(page4) != 0 || hasNext {
		t.Errorf("Expected an empty page past the end, got %d hasNext=%v", len(page4), hasNext)
	}
}

func TestListProductsFilters(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	cat := &domain.Category{Name: "Dairy"}
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	milk := &domain.Product{Title: "Milk", Description: "fresh whole milk", Price: 2, Quantity: 5, CategoryID: cat.ID}
	bread := &domain.Product{Title: "Bread", Description: "rye loaf", Price: 3, Quantity: 5}
	for _, p := range []*domain.Product{milk, bread} {
		if err := repo.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct failed: %v", err)
		}
	}

	byCategory, _, err := repo.ListProducts(ctx, ProductFilter{CategoryID: cat.ID, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListProducts by category failed: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].Title != "Milk" {
		t.Errorf("Expected only Milk in category, got %+v", byCategory)
	}

	byText, _, err := repo.ListProducts(ctx, ProductFilter{Text: "loaf", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListProducts by text failed: %v", err)
	}
	if len(byText) != 1 || byText[0].Title != "Bread" {
		t.Errorf("Expected only Bread for text filter, got %+v", byText)
	}
}

func TestSetQuantity(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	p := &domain.Product{Title: "Milk", Price: 2, Quantity: 5}
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	updated, err := repo.SetQuantity(ctx, p.ID, 42)
	if err != nil {
		t.Fatalf("SetQuantity failed: %v", err)
	}
	if updated == nil || updated.Quantity != 42 {
		t.Errorf("Expected quantity 42, got %+v", updated)
	}

	if missing, err := repo.SetQuantity(ctx, 999, 1); err != nil || missing != nil {
		t.Errorf("Expected (nil, nil) for absent product, got (%+v, %v)", missing, err)
	}
}

func TestDecrementStock(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	p := &domain.Product{Title: "Milk", Price: 2, Quantity: 3}
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	newQty, err := repo.DecrementStock(ctx, p.ID, 2)
	if err != nil {
		t.Fatalf("DecrementStock failed: %v", err)
	}
	if newQty != 1 {
		t.Errorf("Expected new quantity 1, got %d", newQty)
	}

	_, err = repo.DecrementStock(ctx, p.ID, 2)
	if err == nil {
		t.Fatal("Expected a stock shortfall")
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}
	var short *StockShortError
	if !errors.As(err, &short) {
		t.Fatalf("Expected *StockShortError, got %T", err)
	}
	if short.ProductID != p.ID || short.Available != 1 {
		t.Errorf("Unexpected shortfall: %+v", short)
	}

	// The failed decrement left stock untouched.
	got, err := repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Quantity != 1 {
		t.Errorf("Expected quantity 1 after failed decrement, got %d", got.Quantity)
	}
}

func TestDecrementStockBatchAllOrNothing(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	a := &domain.Product{Title: "Milk", Price: 2, Quantity: 5}
	b := &domain.Product{Title: "Bread", Price: 3, Quantity: 1}
	for _, p := range []*domain.Product{a, b} {
		if err := repo.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct failed: %v", err)
		}
	}

	err := repo.DecrementStockBatch(ctx, []StockLine{
		{ProductID: a.ID, Amount: 2},
		{ProductID: b.ID, Amount: 2}, // short by one
	})
	if err == nil {
		t.Fatal("Expected batch to fail")
	}
	var short *StockShortError
	if !errors.As(err, &short) || short.ProductID != b.ID || short.Available != 1 {
		t.Errorf("Unexpected shortfall error: %v", err)
	}

	// The first line must have been rolled back.
	gotA, err := repo.GetProduct(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if gotA.Quantity != 5 {
		t.Errorf("Expected rollback to restore quantity 5, got %d", gotA.Quantity)
	}

	// A feasible batch commits both lines.
	if err := repo.DecrementStockBatch(ctx, []StockLine{
		{ProductID: a.ID, Amount: 2},
		{ProductID: b.ID, Amount: 1},
	}); err != nil {
		t.Fatalf("DecrementStockBatch failed: %v", err)
	}
	gotA, _ = repo.GetProduct(ctx, a.ID)
	gotB, _ := repo.GetProduct(ctx, b.ID)
	if gotA.Quantity != 3 || gotB.Quantity != 0 {
		t.Errorf("Expected quantities 3 and 0, got %d and %d", gotA.Quantity, gotB.Quantity)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	c := &domain.Category{Name: "Dairy"}
	if err := repo.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	got, err := repo.GetCategory(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	if got == nil || got.Name != "Dairy" {
		t.Errorf("Unexpected category: %+v", got)
	}

	renamed, err := repo.UpdateCategory(ctx, &domain.Category{ID: c.ID, Name: "Dairy & Eggs"})
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}
	if renamed == nil || renamed.Name != "Dairy & Eggs" {
		t.Errorf("Unexpected renamed category: %+v", renamed)
	}

	if err := repo.DeleteCategory(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	if got, err := repo.GetCategory(ctx, c.ID); err != nil || got != nil {
		t.Errorf("Expected (nil, nil) after delete, got (%+v, %v)", got, err)
	}
}

func TestSessionRoundtrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	// First load creates a fully initialized default.
	s, err := repo.LoadSession(ctx, "conv_a")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if s.ActiveScene != domain.SceneStart || s.Cart.Items == nil {
		t.Errorf("Unexpected default session: %+v", s)
	}

	s.ActiveScene = domain.SceneCart
	s.DeliveryAddress = &domain.Address{Name: "Ann", City: "Riga", Street: "Elm", Building: "5"}
	s.Cart.Add(7, 10)
	s.ProductPage = 3
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := repo.LoadSession(ctx, "conv_a")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.ActiveScene != domain.SceneCart {
		t.Errorf("Expected scene %s, got %s", domain.SceneCart, loaded.ActiveScene)
	}
	if !loaded.HasAddress() || loaded.DeliveryAddress.City != "Riga" {
		t.Errorf("Expected address to survive, got %+v", loaded.DeliveryAddress)
	}
	if loaded.Cart.Quantity(7) != 1 {
		t.Errorf("Expected cart line to survive, got %d", loaded.Cart.Quantity(7))
	}
	if loaded.ProductPage != 3 {
		t.Errorf("Expected product page 3, got %d", loaded.ProductPage)
	}
}

func TestSessionLoadPreservesUnknownScene(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	s, err := repo.LoadSession(ctx, "conv_a")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	s.ActiveScene = domain.SceneID("bogus")
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// The corrupted value must reach the router untouched so it can report
	// the session as corrupted rather than silently restart it.
	loaded, err := repo.LoadSession(ctx, "conv_a")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.ActiveScene != domain.SceneID("bogus") {
		t.Errorf("Expected stored scene to survive load, got %s", loaded.ActiveScene)
	}
}

func TestSessionCleanup(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"conv_a", "conv_b"} {
		s, err := repo.LoadSession(ctx, id)
		if err != nil {
			t.Fatalf("LoadSession failed: %v", err)
		}
		if err := repo.SaveSession(ctx, s); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	// A negative ttl puts the threshold in the future, expiring everything.
	expired, err := repo.ListExpiredSessions(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("ListExpiredSessions failed: %v", err)
	}
	if len(expired) != 2 {
		t.Errorf("Expected 2 expired sessions, got %d", len(expired))
	}

	deleted, err := repo.CleanupExpiredSessions(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("CleanupExpiredSessions failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted sessions, got %d", deleted)
	}

	// Fresh sessions survive a normal ttl.
	s, _ := repo.LoadSession(ctx, "conv_c")
	if err := repo.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if deleted, err := repo.CleanupExpiredSessions(ctx, time.Hour); err != nil || deleted != 0 {
		t.Errorf("Expected no deletions, got %d (%v)", deleted, err)
	}
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{Email: "ann@example.com", Name: "Ann", PasswordHash: "hash1", Role: domain.RoleAdmin}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := repo.GetUserByEmail(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got == nil || got.Role != domain.RoleAdmin {
		t.Errorf("Unexpected user: %+v", got)
	}

	updated, err := repo.UpdateUserPassword(ctx, "ann@example.com", "hash2")
	if err != nil {
		t.Fatalf("UpdateUserPassword failed: %v", err)
	}
	if updated == nil || updated.PasswordHash != "hash2" {
		t.Errorf("Expected new hash, got %+v", updated)
	}

	if missing, err := repo.UpdateUserPassword(ctx, "bob@example.com", "x"); err != nil || missing != nil {
		t.Errorf("Expected (nil, nil) for absent user, got (%+v, %v)", missing, err)
	}

	deleted, err := repo.DeleteUser(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if deleted == nil || deleted.Email != "ann@example.com" {
		t.Errorf("Expected deleted user, got %+v", deleted)
	}
	if got, err := repo.GetUserByEmail(ctx, "ann@example.com"); err != nil || got != nil {
		t.Errorf("Expected (nil, nil) after delete, got (%+v, %v)", got, err)
	}
}
