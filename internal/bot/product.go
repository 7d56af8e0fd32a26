package bot

import (
	"fmt"
	"time"

	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/store"
)

// productScene lists products for the selected category, one card per
// product, with detail and add-to-cart affordances.
func (st *Stage) productScene() *Scene {
	s := newScene(domain.SceneProduct)

	s.enter(func(c *Ctx) error {
		filter := store.ProductFilter{
			CategoryID: c.Session.CurrentCategoryID,
			Page:       c.Session.ProductPage,
			PageSize:   st.pageSize,
		}
		products, hasNext, err := st.catalog.ListProducts(c.Context(), filter)
		if err != nil {
			return fmt.Errorf("list products page %d: %w", filter.Page, err)
		}
		if len(products) == 0 {
			if err := c.Reply(st.view.NoProducts()); err != nil {
				return err
			}
			return c.Reply(st.view.BrowseFooter(0))
		}
		for i, p := range products {
			if i > 0 && st.renderDelay > 0 {
				// Pace successive cards so the transport is not flooded.
				time.Sleep(st.renderDelay)
			}
			if err := c.Reply(st.view.ProductCard(p)); err != nil {
				return err
			}
		}
		nextPage := 0
		if hasNext {
			nextPage = c.Session.ProductPage + 1
		}
		return c.Reply(st.view.BrowseFooter(nextPage))
	})

	s.actionID(ActionProductDetailPrefix, func(c *Ctx, id int64) error {
		p, err := st.catalog.GetProduct(c.Context(), id)
		if err != nil {
			return fmt.Errorf("fetch product %d: %w", id, err)
		}
		if p == nil || p.IsDeleted {
			// Informational lookup: report and stay in the listing.
			return c.Reply(st.view.ProductNotFound())
		}
		return c.Reply(st.view.ProductDetail(p))
	})

	s.actionID(ActionAddToCartPrefix, func(c *Ctx, id int64) error {
		return st.addToCart(c, id)
	})

	s.actionID(ActionMoreProductsPrefix, func(c *Ctx, page int64) error {
		if page < 1 {
			return &ValidationError{Msg: fmt.Sprintf("bad product page %d", page)}
		}
		c.Session.ProductPage = int(page)
		c.Reenter()
		return nil
	})

	s.action(ActionBackToProducts, func(c *Ctx) error {
		c.Reenter()
		return nil
	})

	s.action(ActionBackToCategories, func(c *Ctx) error {
		c.Session.CategoryPage = 1
		c.Enter(domain.SceneCategory)
		return nil
	})

	s.action(ActionShowCart, func(c *Ctx) error {
		c.Enter(domain.SceneCart)
		return nil
	})

	s.action(ActionBackToStart, func(c *Ctx) error {
		c.Enter(domain.SceneStart)
		return nil
	})

	return s
}

// addToCart fetches current stock and applies the cart engine's ceiling
// check: an existing line grows only while below stock, a new line starts at
// quantity 1. This is a best-effort guard; checkout re-validates against
// fresh stock.
func (st *Stage) addToCart(c *Ctx, id int64) error {
	p, err := st.catalog.GetProduct(c.Context(), id)
	if err != nil {
		return fmt.Errorf("fetch product %d: %w", id, err)
	}
	if p == nil || p.IsDeleted {
		return &NotFoundError{Kind: KindProduct, ID: id}
	}
	if !p.InStock() || !c.Session.Cart.Add(p.ID, p.Quantity) {
		return c.Reply(st.view.OutOfStock())
	}
	return c.Reply(st.view.AddedToCart(p))
}
