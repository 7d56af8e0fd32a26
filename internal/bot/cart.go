package bot

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/okunev/lavka/internal/domain"
)

// cartScene renders the cart line by line with quantity controls, plus
// checkout and clear actions. An empty cart short-circuits back to start.
func (st *Stage) cartScene() *Scene {
	s := newScene(domain.SceneCart)

	s.enter(func(c *Ctx) error {
		if c.Session.Cart.IsEmpty() {
			if err := c.Reply(st.view.CartEmpty()); err != nil {
				return err
			}
			c.Enter(domain.SceneStart)
			return nil
		}

		if err := c.Reply(st.view.CartHeader(c.Session.DeliveryAddress)); err != nil {
			return err
		}

		var total float64
		rendered := 0
		for _, id := range c.Session.Cart.ProductIDs() {
			p, err := st.catalog.GetProduct(c.Context(), id)
			if err != nil {
				return fmt.Errorf("fetch product %d: %w", id, err)
			}
			if p == nil || p.IsDeleted {
				// The product vanished since it was added; drop the line.
				slog.Warn("dropping cart line for missing product",
					"conversation_id", c.Session.ConversationID, "product_id", id)
				c.Session.Cart.Remove(id)
				continue
			}
			qty := c.Session.Cart.Quantity(id)
			if rendered > 0 && st.renderDelay > 0 {
				time.Sleep(st.renderDelay)
			}
			if err := c.Reply(st.view.CartLine(p, qty)); err != nil {
				return err
			}
			total += float64(qty) * p.Price
			rendered++
		}

		if c.Session.Cart.IsEmpty() {
			if err := c.Reply(st.view.CartEmpty()); err != nil {
				return err
			}
			c.Enter(domain.SceneStart)
			return nil
		}
		return c.Reply(st.view.CartFooter(total))
	})

	s.actionID(ActionCartIncPrefix, func(c *Ctx, id int64) error {
		p, err := st.catalog.GetProduct(c.Context(), id)
		if err != nil {
			return fmt.Errorf("fetch product %d: %w", id, err)
		}
		if p == nil || p.IsDeleted {
			return &NotFoundError{Kind: KindProduct, ID: id}
		}
		if c.Session.Cart.Quantity(id) == 0 {
			return &NotFoundError{Kind: KindCartLine, ID: id}
		}
		// At the stock ceiling this is a silent no-op, not an error.
		c.Session.Cart.Increase(id, p.Quantity)
		return c.Reply(st.view.CartLine(p, c.Session.Cart.Quantity(id)))
	})

	s.actionID(ActionCartDecPrefix, func(c *Ctx, id int64) error {
		p, err := st.catalog.GetProduct(c.Context(), id)
		if err != nil {
			return fmt.Errorf("fetch product %d: %w", id, err)
		}
		if p == nil || p.IsDeleted {
			return &NotFoundError{Kind: KindProduct, ID: id}
		}
		if c.Session.Cart.Quantity(id) == 0 {
			return &NotFoundError{Kind: KindCartLine, ID: id}
		}
		c.Session.Cart.Decrease(id)
		return c.Reply(st.view.CartLine(p, c.Session.Cart.Quantity(id)))
	})

	s.actionID(ActionCartRemovePrefix, func(c *Ctx, id int64) error {
		if c.Session.Cart.Quantity(id) == 0 {
			return &NotFoundError{Kind: KindCartLine, ID: id}
		}
		c.Session.Cart.Remove(id)
		if err := c.Reply(st.view.RemovedFromCart()); err != nil {
			return err
		}
		if c.Session.Cart.IsEmpty() {
			if err := c.Reply(st.view.CartEmpty()); err != nil {
				return err
			}
			c.Enter(domain.SceneStart)
		}
		return nil
	})

	s.action(ActionCartClear, func(c *Ctx) error {
		c.Session.Cart.Clear()
		if err := c.Reply(st.view.CartCleared()); err != nil {
			return err
		}
		c.Enter(domain.SceneStart)
		return nil
	})

	s.action(ActionCheckout, func(c *Ctx) error {
		return st.checkout(c)
	})

	s.action(ActionBackToStart, func(c *Ctx) error {
		c.Enter(domain.SceneStart)
		return nil
	})

	return s
}
