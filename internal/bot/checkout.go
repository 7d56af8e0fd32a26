package bot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/store"
)

// checkout converts the cart into a stock decrement and a receipt.
//
// Every line is first validated against fresh stock; only then is anything
// mutated. The commit goes through the store's conditional batch decrement,
// so a concurrent checkout that drained stock between validation and commit
// surfaces as a conflict and nothing is decremented — the cart stays intact
// either way.
func (st *Stage) checkout(c *Ctx) error {
	ids := c.Session.Cart.ProductIDs()
	if len(ids) == 0 {
		if err := c.Reply(st.view.CartEmpty()); err != nil {
			return err
		}
		c.Enter(domain.SceneStart)
		return nil
	}

	type cartLine struct {
		product  *domain.Product
		quantity int64
	}
	lines := make([]cartLine, 0, len(ids))

	for _, id := range ids {
		p, err := st.catalog.GetProduct(c.Context(), id)
		if err != nil {
			return fmt.Errorf("fetch product %d: %w", id, err)
		}
		if p == nil || p.IsDeleted {
			return &NotFoundError{Kind: KindProduct, ID: id}
		}
		qty := c.Session.Cart.Quantity(id)
		if qty > p.Quantity {
			return &StockConflictError{
				ProductID: id,
				Title:     p.Title,
				Requested: qty,
				Available: p.Quantity,
			}
		}
		lines = append(lines, cartLine{product: p, quantity: qty})
	}

	batch := make([]store.StockLine, 0, len(lines))
	for _, line := range lines {
		batch = append(batch, store.StockLine{ProductID: line.product.ID, Amount: line.quantity})
	}
	if err := st.catalog.DecrementStockBatch(c.Context(), batch); err != nil {
		var short *store.StockShortError
		if errors.As(err, &short) {
			// Lost the race against another conversation; same outcome as
			// a validation failure.
			conflict := &StockConflictError{
				ProductID: short.ProductID,
				Available: short.Available,
			}
			for _, line := range lines {
				if line.product.ID == short.ProductID {
					conflict.Title = line.product.Title
					conflict.Requested = line.quantity
					break
				}
			}
			return conflict
		}
		return fmt.Errorf("commit checkout: %w", err)
	}

	receipt := &domain.Receipt{OrderID: uuid.NewString()}
	for _, line := range lines {
		lineTotal := float64(line.quantity) * line.product.Price
		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			ProductID: line.product.ID,
			Title:     line.product.Title,
			Quantity:  line.quantity,
			UnitPrice: line.product.Price,
			LineTotal: lineTotal,
		})
		receipt.Total += lineTotal
	}

	c.Session.Cart.Clear()
	slog.Info("checkout completed",
		"conversation_id", c.Session.ConversationID,
		"order_id", receipt.OrderID,
		"lines", len(receipt.Lines),
		"total", receipt.Total)

	if err := c.Reply(st.view.Receipt(receipt)); err != nil {
		return err
	}
	c.Enter(domain.SceneStart)
	return nil
}
