package domain

import (
	"sort"
)

// Cart accumulates order lines for a single conversation.
// Quantities are always positive; removing a line to zero deletes the key.
type Cart struct {
	Items map[int64]int64 `json:"items"`
}

// NewCart returns an empty cart.
func NewCart() Cart {
	return Cart{Items: make(map[int64]int64)}
}

// IsEmpty returns true if the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the quantity for a product, 0 if the line is absent.
func (c *Cart) Quantity(productID int64) int64 {
	return c.Items[productID]
}

// ProductIDs returns the cart's product IDs in ascending order so that
// rendering and checkout walk the lines deterministically.
func (c *Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Add inserts a new line with quantity 1, or increments an existing line if
// its quantity is still below the observed stock. Returns false when the
// ceiling blocks the change. A missing line is inserted even when stock is
// exactly 1; stock of zero or less blocks any change.
func (c *Cart) Add(productID, stock int64) bool {
	if stock <= 0 {
		return false
	}
	c.ensure()
	qty, ok := c.Items[productID]
	if !ok {
		c.Items[productID] = 1
		return true
	}
	if qty >= stock {
		return false
	}
	c.Items[productID] = qty + 1
	return true
}

// Increase increments an existing line subject to the same stock ceiling as
// Add. Returns false if the line is absent or already at the ceiling.
func (c *Cart) Increase(productID, stock int64) bool {
	c.ensure()
	qty, ok := c.Items[productID]
	if !ok || qty >= stock {
		return false
	}
	c.Items[productID] = qty + 1
	return true
}

// Decrease decrements an existing line, flooring at quantity 1. A line is
// never dropped by Decrease; use Remove for that. Returns false if nothing
// changed.
func (c *Cart) Decrease(productID int64) bool {
	c.ensure()
	qty, ok := c.Items[productID]
	if !ok || qty <= 1 {
		return false
	}
	c.Items[productID] = qty - 1
	return true
}

// Remove deletes a line unconditionally.
func (c *Cart) Remove(productID int64) {
	delete(c.Items, productID)
}

// Clear resets the cart to empty.
func (c *Cart) Clear() {
	c.Items = make(map[int64]int64)
}

func (c *Cart) ensure() {
	if c.Items == nil {
		c.Items = make(map[int64]int64)
	}
}
