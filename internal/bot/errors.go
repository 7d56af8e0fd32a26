package bot

import (
	"fmt"
)

// The error taxonomy below is caught at the stage boundary; none of these
// errors escape to crash the router. Anything else is treated as unexpected:
// logged, answered with a generic failure, and the conversation falls back to
// the start scene.

// NotFound kinds.
const (
	KindProduct  = "product"
	KindCategory = "category"
	KindCartLine = "cart line"
)

// ValidationError reports malformed user input. The user is re-prompted and
// the scene is not exited.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Msg
}

// NotFoundError reports that a referenced entity vanished. The user is
// informed and the conversation exits to the start scene.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// StateCorruptionError reports an impossible session value. It is logged at
// error severity and the session is forced back to the start scene.
type StateCorruptionError struct {
	Detail string
}

func (e *StateCorruptionError) Error() string {
	return "corrupted session state: " + e.Detail
}

// StockConflictError reports checkout-time insufficient stock. The shortfall
// is reported, the cart is left intact and the scene is not exited.
type StockConflictError struct {
	ProductID int64
	Title     string
	Requested int64
	Available int64
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
