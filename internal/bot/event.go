// Package bot implements the conversational ordering state machine: the
// scene registry and router (stage), the scenes themselves, the cart engine
// and the checkout protocol.
package bot

// EventKind discriminates the inbound event variants.
type EventKind int

const (
	// EventCommand is a slash-style command, valid as a scene entry trigger.
	EventCommand EventKind = iota
	// EventAction is a button press carrying an opaque action token.
	EventAction
	// EventText is a free-text message routed to the active scene.
	EventText
)

// Event is one inbound chat event. Exactly one payload field is meaningful
// depending on Kind.
type Event struct {
	Kind    EventKind
	Name    string // command name
	Token   string // action token, possibly with an embedded entity id
	Content string // free-text content; empty for non-text frames
}

// CommandEvent builds a command event.
func CommandEvent(name string) Event {
	return Event{Kind: EventCommand, Name: name}
}

// ActionEvent builds a button-press event.
func ActionEvent(token string) Event {
	return Event{Kind: EventAction, Token: token}
}

// TextEvent builds a free-text event.
func TextEvent(content string) Event {
	return Event{Kind: EventText, Content: content}
}

// CommandStart opens (or restarts) the ordering flow.
const CommandStart = "start"

// Action tokens routed by the scenes. Prefixed tokens carry a numeric entity
// id after the prefix.
const (
	ActionSetAddress           = "set_address"
	ActionShowMenu             = "show_menu"
	ActionShowCart             = "show_cart"
	ActionBackToStart          = "back_to_start"
	ActionBackToCategories     = "back_to_categories"
	ActionBackToProducts       = "back_to_products"
	ActionCartClear            = "cart_clear"
	ActionCheckout             = "checkout"
	ActionSelectCategoryPrefix = "select_category_"
	ActionMoreCategoriesPrefix = "more_categories_"
	ActionProductDetailPrefix  = "product_detail_"
	ActionAddToCartPrefix      = "add_to_cart_"
	ActionMoreProductsPrefix   = "more_products_"
	ActionCartIncPrefix        = "cart_inc_"
	ActionCartDecPrefix        = "cart_dec_"
	ActionCartRemovePrefix     = "cart_remove_"
)
