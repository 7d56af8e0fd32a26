package bot

import (
	"context"

	"github.com/okunev/lavka/internal/domain"
)

// Button is one labeled action offered with an outbound message.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Reply is one outbound message: user-facing text plus labeled actions.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Presenter renders domain values into user-facing replies. The scenes call
// it but do not know its formatting rules.
type Presenter interface {
	Greeting() Reply
	AddressNeeded() Reply
	AddressSummary(a domain.Address) Reply
	MainMenu() Reply

	PromptAddressField(step domain.DeliveryStep) Reply
	AddressSaved() Reply

	// CategoryList renders one button per category; nextPage > 0 adds a
	// "more" button carrying that page.
	CategoryList(categories []*domain.Category, nextPage int) Reply
	NoCategories() Reply

	ProductCard(p *domain.Product) Reply
	ProductDetail(p *domain.Product) Reply
	NoProducts() Reply
	// BrowseFooter closes a product listing; nextPage > 0 adds a "more"
	// button carrying that page.
	BrowseFooter(nextPage int) Reply

	AddedToCart(p *domain.Product) Reply
	CartHeader(a *domain.Address) Reply
	CartLine(p *domain.Product, quantity int64) Reply
	CartFooter(total float64) Reply
	CartEmpty() Reply
	CartCleared() Reply
	RemovedFromCart() Reply

	Shortfall(title string, available int64) Reply
	Receipt(r *domain.Receipt) Reply

	OutOfStock() Reply
	ProductNotFound() Reply
	CategoryNotFound() Reply
	CartLineNotFound() Reply
	InvalidMessage() Reply
	InvalidState() Reply
	Failure() Reply
}

// Sender delivers a reply to a conversation. The chat transport implements
// it; the stage never touches the wire directly.
type Sender interface {
	Send(ctx context.Context, conversationID string, r Reply) error
}
