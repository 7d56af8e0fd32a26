package chatws

import (
	"fmt"
	"strings"

	"github.com/okunev/lavka/internal/bot"
	"github.com/okunev/lavka/internal/domain"
)

// TextPresenter renders replies as plain text with labeled action buttons.
type TextPresenter struct{}

// NewTextPresenter creates the default presenter.
func NewTextPresenter() *TextPresenter {
	return &TextPresenter{}
}

var _ bot.Presenter = (*TextPresenter)(nil)

func (p *TextPresenter) Greeting() bot.Reply {
	return bot.Reply{Text: "Welcome to Lavka! I can take your grocery order right here."}
}

func (p *TextPresenter) AddressNeeded() bot.Reply {
	return bot.Reply{Text: "I don't have a delivery address for you yet. Let's set one up."}
}

func (p *TextPresenter) AddressSummary(a domain.Address) bot.Reply {
	return bot.Reply{
		Text: fmt.Sprintf("Delivering to %s, %s, %s %s.", a.Name, a.City, a.Street, a.Building),
	}
}

func (p *TextPresenter) MainMenu() bot.Reply {
	return bot.Reply{
		Text: "What would you like to do?",
		Buttons: []bot.Button{
			{Label: "Browse menu", Action: bot.ActionShowMenu},
			{Label: "My cart", Action: bot.ActionShowCart},
			{Label: "Change address", Action: bot.ActionSetAddress},
		},
	}
}

func (p *TextPresenter) PromptAddressField(step domain.DeliveryStep) bot.Reply {
	var text string
	switch step {
	case domain.StepName:
		text = "What's your name?"
	case domain.StepCity:
		text = "Which city should we deliver to?"
	case domain.StepStreet:
		text = "What street?"
	case domain.StepBuilding:
		text = "And the building number?"
	default:
		text = "Please enter your address."
	}
	return bot.Reply{Text: text}
}

func (p *TextPresenter) AddressSaved() bot.Reply {
	return bot.Reply{Text: "Address saved. On to the menu!"}
}

func (p *TextPresenter) CategoryList(categories []*domain.Category, nextPage int) bot.Reply {
	buttons := make([]bot.Button, 0, len(categories)+2)
	for _, c := range categories {
		buttons = append(buttons, bot.Button{
			Label:  c.Name,
			Action: fmt.Sprintf("%s%d", bot.ActionSelectCategoryPrefix, c.ID),
		})
	}
	if nextPage > 0 {
		buttons = append(buttons, bot.Button{
			Label:  "More categories",
			Action: fmt.Sprintf("%s%d", bot.ActionMoreCategoriesPrefix, nextPage),
		})
	}
	buttons = append(buttons, bot.Button{Label: "Back", Action: bot.ActionBackToStart})
	return bot.Reply{Text: "Pick a category:", Buttons: buttons}
}

func (p *TextPresenter) NoCategories() bot.Reply {
	return bot.Reply{
		Text:    "No categories here yet.",
		Buttons: []bot.Button{{Label: "Back", Action: bot.ActionBackToStart}},
	}
}

func (p *TextPresenter) ProductCard(prod *domain.Product) bot.Reply {
	buttons := []bot.Button{
		{Label: "Details", Action: fmt.Sprintf("%s%d", bot.ActionProductDetailPrefix, prod.ID)},
	}
	if prod.InStock() {
		buttons = append(buttons, bot.Button{
			Label:  "Add to cart",
			Action: fmt.Sprintf("%s%d", bot.ActionAddToCartPrefix, prod.ID),
		})
	}
	return bot.Reply{
		Text:    fmt.Sprintf("%s — %.2f", prod.Title, prod.Price),
		Buttons: buttons,
	}
}

func (p *TextPresenter) ProductDetail(prod *domain.Product) bot.Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", prod.Title)
	if prod.Description != "" {
		fmt.Fprintf(&b, "%s\n", prod.Description)
	}
	fmt.Fprintf(&b, "Price: %.2f\nIn stock: %d", prod.Price, prod.Quantity)
	var buttons []bot.Button
	if prod.InStock() {
		buttons = append(buttons, bot.Button{
			Label:  "Add to cart",
			Action: fmt.Sprintf("%s%d", bot.ActionAddToCartPrefix, prod.ID),
		})
	}
	buttons = append(buttons, bot.Button{Label: "Back to products", Action: bot.ActionBackToProducts})
	return bot.Reply{
		Text:    b.String(),
		Buttons: buttons,
	}
}

func (p *TextPresenter) NoProducts() bot.Reply {
	return bot.Reply{Text: "Nothing in this category yet."}
}

func (p *TextPresenter) BrowseFooter(nextPage int) bot.Reply {
	buttons := make([]bot.Button, 0, 4)
	if nextPage > 0 {
		buttons = append(buttons, bot.Button{
			Label:  "More products",
			Action: fmt.Sprintf("%s%d", bot.ActionMoreProductsPrefix, nextPage),
		})
	}
	buttons = append(buttons,
		bot.Button{Label: "Categories", Action: bot.ActionBackToCategories},
		bot.Button{Label: "My cart", Action: bot.ActionShowCart},
		bot.Button{Label: "Main menu", Action: bot.ActionBackToStart},
	)
	return bot.Reply{Text: "What next?", Buttons: buttons}
}

func (p *TextPresenter) AddedToCart(prod *domain.Product) bot.Reply {
	return bot.Reply{Text: fmt.Sprintf("Added %s to your cart.", prod.Title)}
}

func (p *TextPresenter) CartHeader(a *domain.Address) bot.Reply {
	if a == nil || !a.Complete() {
		return bot.Reply{Text: "Your cart:"}
	}
	return bot.Reply{
		Text: fmt.Sprintf("Your cart (delivery to %s, %s %s):", a.City, a.Street, a.Building),
	}
}

func (p *TextPresenter) CartLine(prod *domain.Product, quantity int64) bot.Reply {
	return bot.Reply{
		Text: fmt.Sprintf("%s × %d = %.2f", prod.Title, quantity, float64(quantity)*prod.Price),
		Buttons: []bot.Button{
			{Label: "+", Action: fmt.Sprintf("%s%d", bot.ActionCartIncPrefix, prod.ID)},
			{Label: "−", Action: fmt.Sprintf("%s%d", bot.ActionCartDecPrefix, prod.ID)},
			{Label: "Remove", Action: fmt.Sprintf("%s%d", bot.ActionCartRemovePrefix, prod.ID)},
		},
	}
}

func (p *TextPresenter) CartFooter(total float64) bot.Reply {
	return bot.Reply{
		Text: fmt.Sprintf("Total: %.2f", total),
		Buttons: []bot.Button{
			{Label: "Checkout", Action: bot.ActionCheckout},
			{Label: "Clear cart", Action: bot.ActionCartClear},
			{Label: "Main menu", Action: bot.ActionBackToStart},
		},
	}
}

func (p *TextPresenter) CartEmpty() bot.Reply {
	return bot.Reply{Text: "Your cart is empty."}
}

func (p *TextPresenter) CartCleared() bot.Reply {
	return bot.Reply{Text: "Cart cleared."}
}

func (p *TextPresenter) RemovedFromCart() bot.Reply {
	return bot.Reply{Text: "Removed from your cart."}
}

func (p *TextPresenter) Shortfall(title string, available int64) bot.Reply {
	if title == "" {
		title = "one of your items"
	}
	return bot.Reply{
		Text: fmt.Sprintf("Sorry, only %d of %s left — please adjust your cart.", available, title),
		Buttons: []bot.Button{
			{Label: "My cart", Action: bot.ActionShowCart},
		},
	}
}

func (p *TextPresenter) Receipt(r *domain.Receipt) bot.Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s confirmed!\n", r.OrderID)
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%s × %d = %.2f\n", line.Title, line.Quantity, line.LineTotal)
	}
	fmt.Fprintf(&b, "Total: %.2f", r.Total)
	return bot.Reply{Text: b.String()}
}

func (p *TextPresenter) OutOfStock() bot.Reply {
	return bot.Reply{Text: "Sorry, that one is out of stock."}
}

func (p *TextPresenter) ProductNotFound() bot.Reply {
	return bot.Reply{Text: "That product is no longer available."}
}

func (p *TextPresenter) CategoryNotFound() bot.Reply {
	return bot.Reply{Text: "That category is no longer available."}
}

func (p *TextPresenter) CartLineNotFound() bot.Reply {
	return bot.Reply{Text: "That item is not in your cart."}
}

func (p *TextPresenter) InvalidMessage() bot.Reply {
	return bot.Reply{Text: "Sorry, I didn't get that. Please send plain text."}
}

func (p *TextPresenter) InvalidState() bot.Reply {
	return bot.Reply{Text: "Something went out of sync; let's start over."}
}

func (p *TextPresenter) Failure() bot.Reply {
	return bot.Reply{Text: "Something went wrong on our side. Please try again."}
}
