package bot

import (
	"fmt"
	"strings"

	"github.com/okunev/lavka/internal/domain"
)

// deliveryScene captures the delivery address field by field:
// name -> city -> street -> building -> done.
func (st *Stage) deliveryScene() *Scene {
	s := newScene(domain.SceneDelivery)

	s.enter(func(c *Ctx) error {
		if c.Session.DeliveryAddress == nil {
			c.Session.DeliveryAddress = &domain.Address{}
		}
		if c.Session.DeliveryStep == "" {
			c.Session.DeliveryStep = domain.StepName
			return c.Reply(st.view.PromptAddressField(domain.StepName))
		}
		return nil
	})

	s.text(func(c *Ctx, content string) error {
		if content == "" {
			// The transport delivers non-text frames with empty content.
			if err := c.Reply(st.view.InvalidMessage()); err != nil {
				return err
			}
			c.Leave()
			return nil
		}
		text := strings.TrimSpace(content)
		if text == "" {
			return &ValidationError{Msg: "blank address field"}
		}

		if c.Session.DeliveryAddress == nil {
			c.Session.DeliveryAddress = &domain.Address{}
		}
		addr := c.Session.DeliveryAddress

		switch c.Session.DeliveryStep {
		case domain.StepName:
			addr.Name = text
			c.Session.DeliveryStep = domain.StepCity
			return c.Reply(st.view.PromptAddressField(domain.StepCity))
		case domain.StepCity:
			addr.City = text
			c.Session.DeliveryStep = domain.StepStreet
			return c.Reply(st.view.PromptAddressField(domain.StepStreet))
		case domain.StepStreet:
			addr.Street = text
			c.Session.DeliveryStep = domain.StepBuilding
			return c.Reply(st.view.PromptAddressField(domain.StepBuilding))
		case domain.StepBuilding:
			addr.Building = text
			c.Session.DeliveryStep = ""
			if err := c.Reply(st.view.AddressSaved()); err != nil {
				return err
			}
			c.Session.CategoryPage = 1
			c.Enter(domain.SceneCategory)
			return nil
		default:
			// Not silently coerced: an unknown step means the stored
			// session is corrupt.
			return &StateCorruptionError{
				Detail: fmt.Sprintf("unknown delivery step %q", c.Session.DeliveryStep),
			}
		}
	})

	return s
}
