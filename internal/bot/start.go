package bot

import (
	"github.com/okunev/lavka/internal/domain"
)

// startScene greets the customer. Without a delivery address it hands the
// conversation straight to address capture; otherwise it shows the stored
// address and the main menu.
func (st *Stage) startScene() *Scene {
	s := newScene(domain.SceneStart)

	s.enter(func(c *Ctx) error {
		if err := c.Reply(st.view.Greeting()); err != nil {
			return err
		}
		if !c.Session.HasAddress() {
			if err := c.Reply(st.view.AddressNeeded()); err != nil {
				return err
			}
			c.Enter(domain.SceneDelivery)
			return nil
		}
		if err := c.Reply(st.view.AddressSummary(*c.Session.DeliveryAddress)); err != nil {
			return err
		}
		return c.Reply(st.view.MainMenu())
	})

	s.action(ActionSetAddress, func(c *Ctx) error {
		// Restart capture from the first field; existing values are
		// overwritten one by one.
		c.Session.DeliveryStep = ""
		c.Enter(domain.SceneDelivery)
		return nil
	})

	s.action(ActionShowMenu, func(c *Ctx) error {
		c.Session.CategoryPage = 1
		c.Enter(domain.SceneCategory)
		return nil
	})

	s.action(ActionShowCart, func(c *Ctx) error {
		c.Enter(domain.SceneCart)
		return nil
	})

	return s
}
