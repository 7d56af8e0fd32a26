package bot

import (
	"fmt"

	"github.com/okunev/lavka/internal/domain"
)

// categoryScene pages through the category listing, one button per category.
func (st *Stage) categoryScene() *Scene {
	s := newScene(domain.SceneCategory)

	s.enter(func(c *Ctx) error {
		page := c.Session.CategoryPage
		categories, hasNext, err := st.catalog.ListCategories(c.Context(), page, st.pageSize)
		if err != nil {
			return fmt.Errorf("list categories page %d: %w", page, err)
		}
		if len(categories) == 0 {
			return c.Reply(st.view.NoCategories())
		}
		nextPage := 0
		if hasNext {
			nextPage = page + 1
		}
		return c.Reply(st.view.CategoryList(categories, nextPage))
	})

	s.actionID(ActionSelectCategoryPrefix, func(c *Ctx, id int64) error {
		category, err := st.catalog.GetCategory(c.Context(), id)
		if err != nil {
			return fmt.Errorf("fetch category %d: %w", id, err)
		}
		if category == nil {
			return &NotFoundError{Kind: KindCategory, ID: id}
		}
		c.Session.CurrentCategoryID = id
		c.Session.ProductPage = 1
		c.Session.CategoryPage = 1
		c.Enter(domain.SceneProduct)
		return nil
	})

	s.actionID(ActionMoreCategoriesPrefix, func(c *Ctx, page int64) error {
		if page < 1 {
			return &ValidationError{Msg: fmt.Sprintf("bad category page %d", page)}
		}
		c.Session.CategoryPage = int(page)
		c.Reenter()
		return nil
	})

	s.action(ActionBackToStart, func(c *Ctx) error {
		c.Enter(domain.SceneStart)
		return nil
	})

	return s
}
