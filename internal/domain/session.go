package domain

import (
	"time"
)

// SceneID names a state in the conversation state machine.
type SceneID string

const (
	SceneStart    SceneID = "start"
	SceneDelivery SceneID = "delivery"
	SceneCategory SceneID = "category"
	SceneProduct  SceneID = "product"
	SceneCart     SceneID = "cart"
)

// DeliveryStep is the progress cursor through delivery address capture.
// The empty string means the session is not capturing an address.
type DeliveryStep string

const (
	StepName     DeliveryStep = "name"
	StepCity     DeliveryStep = "city"
	StepStreet   DeliveryStep = "street"
	StepBuilding DeliveryStep = "building"
)

// Address is the delivery address captured field by field.
type Address struct {
	Name     string `json:"name,omitempty"`
	City     string `json:"city,omitempty"`
	Street   string `json:"street,omitempty"`
	Building string `json:"building,omitempty"`
}

// Complete returns true once every address field has been supplied.
func (a *Address) Complete() bool {
	return a.Name != "" && a.City != "" && a.Street != "" && a.Building != ""
}

// Session is the durable per-conversation state. It is loaded and saved by
// the stage around every handler invocation; handlers never hold a global
// reference to it.
type Session struct {
	ConversationID    string       `json:"-"`
	ActiveScene       SceneID      `json:"active_scene"`
	DeliveryAddress   *Address     `json:"delivery_address,omitempty"`
	DeliveryStep      DeliveryStep `json:"delivery_step,omitempty"`
	CategoryPage      int          `json:"category_page"`
	ProductPage       int          `json:"product_page"`
	CurrentCategoryID int64        `json:"current_category_id,omitempty"`
	Cart              Cart         `json:"cart"`
	CreatedAt         time.Time    `json:"-"`
	UpdatedAt         time.Time    `json:"-"`
}

// NewSession returns a fully initialized session starting at the start scene.
func NewSession(conversationID string) *Session {
	now := time.Now()
	return &Session{
		ConversationID: conversationID,
		ActiveScene:    SceneStart,
		CategoryPage:   1,
		ProductPage:    1,
		Cart:           NewCart(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Normalize fills in defaults so every handler observes a fully initialized
// session. An unrecognized non-empty scene is left as is; the stage treats it
// as corrupted state when routing.
func (s *Session) Normalize() {
	if s.ActiveScene == "" {
		s.ActiveScene = SceneStart
	}
	if s.CategoryPage < 1 {
		s.CategoryPage = 1
	}
	if s.ProductPage < 1 {
		s.ProductPage = 1
	}
	if s.Cart.Items == nil {
		s.Cart = NewCart()
	}
}

// HasAddress returns true when a delivery address has been captured.
func (s *Session) HasAddress() bool {
	return s.DeliveryAddress != nil && s.DeliveryAddress.Complete()
}
