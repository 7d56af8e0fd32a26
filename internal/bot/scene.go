package bot

import (
	"strconv"
	"strings"

	"github.com/okunev/lavka/internal/domain"
)

// HandlerFunc handles one event for a scene.
type HandlerFunc func(c *Ctx) error

// actionBinding pairs a token matcher with its handler. Bindings are
// evaluated in registration order; first match wins.
type actionBinding struct {
	exact  string
	prefix string
	handle func(c *Ctx, id int64) error
}

func (b *actionBinding) match(token string) (int64, bool) {
	if b.exact != "" {
		return 0, token == b.exact
	}
	if !strings.HasPrefix(token, b.prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(token, b.prefix), 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Scene is one named state of the conversation: an entry handler plus an
// ordered set of event handlers.
type Scene struct {
	id      domain.SceneID
	onEnter HandlerFunc
	actions []actionBinding
	onText  func(c *Ctx, content string) error
}

func newScene(id domain.SceneID) *Scene {
	return &Scene{id: id}
}

func (s *Scene) enter(fn HandlerFunc) {
	s.onEnter = fn
}

// action registers a handler for an exact token.
func (s *Scene) action(token string, fn HandlerFunc) {
	s.actions = append(s.actions, actionBinding{
		exact:  token,
		handle: func(c *Ctx, _ int64) error { return fn(c) },
	})
}

// actionID registers a handler for a prefixed token with an embedded
// numeric id.
func (s *Scene) actionID(prefix string, fn func(c *Ctx, id int64) error) {
	s.actions = append(s.actions, actionBinding{prefix: prefix, handle: fn})
}

func (s *Scene) text(fn func(c *Ctx, content string) error) {
	s.onText = fn
}

func (s *Scene) matchAction(token string) (HandlerFunc, bool) {
	for i := range s.actions {
		b := &s.actions[i]
		if id, ok := b.match(token); ok {
			return func(c *Ctx) error { return b.handle(c, id) }, true
		}
	}
	return nil, false
}
