package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/store"
)

// Catalog is the read/commit surface of the product catalog the scenes need.
// *store.SQLiteStore satisfies it.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]*domain.Product, bool, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context, page, pageSize int) ([]*domain.Category, bool, error)
	DecrementStockBatch(ctx context.Context, lines []store.StockLine) error
}

// SessionStore loads and saves per-conversation state around each dispatch.
type SessionStore interface {
	LoadSession(ctx context.Context, conversationID string) (*domain.Session, error)
	SaveSession(ctx context.Context, s *domain.Session) error
}

// A handler may request at most one transition; chained scene entries are
// bounded to keep a buggy entry handler from looping forever.
const maxTransitionHops = 8

type transitionKind int

const (
	transEnter transitionKind = iota
	transReenter
	transLeave
)

type transition struct {
	kind   transitionKind
	target domain.SceneID
}

// Ctx is the per-event handler context: the session (a mutable view persisted
// by the stage after the handler returns) plus reply and transition requests.
type Ctx struct {
	ctx     context.Context
	Session *domain.Session
	view    Presenter
	send    func(r Reply) error
	trans   *transition
}

// Context returns the dispatch context for store calls.
func (c *Ctx) Context() context.Context {
	return c.ctx
}

// Reply sends one outbound message to the conversation.
func (c *Ctx) Reply(r Reply) error {
	return c.send(r)
}

// Enter requests a transition to another scene. It takes effect only after
// the current handler returns without error.
func (c *Ctx) Enter(id domain.SceneID) {
	c.trans = &transition{kind: transEnter, target: id}
}

// Reenter re-invokes the entry handler of the current scene, used for
// pagination refresh.
func (c *Ctx) Reenter() {
	c.trans = &transition{kind: transReenter}
}

// Leave exits the current scene back to start without running the start
// entry handler.
func (c *Ctx) Leave() {
	c.trans = &transition{kind: transLeave}
}

// Options tunes the stage.
type Options struct {
	// PageSize is the listing page size for categories and products.
	PageSize int
	// RenderDelay is the pause between successive product cards so the
	// transport is not flooded. Not ordering-relevant.
	RenderDelay time.Duration
}

// Stage is the scene registry and router. It maps a conversation to its
// active scene, dispatches inbound events to the matching handler, and
// performs scene transitions. Events for the same conversation are processed
// strictly one at a time and in arrival order; different conversations run
// concurrently.
type Stage struct {
	catalog     Catalog
	sessions    SessionStore
	view        Presenter
	sender      Sender
	scenes      map[domain.SceneID]*Scene
	pageSize    int
	renderDelay time.Duration
	convLocks   sync.Map // conversationID -> *sync.Mutex
}

// NewStage creates a stage with all five scenes registered.
func NewStage(catalog Catalog, sessions SessionStore, view Presenter, sender Sender, opts Options) *Stage {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	st := &Stage{
		catalog:     catalog,
		sessions:    sessions,
		view:        view,
		sender:      sender,
		scenes:      make(map[domain.SceneID]*Scene),
		pageSize:    opts.PageSize,
		renderDelay: opts.RenderDelay,
	}
	st.register(st.startScene())
	st.register(st.deliveryScene())
	st.register(st.categoryScene())
	st.register(st.productScene())
	st.register(st.cartScene())
	return st
}

func (st *Stage) register(s *Scene) {
	st.scenes[s.id] = s
}

func (st *Stage) lockConversation(conversationID string) *sync.Mutex {
	mu, _ := st.convLocks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Dispatch routes one inbound event for a conversation: load session, invoke
// the active scene's matching handler, apply transitions, persist. The
// returned error covers infrastructure failures only; handler faults are
// resolved internally and surfaced to the user.
func (st *Stage) Dispatch(ctx context.Context, conversationID string, ev Event) error {
	mu := st.lockConversation(conversationID)
	mu.Lock()
	defer mu.Unlock()

	session, err := st.sessions.LoadSession(ctx, conversationID)
	if err != nil {
		st.sendBestEffort(ctx, conversationID, st.view.Failure())
		return fmt.Errorf("load session: %w", err)
	}

	c := &Ctx{
		ctx:     ctx,
		Session: session,
		view:    st.view,
		send: func(r Reply) error {
			return st.sender.Send(ctx, conversationID, r)
		},
	}

	st.handle(c, ev)

	if err := st.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (st *Stage) handle(c *Ctx, ev Event) {
	st.resolve(c, st.safely(func() error { return st.route(c, ev) }))

	for hops := 0; c.trans != nil; hops++ {
		if hops >= maxTransitionHops {
			slog.Error("transition hop limit reached, resetting to start",
				"conversation_id", c.Session.ConversationID,
				"scene", c.Session.ActiveScene)
			c.Session.ActiveScene = domain.SceneStart
			c.trans = nil
			return
		}
		t := *c.trans
		c.trans = nil

		switch t.kind {
		case transLeave:
			c.Session.ActiveScene = domain.SceneStart
		case transEnter:
			c.Session.ActiveScene = t.target
			st.runEntry(c)
		case transReenter:
			st.runEntry(c)
		}
	}
}

func (st *Stage) runEntry(c *Ctx) {
	scene, ok := st.scenes[c.Session.ActiveScene]
	if !ok || scene.onEnter == nil {
		return
	}
	st.resolve(c, st.safely(func() error { return scene.onEnter(c) }))
}

func (st *Stage) route(c *Ctx, ev Event) error {
	scene := st.scenes[c.Session.ActiveScene]
	if scene == nil {
		return &StateCorruptionError{Detail: fmt.Sprintf("unknown scene %q", c.Session.ActiveScene)}
	}

	switch ev.Kind {
	case EventCommand:
		if ev.Name == CommandStart {
			c.Enter(domain.SceneStart)
			return nil
		}
		slog.Debug("unknown command ignored", "name", ev.Name,
			"conversation_id", c.Session.ConversationID)
		return nil
	case EventAction:
		if h, ok := scene.matchAction(ev.Token); ok {
			return h(c)
		}
		slog.Debug("unmatched action ignored", "token", ev.Token,
			"scene", scene.id, "conversation_id", c.Session.ConversationID)
		return nil
	case EventText:
		if scene.onText != nil {
			return scene.onText(c, ev.Content)
		}
		slog.Debug("text ignored by scene", "scene", scene.id,
			"conversation_id", c.Session.ConversationID)
		return nil
	}
	return nil
}

// safely converts a handler panic into an error so a buggy handler cannot
// take down the router.
func (st *Stage) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}

// resolve applies the error-handling policy at the scene-handler boundary.
// A transition requested by a failing handler is dropped: transitions take
// effect only when the handler returns normally.
func (st *Stage) resolve(c *Ctx, err error) {
	if err == nil {
		return
	}
	c.trans = nil

	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var corruptionErr *StateCorruptionError
	var conflictErr *StockConflictError

	switch {
	case errors.As(err, &validationErr):
		st.replyOrLog(c, st.view.InvalidMessage())
	case errors.As(err, &notFoundErr):
		switch notFoundErr.Kind {
		case KindCategory:
			st.replyOrLog(c, st.view.CategoryNotFound())
		case KindCartLine:
			st.replyOrLog(c, st.view.CartLineNotFound())
		default:
			st.replyOrLog(c, st.view.ProductNotFound())
		}
		c.Session.ActiveScene = domain.SceneStart
	case errors.As(err, &corruptionErr):
		slog.Error("session state corrupted",
			"conversation_id", c.Session.ConversationID,
			"scene", c.Session.ActiveScene,
			"error", err)
		st.replyOrLog(c, st.view.InvalidState())
		c.Session.ActiveScene = domain.SceneStart
		c.Session.DeliveryStep = ""
	case errors.As(err, &conflictErr):
		st.replyOrLog(c, st.view.Shortfall(conflictErr.Title, conflictErr.Available))
	default:
		slog.Error("scene handler failed",
			"conversation_id", c.Session.ConversationID,
			"scene", c.Session.ActiveScene,
			"error", err)
		st.replyOrLog(c, st.view.Failure())
		c.Session.ActiveScene = domain.SceneStart
	}
}

func (st *Stage) replyOrLog(c *Ctx, r Reply) {
	if err := c.Reply(r); err != nil {
		slog.Warn("failed to send reply", "conversation_id", c.Session.ConversationID, "error", err)
	}
}

func (st *Stage) sendBestEffort(ctx context.Context, conversationID string, r Reply) {
	if err := st.sender.Send(ctx, conversationID, r); err != nil {
		slog.Debug("failed to send failure notice", "conversation_id", conversationID, "error", err)
	}
}
