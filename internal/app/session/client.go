// Package session holds one visitor's conversation: the bounded history,
// its persistence, and the single in-flight send.
//
// Rendering is not part of this package. Anything that wants to draw the
// conversation registers an Observer and reacts to events.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PabloGalante/tutorchat/internal/app/window"
	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

const (
	DefaultStorageKey = "tutorchat_chat_history"
	DefaultMaxHistory = 50
	DefaultUserName   = "Student"

	DefaultWelcome = "Hey {name}! 👋 I'm Thunda, your AI learning guide for this course. " +
		"Ask me anything - like which lesson covers a topic, how to use a specific AI tool, " +
		"or if you're stuck on something. What can I help you with?"

	DefaultFallback = "I'm having trouble connecting to my brain right now 🧠 " +
		"Please try again in a moment, or contact support if the issue persists."
)

// Visitor is the display context sent with every request.
type Visitor struct {
	Name       string
	CourseName string
	PageURL    string
}

type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventBusy
	EventReset
)

type Event struct {
	Kind    EventKind
	Message domain.Message // EventMessage
	Busy    bool           // EventBusy
}

// Observer is notified after every state change. It runs on the caller's goroutine.
type Observer func(Event)

type Options struct {
	Store domain.KVStore
	Relay domain.Relay

	StorageKey string
	MaxHistory int
	WindowSize int

	Visitor Visitor

	// Welcome is seeded when history is empty. {name} is replaced by the visitor name.
	Welcome        string
	DisableWelcome bool
	Fallback       string

	Observers []Observer
	Now       func() time.Time
}

type Client struct {
	store      domain.KVStore
	relay      domain.Relay
	key        string
	maxHistory int
	windowSize int
	visitor    Visitor
	welcome    string
	fallback   string
	now        func() time.Time

	mu        sync.Mutex
	history   []domain.Message
	observers []Observer

	inFlight atomic.Bool
}

// New loads the persisted history and seeds the welcome message when it is empty.
// A store that fails to read, or holds something unreadable, yields an empty history.
func New(ctx context.Context, opts Options) *Client {
	c := &Client{
		store:      opts.Store,
		relay:      opts.Relay,
		key:        opts.StorageKey,
		maxHistory: opts.MaxHistory,
		windowSize: opts.WindowSize,
		visitor:    opts.Visitor,
		welcome:    opts.Welcome,
		fallback:   opts.Fallback,
		now:        opts.Now,
		observers:  append([]Observer(nil), opts.Observers...),
	}
	if c.key == "" {
		c.key = DefaultStorageKey
	}
	if c.maxHistory <= 0 {
		c.maxHistory = DefaultMaxHistory
	}
	if c.windowSize <= 0 {
		c.windowSize = window.DefaultSize
	}
	if strings.TrimSpace(c.visitor.Name) == "" {
		c.visitor.Name = DefaultUserName
	}
	if c.welcome == "" && !opts.DisableWelcome {
		c.welcome = DefaultWelcome
	}
	if c.fallback == "" {
		c.fallback = DefaultFallback
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.history = c.load(ctx)
	if len(c.history) == 0 {
		c.seedWelcome(ctx)
	}
	return c
}

// Subscribe registers an observer for subsequent events.
func (c *Client) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// History returns a copy of the current history, oldest first.
func (c *Client) History() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.history...)
}

// Busy reports whether a send is in flight.
func (c *Client) Busy() bool {
	return c.inFlight.Load()
}

// AppendMessage records a message, drops the oldest entries beyond the bound
// and persists the result. A store failure is logged; the in-memory append stands.
func (c *Client) AppendMessage(ctx context.Context, role domain.Role, content string) domain.Message {
	msg := domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	c.history = append(c.history, msg)
	if over := len(c.history) - c.maxHistory; over > 0 {
		c.history = append([]domain.Message(nil), c.history[over:]...)
	}
	c.persistLocked(ctx)
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, Event{Kind: EventMessage, Message: msg})
	return msg
}

// Send runs one turn. It returns false when the call was dropped: blank text,
// or another send still in flight. Failures never escape; they become a
// fallback bot message.
func (c *Client) Send(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		observability.LoggerFromContext(ctx).Debug("send dropped, another send in flight")
		return false
	}
	defer func() {
		c.inFlight.Store(false)
		c.emit(Event{Kind: EventBusy, Busy: false})
	}()
	c.emit(Event{Kind: EventBusy, Busy: true})

	prior := window.Build(c.History(), c.windowSize)
	c.AppendMessage(ctx, domain.RoleUser, text)

	reply := c.fallback
	if answer, ok := c.ask(ctx, text, prior); ok {
		reply = answer
	}
	c.AppendMessage(ctx, domain.RoleBot, reply)
	return true
}

func (c *Client) ask(ctx context.Context, text string, prior []domain.Turn) (reply string, ok bool) {
	log := observability.LoggerFromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("relay call panicked", "panic", r)
			reply, ok = "", false
		}
	}()

	if c.relay == nil {
		log.Warn("no relay configured")
		return "", false
	}

	out, err := c.relay.Chat(ctx, domain.ChatRequest{
		Message: text,
		History: prior,
		Context: domain.ChatContext{
			UserName:   c.visitor.Name,
			CourseName: c.visitor.CourseName,
			PageURL:    c.visitor.PageURL,
		},
	})
	if err != nil {
		log.Warn("relay call failed", "error", err, "kind", domain.KindOf(err))
		return "", false
	}
	if strings.TrimSpace(out.Reply) == "" {
		log.Warn("relay returned empty reply")
		return "", false
	}
	return out.Reply, true
}

// Reset clears the history and the store, then seeds the welcome message again.
func (c *Client) Reset(ctx context.Context) {
	c.mu.Lock()
	c.history = nil
	if c.store != nil {
		if err := c.store.Clear(ctx, c.key); err != nil {
			observability.LoggerFromContext(ctx).Warn("could not clear history",
				"error", domain.StoreFailure(err))
		}
	}
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, Event{Kind: EventReset})
	c.seedWelcome(ctx)
}

func (c *Client) seedWelcome(ctx context.Context) {
	if c.welcome == "" {
		return
	}
	c.AppendMessage(ctx, domain.RoleBot, strings.ReplaceAll(c.welcome, "{name}", c.visitor.Name))
}

func (c *Client) load(ctx context.Context) []domain.Message {
	if c.store == nil {
		return nil
	}
	log := observability.LoggerFromContext(ctx)

	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		log.Warn("could not load history", "error", domain.StoreFailure(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var msgs []domain.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		log.Warn("could not decode history", "error", domain.StoreFailure(err))
		return nil
	}
	if over := len(msgs) - c.maxHistory; over > 0 {
		msgs = msgs[over:]
	}
	return msgs
}

func (c *Client) persistLocked(ctx context.Context) {
	if c.store == nil {
		return
	}
	log := observability.LoggerFromContext(ctx)

	raw, err := json.Marshal(c.history)
	if err != nil {
		log.Warn("could not encode history", "error", domain.StoreFailure(err))
		return
	}
	if err := c.store.Set(ctx, c.key, raw); err != nil {
		log.Warn("could not save history", "error", domain.StoreFailure(err))
	}
}

func (c *Client) observersLocked() []Observer {
	return append([]Observer(nil), c.observers...)
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	observers := c.observersLocked()
	c.mu.Unlock()
	notify(observers, ev)
}

func notify(observers []Observer, ev Event) {
	for _, o := range observers {
		o(ev)
	}
}
