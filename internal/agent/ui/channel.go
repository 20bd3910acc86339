package ui

import (
	"context"
	"sync"

	logx "github.com/chative-genui/server/pkg/logger"
)

// Sink receives events as they are accepted, e.g. to stream them to a client.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Channel is the append-only UI event log of one graph invocation.
// A nil *Channel discards pushes.
//
// Accepted events are queued under mu and published under pubMu, so a slow sink never
// blocks the log. Each publisher drains the queue in order while holding pubMu, which
// keeps sink order equal to log order.
type Channel struct {
	ctx    context.Context
	mu     sync.Mutex
	events []Event
	views  map[string]View
	start  int
	sink   Sink

	pubMu  sync.Mutex
	outbox []Event
}

// NewChannel seeds the log with events from earlier invocations so that terminal ids stay
// terminal. sink may be nil.
func NewChannel(ctx context.Context, prior []Event, sink Sink) *Channel {
	events := make([]Event, len(prior))
	copy(events, prior)
	return &Channel{
		ctx:    ctx,
		events: events,
		views:  Reduce(prior),
		start:  len(prior),
		sink:   sink,
	}
}

// Push appends ev unless it would move its id backwards. Pushes are fire-and-forget: a
// rejected event or a failing sink is logged, never returned.
func (c *Channel) Push(ev Event) {
	if c == nil {
		return
	}
	if ev.Merge == "" {
		ev.Merge = Merge
	}
	if ev.Status == "" {
		ev.Status = StatusLoading
	}

	if c.accept(ev) {
		c.publish()
	}
}

func (c *Channel) accept(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prev *View
	if v, ok := c.views[ev.ID]; ok {
		prev = &v
	}
	if !allowed(prev, ev) {
		logx.Warn().
			Str("correlation_id", ev.ID).
			Str("component", ev.Name).
			Str("from", string(prev.Status)).
			Str("to", string(ev.Status)).
			Msg("UI event dropped: correlation id cannot move backwards")
		return false
	}

	c.events = append(c.events, ev)
	c.views[ev.ID] = Fold(prev, ev)
	if c.sink != nil {
		c.outbox = append(c.outbox, ev)
	}
	return true
}

func (c *Channel) publish() {
	if c.sink == nil {
		return
	}
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	batch := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, ev := range batch {
		if err := c.sink.Publish(c.ctx, ev); err != nil {
			logx.Warn().Err(err).Str("correlation_id", ev.ID).Msg("UI sink publish failed")
		}
	}
}

// Events returns the full log, prior events included.
func (c *Channel) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Emitted returns only the events pushed during this invocation.
func (c *Channel) Emitted() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events)-c.start)
	copy(out, c.events[c.start:])
	return out
}

// View returns the current folded state of id.
func (c *Channel) View(id string) (View, bool) {
	if c == nil {
		return View{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[id]
	return v, ok
}

type channelKey struct{}

// NewContext attaches ch to ctx for the nodes of one invocation.
func NewContext(ctx context.Context, ch *Channel) context.Context {
	return context.WithValue(ctx, channelKey{}, ch)
}

// FromContext returns the invocation's channel, or nil when none is attached.
func FromContext(ctx context.Context) *Channel {
	ch, _ := ctx.Value(channelKey{}).(*Channel)
	return ch
}
