// Package sse hosts the local notification channel on a Server-Sent Events
// stream. A Conn is the browser tab as the server sees it: it holds the
// tab's notification permission and shows notices by emitting events.
package sse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/barbershop-booking/internal/notify"
)

// DefaultPromptTimeout bounds how long a permission request waits for the
// tab to answer.
const DefaultPromptTimeout = time.Minute

// ErrClosed is returned to callers still waiting on a stream that went away.
// It also matches context.Canceled so deliveries classify it as cancelled.
var ErrClosed = fmt.Errorf("watch stream closed: %w", context.Canceled)

// Event types emitted on the stream.
const (
	EventConnectionChanged          = "connection-changed"
	EventQueuePosition              = "queue-position"
	EventNotification               = "notification"
	EventNotificationDismiss        = "notification-dismiss"
	EventPermissionRequest          = "permission-request"
	EventPermissionRequestCancelled = "permission-request-cancelled"
	EventDeliveryResult             = "delivery-result"
)

type Event struct {
	Type string
	Data any
}

type noticeEvent struct {
	notify.Notice
	TimeoutMs int64 `json:"timeoutMs"`
}

type shown struct {
	timer *time.Timer
	gen   uint64
}

type Conn struct {
	id            string
	customerID    string
	promptTimeout time.Duration

	mu      sync.Mutex
	perm    notify.Permission
	pending []Event
	ready   chan struct{}
	done    chan struct{}
	closed  bool
	notices map[string]*shown
	gen     uint64
	waiters map[chan notify.Permission]struct{}
}

type Option func(*Conn)

func WithPromptTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.promptTimeout = d
		}
	}
}

func NewConn(id, customerID string, perm notify.Permission, opts ...Option) *Conn {
	c := &Conn{
		id:            id,
		customerID:    customerID,
		promptTimeout: DefaultPromptTimeout,
		perm:          perm,
		ready:         make(chan struct{}, 1),
		done:          make(chan struct{}),
		notices:       make(map[string]*shown),
		waiters:       make(map[chan notify.Permission]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) CustomerID() string { return c.customerID }

// Done is closed once the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues an event for the stream. Events sent after Close are dropped.
func (c *Conn) Send(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(ev)
}

func (c *Conn) sendLocked(ev Event) {
	if c.closed {
		return
	}
	c.pending = append(c.pending, ev)
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// drain hands over every queued event in send order.
func (c *Conn) drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Permission implements notify.Permissions.
func (c *Conn) Permission() notify.Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perm
}

// RequestPermission asks the tab to prompt the user and waits for Answer.
// Concurrent requests share one prompt. A request that times out leaves the
// permission undecided.
func (c *Conn) RequestPermission(ctx context.Context) (notify.Permission, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return notify.PermissionDefault, ErrClosed
	}
	if c.perm != notify.PermissionDefault {
		p := c.perm
		c.mu.Unlock()
		return p, nil
	}
	ch := make(chan notify.Permission, 1)
	if len(c.waiters) == 0 {
		c.sendLocked(Event{Type: EventPermissionRequest, Data: map[string]any{"watchId": c.id}})
	}
	c.waiters[ch] = struct{}{}
	c.mu.Unlock()

	timer := time.NewTimer(c.promptTimeout)
	defer timer.Stop()

	select {
	case p := <-ch:
		return p, nil
	case <-c.done:
		return notify.PermissionDefault, ErrClosed
	case <-timer.C:
		c.abandon(ch)
		return notify.PermissionDefault, nil
	case <-ctx.Done():
		c.abandon(ch)
		return notify.PermissionDefault, ctx.Err()
	}
}

func (c *Conn) abandon(ch chan notify.Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.waiters[ch]; !ok {
		return
	}
	delete(c.waiters, ch)
	if len(c.waiters) == 0 {
		c.sendLocked(Event{Type: EventPermissionRequestCancelled, Data: map[string]any{"watchId": c.id}})
	}
}

// Answer records the tab's permission state and releases waiting requests.
func (c *Conn) Answer(state string) notify.Permission {
	p := notify.ParsePermission(state)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perm = p
	if p == notify.PermissionDefault {
		return p
	}
	for ch := range c.waiters {
		ch <- p
		delete(c.waiters, ch)
	}
	return p
}

// Show implements notify.Display. A notice replaces a still-queued notice
// with the same tag and restarts that tag's dismiss timer.
func (c *Conn) Show(_ context.Context, n notify.Notice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	ev := Event{Type: EventNotification, Data: noticeEvent{Notice: n, TimeoutMs: n.Timeout.Milliseconds()}}
	replaced := false
	for i := range c.pending {
		if prev, ok := c.pending[i].Data.(noticeEvent); ok && prev.Tag == n.Tag {
			c.pending[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		c.sendLocked(ev)
	}

	if old, ok := c.notices[n.Tag]; ok {
		old.timer.Stop()
	}
	c.gen++
	entry := &shown{gen: c.gen}
	if n.Timeout > 0 {
		tag, gen := n.Tag, c.gen
		entry.timer = time.AfterFunc(n.Timeout, func() { c.dismiss(tag, gen) })
	} else {
		entry.timer = time.NewTimer(0)
		entry.timer.Stop()
	}
	c.notices[n.Tag] = entry
	return nil
}

func (c *Conn) dismiss(tag string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.notices[tag]
	if !ok || cur.gen != gen {
		return
	}
	delete(c.notices, tag)
	c.sendLocked(Event{Type: EventNotificationDismiss, Data: map[string]any{"tag": tag}})
}

// Acknowledge keeps a notice the user interacted with on screen. It reports
// whether the tag had a running dismiss timer.
func (c *Conn) Acknowledge(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.notices[tag]
	if !ok {
		return false
	}
	delete(c.notices, tag)
	return cur.timer.Stop()
}

// Close tears the connection down. Pending permission requests fail with
// ErrClosed and no further events are queued.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for tag, n := range c.notices {
		n.timer.Stop()
		delete(c.notices, tag)
	}
	for ch := range c.waiters {
		delete(c.waiters, ch)
	}
	c.pending = nil
	close(c.done)
}

