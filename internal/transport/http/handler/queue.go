package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/pkg/metrics"
	"github.com/barbershop-booking/internal/queue"
	"github.com/barbershop-booking/internal/transport/sse"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// QueueFeed is the queue position source as the watch stream sees it.
type QueueFeed interface {
	Subscribe(customerID string) *queue.Subscription
	Unsubscribe(sub *queue.Subscription)
	Snapshot(customerID string) *domain.QueueEntry
}

type QueueOptions struct {
	Icon          string
	NoticeTimeout time.Duration
	PromptTimeout time.Duration
	Heartbeat     time.Duration
}

// QueueHandler runs a watch session per open stream, showing notifications
// in the customer's tab through the local channel.
type QueueHandler struct {
	feed  QueueFeed
	conns *sse.Registry
	audit notify.Recorder
	opts  QueueOptions
}

func NewQueueHandler(feed QueueFeed, conns *sse.Registry, audit notify.Recorder, opts QueueOptions) *QueueHandler {
	return &QueueHandler{feed: feed, conns: conns, audit: audit, opts: opts}
}

func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.feed.Snapshot(claims.UserID))
}

// Watch opens the event stream. The tab reports its current notification
// permission in the permission query parameter.
func (h *QueueHandler) Watch(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ctx := r.Context()

	conn := sse.NewConn(uuid.NewString(), claims.UserID,
		notify.ParsePermission(r.URL.Query().Get("permission")),
		sse.WithPromptTimeout(h.opts.PromptTimeout))
	h.conns.Register(conn)
	metrics.WatchOpened()
	defer func() {
		h.conns.Remove(conn.ID())
		conn.Close()
		metrics.WatchClosed()
	}()

	logger := slog.Default().With("watch_id", conn.ID(), "customer_id", claims.UserID)
	local := notify.NewLocalSink(conn, conn,
		notify.WithIcon(h.opts.Icon),
		notify.WithNoticeTimeout(h.opts.NoticeTimeout),
		notify.WithLogger(logger))
	sess := queue.NewSession(ctx, claims.UserID, notify.WithAudit(local, h.audit, logger),
		queue.WithSessionLogger(logger),
		queue.WithResultHandler(func(d queue.Delivery) {
			conn.Send(sse.Event{Type: sse.EventDeliveryResult, Data: deliveryResult(d)})
		}))
	defer sess.Close()

	sub := h.feed.Subscribe(claims.UserID)
	defer h.feed.Unsubscribe(sub)

	conn.Send(sse.Event{Type: sse.EventConnectionChanged, Data: map[string]any{
		"status":     "connected",
		"watchId":    conn.ID(),
		"permission": conn.Permission(),
	}})
	go follow(ctx, sub, sess, conn, logger)

	if err := sse.Stream(ctx, w, conn, h.opts.Heartbeat); err != nil {
		logger.Debug("watch stream ended", "err", err)
	}
}

// follow echoes every queue change to the tab and feeds it to the session,
// one change at a time.
func follow(ctx context.Context, sub *queue.Subscription, sess *queue.Session, conn *sse.Conn, logger *slog.Logger) {
	for {
		e, err := sub.Next(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrSubscriptionClosed) && ctx.Err() == nil {
				logger.Warn("queue subscription failed", "err", err)
			}
			return
		}
		conn.Send(sse.Event{Type: sse.EventQueuePosition, Data: e})
		sess.Observe(e)
	}
}

type deliveryResultEvent struct {
	Reason     string `json:"reason"`
	Position   int    `json:"position"`
	Channel    string `json:"channel"`
	Outcome    string `json:"outcome"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Error      string `json:"error,omitempty"`
}

func deliveryResult(d queue.Delivery) deliveryResultEvent {
	ev := deliveryResultEvent{
		Reason:     string(d.Decision.Reason),
		Position:   d.Entry.Position,
		Channel:    string(d.Result.Channel),
		Outcome:    string(d.Result.Outcome),
		DeliveryID: d.Result.DeliveryID,
	}
	if ev.Outcome == "" {
		ev.Outcome = string(notify.Classify(d.Err))
	}
	if d.Err != nil {
		ev.Error = d.Err.Error()
	}
	return ev
}

type permissionRequest struct {
	State string `json:"state" validate:"required,oneof=granted denied default"`
}

// Permission answers the stream's pending permission request.
func (h *QueueHandler) Permission(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.conn(w, r)
	if !ok {
		return
	}
	var req permissionRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]notify.Permission{"permission": conn.Answer(req.State)})
}

type ackRequest struct {
	Tag string `json:"tag" validate:"required"`
}

// Ack keeps a notice the user clicked from being auto-dismissed.
func (h *QueueHandler) Ack(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.conn(w, r)
	if !ok {
		return
	}
	var req ackRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": conn.Acknowledge(req.Tag)})
}

func (h *QueueHandler) conn(w http.ResponseWriter, r *http.Request) (*sse.Conn, bool) {
	claims, ok := claimsOrAbort(w, r)
	if !ok {
		return nil, false
	}
	conn, ok := h.conns.Get(chi.URLParam(r, "id"), claims.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "watch stream not found")
		return nil, false
	}
	return conn, true
}
