package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/queue"
	"github.com/barbershop-booking/internal/transport/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

var opening = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type dayBook struct {
	mu    sync.Mutex
	appts []domain.Appointment
}

func (b *dayBook) set(appts ...domain.Appointment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appts = appts
}

func (b *dayBook) ListActiveByDate(context.Context, string) ([]domain.Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Appointment(nil), b.appts...), nil
}

func booking(id, customer string, slot int) domain.Appointment {
	at := opening.Add(time.Duration(slot) * 30 * time.Minute)
	return domain.Appointment{
		AppointmentID: id, CustomerID: customer, ScheduledAt: at, CreatedAt: opening.Add(-time.Hour),
		DurationMinutes: 30, Status: domain.StatusConfirmed,
	}
}

type auditLog struct {
	mu   sync.Mutex
	recs []domain.Notification
}

func (a *auditLog) Put(_ context.Context, n *domain.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, *n)
	return nil
}

func (a *auditLog) outcomes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.recs))
	for i, r := range a.recs {
		out[i] = r.Outcome
	}
	return out
}

type sseEvent struct {
	Type string
	Data string
}

func readEvents(t *testing.T, resp *http.Response) <-chan sseEvent {
	t.Helper()
	out := make(chan sseEvent, 64)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.Type != "":
				out <- ev
				ev = sseEvent{}
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return sseEvent{}
	}
}

// --- tests ---

func TestWatch_NotifiesInTabWhenMovingToSecond(t *testing.T) {
	book := &dayBook{}
	book.set(booking("a0", "c0", 0), booking("a9", "c9", 1), booking("a1", "c1", 2))
	hub := queue.NewHub(book, time.UTC, queue.WithClock(func() time.Time { return opening }))
	require.NoError(t, hub.Refresh(context.Background()))

	conns := sse.NewRegistry()
	audit := &auditLog{}
	h := NewQueueHandler(hub, conns, audit, QueueOptions{Icon: "/icon.png", NoticeTimeout: time.Minute})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Watch(w, as(r, "c1", "customer"))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?permission=granted")
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	events := readEvents(t, resp)

	ev := nextEvent(t, events)
	assert.Equal(t, sse.EventConnectionChanged, ev.Type)
	assert.Contains(t, ev.Data, `"permission":"granted"`)

	ev = nextEvent(t, events)
	assert.Equal(t, sse.EventQueuePosition, ev.Type)
	assert.Contains(t, ev.Data, `"position":3`)

	book.set(booking("a9", "c9", 1), booking("a1", "c1", 2))
	require.NoError(t, hub.Refresh(context.Background()))

	ev = nextEvent(t, events)
	assert.Equal(t, sse.EventQueuePosition, ev.Type)
	assert.Contains(t, ev.Data, `"position":2`)

	ev = nextEvent(t, events)
	require.Equal(t, sse.EventNotification, ev.Type)
	var n struct {
		Title     string         `json:"title"`
		Tag       string         `json:"tag"`
		Icon      string         `json:"icon"`
		TimeoutMs int64          `json:"timeoutMs"`
		Data      map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &n))
	assert.Equal(t, "Almost your turn", n.Title)
	assert.Equal(t, "queue-a1", n.Tag)
	assert.Equal(t, "/icon.png", n.Icon)
	assert.EqualValues(t, 60000, n.TimeoutMs)
	assert.Equal(t, "second-in-line", n.Data["reason"])

	ev = nextEvent(t, events)
	assert.Equal(t, sse.EventDeliveryResult, ev.Type)
	assert.Contains(t, ev.Data, `"outcome":"delivered"`)
	assert.Equal(t, []string{"delivered"}, audit.outcomes())

	require.NoError(t, resp.Body.Close())
	assert.Eventually(t, func() bool { return conns.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_UndecidedPermissionPromptsTab(t *testing.T) {
	book := &dayBook{}
	book.set(booking("a1", "c1", 0), booking("a2", "c2", 1))
	hub := queue.NewHub(book, time.UTC, queue.WithClock(func() time.Time { return opening }))
	require.NoError(t, hub.Refresh(context.Background()))

	conns := sse.NewRegistry()
	h := NewQueueHandler(hub, conns, nil, QueueOptions{PromptTimeout: time.Minute})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Watch(w, as(r, "c2", "customer"))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	events := readEvents(t, resp)

	var watchID string
	ev := nextEvent(t, events)
	var hello map[string]string
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &hello))
	watchID = hello["watchId"]
	assert.Equal(t, "default", hello["permission"])
	assert.Equal(t, sse.EventQueuePosition, nextEvent(t, events).Type)

	book.set(booking("a2", "c2", 1))
	require.NoError(t, hub.Refresh(context.Background()))

	assert.Equal(t, sse.EventQueuePosition, nextEvent(t, events).Type)
	assert.Equal(t, sse.EventPermissionRequest, nextEvent(t, events).Type)

	rr := httptest.NewRecorder()
	r := withParam(jsonReq(t, http.MethodPost, "/v1/queue/watch/"+watchID+"/permission", map[string]string{"state": "granted"}), "id", watchID)
	h.Permission(rr, as(r, "c2", "customer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"permission":"granted"}`, rr.Body.String())

	ev = nextEvent(t, events)
	assert.Equal(t, sse.EventNotification, ev.Type)
	assert.Contains(t, ev.Data, "It's your turn!")
	assert.Equal(t, sse.EventDeliveryResult, nextEvent(t, events).Type)
}

func TestPermission_OtherCustomersStream(t *testing.T) {
	conns := sse.NewRegistry()
	conns.Register(sse.NewConn("w1", "c1", notify.PermissionDefault))
	h := NewQueueHandler(nil, conns, nil, QueueOptions{})

	rr := httptest.NewRecorder()
	r := withParam(jsonReq(t, http.MethodPost, "/v1/queue/watch/w1/permission", map[string]string{"state": "granted"}), "id", "w1")
	h.Permission(rr, as(r, "c2", "customer"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAck_UnknownTag(t *testing.T) {
	conns := sse.NewRegistry()
	conns.Register(sse.NewConn("w1", "c1", notify.PermissionGranted))
	h := NewQueueHandler(nil, conns, nil, QueueOptions{})

	rr := httptest.NewRecorder()
	r := withParam(jsonReq(t, http.MethodPost, "/v1/queue/watch/w1/ack", map[string]string{"tag": "queue-zz"}), "id", "w1")
	h.Ack(rr, as(r, "c1", "customer"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"acknowledged":false}`, rr.Body.String())
}

func TestPosition(t *testing.T) {
	book := &dayBook{}
	book.set(booking("a1", "c1", 0), booking("a2", "c2", 1))
	hub := queue.NewHub(book, time.UTC, queue.WithClock(func() time.Time { return opening }))
	require.NoError(t, hub.Refresh(context.Background()))
	h := NewQueueHandler(hub, sse.NewRegistry(), nil, QueueOptions{})

	rr := httptest.NewRecorder()
	h.Position(rr, as(httptest.NewRequest(http.MethodGet, "/v1/queue/position", nil), "c2", "customer"))
	assert.JSONEq(t, `{"appointment_id":"a2","position":2,"estimated_wait_minutes":30}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Position(rr, as(httptest.NewRequest(http.MethodGet, "/v1/queue/position", nil), "c7", "customer"))
	assert.Equal(t, "null\n", rr.Body.String())
}
