package broadcast

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"wablast/internal/constants"
)

// Event is one tenant-scoped notification pushed to subscribed clients.
//
// Contract:
//   - Publish MUST be non-blocking and MUST NOT fail the caller.
//   - Subscribers use buffered channels; slow subscribers drop events.
type Event struct {
	TenantID string      `json:"tenantId"`
	Name     string      `json:"event"`
	Time     time.Time   `json:"time"`
	Payload  interface{} `json:"payload"`
}

// Broadcaster is the outbound notification port. Session and campaign
// services publish through it without knowing who, if anyone, listens.
type Broadcaster interface {
	Publish(tenantID, eventName string, payload interface{})
}

type subscriber struct {
	tenantID string
	ch       chan Event
}

// Hub is an in-memory fanout of events keyed by tenant. It owns no
// background goroutines; delivery happens on the publisher's goroutine.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	seq    atomic.Uint64
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint64]*subscriber),
		logger: logger,
	}
}

// Publish delivers the event to every subscriber of the tenant. Sends are
// non-blocking; a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(tenantID, eventName string, payload interface{}) {
	event := Event{
		TenantID: tenantID,
		Name:     eventName,
		Time:     time.Now(),
		Payload:  payload,
	}

	// Snapshot so we don't hold the lock while attempting sends.
	h.mu.RLock()
	targets := make([]chan Event, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.tenantID == tenantID {
			targets = append(targets, sub.ch)
		}
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		// A subscriber may unsubscribe concurrently and close its channel;
		// recover from the send panic in that case.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- event:
			default:
				h.logger.WithFields(logrus.Fields{
					"tenant_id": tenantID,
					"event":     eventName,
				}).Warn("Dropping event for slow subscriber")
			}
		}()
	}
}

// Subscribe registers a listener for one tenant's events. The returned
// function removes the subscription and closes the channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(tenantID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = constants.DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	id := h.seq.Add(1)

	h.mu.Lock()
	h.subs[id] = &subscriber{tenantID: tenantID, ch: ch}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// SubscriberCount reports how many listeners a tenant currently has.
func (h *Hub) SubscriberCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, sub := range h.subs {
		if sub.tenantID == tenantID {
			count++
		}
	}
	return count
}

// ServeWS upgrades the request to a websocket and streams the tenant's
// events until the client disconnects or the connection errors.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenantID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Warn("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	events, unsubscribe := h.Subscribe(tenantID, constants.DefaultSubscriberBuffer)
	defer unsubscribe()

	// CloseRead watches for the client going away and cancels the context.
	ctx := conn.CloseRead(r.Context())

	h.logger.WithField("tenant_id", tenantID).Debug("Websocket subscriber connected")

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, time.Duration(constants.WebSocketWriteTimeoutSec)*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				h.logger.WithError(err).WithField("tenant_id", tenantID).Debug("Websocket write failed")
				return
			}
		}
	}
}
