// Package notify fans engine-side notifications out to streaming clients.
// The hub owns the subscriber set from a single goroutine; producers never
// block on a slow client because delivery errors drop the subscriber.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"rackrent/internal/engine"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Notification is the wire format pushed to subscribers.
type Notification struct {
	Type string    `json:"type"` // money | rating | event
	At   time.Time `json:"at"`

	DeltaCents   int64    `json:"delta_cents,omitempty"`
	BalanceCents int64    `json:"balance_cents,omitempty"`
	Income       *bool    `json:"income,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`

	Event *engine.EventOutcome `json:"event,omitempty"`
}

// Hub manages the subscriber set and serializes all mutation through its
// run loop channels.
type Hub struct {
	log *slog.Logger

	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	done      chan struct{}
}

// NewHub creates a hub and starts its dispatch loop. The loop drains until
// ctx is cancelled, then closes every remaining subscriber.
func NewHub(ctx context.Context, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		log:       logger,
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte, 64),
		done:      make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	clients := make(map[Subscriber]struct{})
	defer func() {
		for c := range clients {
			c.Close()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unreg:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				c.Close()
			}
		case payload := <-h.broadcast:
			for c := range clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(clients, c)
				}
			}
		}
	}
}

// Register adds a client to the stream.
func (h *Hub) Register(c Subscriber) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(c Subscriber) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

// Publish marshals and broadcasts one notification. Dropped when the buffer
// is full or the hub has shut down; notifications are advisory.
func (h *Hub) Publish(n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.log.Warn("notification marshal failed", "type", n.Type, "err", err)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.log.Warn("notification dropped, broadcast buffer full", "type", n.Type)
	}
}

// Attach wires the hub as the sink for an engine's money, rating and event
// observers. Call before engine.Run.
func (h *Hub) Attach(e *engine.Engine) {
	e.Company().OnMoneyChanged(func(delta, balance int64, income bool) {
		inc := income
		h.Publish(Notification{
			Type:         "money",
			At:           time.Now(),
			DeltaCents:   delta,
			BalanceCents: balance,
			Income:       &inc,
		})
	})
	e.Company().OnRatingChanged(func(rating float64) {
		r := rating
		h.Publish(Notification{Type: "rating", At: time.Now(), Rating: &r})
	})
	e.OnEvent(func(outcome engine.EventOutcome) {
		o := outcome
		h.Publish(Notification{Type: "event", At: time.Now(), Event: &o})
	})
}
