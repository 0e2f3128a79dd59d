// Package relay delivers authorization completion messages from the
// callback route to the console window that started a popup flow. It is
// the explicit form of the popup-to-opener postMessage handshake: one
// expected message shape, validated by type tag and origin before use.
package relay

import (
	"sync"

	"github.com/mcpconsole/oauth-broker/internal/gateway"
)

// MessageTypeComplete tags the single message shape the hub accepts.
const MessageTypeComplete = "oauth:complete"

// Message is posted by the callback route once an authorization attempt
// reaches a terminal state. Error outcomes are posted too, so a waiting
// opener never hangs on a message that will not arrive.
type Message struct {
	Type   string                  `json:"type"`
	State  string                  `json:"state"`
	Result *gateway.ExchangeResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Hub fans completion messages out to per-state waiters. Messages whose
// origin differs from the hub's own, or whose type tag is unknown, are
// dropped without any state change.
type Hub struct {
	origin string

	mu      sync.Mutex
	waiters map[string][]chan Message
}

func NewHub(origin string) *Hub {
	return &Hub{
		origin:  origin,
		waiters: make(map[string][]chan Message),
	}
}

func (h *Hub) Origin() string {
	return h.origin
}

// Subscribe registers a waiter for the completion of one state value.
// The returned cancel function releases the waiter; it is safe to call
// after delivery.
func (h *Hub) Subscribe(state string) (<-chan Message, func()) {
	ch := make(chan Message, 1)

	h.mu.Lock()
	h.waiters[state] = append(h.waiters[state], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		chans := h.waiters[state]
		for i, c := range chans {
			if c == ch {
				h.waiters[state] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(h.waiters[state]) == 0 {
			delete(h.waiters, state)
		}
	}

	return ch, cancel
}

// Publish delivers a message to the waiters for its state. It reports
// whether the message was accepted: messages from a foreign origin or
// with an unexpected type tag are ignored.
func (h *Hub) Publish(origin string, msg Message) bool {
	if origin != h.origin {
		return false
	}
	if msg.Type != MessageTypeComplete {
		return false
	}

	h.mu.Lock()
	chans := h.waiters[msg.State]
	delete(h.waiters, msg.State)
	h.mu.Unlock()

	for _, ch := range chans {
		// Buffered by one; a waiter only ever receives one message.
		select {
		case ch <- msg:
		default:
		}
	}

	return true
}
