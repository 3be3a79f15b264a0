package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tonimelisma/upload-go/internal/api"
)

// subscriberBuffer is how many events a slow subscriber may fall behind
// before it is disconnected.
const subscriberBuffer = 32

const writeTimeout = 5 * time.Second

// hub fans upload events out to websocket subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[chan api.Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan api.Event]struct{})}
}

func (h *hub) subscribe() chan api.Event {
	ch := make(chan api.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

func (h *hub) unsubscribe(ch chan api.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// publish delivers ev to every subscriber. A subscriber whose buffer is
// full is dropped; its connection ends when it sees the closed channel.
func (h *hub) publish(ev api.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow() //nolint:errcheck // after a normal close this is a no-op

	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	// Subscribers only listen; CloseRead notices when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	s.logger.Debug("event subscriber connected", slog.String("identity", identityFrom(r.Context())))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()

			if err != nil {
				s.logger.Debug("event write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
