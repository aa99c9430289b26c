package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/viralforge/livechat/internal/ports"
)

const (
	// readTimeout must exceed the presence TTL so an agent pinging on the TTL
	// cadence never gets dropped by the socket first.
	readTimeout   = 90 * time.Second
	writeTimeout  = 10 * time.Second
	outboundDepth = 64
)

type inboundFrame struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Content struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"content,omitempty"`
}

type sessionHooks struct {
	onPing  func()
	onClose func()
}

// session multiplexes bus group subscriptions onto one websocket. All writes
// go through the outbound channel; the writer goroutine is the only one
// touching the socket's write side.
type session struct {
	bus    ports.EventBus
	socket *websocket.Conn

	outbound chan any
	done     chan struct{}
	closer   sync.Once

	mu   sync.Mutex
	subs map[string]func()
}

func newSession(bus ports.EventBus, socket *websocket.Conn) *session {
	return &session{
		bus:      bus,
		socket:   socket,
		outbound: make(chan any, outboundDepth),
		done:     make(chan struct{}),
		subs:     make(map[string]func()),
	}
}

func (s *session) subscribe(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[group]; ok {
		return
	}
	ch, cancel := s.bus.Subscribe(group)
	s.subs[group] = cancel
	go s.pump(ch)
}

func (s *session) unsubscribe(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.subs[group]; ok {
		cancel()
		delete(s.subs, group)
	}
}

func (s *session) pump(ch <-chan ports.Event) {
	for event := range ch {
		select {
		case s.outbound <- event:
		case <-s.done:
			return
		default:
			// Slow consumer; drop rather than stall every other group.
			wsLogger().Warn("socket event dropped",
				"operation", "socket_fanout",
				"outcome", "failure",
				"event_type", event.Type,
			)
		}
	}
}

func (s *session) send(payload any) {
	select {
	case s.outbound <- payload:
	case <-s.done:
	}
}

func (s *session) close(hooks sessionHooks) {
	s.closer.Do(func() {
		close(s.done)
		s.mu.Lock()
		for group, cancel := range s.subs {
			cancel()
			delete(s.subs, group)
		}
		s.mu.Unlock()
		_ = s.socket.Close()
		if hooks.onClose != nil {
			hooks.onClose()
		}
	})
}

// run drives the read and write pumps until either side ends the session.
func (s *session) run(ctx context.Context, hooks sessionHooks) {
	defer s.close(hooks)

	go s.writeLoop()

	_ = s.socket.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := s.socket.ReadMessage()
		if err != nil {
			return
		}
		_ = s.socket.SetReadDeadline(time.Now().Add(readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.send(map[string]any{"type": "error", "code": "invalid_action"})
			continue
		}
		s.handleFrame(frame, hooks)
	}
}

func (s *session) handleFrame(frame inboundFrame, hooks sessionHooks) {
	switch frame.Type {
	case "ping":
		if hooks.onPing != nil {
			hooks.onPing()
		}
		s.send(map[string]any{"type": "pong"})

	case "method":
		switch frame.Action {
		case "join", "exit":
			// Only permission and queue groups are live; everything else is a
			// deprecated client group kept as a silent no-op.
			if frame.Content.Name != "permission" && frame.Content.Name != "queue" {
				return
			}
			group := frame.Content.Name + "_" + frame.Content.ID
			if frame.Action == "join" {
				s.subscribe(group)
			} else {
				s.unsubscribe(group)
			}
		default:
			s.send(map[string]any{"type": "error", "code": "invalid_action"})
		}

	default:
		s.send(map[string]any{"type": "error", "code": "invalid_action"})
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case payload := <-s.outbound:
			_ = s.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.socket.WriteJSON(payload); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func wsLogger() *slog.Logger {
	return slog.Default().With(
		"module", "ws",
		"layer", "adapter",
	)
}
