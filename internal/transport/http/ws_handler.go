package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"pushluck-trivia-service/internal/app"
	"pushluck-trivia-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	PlayerCount int      `json:"playerCount"`
	TargetScore int      `json:"targetScore"`
	PackIDs     []string `json:"packIds"`
}

type pickPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game
// use cases. One connection drives one game, identified by the gameId query
// parameter; every mutation is answered with a full state snapshot, and
// subscribed updates fan out to all connections on the same game.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		http.Error(w, "missing gameId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	sub := newSubscriptionRelay(send)
	defer sub.stop()

	// A game already in progress (or persisted from a previous process) is
	// resumed on connect; otherwise the client must send a start message.
	if snap, err := h.service.Resume(r.Context(), gameID); err == nil {
		sub.attach(r.Context(), h.service, gameID)
		send <- outboundMessage[any]{Type: "state", Payload: snap}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var snap domain.GameSnapshot
		var opErr error
		resubscribe := false

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid start payload")
				continue
			}
			snap, opErr = h.service.StartGame(r.Context(), gameID, domain.GameSetup{
				PlayerCount:     payload.PlayerCount,
				TargetScore:     payload.TargetScore,
				SelectedPackIDs: payload.PackIDs,
			})
			resubscribe = opErr == nil
		case "restart":
			snap, opErr = h.service.Restart(r.Context(), gameID)
			resubscribe = opErr == nil
		case "pick":
			var payload pickPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid pick payload")
				continue
			}
			snap, opErr = h.service.PickOption(r.Context(), gameID, payload.OptionIndex)
		case "bank":
			snap, opErr = h.service.Bank(r.Context(), gameID)
		case "nextTurn":
			snap, opErr = h.service.NextTurn(r.Context(), gameID)
		case "end":
			snap, opErr = h.service.EndGame(r.Context(), gameID)
		case "state":
			snap, opErr = h.service.Snapshot(r.Context(), gameID)
		default:
			send <- errorMessage("unsupported message type")
			continue
		}

		if opErr != nil {
			send <- errorMessage(opErr.Error())
			continue
		}
		if resubscribe {
			sub.attach(r.Context(), h.service, gameID)
		}
		send <- outboundMessage[any]{Type: "state", Payload: snap}
	}

	sub.stop()
	sub.wait()
	close(send)
	<-writerDone
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// subscriptionRelay forwards snapshot updates from the game subscription to
// the connection's send channel. Starting a new game replaces the previous
// session object, so the relay can be re-attached.
type subscriptionRelay struct {
	send chan<- outboundMessage[any]

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel func()
	done   chan struct{}
}

func newSubscriptionRelay(send chan<- outboundMessage[any]) *subscriptionRelay {
	return &subscriptionRelay{send: send}
}

func (s *subscriptionRelay) attach(ctx context.Context, service *app.GameService, gameID string) {
	updates, cancel, err := service.Subscribe(ctx, gameID)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.stopLocked()
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case s.send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *subscriptionRelay) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// wait blocks until all relay goroutines have exited. Call after stop and
// before closing the send channel the relay writes to.
func (s *subscriptionRelay) wait() {
	s.wg.Wait()
}

func (s *subscriptionRelay) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}
