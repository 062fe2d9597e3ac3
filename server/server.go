// Package server exposes the companion over a websocket chat endpoint.
//
// Each websocket connection gets its own conversation buffer seeded
// with the system preamble; long-term memory is shared across
// connections through the engine. Messages are JSON text frames in
// both directions.
package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voxmind/aria/buffer"
	"github.com/voxmind/aria/engine"
)

const writeTimeout = 10 * time.Second

// Runner processes one user utterance against a conversation buffer.
// *engine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, buf *buffer.Buffer, utterance string) (*engine.Output, error)
}

// Config controls the HTTP surface.
type Config struct {
	// Preamble is the system prompt seeding every new conversation.
	Preamble string

	// Capacity bounds each connection's conversation buffer. Zero
	// means buffer.DefaultCapacity.
	Capacity int

	// AllowAnyOrigin disables the same-origin websocket check. Leave
	// off unless the server sits behind a trusted proxy.
	AllowAnyOrigin bool
}

// Server routes websocket chat sessions to a Runner.
type Server struct {
	cfg      Config
	runner   Runner
	upgrader websocket.Upgrader
}

// New builds a Server around the given runner.
func New(cfg Config, runner Runner) *Server {
	if cfg.Capacity == 0 {
		cfg.Capacity = buffer.DefaultCapacity
	}
	return &Server{
		cfg:    cfg,
		runner: runner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser connections from the same origin
				// so other sites cannot drive a user's session if the
				// server is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Router returns the HTTP handler for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/chat/ws", s.handleChatWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// inboundMessage is one user utterance from the client.
type inboundMessage struct {
	Text string `json:"text"`
}

// outboundMessage is one frame written back to the client.
type outboundMessage struct {
	Type     string `json:"type"` // "reply" or "error"
	Text     string `json:"text,omitempty"`
	Recalled int    `json:"recalled,omitempty"`
	Stored   bool   `json:"stored,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		http.Error(w, "runner not configured", http.StatusNotImplemented)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	buf, err := buffer.New(s.cfg.Preamble, s.cfg.Capacity)
	if err != nil {
		log.Printf("[SERVER] buffer init failed: %v", err)
		return
	}

	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[SERVER] read failed: %v", err)
			}
			return
		}
		if strings.TrimSpace(in.Text) == "" {
			if err := s.write(conn, outboundMessage{Type: "error", Error: "empty message"}); err != nil {
				return
			}
			continue
		}

		out, err := s.runner.Run(r.Context(), buf, in.Text)
		if err != nil {
			log.Printf("[SERVER] run failed: %v", err)
			if werr := s.write(conn, outboundMessage{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
			continue
		}

		msg := outboundMessage{
			Type:     "reply",
			Text:     out.Text,
			Recalled: out.Recalled,
			Stored:   out.Stored,
		}
		if err := s.write(conn, msg); err != nil {
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg outboundMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[SERVER] write failed: %v", err)
		return err
	}
	return nil
}
