// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/talkrally/platform/internal/config"
	"github.com/talkrally/platform/internal/conversation"
	apperrors "github.com/talkrally/platform/internal/errors"
	"github.com/talkrally/platform/internal/session"
	"github.com/talkrally/platform/internal/trace"
)

// Session is the slice of the conversation controller the server needs.
type Session interface {
	Start(ctx context.Context) error
	Stop()
	Phase() session.Phase
	Events() <-chan session.Event
	History() []conversation.Message
	Clear()
	Say(ctx context.Context, text string) error
}

// Command is an inbound WebSocket command.
type Command struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// StateMessage reports the session phase.
type StateMessage struct {
	Type  string        `json:"type"`
	Phase session.Phase `json:"phase"`
}

// ChatMessage carries one conversation entry.
type ChatMessage struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// NoticeMessage carries a transient user-facing note.
type NoticeMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ErrorMessage reports a failed command.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	sess       Session
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server and starts fanning session events out to
// connected clients.
func New(sess Session, _ *config.Config) *Server {
	s := &Server{
		sess:       sess,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	go s.broadcastEvents()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/conversation", s.handleConversation)
	mux.HandleFunc("POST /api/conversation/clear", s.handleClear)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Catch the new client up: current phase, then recent history.
	_ = wsjson.Write(baseCtx, conn, StateMessage{Type: "state", Phase: s.sess.Phase()})
	history := s.sess.History()
	if len(history) > HistoryReplayLimit {
		history = history[len(history)-HistoryReplayLimit:]
	}
	for _, m := range history {
		_ = wsjson.Write(baseCtx, conn, ChatMessage{Type: "message", Role: string(m.Role), Text: m.Content})
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &raw); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}

		// Commands may carry a client-side trace_id for correlation.
		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(raw); ok {
			ctx = trace.WithContext(baseCtx, tc)
		}
		s.handleCommand(ctx, conn, cmd)
	}
}

func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, cmd Command) {
	ctx, span := trace.StartSpan(ctx, "ws_"+cmd.Type)
	defer span.End()
	log := trace.Logger(ctx)

	switch cmd.Type {
	case "start":
		// The start command is the user gesture that unlocks audio
		// output; a session never begins on its own. The session
		// outlives this connection, so drop the request's cancel.
		if err := s.sess.Start(context.WithoutCancel(ctx)); err != nil {
			log.Error("session start failed", "error", err)
			s.writeError(ctx, conn, err)
			return
		}
	case "stop":
		s.sess.Stop()
	case "clear":
		s.sess.Clear()
		_ = wsjson.Write(ctx, conn, NoticeMessage{Type: "notice", Text: "conversation cleared"})
	case "say":
		if cmd.Text == "" {
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "say requires text"})
			return
		}
		if err := s.sess.Say(ctx, cmd.Text); err != nil {
			log.Error("say failed", "error", err)
			s.writeError(ctx, conn, err)
		}
	case "state":
		_ = wsjson.Write(ctx, conn, StateMessage{Type: "state", Phase: s.sess.Phase()})
	default:
		log.Debug("unknown command", "type", cmd.Type)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "unknown command: " + cmd.Type})
	}
}

func (s *Server) writeError(ctx context.Context, conn *websocket.Conn, err error) {
	msg := ErrorMessage{Type: "error", Message: err.Error()}
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		msg.Code = code.String()
	}
	_ = wsjson.Write(ctx, conn, msg)
}

func (s *Server) broadcastEvents() {
	for ev := range s.sess.Events() {
		var msg any
		switch ev.Type {
		case session.EventState:
			msg = StateMessage{Type: "state", Phase: ev.Phase}
		case session.EventMessage:
			msg = ChatMessage{Type: "message", Role: ev.Role, Text: ev.Text}
		case session.EventNotice:
			msg = NoticeMessage{Type: "notice", Text: ev.Text}
		default:
			continue
		}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn, m any) {
				_ = wsjson.Write(context.Background(), c, m)
			}(conn, msg)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"phase":  string(s.sess.Phase()),
	})
}

type conversationEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	history := s.sess.History()
	out := make([]conversationEntry, 0, len(history))
	for _, m := range history {
		out = append(out, conversationEntry{
			Role:      string(m.Role),
			Text:      m.Content,
			Timestamp: m.Timestamp,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.sess.Clear()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}
