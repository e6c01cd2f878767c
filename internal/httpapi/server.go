package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gabacool/bidirectional-voice-claude/internal/config"
	"github.com/gabacool/bidirectional-voice-claude/internal/observability"
	"github.com/gabacool/bidirectional-voice-claude/internal/protocol"
	"github.com/gabacool/bidirectional-voice-claude/internal/session"
	"github.com/gabacool/bidirectional-voice-claude/internal/voice"
)

// Server hosts the two websocket endpoints plus health, metrics, and the
// session listing. Each upgraded connection gets its own session run loop;
// the server only moves messages between the socket and the loop.
type Server struct {
	cfg      config.Config
	sessions *session.Manager
	engines  voice.Engines
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, engines voice.Engines, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		engines:  engines,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin, so another website cannot drive the user's mic
				// session if the service is ever exposed beyond localhost.
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

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/transcribe/ws", s.handleTranscribeWS)
	r.Get("/v1/speak/ws", s.handleSpeakWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.engines.Provider,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"provider": s.engines.Provider,
		"detail":   s.engines.Detail,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": s.sessions.List(),
	})
}

func (s *Server) handleTranscribeWS(w http.ResponseWriter, r *http.Request) {
	s.serveSession(w, r, session.KindTranscribe, func(ctx context.Context, id string, inbound <-chan any, outbound chan<- any) error {
		sess := voice.NewTranscribeSession(s.engines.ASR, s.metrics, voice.TranscribeConfig{
			SampleRate:  s.cfg.SampleRate,
			IdleTimeout: s.cfg.SessionIdleTimeout,
			OnState: func(st voice.State) {
				_ = s.sessions.SetState(id, string(st))
			},
		})
		return sess.Run(ctx, inbound, outbound)
	})
}

func (s *Server) handleSpeakWS(w http.ResponseWriter, r *http.Request) {
	s.serveSession(w, r, session.KindSpeak, func(ctx context.Context, id string, inbound <-chan any, outbound chan<- any) error {
		sess := voice.NewSpeakSession(s.engines.TTS, s.engines.Rewriter, s.metrics, voice.SpeakConfig{
			IdleTimeout:    s.cfg.SessionIdleTimeout,
			ChunkBytes:     s.cfg.StreamChunkBytes,
			DefaultVoiceID: s.cfg.PiperVoiceID,
			Policy:         voice.DefaultRewritePolicy(s.cfg.RewriteMaxChars),
			OnState: func(st voice.State) {
				_ = s.sessions.SetState(id, string(st))
			},
		})
		return sess.Run(ctx, inbound, outbound)
	})
}

type runFunc func(ctx context.Context, sessionID string, inbound <-chan any, outbound chan<- any) error

// serveSession upgrades the connection and bridges it to one session run
// loop. The read pump forwards binary frames as []byte and parsed control
// messages as typed values; parse failures go in as error values, which the
// session turns into a protocol violation. The write pump is the only
// goroutine that touches the connection for writes.
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request, kind session.Kind, run runFunc) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := s.sessions.Register(kind, cancel)
	s.metrics.ActiveSessions.WithLabelValues(string(kind)).Set(float64(s.sessions.ActiveCount(kind)))
	s.metrics.SessionEvents.WithLabelValues(string(kind), "connected").Inc()
	defer func() {
		s.sessions.Deregister(id)
		s.metrics.ActiveSessions.WithLabelValues(string(kind)).Set(float64(s.sessions.ActiveCount(kind)))
		s.metrics.SessionEvents.WithLabelValues(string(kind), "disconnected").Inc()
	}()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		defer close(outbound)
		_ = run(ctx, id, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			switch m := msg.(type) {
			case []byte:
				if err := conn.WriteMessage(websocket.BinaryMessage, m); err != nil {
					cancel()
					return
				}
				s.metrics.WSMessages.WithLabelValues("outbound", "audio").Inc()
			default:
				if err := conn.WriteJSON(m); err != nil {
					cancel()
					return
				}
				if cmd, ok := protocol.CommandOf(m); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(cmd)).Inc()
				}
			}
		}
		// The run loop is done and everything it produced is on the wire.
		// Start a close handshake so the read pump unblocks.
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}()

	conn.SetReadLimit(2 << 20)

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = s.sessions.Touch(id)

		var forward any
		switch msgType {
		case websocket.BinaryMessage:
			frame := make([]byte, len(data))
			copy(frame, data)
			forward = frame
			s.metrics.WSMessages.WithLabelValues("inbound", "audio").Inc()
		case websocket.TextMessage:
			parsed, err := protocol.ParseControl(data)
			if err != nil {
				forward = err
			} else {
				forward = parsed
				if cmd, ok := protocol.CommandOf(parsed); ok {
					s.metrics.WSMessages.WithLabelValues("inbound", string(cmd)).Inc()
				}
			}
		default:
			continue
		}

		select {
		case <-runDone:
			break readLoop
		case inbound <- forward:
		}
	}

	close(inbound)
	cancel()
	<-runDone
	<-writerDone
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
