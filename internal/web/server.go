package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jaminalder/codex-domino/internal/app"
	"github.com/jaminalder/codex-domino/internal/metrics"
)

type Option func(*handlers)

func WithLogger(l *zap.Logger) Option {
	return func(h *handlers) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics mounts m on /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(h *handlers) { h.metrics = m } }

// WithHeartbeat sets the interval of SSE comments and websocket pings.
func WithHeartbeat(d time.Duration) Option {
	return func(h *handlers) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewServer wires routes and returns an http.Handler.
func NewServer(s *app.Service, opts ...Option) http.Handler {
	h := &handlers{
		svc:       s,
		tpl:       loadTemplates(),
		log:       zap.NewNop(),
		heartbeat: 15 * time.Second,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
	for _, o := range opts {
		o(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)
	r.Get("/", h.index)
	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Post("/game", h.create)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Get("/board", h.board)
		r.Get("/state", h.state)
		r.Post("/join", h.join)
		r.Post("/play", h.play)
		r.Post("/draw", h.draw)
		r.Post("/pass", h.pass)
		r.Get("/events", h.events)
		r.Get("/ws", h.ws)
	})
	return r
}

func (h *handlers) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}
