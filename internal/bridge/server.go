package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/SoarinFerret/TabWarden/internal/browser"
	"github.com/SoarinFerret/TabWarden/internal/config"
)

// Handler receives the browser events. It is implemented by the engine.
type Handler interface {
	HandleBeforeNavigate(ctx context.Context, tabID, frameID int, url string) error
	HandleTabUpdated(ctx context.Context, tab browser.TabInfo, status string) error
	HandleTabActivated(ctx context.Context, tabID, windowID int) error
	HandleTabRemoved(ctx context.Context, tabID int) error
	HandleWindowFocused(ctx context.Context, windowID int) error
	HandleMessage(ctx context.Context, tabID int, senderURL string, msg browser.Message) (any, error)
}

// Server serves the bridge API.
type Server struct {
	hub     *Hub
	handler Handler
	log     zerolog.Logger
	cfg     config.BridgeConfig
	router  chi.Router
}

func NewServer(cfg config.BridgeConfig, hub *Hub, handler Handler, logger zerolog.Logger) *Server {
	s := &Server{
		hub:     hub,
		handler: handler,
		log:     logger.With().Str("component", "bridge").Logger(),
		cfg:     cfg,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/navigate", s.handleNavigate)
			r.Post("/updated", s.handleUpdated)
			r.Post("/activated", s.handleActivated)
			r.Post("/removed", s.handleRemoved)
			r.Post("/focused", s.handleFocused)
		})
		r.Get("/tabs", s.handleListTabs)
		r.Put("/tabs", s.handleSyncTabs)
		r.Post("/messages", s.handleMessage)
		r.Get("/actions", s.handleActions)
	})
	return r
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.cfg.Listen).Msg("bridge listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("bridge: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("bridge shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge: %w", err)
		}
		return nil
	}
}

type navigateEvent struct {
	TabID   int    `json:"tabId"`
	FrameID int    `json:"frameId"`
	URL     string `json:"url"`
}

type updatedEvent struct {
	browser.TabInfo
	Status string `json:"status"`
}

type activatedEvent struct {
	TabID    int `json:"tabId"`
	WindowID int `json:"windowId"`
}

type removedEvent struct {
	TabID int `json:"tabId"`
}

type focusedEvent struct {
	WindowID int `json:"windowId"`
}

type syncRequest struct {
	Tabs          []browser.TabInfo `json:"tabs"`
	FocusedWindow int               `json:"focusedWindow"`
}

type messageRequest struct {
	TabID   int             `json:"tabId"`
	URL     string          `json:"url"`
	Message browser.Message `json:"message"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var ev navigateEvent
	if !decode(w, r, &ev) {
		return
	}
	if ev.FrameID == 0 {
		s.hub.Navigate(ev.TabID, ev.URL)
	}
	s.dispatch(w, s.handler.HandleBeforeNavigate(r.Context(), ev.TabID, ev.FrameID, ev.URL))
}

func (s *Server) handleUpdated(w http.ResponseWriter, r *http.Request) {
	var ev updatedEvent
	if !decode(w, r, &ev) {
		return
	}
	s.hub.Observe(ev.TabInfo)
	s.dispatch(w, s.handler.HandleTabUpdated(r.Context(), ev.TabInfo, ev.Status))
}

func (s *Server) handleActivated(w http.ResponseWriter, r *http.Request) {
	var ev activatedEvent
	if !decode(w, r, &ev) {
		return
	}
	s.hub.Activate(ev.TabID, ev.WindowID)
	s.dispatch(w, s.handler.HandleTabActivated(r.Context(), ev.TabID, ev.WindowID))
}

func (s *Server) handleRemoved(w http.ResponseWriter, r *http.Request) {
	var ev removedEvent
	if !decode(w, r, &ev) {
		return
	}
	s.hub.Forget(ev.TabID)
	s.dispatch(w, s.handler.HandleTabRemoved(r.Context(), ev.TabID))
}

func (s *Server) handleFocused(w http.ResponseWriter, r *http.Request) {
	var ev focusedEvent
	if !decode(w, r, &ev) {
		return
	}
	s.hub.Focus(ev.WindowID)
	s.dispatch(w, s.handler.HandleWindowFocused(r.Context(), ev.WindowID))
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	tabs, _ := s.hub.QueryTabs(r.Context())
	writeJSON(w, http.StatusOK, tabs)
}

func (s *Server) handleSyncTabs(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decode(w, r, &req) {
		return
	}
	s.hub.Sync(req.Tabs, req.FocusedWindow)
	writeJSON(w, http.StatusOK, map[string]int{"tabs": len(req.Tabs)})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := s.handler.HandleMessage(r.Context(), req.TabID, req.URL, req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Drain())
}

func (s *Server) dispatch(w http.ResponseWriter, err error) {
	if err != nil {
		s.log.Error().Err(err).Msg("event not handled")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
