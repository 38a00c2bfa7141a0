// Package web serves the local dashboard: configuration, history,
// statistics and a live WebSocket feed of translation runs.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/aityping/config"
	"markestedt/aityping/orchestrator"
	"markestedt/aityping/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The server only listens on loopback
	},
}

// Store is the history and metrics backend
type Store interface {
	GetHistory(ctx context.Context, q storage.HistoryQuery) (*storage.HistoryPage, error)
	DeleteTranslation(ctx context.Context, id int64) error
	ClearHistory(ctx context.Context) error
	GetPerformanceStats(ctx context.Context, period storage.Period) (*storage.PerformanceStats, error)
}

// ConfigStore owns the current configuration
type ConfigStore interface {
	Config() *config.Config
	Update(cfg *config.Config) error
	SetAPIKey(key string) error
}

// Runner executes translations on demand
type Runner interface {
	State() orchestrator.State
	TranslateText(ctx context.Context, text string) (*orchestrator.Run, error)
}

// Deps are the collaborators behind the API
type Deps struct {
	Store  Store
	Config ConfigStore
	Runner Runner
	// TestConnection checks the configured LLM endpoint
	TestConnection func(ctx context.Context) (string, error)
}

// Server represents the dashboard web server
type Server struct {
	deps Deps
	addr string
	hub  *Hub
}

// NewServer creates a server listening on addr once started
func NewServer(deps Deps, addr string) *Server {
	return &Server{
		deps: deps,
		addr: addr,
		hub:  NewHub(),
	}
}

// Hub returns the live feed; register it as an orchestrator observer
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed API, WebSocket and static handlers
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistoryItem)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/languages", s.handleLanguages)
	mux.HandleFunc("/api/languages/switch", s.handleSwitchLanguage)
	mux.HandleFunc("/api/hotkeys/conflicts", s.handleHotkeyConflicts)
	mux.HandleFunc("/api/test-connection", s.handleTestConnection)
	mux.HandleFunc("/api/translate", s.handleTranslate)
	mux.HandleFunc("/ws", s.handleWebSocket)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Start serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting web server", "url", "http://"+s.addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// URL returns the dashboard address
func (s *Server) URL() string {
	return "http://" + s.addr
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	// Greet with the current state so the page does not wait for a change
	s.hub.StateChanged(s.deps.Runner.State())
}
