// Package web provides an HTTP status server for the stair-sensor daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/eventlog"
	"github.com/sweeney/stair-sensor/internal/status"
)

// Server serves the status page, the event list and a websocket feed.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	events     *eventlog.Log
	hub        *Hub
	unwatch    func()
}

// New creates a Server that reads state from tracker and events.
// New entries added to events are pushed to websocket clients on /ws.
func New(addr string, tracker *status.Tracker, events *eventlog.Log, logger *zap.Logger) *Server {
	s := &Server{
		tracker: tracker,
		events:  events,
		hub:     NewHub(logger.Named("web")),
	}
	s.unwatch = events.Watch(s.hub.Broadcast)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/events.json", s.handleEvents)
	mux.HandleFunc("/ws", s.hub.serveWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown stops the event feed and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unwatch()
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, newestFirst(s.events.Entries()))
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatEvents(s.events.Entries()))
}
