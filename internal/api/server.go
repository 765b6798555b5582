// Package api exposes the console state to presentation layers over HTTP:
// rail snapshots, an event stream of decoded telemetry, command passthrough,
// and serial-link configuration management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelf-data/shelfview/internal/db"
	"github.com/shelf-data/shelfview/internal/protocol"
	"github.com/shelf-data/shelfview/internal/serialmux"
	"github.com/shelf-data/shelfview/internal/shelf"
	"github.com/shelf-data/shelfview/internal/version"
)

// ANSI escape codes for access-log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Update is one entry in the stream handed to presentation layers. Typed
// telemetry that reached a rail carries the structured fields; everything
// else carries only the raw text. Sent marks command echoes.
type Update struct {
	ESLID     *string `json:"esl_id,omitempty"`
	ItemCount *int    `json:"item_count,omitempty"`
	MaxItems  *int    `json:"max_items,omitempty"`
	Connected *bool   `json:"connected,omitempty"`
	Raw       string  `json:"raw"`
	Sent      bool    `json:"sent,omitempty"`
}

type Server struct {
	manager  *SerialPortManager
	registry *shelf.Registry
	db       *db.DB

	updateMu   sync.Mutex
	updateSubs map[string]chan Update
}

func NewServer(manager *SerialPortManager, registry *shelf.Registry, database *db.DB) *Server {
	return &Server{
		manager:    manager,
		registry:   registry,
		db:         database,
		updateSubs: make(map[string]chan Update),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rails", s.listRails)
	mux.HandleFunc("/api/rails/", s.railCommandHandler)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/events", s.streamEvents)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/serial/configs", s.handleSerialConfigsOrCreate)
	mux.HandleFunc("/api/serial/configs/", s.handleSerialConfigByID)
	mux.HandleFunc("/api/serial/reload", s.reloadSerialHandler)
	return mux
}

// RunDispatcher is the single driver loop for rail state: it subscribes to
// the serial line stream, decodes every line, routes it through the registry
// and publishes the resulting update. All rail mutation happens here, in
// arrival order. Returns when the context ends or the manager closes.
func (s *Server) RunDispatcher(ctx context.Context) {
	id, lines := s.manager.Subscribe()
	defer s.manager.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			s.handleLine(line)
		}
	}
}

func (s *Server) handleLine(line string) {
	u := Update{Raw: line}
	if snap, ok := s.registry.Dispatch(protocol.Decode(line)); ok {
		u.ESLID = &snap.ESLID
		u.ItemCount = &snap.ItemCount
		u.MaxItems = &snap.MaxItems
		u.Connected = &snap.Connected
	}
	s.PublishUpdate(u)
}

// SubscribeUpdates returns a channel of presentation updates.
func (s *Server) SubscribeUpdates() (string, chan Update) {
	id := uuid.NewString()
	ch := make(chan Update, 16)
	s.updateMu.Lock()
	s.updateSubs[id] = ch
	s.updateMu.Unlock()
	return id, ch
}

// UnsubscribeUpdates removes an update subscriber.
func (s *Server) UnsubscribeUpdates(id string) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	if ch, ok := s.updateSubs[id]; ok {
		close(ch)
		delete(s.updateSubs, id)
	}
}

// PublishUpdate fans an update out to all subscribers without blocking.
func (s *Server) PublishUpdate(u Update) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	for _, ch := range s.updateSubs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *Server) listRails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.Snapshots())
}

// railCommandHandler serves POST /api/rails/{id}/measure and
// POST /api/rails/{id}/connect.
func (s *Server) railCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/rails/"), "/")
	if len(parts) != 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	id, ok := protocol.CanonicalID(parts[0])
	if !ok {
		http.Error(w, "Invalid ESL ID", http.StatusBadRequest)
		return
	}
	rail, ok := s.registry.Rail(id)
	if !ok {
		http.Error(w, "Rail not found", http.StatusNotFound)
		return
	}

	var command string
	switch parts[1] {
	case "measure":
		command = rail.MeasureCommand()
	case "connect":
		command = rail.ConnectCommand()
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	s.writeCommand(w, command)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	command := strings.TrimSpace(req.Command)
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	s.writeCommand(w, command)
}

// writeCommand sends one command line and echoes it into the update stream,
// so sent traffic shows up in the console log next to received traffic.
func (s *Server) writeCommand(w http.ResponseWriter, command string) {
	if err := s.manager.SendCommand(command); err != nil {
		if errors.Is(err, serialmux.ErrPortClosed) {
			http.Error(w, "Serial link is closed", http.StatusConflict)
			return
		}
		log.Printf("failed to write command %q: %v", command, err)
		http.Error(w, "Failed to write command", http.StatusInternalServerError)
		return
	}

	s.PublishUpdate(Update{Raw: command, Sent: true})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"command": command,
	})
}

// streamEvents serves the presentation update stream as Server-Sent Events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, ch := s.SubscribeUpdates()
	defer s.UnsubscribeUpdates(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(u)
			if err != nil {
				log.Printf("failed to marshal update: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := struct {
		Version  string               `json:"version"`
		GitSHA   string               `json:"git_sha"`
		LinkOpen bool                 `json:"link_open"`
		Serial   SerialConfigSnapshot `json:"serial"`
		Rails    int                  `json:"rails"`
	}{
		Version:  version.Version,
		GitSHA:   version.GitSHA,
		LinkOpen: s.manager.Open(),
		Serial:   s.manager.Snapshot(),
		Rails:    s.registry.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) reloadSerialHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.manager.ReloadConfig(r.Context())
	if err != nil {
		log.Printf("serial reload failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(SerialReloadResult{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
