package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/shelf-data/shelfview/internal/db"
	"github.com/shelf-data/shelfview/internal/serialmux"
)

// SerialConfigRequest is the request body for creating/updating serial configs.
type SerialConfigRequest struct {
	Name        string  `json:"name"`
	PortPath    string  `json:"port_path"`
	BaudRate    int     `json:"baud_rate"`
	DataBits    int     `json:"data_bits"`
	StopBits    float64 `json:"stop_bits"`
	Parity      string  `json:"parity"`
	FlowControl string  `json:"flow_control"`
	Enabled     bool    `json:"enabled"`
	Description string  `json:"description"`
}

// validate checks the request and returns the normalized port options.
func (req *SerialConfigRequest) validate() (serialmux.PortOptions, error) {
	if req.Name == "" {
		return serialmux.PortOptions{}, fmt.Errorf("name is required")
	}
	if req.PortPath == "" {
		return serialmux.PortOptions{}, fmt.Errorf("port path is required")
	}
	if !isValidPortPath(req.PortPath) {
		return serialmux.PortOptions{}, fmt.Errorf("invalid port path: must start with /dev/tty or /dev/serial")
	}

	opts := serialmux.PortOptions{
		BaudRate:    req.BaudRate,
		DataBits:    req.DataBits,
		StopBits:    req.StopBits,
		Parity:      req.Parity,
		FlowControl: req.FlowControl,
	}
	return opts.Normalize()
}

// handleSerialConfigsOrCreate handles GET and POST to /api/serial/configs.
func (s *Server) handleSerialConfigsOrCreate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSerialConfigs(w, r)
	case http.MethodPost:
		s.handleCreateSerialConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSerialConfigs handles GET /api/serial/configs.
func (s *Server) handleSerialConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.db.GetSerialConfigs()
	if err != nil {
		log.Printf("Error fetching serial configs: %v", err)
		http.Error(w, "Failed to fetch serial configurations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configs)
}

// handleSerialConfigByID handles GET/PUT/DELETE /api/serial/configs/:id.
func (s *Server) handleSerialConfigByID(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/serial/configs/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.Error(w, "Missing config ID", http.StatusBadRequest)
		return
	}

	id, err := strconv.Atoi(pathParts[0])
	if err != nil {
		http.Error(w, "Invalid config ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSerialConfig(w, r, id)
	case http.MethodPut:
		s.handleUpdateSerialConfig(w, r, id)
	case http.MethodDelete:
		s.handleDeleteSerialConfig(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetSerialConfig handles GET /api/serial/configs/:id.
func (s *Server) handleGetSerialConfig(w http.ResponseWriter, r *http.Request, id int) {
	config, err := s.db.GetSerialConfig(id)
	if err != nil {
		log.Printf("Error fetching serial config %d: %v", id, err)
		http.Error(w, "Failed to fetch serial configuration", http.StatusInternalServerError)
		return
	}

	if config == nil {
		http.Error(w, "Configuration not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config)
}

// handleCreateSerialConfig handles POST /api/serial/configs.
func (s *Server) handleCreateSerialConfig(w http.ResponseWriter, r *http.Request) {
	var req SerialConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts, err := req.validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	config := &db.SerialConfig{
		Name:        req.Name,
		PortPath:    req.PortPath,
		BaudRate:    opts.BaudRate,
		DataBits:    opts.DataBits,
		StopBits:    opts.StopBits,
		Parity:      opts.Parity,
		FlowControl: opts.FlowControl,
		Enabled:     req.Enabled,
		Description: req.Description,
	}

	id, err := s.db.CreateSerialConfig(config)
	if err != nil {
		log.Printf("Error creating serial config: %v", err)
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			http.Error(w, "Configuration with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create serial configuration", http.StatusInternalServerError)
		return
	}

	created, err := s.db.GetSerialConfig(int(id))
	if err != nil {
		log.Printf("Error fetching created config: %v", err)
		http.Error(w, "Configuration created but failed to fetch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// handleUpdateSerialConfig handles PUT /api/serial/configs/:id.
func (s *Server) handleUpdateSerialConfig(w http.ResponseWriter, r *http.Request, id int) {
	var req SerialConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts, err := req.validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	config := &db.SerialConfig{
		ID:          id,
		Name:        req.Name,
		PortPath:    req.PortPath,
		BaudRate:    opts.BaudRate,
		DataBits:    opts.DataBits,
		StopBits:    opts.StopBits,
		Parity:      opts.Parity,
		FlowControl: opts.FlowControl,
		Enabled:     req.Enabled,
		Description: req.Description,
	}

	if err := s.db.UpdateSerialConfig(config); err != nil {
		log.Printf("Error updating serial config %d: %v", id, err)
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Configuration not found", http.StatusNotFound)
			return
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			http.Error(w, "Configuration with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to update serial configuration", http.StatusInternalServerError)
		return
	}

	updated, err := s.db.GetSerialConfig(id)
	if err != nil {
		log.Printf("Error fetching updated config: %v", err)
		http.Error(w, "Configuration updated but failed to fetch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// handleDeleteSerialConfig handles DELETE /api/serial/configs/:id.
func (s *Server) handleDeleteSerialConfig(w http.ResponseWriter, r *http.Request, id int) {
	if err := s.db.DeleteSerialConfig(id); err != nil {
		log.Printf("Error deleting serial config %d: %v", id, err)
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Configuration not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete serial configuration", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isValidPortPath validates that a port path is in an allowed format.
func isValidPortPath(path string) bool {
	return strings.HasPrefix(path, "/dev/tty") || strings.HasPrefix(path, "/dev/serial")
}
