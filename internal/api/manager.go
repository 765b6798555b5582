package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelf-data/shelfview/internal/db"
	"github.com/shelf-data/shelfview/internal/serialmux"
)

// SerialMuxFactory constructs a serialmux.SerialMuxInterface for the given
// port path and options. It is injected so the manager can be tested and so
// the different runtime modes (real, mock, disabled) can supply their own
// constructors.
type SerialMuxFactory func(path string, opts serialmux.PortOptions) (serialmux.SerialMuxInterface, error)

// SerialConfigSnapshot describes the configuration currently applied to the
// running serial link. It mirrors the user-facing serial configuration model
// so API responses can report the active settings.
type SerialConfigSnapshot struct {
	ConfigID int                   `json:"config_id,omitempty"`
	Name     string                `json:"name,omitempty"`
	PortPath string                `json:"port_path"`
	Source   string                `json:"source"`
	Options  serialmux.PortOptions `json:"options"`
}

// SerialReloadResult is returned to API clients when a reload request is
// processed.
type SerialReloadResult struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Config  *SerialConfigSnapshot `json:"config,omitempty"`
}

// SerialPortManager owns the serial link lifecycle. The link is always in one
// of three states: open (an active mux), closed (no mux), or closed after an
// error. Reconfiguration is strictly close-then-reopen; the previous mux is
// fully closed before a new open is attempted, because a serial port cannot
// be opened twice.
//
// Subscriptions survive reconfiguration: Subscribe hands out channels from an
// internal fanout, and a background goroutine bridges the current mux into
// that fanout, reattaching whenever the mux is swapped.
type SerialPortManager struct {
	mu       sync.RWMutex
	current  serialmux.SerialMuxInterface
	snapshot *SerialConfigSnapshot
	closed   bool

	db      *db.DB
	factory SerialMuxFactory

	reloadMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once

	fanoutMu    sync.RWMutex
	subscribers map[string]chan string
}

// NewSerialPortManager constructs a SerialPortManager. The initial mux may be
// nil (link starts closed); the initial snapshot is ignored when its port
// path is empty.
func NewSerialPortManager(database *db.DB, initial serialmux.SerialMuxInterface, snapshot SerialConfigSnapshot, factory SerialMuxFactory) *SerialPortManager {
	m := &SerialPortManager{
		current:     initial,
		db:          database,
		factory:     factory,
		stop:        make(chan struct{}),
		subscribers: make(map[string]chan string),
	}
	if snapshot.PortPath != "" {
		snap := snapshot
		m.snapshot = &snap
	}

	go m.runFanout()
	return m
}

// CurrentMux returns the mux currently in use, or nil while the link is
// closed. Callers must not reconfigure the returned value directly; that is
// ReloadConfig's job.
func (m *SerialPortManager) CurrentMux() serialmux.SerialMuxInterface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Open reports whether the link currently has an active mux.
func (m *SerialPortManager) Open() bool {
	return m.CurrentMux() != nil
}

// Snapshot returns a copy of the active configuration snapshot.
func (m *SerialPortManager) Snapshot() SerialConfigSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return SerialConfigSnapshot{}
	}
	return *m.snapshot
}

// runFanout bridges the current mux's line stream into the persistent
// subscriber channels, reattaching after every reconfiguration. It exits when
// Close is called.
func (m *SerialPortManager) runFanout() {
	var subID string
	var subCh chan string

	defer func() {
		if subID != "" {
			if mux := m.CurrentMux(); mux != nil {
				mux.Unsubscribe(subID)
			}
		}
		m.fanoutMu.Lock()
		for _, ch := range m.subscribers {
			close(ch)
		}
		m.subscribers = make(map[string]chan string)
		m.fanoutMu.Unlock()
	}()

	for {
		if subCh == nil {
			select {
			case <-m.stop:
				return
			default:
			}
			mux := m.CurrentMux()
			if mux == nil {
				select {
				case <-m.stop:
					return
				case <-time.After(250 * time.Millisecond):
				}
				continue
			}
			subID, subCh = mux.Subscribe()
		}

		select {
		case <-m.stop:
			return
		case line, ok := <-subCh:
			if !ok {
				// The mux was closed underneath us, most likely by a
				// reload; reattach on the next iteration.
				subID, subCh = "", nil
				continue
			}
			m.fanoutMu.RLock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// never let one slow reader stall the fanout
				}
			}
			m.fanoutMu.RUnlock()
		}
	}
}

// Subscribe returns a persistent line channel that stays valid across
// reconfigurations. After Close it returns an already-closed channel.
func (m *SerialPortManager) Subscribe() (string, chan string) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()

	ch := make(chan string, 16)
	if closed {
		close(ch)
		return "", ch
	}

	id := uuid.NewString()
	m.fanoutMu.Lock()
	m.subscribers[id] = ch
	m.fanoutMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *SerialPortManager) Unsubscribe(id string) {
	m.fanoutMu.Lock()
	defer m.fanoutMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand writes one command line through the active mux. While the link
// is closed the write is rejected with serialmux.ErrPortClosed and nothing is
// written.
func (m *SerialPortManager) SendCommand(command string) error {
	m.mu.RLock()
	mux := m.current
	closed := m.closed
	m.mu.RUnlock()

	if closed || mux == nil {
		return serialmux.ErrPortClosed
	}
	return mux.SendCommand(command)
}

// Monitor drives the read loop of whichever mux is active. A read failure
// forces the link closed (no automatic reopen); the loop then idles until a
// reload installs a new mux or the context ends.
func (m *SerialPortManager) Monitor(ctx context.Context) error {
	for {
		mux := m.CurrentMux()
		if mux == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}

		err := mux.Monitor(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("serial monitor terminated with error: %v", err)
			m.closeCurrent()
			continue
		}
		// A clean exit means the mux was closed, likely by a reload. Loop
		// back to pick up its replacement.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// closeCurrent tears down the active mux and leaves the link closed.
func (m *SerialPortManager) closeCurrent() {
	m.mu.Lock()
	mux := m.current
	m.current = nil
	m.mu.Unlock()

	if mux != nil {
		if err := mux.Close(); err != nil {
			log.Printf("warning: failed to close serial mux: %v", err)
		}
	}
}

// Close shuts the manager down: the active mux is closed, the fanout loop
// exits, and all subscriber channels are closed. For shutdown only;
// reconfiguration goes through ReloadConfig.
func (m *SerialPortManager) Close() error {
	m.mu.Lock()
	m.closed = true
	mux := m.current
	m.current = nil
	m.mu.Unlock()

	if mux != nil {
		if err := mux.Close(); err != nil {
			log.Printf("warning: failed to close serial mux during shutdown: %v", err)
		}
	}

	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// AttachAdminRoutes mounts the serial debug routes against the manager so
// they keep working across reloads.
func (m *SerialPortManager) AttachAdminRoutes(mux *http.ServeMux) {
	serialmux.AttachAdminRoutesForMux(mux, m)
}

// ReloadConfig applies the enabled configuration from the settings store.
// The active mux is closed before the new one is opened; when the new open
// fails the link stays closed and the error is returned.
func (m *SerialPortManager) ReloadConfig(ctx context.Context) (*SerialReloadResult, error) {
	if m.factory == nil {
		return nil, errors.New("serial mux factory not configured")
	}
	if m.db == nil {
		return nil, errors.New("settings store not configured")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	configs, err := m.db.GetEnabledSerialConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to load serial configurations: %w", err)
	}
	if len(configs) == 0 {
		return nil, errors.New("no enabled serial configurations found")
	}

	cfg := configs[0]
	opts := serialmux.PortOptions{
		BaudRate:    cfg.BaudRate,
		DataBits:    cfg.DataBits,
		StopBits:    cfg.StopBits,
		Parity:      cfg.Parity,
		FlowControl: cfg.FlowControl,
	}
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid serial configuration: %w", err)
	}

	snap := SerialConfigSnapshot{
		ConfigID: cfg.ID,
		Name:     cfg.Name,
		PortPath: cfg.PortPath,
		Source:   "database",
		Options:  normalized,
	}

	current := m.Snapshot()
	if m.Open() && current.PortPath == cfg.PortPath && current.Options.Equal(normalized) {
		return &SerialReloadResult{
			Success: true,
			Message: fmt.Sprintf("Serial configuration %q already active", cfg.Name),
			Config:  &snap,
		}, nil
	}

	// Close the old mux before opening the new one: the new configuration
	// may target the same port, which must be released first.
	m.closeCurrent()

	newMux, err := m.factory(cfg.PortPath, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.PortPath, err)
	}

	m.mu.Lock()
	m.current = newMux
	m.snapshot = &snap
	m.mu.Unlock()

	return &SerialReloadResult{
		Success: true,
		Message: fmt.Sprintf("Reloaded serial configuration %q", cfg.Name),
		Config:  &snap,
	}, nil
}
