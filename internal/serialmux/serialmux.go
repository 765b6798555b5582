// Package serialmux provides an abstraction over the serial link to the ESL
// rail controller, with the ability for multiple clients to subscribe to
// received lines and to send commands through a single port.
package serialmux

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrWriteFailed reports a short write to the serial port.
	ErrWriteFailed = errors.New("short write to serial port")
	// ErrPortClosed reports a send attempted while the link is closed.
	ErrPortClosed = errors.New("serial port is closed")
	// ErrNoPort reports an open attempt with no port path configured.
	ErrNoPort = errors.New("no serial port configured")
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// SerialMux multiplexes a single serial port: one goroutine reads lines via
// Monitor and fans them out to subscribers, while SendCommand serialises
// writes back to the device.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving line events from the
	// serial port. The returned ID identifies the channel for Unsubscribe.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the serial port, appending
	// the line terminator. Rejected with ErrPortClosed once the mux closes.
	SendCommand(string) error
	// Monitor reads lines from the serial port and fans them out to
	// subscribers until the context ends or the port fails.
	Monitor(context.Context) error
	// Close closes all subscribed channels and the underlying port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are reachable only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID.
func randomID() string {
	return uuid.NewString()
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	// Buffered so a subscriber that is momentarily between receives does not
	// lose lines to the non-blocking fanout.
	ch := make(chan string, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand sends a command to the serial port. The command is terminated
// with a newline; nothing is written once the mux is closing.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.closingMu.Lock()
	closing := s.closing
	s.closingMu.Unlock()
	if closing {
		return ErrPortClosed
	}

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads complete lines from the serial port and sends them to
// subscribers. Each line is emitted exactly once, in arrival order; a partial
// line stays buffered until its terminator arrives.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer loop can
	// await both lines and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// a closed channel means the port returned EOF
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// skip a full channel so one slow subscriber cannot
					// stall the read loop
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	AttachAdminRoutesForMux(mux, s)
}
