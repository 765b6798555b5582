package serialmux

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// MockSerialPort implements SerialPorter for dev mode: reads come from a
// scripted feed, writes are discarded after being recorded.
type MockSerialPort struct {
	io.Reader

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
	closeFn func()
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrPortClosed
	}
	return m.written.Write(p)
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		if m.closeFn != nil {
			m.closeFn()
		}
	}
	return nil
}

// Written returns everything sent to the mock port so far.
func (m *MockSerialPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// NewMockSerialMux creates a SerialMux backed by a mock serial port that
// replays the given lines in order at the given interval, looping forever.
// Useful for exercising the console without the shelf rig attached.
func NewMockSerialMux(lines []string, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	mockPort := &MockSerialPort{
		Reader:  r,
		closeFn: func() { w.Close() },
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			<-ticker.C
			line := lines[i%len(lines)]
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return
			}
		}
	}()

	return NewSerialMux(mockPort)
}

// TestableSerialPort implements SerialPorter with configurable behaviour for
// tests: scripted reads, captured writes, and injectable errors.
type TestableSerialPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf    bytes.Buffer
	writeBuf   bytes.Buffer
	readErr    error
	writeErr   error
	shortWrite bool
	closed     bool
}

// NewTestableSerialPort creates a TestableSerialPort with an empty feed.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Feed appends bytes to the read side and wakes any blocked reader. Partial
// lines are allowed; callers control exactly how the stream is chunked.
func (p *TestableSerialPort) Feed(s string) {
	p.mu.Lock()
	p.readBuf.WriteString(s)
	p.mu.Unlock()
	p.readCond.Broadcast()
}

// FailReads makes the next Read return err.
func (p *TestableSerialPort) FailReads(err error) {
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
	p.readCond.Broadcast()
}

// FailWrites makes subsequent Writes return err without writing.
func (p *TestableSerialPort) FailWrites(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// ShortWrites makes subsequent Writes report one byte fewer than requested.
func (p *TestableSerialPort) ShortWrites() {
	p.mu.Lock()
	p.shortWrite = true
	p.mu.Unlock()
}

// Read blocks until data is fed, an error is injected, or the port closes.
func (p *TestableSerialPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.readBuf.Len() == 0 && p.readErr == nil && !p.closed {
		p.readCond.Wait()
	}
	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		return 0, err
	}
	if p.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuf.Read(buf)
}

func (p *TestableSerialPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	n, err := p.writeBuf.Write(data)
	if err == nil && p.shortWrite && n > 0 {
		p.writeBuf.Truncate(p.writeBuf.Len() - 1)
		n--
	}
	return n, err
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.readCond.Broadcast()
	return nil
}

// Written returns everything written to the port so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.String()
}

// Closed reports whether Close was called.
func (p *TestableSerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
