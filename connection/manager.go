package connection

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Status is the connection lifecycle state.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives everything that arrives on the socket. Calls are made from
// the manager's read goroutine, one at a time.
type Handler interface {
	OnMessage(Message)
	OnFrame(frame []byte)
	OnStatusChange(Status)
}

// Config tunes the manager. Zero values select defaults.
type Config struct {
	// RetryDelay is the fixed wait between reconnect attempts. No backoff,
	// no attempt cap: retries continue until Close(true).
	RetryDelay time.Duration
}

const defaultRetryDelay = 2 * time.Second

// Manager owns the single persistent socket to the coaching service. It
// redials forever on unintentional closure and stops cleanly on Close(true).
type Manager struct {
	handler    Handler
	retryDelay time.Duration
	dialer     *websocket.Dialer

	writeMu sync.Mutex

	mu         sync.Mutex
	conn       *websocket.Conn
	status     Status
	url        string
	retryTimer *time.Timer
	closed     bool
	gen        int
}

func New(cfg Config, handler Handler) *Manager {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Manager{
		handler:    handler,
		retryDelay: cfg.RetryDelay,
		dialer:     websocket.DefaultDialer,
	}
}

// Connect starts dialing url. The attempt runs asynchronously; the handler
// observes the outcome through OnStatusChange.
func (m *Manager) Connect(url string) {
	m.mu.Lock()
	m.url = url
	m.closed = false
	m.mu.Unlock()
	go m.dial()
}

// Status reports the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Send writes v as a JSON command if and only if the socket is open.
// Commands issued while disconnected are dropped silently: there is no
// buffering, and a round that loses its socket loses its commands.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	open := m.status == Connected && conn != nil
	m.mu.Unlock()
	if !open {
		return nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Close closes the socket. An intentional close cancels any pending retry
// timer and suppresses reconnection for good; an unintentional one lets the
// read loop schedule the next attempt.
func (m *Manager) Close(intentional bool) {
	m.mu.Lock()
	if intentional {
		m.closed = true
		m.gen++
		if m.retryTimer != nil {
			m.retryTimer.Stop()
			m.retryTimer = nil
		}
	}
	conn := m.conn
	m.conn = nil
	changed := m.status != Disconnected
	m.status = Disconnected
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(2 * time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	if changed {
		m.handler.OnStatusChange(Disconnected)
	}
}

func (m *Manager) dial() {
	m.mu.Lock()
	if m.closed || m.conn != nil {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	url := m.url
	m.status = Connecting
	m.mu.Unlock()
	m.handler.OnStatusChange(Connecting)

	conn, _, err := m.dialer.Dial(url, nil)

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.status = Disconnected
		m.scheduleRetryLocked()
		m.mu.Unlock()
		m.handler.OnStatusChange(Disconnected)
		log.Printf("connection: dial %s: %v", url, err)
		return
	}
	m.conn = conn
	m.status = Connected
	m.mu.Unlock()
	m.handler.OnStatusChange(Connected)

	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			m.mu.Lock()
			if m.closed || gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.conn = nil
			changed := m.status != Disconnected
			m.status = Disconnected
			m.scheduleRetryLocked()
			m.mu.Unlock()
			if changed {
				m.handler.OnStatusChange(Disconnected)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			m.handler.OnFrame(data)
		case websocket.TextMessage:
			if msg, ok := decode(data); ok {
				m.handler.OnMessage(msg)
			}
		}
	}
}

// scheduleRetryLocked arms the fixed-delay redial. Caller holds m.mu.
func (m *Manager) scheduleRetryLocked() {
	if m.closed {
		return
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = time.AfterFunc(m.retryDelay, m.dial)
}
