package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sightwatch/sightwatch/internal/logging"
)

var errPoolClosed = errors.New("session pool is shut down")

// Session is one isolated HTTP identity: its own cookie jar and connection
// pool. Sessions are never shared between concurrent holders.
type Session struct {
	ID     string
	Client *http.Client
}

// SessionPool hands out up to max Sessions, creating them lazily on first
// demand. Acquire blocks when every session is out.
type SessionPool struct {
	mu      sync.Mutex
	idle    chan *Session
	created int
	max     int
	closed  bool
}

// NewSessionPool builds an empty pool with the given capacity.
func NewSessionPool(max int) *SessionPool {
	if max < 1 {
		max = 1
	}
	return &SessionPool{
		idle: make(chan *Session, max),
		max:  max,
	}
}

// Acquire returns an idle session, creating one if the pool is under
// capacity, otherwise blocking until a holder releases or the context ends.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPoolClosed
	}
	select {
	case s := <-p.idle:
		p.mu.Unlock()
		return s, nil
	default:
	}
	if p.created < p.max {
		p.created++
		p.mu.Unlock()
		s, err := newSession()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}
		logging.Debug("Session created", "session", s.ID, "total", p.created)
		return s, nil
	}
	p.mu.Unlock()

	select {
	case s, ok := <-p.idle:
		if !ok {
			return nil, errPoolClosed
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool. After Shutdown the session is
// discarded instead.
func (p *SessionPool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		s.Client.CloseIdleConnections()
		return
	}
	// Capacity equals max created, so this never blocks.
	p.idle <- s
}

// Shutdown discards every idle session and fails all future Acquires.
// Sessions still held are discarded when released.
func (p *SessionPool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.idle)
	for s := range p.idle {
		s.Client.CloseIdleConnections()
	}
	logging.Debug("Session pool shut down", "sessions", p.created)
}

func newSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID: uuid.NewString()[:8],
		Client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}
