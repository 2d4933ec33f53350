//go:build linux

// Package server is the single-threaded, edge-triggered epoll reactor that
// accepts connections, parses one request per connection and streams the
// response.
package server

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/epoll-web/internal/poll"
	"github.com/Brownie44l1/epoll-web/internal/response"
)

// ErrServerClosed is returned by Run after Close.
var ErrServerClosed = errors.New("server closed")

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

// Server owns the poller, the listening socket and every connection. All of
// them are touched only by the goroutine in Run; Close and Stats are the
// exceptions and may be called from anywhere.
type Server struct {
	poller      *poll.Poller
	ln          *listener
	responder   *response.Responder
	logger      Logger
	metrics     *Metrics
	limiter     *RateLimiter
	idleTimeout time.Duration

	conns   map[int]*conn
	readBuf []byte

	acceptPaused bool
	pausedAt     time.Time

	mu     sync.Mutex
	state  runState
	closed atomic.Bool
}

// New binds the listening socket and registers it with a fresh poller.
// Nothing is accepted until Run.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NullLogger{}
	}

	poller, err := poll.New(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}

	ln, err := listen(cfg.Socket, logger)
	if err != nil {
		poller.Close()
		return nil, err
	}

	if err := poller.Add(ln.fd, poll.Readable); err != nil {
		ln.close()
		poller.Close()
		return nil, err
	}

	logger.Info("listener started",
		"addr", ln.addr,
		"backlog", ln.backlog,
		"max_conns", ln.maxConns,
		"root", cfg.Root,
	)

	var limiter *RateLimiter
	if cfg.RateLimit > 0 {
		limiter = NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	}

	return &Server{
		poller:      poller,
		ln:          ln,
		responder:   response.NewResponder(cfg.Root, cfg.NotFoundPage),
		logger:      logger,
		metrics:     NewMetrics(),
		limiter:     limiter,
		idleTimeout: cfg.IdleTimeout,
		conns:       make(map[int]*conn),
		readBuf:     GetBuffer(smallBufferSize),
	}, nil
}

// Port returns the bound port, useful when the config asked for port 0.
func (s *Server) Port() int {
	return s.ln.port
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Run is the event loop. It returns ErrServerClosed after Close, or the
// wait error that made the loop unable to continue. Either way every
// descriptor the server owns is closed on return.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.state = stateRunning
	s.mu.Unlock()

	defer s.shutdown()

	for {
		if s.closed.Load() {
			return ErrServerClosed
		}

		events, err := s.poller.Wait(s.waitTimeout())
		if err != nil {
			s.logger.Error("wait failed", "error", err)
			return fmt.Errorf("event loop: %w", err)
		}

		for _, ev := range events {
			if ev.Fd == s.ln.fd {
				s.acceptLoop()
				continue
			}

			c, ok := s.conns[ev.Fd]
			if !ok {
				continue
			}
			if ev.Readable || ev.Hangup {
				c.onReadable()
			}
			if ev.Writable {
				c.onWritable()
			}
		}

		now := time.Now()
		if s.idleTimeout > 0 {
			s.reapIdle(now)
		}
		if s.limiter != nil {
			s.limiter.prune(now)
		}
		s.retryAccept(now)
	}
}

// waitTimeout is how long one wait may block, in milliseconds; -1 is forever.
func (s *Server) waitTimeout() int {
	timeout := -1
	if s.idleTimeout > 0 {
		timeout = int(min(s.idleTimeout/2, time.Second) / time.Millisecond)
		timeout = max(timeout, 1)
	}
	if s.acceptPaused {
		retry := int(acceptRetryDelay / time.Millisecond)
		if timeout < 0 || timeout > retry {
			timeout = retry
		}
	}
	return timeout
}

// reapIdle closes connections that have made no progress within the idle timeout.
func (s *Server) reapIdle(now time.Time) {
	for _, c := range s.conns {
		if now.Sub(c.lastActive) < s.idleTimeout {
			continue
		}
		s.logger.Info("idle connection reaped", "fd", c.fd, "peer", c.peer, "idle", now.Sub(c.lastActive))
		c.abort()
	}
}

// Close stops the server. A running loop is woken and tears itself down;
// a server that never ran releases its descriptors here.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}

	switch s.state {
	case stateIdle:
		s.state = stateStopped
		return s.release()
	case stateRunning:
		return s.poller.Wake()
	default:
		return nil
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	s.state = stateStopped
	s.mu.Unlock()

	for _, c := range s.conns {
		c.close()
	}
	if err := s.release(); err != nil {
		s.logger.Error("shutdown failed", "error", err)
	}
	s.logger.Info("server stopped", "accepted", s.metrics.ConnectionsAccepted.Load())
}

func (s *Server) release() error {
	err := s.ln.close()
	if perr := s.poller.Close(); err == nil {
		err = perr
	}
	if s.readBuf != nil {
		PutBuffer(s.readBuf)
		s.readBuf = nil
	}
	return err
}
