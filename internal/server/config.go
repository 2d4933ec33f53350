package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	swnet "github.com/Brownie44l1/socket-wrapper"

	"github.com/Brownie44l1/epoll-web/internal/response"
)

const (
	defaultBacklog   = 64
	defaultMaxEvents = 128
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is everything the server needs. New copies it; later changes to the
// caller's value have no effect.
type Config struct {
	// Root is the document root every request path is resolved against.
	Root string

	// Socket holds the listening socket options. Network, Port, ReuseAddr,
	// ReusePort, NoDelay, KeepAlive, SendBuffer, RecvBuffer, DeferAccept,
	// FastOpen, QuickAck, Backlog and MaxConns are honored.
	Socket *swnet.Config

	// MaxEvents is how many readiness events one wait may return.
	MaxEvents int

	// IdleTimeout closes connections that make no read or write progress
	// for this long. Zero disables it.
	IdleTimeout time.Duration

	// NotFoundPage is streamed as the body of every 404.
	NotFoundPage string

	// RateLimit caps new connections per client IP per RateWindow.
	// Zero disables it.
	RateLimit  int
	RateWindow time.Duration

	Logger Logger
}

// DefaultConfig returns the configuration the binary runs with, port 8080.
func DefaultConfig() *Config {
	sock := swnet.DefaultConfig().
		WithBacklog(defaultBacklog).
		WithDeferAccept(0)
	sock.FastOpen = false
	sock.QuickAck = false

	return &Config{
		Root:         ".",
		Socket:       sock,
		MaxEvents:    defaultMaxEvents,
		IdleTimeout:  60 * time.Second,
		NotFoundPage: response.DefaultNotFoundPage,
		RateWindow:   time.Minute,
		Logger:       NewDefaultLogger(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Socket == nil {
		return fmt.Errorf("%w: missing socket config", ErrInvalidConfig)
	}
	if err := c.Socket.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("%w: max events must be non-negative", ErrInvalidConfig)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout must be non-negative", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must be non-negative", ErrInvalidConfig)
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return fmt.Errorf("%w: rate window must be positive when rate limiting", ErrInvalidConfig)
	}

	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("%w: document root: %v", ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: document root %s is not a directory", ErrInvalidConfig, c.Root)
	}
	return nil
}
