//go:build linux

package server

import (
	"fmt"
	"net/netip"
	"time"

	swnet "github.com/Brownie44l1/socket-wrapper"
	"golang.org/x/sys/unix"

	"github.com/Brownie44l1/epoll-web/internal/poll"
)

const acceptRetryDelay = 100 * time.Millisecond

// listener is the non-blocking listening socket. The reactor owns it and
// drives acceptLoop whenever it reports readable.
type listener struct {
	fd       int
	port     int
	addr     string
	backlog  int
	maxConns int
}

// listen creates, configures, binds and listens on an IPv4 stream socket on
// all interfaces.
func listen(cfg *swnet.Config, logger Logger) (*listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket creation failed: %w", err)
	}

	if err := configureSocket(fd, cfg, logger); err != nil {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: cfg.Port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind port %d failed: %w", cfg.Port, err)
	}

	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen failed: %w", err)
	}

	// Port 0 asks the kernel to pick one
	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname failed: %w", err)
	}
	port := cfg.Port
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		port = in4.Port
	}

	return &listener{
		fd:       fd,
		port:     port,
		addr:     fmt.Sprintf("0.0.0.0:%d", port),
		backlog:  backlog,
		maxConns: cfg.MaxConns,
	}, nil
}

// configureSocket applies the socket wrapper's options to a raw descriptor.
// Accepted sockets inherit the TCP-level ones.
func configureSocket(fd int, cfg *swnet.Config, logger Logger) error {
	if cfg.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fmt.Errorf("setsockopt SO_REUSEADDR failed: %w", err)
		}
	}

	if cfg.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return fmt.Errorf("setsockopt SO_REUSEPORT failed: %w", err)
		}
	}

	if cfg.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return fmt.Errorf("setsockopt TCP_NODELAY failed: %w", err)
		}
	}

	// Whole seconds only; anything shorter is off
	if seconds := int(cfg.DeferAccept.Seconds()); seconds > 0 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, seconds); err != nil {
			return fmt.Errorf("setsockopt TCP_DEFER_ACCEPT failed: %w", err)
		}
	}

	if cfg.FastOpen {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256); err != nil {
			// Non-fatal
			logger.Debug("TCP_FASTOPEN not supported", "error", err)
		}
	}

	if cfg.KeepAlive {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return fmt.Errorf("setsockopt SO_KEEPALIVE failed: %w", err)
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60); err != nil {
			return fmt.Errorf("setsockopt TCP_KEEPIDLE failed: %w", err)
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10); err != nil {
			return fmt.Errorf("setsockopt TCP_KEEPINTVL failed: %w", err)
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 6); err != nil {
			return fmt.Errorf("setsockopt TCP_KEEPCNT failed: %w", err)
		}
	}

	if cfg.QuickAck {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1); err != nil {
			logger.Debug("TCP_QUICKACK failed", "error", err)
		}
	}

	if cfg.SendBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer); err != nil {
			return fmt.Errorf("setsockopt SO_SNDBUF failed: %w", err)
		}
	}
	if cfg.RecvBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer); err != nil {
			return fmt.Errorf("setsockopt SO_RCVBUF failed: %w", err)
		}
	}

	return nil
}

func (l *listener) close() error {
	return unix.Close(l.fd)
}

// acceptLoop accepts until the backlog is empty. The listening socket is
// level-triggered, but draining it here still saves a wait per connection
// in a burst.
func (s *Server) acceptLoop() {
	for {
		fd, sa, err := unix.Accept4(s.ln.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM:
				// The connection stays queued and the listener stays readable
				s.pauseAccept(err, time.Now())
				return
			default:
				s.logger.Error("accept failed", "error", err)
				return
			}
		}

		addr := peerAddr(sa)
		peer := addr.String()

		if s.limiter != nil && !s.limiter.Allow(addr.Addr(), time.Now()) {
			unix.Close(fd)
			s.metrics.ConnectionsRejected.Add(1)
			s.logger.Info("connection rate limited", "peer", peer)
			continue
		}

		if s.ln.maxConns > 0 && len(s.conns) >= s.ln.maxConns {
			unix.Close(fd)
			s.metrics.ConnectionsRejected.Add(1)
			s.logger.Info("connection rejected", "peer", peer, "active", len(s.conns), "max_conns", s.ln.maxConns)
			continue
		}

		c := newConn(s, fd, peer)
		if err := s.poller.Add(fd, poll.EdgeReadWrite); err != nil {
			unix.Close(fd)
			s.logger.Error("register connection failed", "peer", peer, "error", err)
			continue
		}

		s.conns[fd] = c
		s.metrics.ConnectionsAccepted.Add(1)
		s.metrics.ActiveConnections.Add(1)
		s.logger.Debug("accepted connection", "peer", peer, "fd", fd)
	}
}

// pauseAccept takes the listener out of the interest set until a connection
// closes or acceptRetryDelay passes.
func (s *Server) pauseAccept(err error, now time.Time) {
	if s.acceptPaused {
		return
	}
	if derr := s.poller.Del(s.ln.fd); derr != nil {
		s.logger.Error("pause accept failed", "error", derr)
		return
	}
	s.acceptPaused = true
	s.pausedAt = now
	s.logger.Error("accept paused", "error", err, "active", len(s.conns))
}

func (s *Server) resumeAccept() {
	if !s.acceptPaused {
		return
	}
	if err := s.poller.Add(s.ln.fd, poll.Readable); err != nil {
		s.logger.Error("resume accept failed", "error", err)
		return
	}
	s.acceptPaused = false
	s.logger.Info("accept resumed", "active", len(s.conns))
}

// retryAccept resumes accepting once the pause has lasted acceptRetryDelay,
// for descriptors freed outside the server.
func (s *Server) retryAccept(now time.Time) {
	if s.acceptPaused && now.Sub(s.pausedAt) >= acceptRetryDelay {
		s.resumeAccept()
	}
}

func peerAddr(sa unix.Sockaddr) netip.AddrPort {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr).Unmap(), uint16(a.Port))
	default:
		return netip.AddrPort{}
	}
}
