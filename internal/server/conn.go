//go:build linux

package server

import (
	"io"
	"runtime/debug"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Brownie44l1/epoll-web/internal/request"
	"github.com/Brownie44l1/epoll-web/internal/response"
)

// conn is one accepted client. It lives only on the reactor goroutine, so
// nothing here is locked.
type conn struct {
	srv    *Server
	fd     int
	peer   string
	parser *request.Parser

	resp     *response.Response
	out      []byte // bytes the socket has not taken yet
	buf      []byte // pooled staging buffer the body is read into
	bodyDone bool
	peerDone bool // peer shut down its sending side

	sent       int64
	started    time.Time
	lastActive time.Time
	closed     bool
}

func newConn(s *Server, fd int, peer string) *conn {
	return &conn{
		srv:        s,
		fd:         fd,
		peer:       peer,
		parser:     request.NewParser(),
		lastActive: time.Now(),
	}
}

// onReadable drains the socket. Readiness is edge-triggered, so reading
// stops only at EAGAIN, end of stream or an error.
func (c *conn) onReadable() {
	if c.peerDone {
		return
	}

	buf := c.srv.readBuf
	for !c.closed {
		n, err := unix.Read(c.fd, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			c.srv.logger.Error("read failed", "fd", c.fd, "peer", c.peer, "error", err)
			c.abort()
			return
		case n == 0:
			if c.resp != nil {
				// Half-closed after sending its request: the response still
				// goes out in full and finish closes the connection
				c.peerDone = true
				return
			}
			c.close()
			return
		}

		c.lastActive = time.Now()
		c.consume(buf[:n])
	}
}

// consume feeds the parser until the request is dispatched. Anything that
// arrives afterwards is read and dropped.
func (c *conn) consume(data []byte) {
	switch c.parser.State() {
	case request.StateAwaitingRequestLine, request.StateAwaitingHeaders:
	default:
		return
	}

	state, err := c.parser.Feed(data)
	if err != nil {
		c.srv.logger.Info("bad request", "fd", c.fd, "peer", c.peer, "error", err)
		c.respond(response.Error(response.StatusBadRequest))
		return
	}
	if state == request.StateDispatched {
		c.dispatch(c.parser.Request())
	}
}

func (c *conn) dispatch(req *request.Request) {
	// Panics stay scoped to this connection
	defer func() {
		if err := recover(); err != nil {
			c.srv.logger.Error("panic recovered",
				"error", err,
				"stack", string(debug.Stack()),
				"path", sanitizeValue(req.Path),
			)
			c.abort()
		}
	}()

	if !req.IsGET() {
		c.srv.logger.Info("method not allowed", "fd", c.fd, "method", sanitizeValue(req.Method))
		c.respond(response.Error(response.StatusMethodNotAllowed))
		return
	}

	resp, err := c.srv.responder.Serve(req)
	if err != nil {
		// The target changed after it was resolved; nothing has been sent
		c.srv.logger.Error("serve failed", "fd", c.fd, "path", sanitizeValue(req.Path), "error", err)
		c.abort()
		return
	}

	c.srv.logger.Info("request",
		"method", sanitizeValue(req.Method),
		"path", sanitizeValue(req.Path),
		"status", resp.Status.String(),
		"peer", c.peer,
	)
	c.respond(resp)
}

// respond queues the response head and starts writing.
func (c *conn) respond(resp *response.Response) {
	c.resp = resp
	c.out = resp.Head()
	c.buf = GetBuffer(mediumBufferSize)
	c.started = time.Now()
	c.onWritable()
}

// onWritable writes until the socket would block or the response is
// complete. A blocked write resumes on the next write-readiness edge.
func (c *conn) onWritable() {
	if c.resp == nil || c.closed {
		return
	}

	for {
		if len(c.out) == 0 {
			if c.bodyDone {
				c.finish()
				return
			}

			n, err := c.resp.Body.Read(c.buf)
			c.out = c.buf[:n]
			if err == io.EOF {
				c.bodyDone = true
			} else if err != nil {
				// Short file or unreadable directory: the declared length
				// can no longer be honored
				c.srv.logger.Error("response body failed", "fd", c.fd, "sent", c.sent, "error", err)
				c.abort()
				return
			}
			continue
		}

		n, err := unix.Write(c.fd, c.out)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			c.srv.logger.Error("write failed", "fd", c.fd, "peer", c.peer, "error", err)
			c.abort()
			return
		}

		c.out = c.out[n:]
		c.sent += int64(n)
		c.srv.metrics.BytesSent.Add(int64(n))
		c.lastActive = time.Now()
	}
}

// finish records a fully sent response and closes; connections are never reused.
func (c *conn) finish() {
	status := c.resp.Status
	c.close()
	c.srv.metrics.RecordRequest(status, time.Since(c.started))
}

func (c *conn) abort() {
	c.srv.metrics.Aborted.Add(1)
	c.close()
}

// close deregisters and closes the descriptor, then drops every resource
// the connection held. Safe to call more than once.
func (c *conn) close() {
	if c.closed {
		return
	}
	c.closed = true
	c.parser.Close()

	if err := c.srv.poller.Del(c.fd); err != nil {
		c.srv.logger.Error("deregister failed", "fd", c.fd, "error", err)
	}
	if err := unix.Close(c.fd); err != nil {
		c.srv.logger.Error("close failed", "fd", c.fd, "error", err)
	}
	delete(c.srv.conns, c.fd)
	c.srv.resumeAccept()

	if c.resp != nil {
		c.resp.Close()
	}
	if c.buf != nil {
		PutBuffer(c.buf)
		c.buf = nil
	}
	c.out = nil

	c.srv.metrics.ActiveConnections.Add(-1)
	c.srv.logger.Debug("connection closed", "fd", c.fd, "peer", c.peer, "sent", c.sent)
}
