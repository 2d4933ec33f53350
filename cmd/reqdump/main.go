//go:build linux

// Command reqdump answers every request with the request line as the
// server's parser sees it. It runs one goroutine per connection on the
// socket wrapper's blocking server and shares nothing with the reactor.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	swnet "github.com/Brownie44l1/socket-wrapper"

	"github.com/Brownie44l1/epoll-web/internal/request"
	"github.com/Brownie44l1/epoll-web/internal/response"
)

const readTimeout = 10 * time.Second

func main() {
	port := flag.Int("port", 42069, "Port to listen on")
	maxConns := flag.Int("max-conns", 0, "Maximum concurrent connections (0 = unlimited)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := swnet.InfoLevel
	if *debug {
		logLevel = swnet.DebugLevel
	}
	logger := swnet.NewSimpleLogger(logLevel)

	cfg := swnet.DefaultConfig().
		WithPort(*port).
		WithMaxConns(*maxConns).
		WithLogger(logger)

	listener, err := swnet.Listen(cfg)
	if err != nil {
		logger.Error("failed to create listener", "error", err)
		os.Exit(1)
	}

	srv := swnet.NewServer(listener, func(conn swnet.Conn) {
		handleConnection(conn, logger)
	}, *maxConns)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		if err := srv.Shutdown(5 * time.Second); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "port", *port)
	if err := srv.Serve(); err != nil && !errors.Is(err, swnet.ErrServerClosed) {
		logger.Error("serve failed", "error", err)
		os.Exit(1)
	}
}

func handleConnection(conn swnet.Conn, logger swnet.Logger) {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		logger.Error("set deadline failed", "error", err)
		return
	}

	req, err := readRequest(conn)
	w := response.NewWriter(conn)
	if err != nil {
		logger.Info("bad request", "remote", conn.RemoteAddr(), "error", err)
		w.TextResponse(response.StatusBadRequest, err.Error()+"\n")
		return
	}

	logger.Info("request", "remote", conn.RemoteAddr(), "method", req.Method, "path", req.Path)
	w.TextResponse(response.StatusOK, dump(req))
}

// readRequest feeds the parser whatever each read returns until the header
// block is complete.
func readRequest(conn swnet.Conn) (*request.Request, error) {
	p := request.NewParser()
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			state, perr := p.Feed(buf[:n])
			if perr != nil {
				return nil, perr
			}
			if state == request.StateDispatched {
				return p.Request(), nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
	}
}

func dump(req *request.Request) string {
	return fmt.Sprintf("Method: %s\nRaw path: %s\nPath: %s\nProtocol: %s\n",
		req.Method, req.RawPath, req.Path, req.Proto)
}
