//go:build linux

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Brownie44l1/epoll-web/internal/server"
)

func main() {
	debug := flag.Bool("debug", false, "Log every connection")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-debug] <port> <document-root>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	// Every path the server resolves is relative to the document root
	if err := os.Chdir(flag.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "chdir %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	config := server.DefaultConfig()
	config.Root = "."
	config.Socket.Port = port
	if *debug {
		config.Logger = server.NewDebugLogger()
	}

	srv, err := server.New(config)
	if err != nil {
		config.Logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		srv.Close()
	}()

	err = srv.Run()
	if err != server.ErrServerClosed {
		config.Logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	stats := srv.Stats()
	fmt.Printf("Final stats:\n")
	fmt.Printf("   Connections: %d accepted, %d rejected\n", stats.ConnectionsAccepted, stats.ConnectionsRejected)
	fmt.Printf("   Requests: %d (%d client errors, %d aborted)\n", stats.RequestsTotal, stats.Errors4xx, stats.Aborted)
	fmt.Printf("   Bytes sent: %d\n", stats.BytesSent)
	fmt.Printf("   Average latency: %s\n", stats.AverageLatency)
}
