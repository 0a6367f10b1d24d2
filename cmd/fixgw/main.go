// File: cmd/fixgw/main.go
//
// Entry point for the FIX gateway. Flag parsing, signal handling, and the
// periodic metrics ticker follow examples/stest/server/main.go; port
// validation/fallback-to-8080 follows main.cpp exactly, including its
// choice to substitute the default rather than exit on a bad value.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/momentics/fixgw/server"
)

const defaultPort = 8080

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [port]\n", os.Args[0])
	}
	flag.Parse()

	port := resolvePort(flag.Args())

	srv, err := server.New(server.WithListenAddr(fmt.Sprintf(":%d", port)))
	if err != nil {
		log.Fatalf("fixgw: failed to initialize server: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("fixgw: failed to start server: %v", err)
	}
	log.Printf("fixgw: listening on :%d", port)

	shutdownCh := make(chan struct{})
	go runMetricsTicker(srv, shutdownCh)

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh
	log.Println("fixgw: shutdown signal received")
	close(shutdownCh)

	if err := srv.Shutdown(); err != nil {
		log.Printf("fixgw: shutdown error: %v", err)
	}
	log.Println("fixgw: shutdown complete")
}

// resolvePort mirrors main.cpp: a missing or out-of-range positional
// argument is not a fatal error, it just falls back to defaultPort.
func resolvePort(args []string) int {
	if len(args) != 1 {
		return defaultPort
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		log.Printf("fixgw: invalid port %q, using default %d", args[0], defaultPort)
		return defaultPort
	}
	return port
}

// runMetricsTicker periodically logs a snapshot of the Control registry,
// the way the teacher's example servers log a metrics ticker to stdout.
// This is a log line, not a served admin endpoint.
func runMetricsTicker(srv *server.Server, shutdownCh <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-shutdownCh:
			return
		case <-ticker.C:
			log.Printf("fixgw: stats=%v", srv.Control().Stats())
		}
	}
}
