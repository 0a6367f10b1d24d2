//go:build linux
// +build linux

// File: server/server.go
//
// Server is the Acceptor/ServerState facade: a single listening-socket
// accept loop (grounded in tcpserver.h's TcpServer::run, generalized per
// SPEC_FULL.md to fully drain accept(2) each epoll turn rather than
// accepting at most one connection per wakeup) round-robining accepted fds
// to a fixed pool of Workers over pipes, wrapped in the teacher's
// Config/DefaultConfig/ServerOption/Start/Shutdown facade lifecycle shape
// (facade/hioload.go, server/types.go, server/options.go).
package server

import (
	"encoding/binary"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/fixgw/adapters"
	"github.com/momentics/fixgw/api"
	"github.com/momentics/fixgw/conn"
	"github.com/momentics/fixgw/handler"
	"github.com/momentics/fixgw/metrics"
	"github.com/momentics/fixgw/worker"
)

// Server owns the listening socket, its own epoll set, and the fixed pool
// of Workers it round-robins accepted connections into.
type Server struct {
	cfg     *Config
	control api.Control

	listenFd   int
	acceptEpfd int
	workers    []*worker.Worker
	roundRobin atomic.Uint64

	shutdown *atomic.Bool
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New builds a Server from DefaultConfig with opts applied: it allocates
// the listening socket, the acceptor's epoll set, and every Worker's epoll
// set and handoff pipe, but does not start accepting connections until
// Start is called.
func New(opts ...ServerOption) (*Server, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	ctl := adapters.NewControlAdapter()
	if err := ctl.SetConfig(map[string]any{
		"listen_addr":   cfg.ListenAddr,
		"ring_capacity": cfg.RingCapacity,
		"workers":       cfg.Workers,
		"cpu_affinity":  cfg.CPUAffinity,
	}); err != nil {
		return nil, fmt.Errorf("server: set config snapshot: %w", err)
	}

	counters := metrics.New()
	counters.Register(ctl)

	h := handler.NewDefaultHandler(counters)
	bufPool := conn.NewBufferPool(cfg.RingCapacity)
	shutdownFlag := &atomic.Bool{}

	workers := make([]*worker.Worker, cfg.Workers)
	for i := range workers {
		w, err := worker.New(i, bufPool, h, counters, cfg.CPUAffinity, shutdownFlag)
		if err != nil {
			// A partially constructed Server is never started; the process
			// exits on this error (see cmd/fixgw), so the OS reclaims the
			// fds already-created workers opened.
			return nil, fmt.Errorf("server: init worker %d: %w", i, err)
		}
		workers[i] = w
	}

	ctl.RegisterDebugProbe("workers", func() any { return len(workers) })
	ctl.RegisterDebugProbe("worker.connections", func() any {
		counts := make([]int, len(workers))
		for i, w := range workers {
			counts[i] = w.ConnectionCount()
		}
		return counts
	})
	ctl.RegisterDebugProbe("platform.cpu_count", func() any { return runtime.NumCPU() })

	listenFd, err := listenTCP(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	acceptEpfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(listenFd)
		return nil, fmt.Errorf("server: epoll_create1: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(listenFd)}
	if err := unix.EpollCtl(acceptEpfd, unix.EPOLL_CTL_ADD, listenFd, &ev); err != nil {
		unix.Close(listenFd)
		unix.Close(acceptEpfd)
		return nil, fmt.Errorf("server: epoll_ctl add listener: %w", err)
	}

	return &Server{
		cfg:        cfg,
		control:    ctl,
		listenFd:   listenFd,
		acceptEpfd: acceptEpfd,
		workers:    workers,
		shutdown:   shutdownFlag,
	}, nil
}

// Control returns the ambient introspection interface, for cmd/fixgw's
// periodic Stats() logging.
func (s *Server) Control() api.Control { return s.control }

// Port returns the TCP port the listening socket is actually bound to,
// resolving a ":0" ListenAddr to its kernel-assigned value. Useful for
// tests that need an ephemeral port.
func (s *Server) Port() (int, error) {
	sa, err := unix.Getsockname(s.listenFd)
	if err != nil {
		return 0, fmt.Errorf("server: getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("server: unexpected sockaddr type %T", sa)
	}
	return in4.Port, nil
}

// Start launches every worker's run loop and the acceptor loop, each in its
// own goroutine, and returns immediately. Calling Start twice is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run()
		}()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	s.started = true
	return nil
}

// Shutdown sets the shared shutdown flag, waits for the acceptor and every
// worker to drain and exit, up to cfg.ShutdownTimeout, then closes the
// listening socket and acceptor epoll set. Calling Shutdown on a
// non-started Server is a no-op.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.shutdown.Store(true)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownTimeout):
		log.Printf("server: shutdown timed out after %s, closing sockets anyway", s.cfg.ShutdownTimeout)
	}

	unix.Close(s.listenFd)
	unix.Close(s.acceptEpfd)
	return nil
}

// acceptLoop waits on the listener's own edge-triggered epoll set so the
// shutdown flag is observed even with no incoming traffic.
func (s *Server) acceptLoop() {
	events := make([]unix.EpollEvent, 1)
	for !s.shutdown.Load() {
		n, err := unix.EpollWait(s.acceptEpfd, events, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Printf("server: epoll_wait on listener: %v", err)
			continue
		}
		if n == 0 {
			continue
		}
		s.acceptAll()
	}
}

// acceptAll drains accept4 until it would block, per the edge-triggered
// discipline the original single-shot accept() did not observe.
func (s *Server) acceptAll() {
	for {
		fd, _, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			log.Printf("server: accept: %v", err)
			return
		}
		idx := int(s.roundRobin.Add(1) % uint64(len(s.workers)))
		s.dispatch(fd, idx)
	}
}

// dispatch hands fd to worker idx over its pipe as a single 4-byte write,
// which the kernel guarantees is atomic for a pipe. A short write or error
// drops the connection rather than retrying, matching tcpserver.h.
func (s *Server) dispatch(fd, idx int) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], uint32(int32(fd)))
	n, err := unix.Write(s.workers[idx].PipeWriteFd(), raw[:])
	if err != nil || n != 4 {
		log.Printf("server: dispatch fd=%d to worker %d failed: %v", fd, idx, err)
		unix.Close(fd)
	}
}

// listenTCP creates a non-blocking, listening IPv4 socket bound to addr
// (host part ignored; only the port after the final ':' is used, matching
// the source's single-port bind(INADDR_ANY)).
func listenTCP(addr string) (int, error) {
	port, err := parsePort(addr)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("server: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("server: setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("server: bind :%d: %w", port, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("server: listen: %w", err)
	}
	return fd, nil
}

func parsePort(addr string) (int, error) {
	idx := strings.LastIndexByte(addr, ':')
	if idx == -1 {
		return 0, fmt.Errorf("server: invalid listen address %q", addr)
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("server: invalid port in %q: %w", addr, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("server: port %d out of range", port)
	}
	return port, nil
}
