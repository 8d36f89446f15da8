// Package ftpd implements the connection-oriented FTP engine: the
// listener/accept dispatcher, the per-session command state machine,
// the active/passive data-connection manager, the RETR/STOR/APPE
// transfer pipelines with REST-based resume, the server-rooted path
// resolver, the fixed session pool, and the optional ChaCha20 session
// cipher ("AUTH XCRYPT").
package ftpd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duskvale/xftpd/internal/bufpool"
	"github.com/duskvale/xftpd/internal/ratelimit"
)

// ErrServerClosed is returned by Serve/ListenAndServe after Shutdown or Close.
var ErrServerClosed = errors.New("ftpd: server closed")

// Server is the FTP server supervisor: it owns the listener, the
// fixed-capacity session pool, and server-wide configuration.
type Server struct {
	driver Driver
	logger *slog.Logger

	maxSessions     int
	listenBacklog   int
	maxAuthAttempts int
	authDelay       time.Duration
	sessionTimeout  time.Duration
	dataTimeout     time.Duration
	welcomeMessage  string
	dirMessage      bool
	maxConnsPerIP   int

	bandwidthGlobal     int64
	bandwidthPerSession int64
	globalLimiter       *ratelimit.Limiter

	transferLog io.Writer
	metrics     MetricsCollector

	psk *[32]byte

	pool    *sessionPool
	xferBuf *bufpool.Pool

	mu         sync.Mutex
	listener   net.Listener
	inShutdown atomic.Bool

	connsByIPMu sync.Mutex
	connsByIP   map[string]int
}

// NewServer creates a Server with the given options. WithDriver is
// required.
func NewServer(options ...Option) (*Server, error) {
	s := &Server{
		logger:          slog.Default(),
		maxSessions:     DefaultMaxSessions,
		listenBacklog:   DefaultListenBacklog,
		maxAuthAttempts: DefaultMaxAuthAttempts,
		authDelay:       DefaultAuthDelay,
		sessionTimeout:  DefaultSessionTimeout,
		dataTimeout:     DefaultDataTimeout,
		welcomeMessage:  "220 FTP Server Ready",
		connsByIP:       make(map[string]int),
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.driver == nil {
		return nil, fmt.Errorf("ftpd: driver is required (use WithDriver)")
	}
	if s.bandwidthGlobal > 0 {
		s.globalLimiter = ratelimit.New(s.bandwidthGlobal)
	}
	s.pool = newSessionPool(s.maxSessions)

	bufSlots := s.maxSessions
	if bufSlots > bufpool.MaxSlots {
		bufSlots = bufpool.MaxSlots
	}
	xferBuf, err := bufpool.New(bufSlots, DefaultBufferSize)
	if err != nil {
		return nil, fmt.Errorf("ftpd: init transfer buffer pool: %w", err)
	}
	s.xferBuf = xferBuf

	return s, nil
}

// ListenAndServe listens on addr and serves until an error occurs or
// Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("ftpd: listen on %s: %w", addr, err)
	}
	s.logger.Info("listening", "addr", addr)
	return s.Serve(ln)
}

// Serve accepts connections on l until it is closed or Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown stops accepting new connections and waits for active
// sessions to finish, or for ctx to expire (at which point remaining
// sessions are forcibly closed).
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s.pool.active() > 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		s.pool.closeAll()
		if err != nil {
			return err
		}
		return ctx.Err()
	}
}

// handleConnection allocates a pool slot for conn and runs its session.
func (s *Server) handleConnection(conn net.Conn) {
	remoteIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		remoteIP = conn.RemoteAddr().String()
	}

	if !s.acquireIPSlot(remoteIP) {
		s.logger.Warn("connection_rejected", "reason", "per_ip_limit", "remote_ip", remoteIP)
		if s.metrics != nil {
			s.metrics.RecordConnection(false, "per_ip_limit")
		}
		fmt.Fprintf(conn, "421 Too many connections from your address, sorry.\r\n")
		conn.Close()
		return
	}
	defer s.releaseIPSlot(remoteIP)

	slot, ok := s.pool.acquire(conn)
	if !ok {
		s.logger.Warn("connection_rejected", "reason", "pool_exhausted")
		if s.metrics != nil {
			s.metrics.RecordConnection(false, "pool_exhausted")
		}
		fmt.Fprintf(conn, "421 Too many users, sorry.\r\n")
		conn.Close()
		return
	}
	defer s.pool.release(slot)

	if s.metrics != nil {
		s.metrics.RecordConnection(true, "accepted")
	}

	sess := newSession(s, slot, conn)
	sess.serve()
}

// acquireIPSlot enforces the soft per-IP connection cap set by
// WithMaxConnectionsPerIP. A zero cap means unlimited.
func (s *Server) acquireIPSlot(ip string) bool {
	if s.maxConnsPerIP <= 0 {
		return true
	}
	s.connsByIPMu.Lock()
	defer s.connsByIPMu.Unlock()
	if s.connsByIP[ip] >= s.maxConnsPerIP {
		return false
	}
	s.connsByIP[ip]++
	return true
}

func (s *Server) releaseIPSlot(ip string) {
	if s.maxConnsPerIP <= 0 {
		return
	}
	s.connsByIPMu.Lock()
	defer s.connsByIPMu.Unlock()
	if n := s.connsByIP[ip]; n <= 1 {
		delete(s.connsByIP, ip)
	} else {
		s.connsByIP[ip] = n - 1
	}
}
