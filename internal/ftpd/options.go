package ftpd

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Default configuration constants, named after the constants a
// compiled build of this service would expose.
const (
	DefaultMaxSessions     = 32
	DefaultListenBacklog   = 8
	DefaultCmdBuffer       = 512
	DefaultPathMax         = 4096
	DefaultBufferSize      = 64 * 1024
	DefaultMaxAuthAttempts = 3
	DefaultAuthDelay       = 2 * time.Second
	DefaultSessionTimeout  = 300 * time.Second
	DefaultSockBuf         = 1024 * 1024
	DefaultKeepIdle        = 60 * time.Second
	DefaultKeepInterval    = 10 * time.Second
	DefaultKeepCount       = 3
	DefaultDataTimeout     = 120 * time.Second
	DefaultLinger          = 10 * time.Second
	DefaultConnectTimeout  = 15 * time.Second
)

// Option is a functional option for configuring a Server.
type Option func(*Server) error

// WithDriver sets the backend driver for authentication and file
// operations. Required; NewServer fails without one.
func WithDriver(driver Driver) Option {
	return func(s *Server) error {
		if s.driver != nil {
			return fmt.Errorf("driver already set")
		}
		s.driver = driver
		return nil
	}
}

// WithLogger sets a custom structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithMaxSessions bounds the fixed-capacity session pool. Once full,
// new control connections are closed immediately with a 421 reply,
// per the session-pool policy (no queueing).
func WithMaxSessions(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("ftpd: max sessions must be positive")
		}
		s.maxSessions = n
		return nil
	}
}

// WithListenBacklog records a TCP listen backlog on the Server.
// ListenAndServe does not pass it to the listener, which uses the
// operating system's default backlog.
func WithListenBacklog(n int) Option {
	return func(s *Server) error {
		s.listenBacklog = n
		return nil
	}
}

// WithMaxAuthAttempts sets the threshold at which a session is
// disconnected for repeated USER/PASS failures.
func WithMaxAuthAttempts(n int) Option {
	return func(s *Server) error {
		s.maxAuthAttempts = n
		return nil
	}
}

// WithAuthDelay sets the throttling sleep applied after each failed
// authentication attempt.
func WithAuthDelay(d time.Duration) Option {
	return func(s *Server) error {
		s.authDelay = d
		return nil
	}
}

// WithSessionTimeout sets the idle read timeout on the control
// channel. A session that sends nothing for this long is closed.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.sessionTimeout = d
		return nil
	}
}

// WithDataTimeout sets the recv/send timeout applied to data
// connections once opened.
func WithDataTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.dataTimeout = d
		return nil
	}
}

// WithWelcomeMessage sets the banner sent on connect. If it does not
// start with "220", the code is prepended.
func WithWelcomeMessage(message string) Option {
	return func(s *Server) error {
		s.welcomeMessage = message
		return nil
	}
}

// WithBandwidthLimit sets bandwidth caps in bytes/sec (0 = unlimited).
// global applies across all sessions; perSession applies individually;
// the more restrictive of the two wins on any given transfer.
func WithBandwidthLimit(global, perSession int64) Option {
	return func(s *Server) error {
		s.bandwidthGlobal = global
		s.bandwidthPerSession = perSession
		return nil
	}
}

// WithTransferLog sets a writer for xferlog-format transfer logging.
func WithTransferLog(w io.Writer) Option {
	return func(s *Server) error {
		s.transferLog = w
		return nil
	}
}

// WithMetricsCollector attaches an optional metrics sink (e.g. the
// PrometheusCollector in this package).
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metrics = collector
		return nil
	}
}

// WithPSK enables the AUTH XCRYPT extension, keyed by a 32-byte
// pre-shared key. Without this option, AUTH XCRYPT is advertised
// nowhere and replies 502 if attempted — there is no compiled-in
// default PSK.
func WithPSK(psk [32]byte) Option {
	return func(s *Server) error {
		if psk == ([32]byte{}) {
			return fmt.Errorf("ftpd: PSK must not be all-zero")
		}
		s.psk = &psk
		return nil
	}
}

// WithDirMessage enables checking for a .message file on CWD and
// relaying its contents as part of the 250 reply.
func WithDirMessage(enabled bool) Option {
	return func(s *Server) error {
		s.dirMessage = enabled
		return nil
	}
}

// WithMaxConnectionsPerIP caps concurrent control connections from a
// single remote address (0 = unlimited). This is a soft cap enforced
// before a session pool slot is even requested, layered above the
// pool's hard MaxSessions ceiling so an operator can keep the pool
// small while still allowing many distinct clients.
func WithMaxConnectionsPerIP(n int) Option {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("ftpd: max connections per IP must be >= 0")
		}
		s.maxConnsPerIP = n
		return nil
	}
}
