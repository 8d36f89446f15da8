package ftpd

import (
	"time"

	"github.com/duskvale/xftpd/internal/vpath"
)

// handleUSER validates the username itself, per spec.md §4.3.8: only
// the literal "anonymous" or "ftp" is accepted as user_ok; anything
// else counts as a failed attempt (delay + lockout bookkeeping) and
// replies 530, the same as a failed PASS would.
func (s *session) handleUSER(arg string) {
	if arg != "anonymous" && arg != "ftp" {
		s.userOK = false
		s.loggedIn = false
		s.fs = nil
		s.recordAuthFailure(arg)
		return
	}
	s.user = arg
	s.userOK = true
	s.loggedIn = false
	s.fs = nil
	s.reply(331, "User name okay, need password.")
}

// recordAuthFailure applies the shared USER/PASS failure bookkeeping:
// increment auth_attempts, sleep AUTH_DELAY, record the metric, and
// reply 530 (or the lockout variant once the threshold is hit).
func (s *session) recordAuthFailure(user string) {
	s.authAttempts++
	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(false, user)
	}
	s.server.logger.Warn("auth_failed", "session_id", s.id, "user", user, "attempt", s.authAttempts)
	if s.server.authDelay > 0 {
		time.Sleep(s.server.authDelay)
	}
	if s.authAttempts >= s.server.maxAuthAttempts {
		s.reply(530, "Login incorrect. Too many attempts, closing connection.")
		return
	}
	s.reply(530, "Login incorrect.")
}

// handlePASS completes authentication. Per the REDESIGN FLAG carried
// from spec.md §9, a USER/PASS failure at this step increments
// auth_attempts the same as a USER failure would, rather than only
// counting failures at USER.
func (s *session) handlePASS(arg string) {
	if !s.userOK {
		s.recordAuthFailure(s.user)
		return
	}

	fs, err := s.server.driver.Authenticate(s.user, arg)
	if err != nil {
		s.recordAuthFailure(s.user)
		return
	}

	resolver, err := vpath.NewResolver("/", DefaultPathMax)
	if err != nil {
		fs.Close()
		s.reply(451, "Unable to initialize session.")
		return
	}

	s.fs = fs
	s.resolver = resolver
	s.cwd = "/"
	s.loggedIn = true
	s.authAttempts = 0

	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(true, s.user)
	}
	s.server.logger.Info("auth_succeeded", "session_id", s.id, "user", s.user)
	s.reply(230, "Login successful.")
}
