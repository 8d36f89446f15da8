package ftpd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/duskvale/xftpd/internal/xchacha"
)

// handleRETR downloads a file, honoring a pending REST offset.
func (s *session) handleRETR(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	offset := s.restartOffset
	s.restartOffset = 0 // single-shot regardless of outcome

	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}

	info, err := s.fs.GetFileInfo(target)
	if err != nil {
		s.replyErr(err)
		return
	}
	if info.IsDir() {
		s.reply(550, "Not a regular file.")
		return
	}
	if offset > info.Size() {
		s.reply(550, "Invalid offset.")
		return
	}

	file, err := s.fs.OpenFile(target, os.O_RDONLY)
	if err != nil {
		s.replyErr(err)
		return
	}
	defer file.Close()

	if offset > 0 {
		if seeker, ok := file.(io.Seeker); ok {
			if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
				s.replyErr(err)
				return
			}
		} else {
			s.reply(550, "Resume not supported for this file.")
			return
		}
	}

	dc, err := s.connData()
	if err != nil {
		s.replyErr(err)
		return
	}
	defer dc.Close()

	if offset > 0 {
		s.reply(150, fmt.Sprintf("Opening data connection for RETR (restarting at %d).", offset))
	} else {
		s.reply(150, "Opening data connection for RETR.")
	}

	start := time.Now()
	n, err := s.transferCopy(dc.Conn, file, dc.tx)
	s.finishTransfer("RETR", target, n, start, err)
}

// handleSTOR uploads a file, truncating unless a REST offset is pending.
func (s *session) handleSTOR(arg string) {
	s.store(arg, false)
}

// handleAPPE uploads a file in append mode; a pending REST offset
// still takes precedence over pure append, per spec.md §8.
func (s *session) handleAPPE(arg string) {
	s.store(arg, true)
}

func (s *session) store(arg string, appendMode bool) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	offset := s.restartOffset
	s.restartOffset = 0

	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}

	flags := os.O_WRONLY | os.O_CREATE
	switch {
	case offset > 0:
		// seek-based resume, neither truncate nor append
	case appendMode:
		flags |= os.O_APPEND
	default:
		flags |= os.O_TRUNC
	}

	file, err := s.fs.OpenFile(target, flags)
	if err != nil {
		s.replyErr(err)
		return
	}
	defer file.Close()

	if offset > 0 {
		if seeker, ok := file.(io.Seeker); ok {
			if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
				s.replyErr(err)
				return
			}
		} else {
			s.reply(550, "Resume not supported for this file.")
			return
		}
	}

	dc, err := s.connData()
	if err != nil {
		s.replyErr(err)
		return
	}
	defer dc.Close()

	op := "STOR"
	if appendMode {
		op = "APPE"
	}
	s.reply(150, "Opening data connection for "+op+".")

	start := time.Now()
	n, err := s.transferCopy(file, dc.Conn, dc.rx)
	s.finishTransfer(op, target, n, start, err)
}

// transferCopy moves bytes from src to dst. When cipher is nil the
// channel is running in the clear and plain io.Copy is used, which
// lets net.TCPConn's ReaderFrom/WriteTo special-case *os.File via the
// runtime's sendfile path; a data connection wrapped in throttledConn
// for a bandwidth limit has no such fast path, so io.Copy falls back to
// a buffered copy there. When cipher is non-nil, bytes are XORed in
// bufpool-backed chunks instead, since a keystream-applying transform
// can't ride the kernel's zero-copy path.
func (s *session) transferCopy(dst io.Writer, src io.Reader, cipher *xchacha.Cipher) (int64, error) {
	if cipher == nil {
		return io.Copy(dst, src)
	}

	buf, idx, err := s.server.xferBuf.Acquire()
	if err != nil {
		return 0, &Error{Kind: KindOther, Message: "transfer buffers exhausted", Err: err}
	}
	defer s.server.xferBuf.Release(idx)

	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			cipher.XOR(buf[:n])
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func (s *session) finishTransfer(op, path string, n int64, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		s.server.logger.Warn("transfer_aborted", "session_id", s.id, "op", op, "path", path, "bytes", n, "error", err)
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}
	s.server.logger.Info("transfer_complete",
		"session_id", s.id, "user", s.user, "op", op, "path", path,
		"bytes", n, "duration_ms", duration.Milliseconds())

	if s.server.metrics != nil {
		s.server.metrics.RecordTransfer(op, n, duration)
	}
	if s.server.transferLog != nil {
		s.writeXferlog(op, path, n, duration)
	}

	s.reply(226, "Transfer complete.")
}

// writeXferlog appends one wu-ftpd-style xferlog line, grounded on the
// teacher's logTransfer.
func (s *session) writeXferlog(op, path string, n int64, duration time.Duration) {
	transferSecs := int64(duration.Seconds())
	if transferSecs == 0 {
		transferSecs = 1
	}
	tType := "b"
	if s.transferType == "A" {
		tType = "a"
	}
	direction := "o"
	if op == "STOR" || op == "APPE" {
		direction = "i"
	}
	accessMode := "r"
	if s.user == "anonymous" || s.user == "ftp" {
		accessMode = "a"
	}
	line := fmt.Sprintf("%s %d %s %d %s %s %s %s %s %s %s %s %s %s\n",
		time.Now().Format("Mon Jan 02 15:04:05 2006"),
		transferSecs, s.remoteIP, n, path, tType, "_", direction,
		accessMode, s.user, "ftp", "0", "*", "c")
	_, _ = s.server.transferLog.Write([]byte(line))
}

// handleREST stores the restart offset for the next RETR/STOR/APPE;
// it is single-shot (cleared by that transfer whether it succeeds or
// fails).
func (s *session) handleREST(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 0 {
		s.reply(501, "Invalid restart offset.")
		return
	}
	s.restartOffset = n
	s.reply(350, fmt.Sprintf("Restarting at %d. Send RETR or STOR to initiate transfer.", n))
}

// handleTYPE accepts ASCII and Binary; ASCII is treated identically to
// Binary (no line-ending conversion), per the explicit Non-goal.
func (s *session) handleTYPE(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	switch strings.ToUpper(strings.Fields(arg)[0]) {
	case "A":
		s.transferType = "A"
		s.reply(200, "Type set to A.")
	case "I":
		s.transferType = "I"
		s.reply(200, "Type set to I.")
	default:
		s.reply(504, "Type not supported.")
	}
}

// handleMODE only accepts Stream mode; Block/Compressed are an
// explicit Non-goal.
func (s *session) handleMODE(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	if strings.EqualFold(arg, "S") {
		s.reply(200, "Mode set to S.")
		return
	}
	s.reply(504, "Only Stream mode is supported.")
}

// handleSTRU only accepts File structure; Record/Page are an explicit
// Non-goal.
func (s *session) handleSTRU(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	if strings.EqualFold(arg, "F") {
		s.reply(200, "Structure set to F.")
		return
	}
	s.reply(504, "Only File structure is supported.")
}
