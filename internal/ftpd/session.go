package ftpd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/duskvale/xftpd/internal/proto"
	"github.com/duskvale/xftpd/internal/ratelimit"
	"github.com/duskvale/xftpd/internal/vpath"
	"github.com/duskvale/xftpd/internal/xchacha"
)

// session is one client's FTP control-channel state machine. Only its
// worker goroutine (serve) mutates non-atomic fields; the reader
// goroutine started by startCommandReader only touches conn/reader
// under mu, and only between handoffs signalled by cmdReqChan.
type session struct {
	server *Server
	slot   *sessionSlot

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	id       string
	remoteIP string

	userOK        bool
	loggedIn      bool
	user          string
	authAttempts  int
	renameFrom    string
	fs            ClientContext
	resolver      *vpath.Resolver
	cwd           string
	restartOffset int64
	transferType  string

	busy           bool
	quit           bool
	transferCtx    context.Context
	transferCancel context.CancelFunc
	transferWG     sync.WaitGroup

	cmdReqChan chan struct{}

	dataConn     net.Conn
	pasvListener net.Listener
	activeIP     string
	activePort   int
	limiter      *ratelimit.Limiter

	cryptoActive   bool
	txCipher       *xchacha.Cipher
	rxCipher       *xchacha.Cipher
	handshakeNonce [xchacha.NonceSize]byte
	transferSeq    uint32
}

// command is one line read off the control channel by the reader goroutine.
type command struct {
	line string
	err  error
}

func newSession(server *Server, slot *sessionSlot, conn net.Conn) *session {
	remoteIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		remoteIP = conn.RemoteAddr().String()
	}
	id := newSessionID()
	slot.id = id
	return &session{
		server:       server,
		slot:         slot,
		conn:         conn,
		reader:       bufio.NewReader(newTelnetReader(conn)),
		writer:       bufio.NewWriter(conn),
		id:           id,
		remoteIP:     remoteIP,
		transferType: "I",
		cmdReqChan:   make(chan struct{}),
		limiter:      ratelimit.New(server.bandwidthPerSession),
	}
}

// serve runs the session until the client disconnects or QUITs. A
// dedicated reader goroutine feeds commands over cmdChan and reads the
// next line only after this worker has finished the current command
// (the cmdReqChan handoff); every handler, transfers included, runs
// synchronously on this goroutine.
func (s *session) serve() {
	defer s.close()

	s.sendWelcome()
	s.server.logger.Info("session_started", "session_id", s.id, "remote_ip", s.remoteIP)

	done := make(chan struct{})
	defer close(done)

	cmdChan := s.startCommandReader(done)

	for {
		cmd, ok := <-cmdChan
		if !ok {
			return
		}
		if cmd.err != nil {
			if cmd.err != io.EOF {
				s.server.logger.Warn("read error", "session_id", s.id, "error", cmd.err)
			}
			if cmd.err == proto.ErrProtocol {
				s.reply(500, "Command line too long.")
			}
			return
		}

		s.handleCommand(cmd.line)

		select {
		case s.cmdReqChan <- struct{}{}:
		case <-time.After(time.Second):
		}

		if s.quit || s.shouldTerminate() {
			return
		}
	}
}

// shouldTerminate reports whether the session hit the auth-attempts
// lockout threshold and must be disconnected.
func (s *session) shouldTerminate() bool {
	return s.authAttempts >= s.server.maxAuthAttempts && !s.loggedIn
}

func (s *session) sendWelcome() {
	msg := s.server.welcomeMessage
	if strings.HasPrefix(msg, "220 ") {
		s.rawReply(msg)
	} else if strings.HasPrefix(msg, "220") {
		s.rawReply("220 " + strings.TrimSpace(msg[3:]))
	} else {
		s.reply(220, msg)
	}
}

func (s *session) rawReply(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.writer, "%s\r\n", line)
	s.writer.Flush()
}

func (s *session) startCommandReader(done chan struct{}) chan command {
	cmdChan := make(chan command)
	go func() {
		defer close(cmdChan)
		for {
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()

			if s.server.sessionTimeout > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(s.server.sessionTimeout))
			}

			line, err := s.readCommand()

			select {
			case cmdChan <- command{line, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}

			select {
			case <-s.cmdReqChan:
			case <-done:
				return
			}
		}
	}()
	return cmdChan
}

// readCommand reads one CRLF-delimited line of at most
// DefaultCmdBuffer bytes including its terminating newline; a longer
// line yields proto.ErrProtocol.
func (s *session) readCommand() (string, error) {
	const maxLine = DefaultCmdBuffer
	var line []byte
	for {
		s.mu.Lock()
		r := s.reader
		s.mu.Unlock()

		b, err := r.ReadByte()
		if err != nil {
			return string(line), err
		}
		if len(line) >= maxLine {
			return "", proto.ErrProtocol
		}
		if b == '\n' {
			return strings.TrimSuffix(string(line), "\r"), nil
		}
		line = append(line, b)
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.transferCancel != nil {
		s.transferCancel()
	}
	s.mu.Unlock()

	if s.fs != nil {
		s.fs.Close()
	}
	if s.pasvListener != nil {
		s.pasvListener.Close()
	}
	if s.dataConn != nil {
		s.dataConn.Close()
	}
	s.conn.Close()

	s.transferWG.Wait()

	s.server.logger.Debug("session_closed", "session_id", s.id, "user", s.user)
}

// handleCommand parses and dispatches a single command line.
func (s *session) handleCommand(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	parsed, err := proto.Parse(line)
	if err != nil {
		s.reply(500, "Command line too long.")
		return
	}

	logArg := parsed.Arg
	if parsed.Cmd == "PASS" {
		logArg = "***"
	}
	s.server.logger.Debug("command_received", "session_id", s.id, "cmd", parsed.Cmd, "arg", logArg)

	// RNFR must immediately precede RNTO; any other command in between
	// clears the staged rename.
	if parsed.Cmd != "RNFR" && parsed.Cmd != "RNTO" {
		s.renameFrom = ""
	}

	s.mu.Lock()
	busy := s.busy
	s.mu.Unlock()
	if busy && parsed.Cmd != "ABOR" && parsed.Cmd != "STAT" {
		s.reply(503, "Transfer in progress, please ABOR or wait.")
		return
	}

	policy, known := proto.Lookup(parsed.Cmd)
	if !known {
		handler, ok := commandHandlers[parsed.Cmd]
		if !ok {
			s.reply(500, "Unknown command.")
			return
		}
		handler(s, parsed.Arg)
		return
	}
	if !proto.ValidateArgs(policy, parsed.Arg) {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	start := time.Now()
	handler, ok := commandHandlers[parsed.Cmd]
	if !ok {
		s.reply(502, "Command not implemented.")
		return
	}
	handler(s, parsed.Arg)
	if s.server.metrics != nil {
		s.server.metrics.RecordCommand(parsed.Cmd, true, time.Since(start))
	}
}

// commandHandlers maps command names to handler functions. USER/PASS/
// QUIT/NOOP/AUTH are dispatched through here like every other
// command; there is no special-cased switch in handleCommand.
var commandHandlers = map[string]func(*session, string){
	"USER": (*session).handleUSER,
	"PASS": (*session).handlePASS,
	"QUIT": (*session).handleQUIT,
	"NOOP": func(s *session, _ string) { s.reply(200, "OK.") },

	"CWD":  (*session).handleCWD,
	"CDUP": func(s *session, _ string) { s.handleCWD("..") },
	"PWD":  func(s *session, _ string) { s.handlePWD() },

	"LIST": (*session).handleLIST,
	"NLST": (*session).handleNLST,
	"MLSD": (*session).handleMLSD,
	"MLST": (*session).handleMLST,

	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,
	"APPE": (*session).handleAPPE,
	"REST": (*session).handleREST,

	"DELE": (*session).handleDELE,
	"RMD":  (*session).handleRMD,
	"MKD":  (*session).handleMKD,
	"RNFR": (*session).handleRNFR,
	"RNTO": (*session).handleRNTO,

	"PORT": (*session).handlePORT,
	"PASV": func(s *session, _ string) { s.handlePASV() },

	"SIZE": (*session).handleSIZE,
	"MDTM": (*session).handleMDTM,
	"STAT": (*session).handleSTAT,
	"SYST": func(s *session, _ string) { s.handleSYST() },
	"FEAT": func(s *session, _ string) { s.handleFEAT() },
	"HELP": (*session).handleHELP,

	"TYPE": (*session).handleTYPE,
	"MODE": (*session).handleMODE,
	"STRU": (*session).handleSTRU,

	"AUTH": (*session).handleAUTH,

	"SITE": (*session).handleSITE,
	"HASH": (*session).handleHASH,
	"MFMT": (*session).handleMFMT,

	"ABOR": func(s *session, _ string) { s.handleABOR() },
}

func (s *session) handleQUIT(_ string) {
	s.reply(221, "Service closing control connection.")
	s.quit = true
}

func (s *session) handleABOR() {
	s.mu.Lock()
	busy := s.busy
	if busy {
		if s.dataConn != nil {
			s.dataConn.Close()
		}
		if s.transferCancel != nil {
			s.transferCancel()
		}
	}
	s.mu.Unlock()
	if !busy {
		s.reply(226, "ABOR command successful; no transfer in progress.")
		return
	}
	s.reply(226, "ABOR command successful; transfer aborted.")
}

// reply sends a single-line response, applying the session cipher
// when AUTH XCRYPT has completed.
func (s *session) reply(code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = proto.WriteReply(s.writer, code, message)
	s.writer.Flush()
}

// replyErr maps a ClientContext/vpath error to its FTP reply code
// through the single chokepoint in errors.go.
func (s *session) replyErr(err error) {
	code, msg := replyCode(err)
	s.reply(code, msg)
}
