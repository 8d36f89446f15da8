package ftpd

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/duskvale/xftpd/internal/ratelimit"
	"github.com/duskvale/xftpd/internal/xchacha"
)

// dataChannel bundles an opened data connection with the pair of
// direction ciphers it should use, when AUTH XCRYPT is active. tx/rx
// are nil when the channel is running in the clear, which transfer
// handlers use to pick plain io.Copy (zero-copy unless the connection
// is wrapped in throttledConn) over the buffered bufpool+XOR path.
type dataChannel struct {
	net.Conn
	tx *xchacha.Cipher
	rx *xchacha.Cipher
}

// Writer returns an io.Writer suitable for small, ad hoc server->client
// writes (directory listings): the raw connection when the channel is
// in the clear, or a cipher-applying wrapper when AUTH XCRYPT is
// active. Bulk transfers use transferCopy instead, which pools its
// scratch buffers.
func (dc *dataChannel) Writer() io.Writer {
	if dc.tx == nil {
		return dc.Conn
	}
	return &cipherWriter{w: dc.Conn, c: dc.tx}
}

type cipherWriter struct {
	w io.Writer
	c *xchacha.Cipher
}

func (cw *cipherWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	cw.c.XOR(buf)
	return cw.w.Write(buf)
}

// handlePORT implements active-mode data-channel setup. Per
// spec.md §4.3.6: exactly six decimal bytes, and the composed IP must
// match the control-channel peer's IP (anti-bounce) or the command is
// rejected and data_mode stays NONE.
func (s *session) handlePORT(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}

	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		s.reply(501, "Illegal PORT command.")
		return
	}
	var nums [6]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			s.reply(501, "Illegal PORT command.")
			return
		}
		nums[i] = n
	}

	ipStr := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	ip := net.ParseIP(ipStr)
	if ip == nil {
		s.reply(501, "Illegal PORT command.")
		return
	}
	if !s.validateActiveIP(ip) {
		s.reply(501, "Illegal PORT command.")
		return
	}

	s.activeIP = ip.String()
	s.activePort = nums[4]*256 + nums[5]
	s.reply(200, "PORT command successful.")
}

// validateActiveIP guards against the classic FTP-bounce attack: the
// PORT target must be the same host as the control connection.
func (s *session) validateActiveIP(ip net.IP) bool {
	host, _, err := net.SplitHostPort(s.conn.RemoteAddr().String())
	if err != nil {
		host = s.conn.RemoteAddr().String()
	}
	remoteIP := net.ParseIP(host)
	if remoteIP == nil {
		return false
	}
	return ip.Equal(remoteIP)
}

// handlePASV opens a listener for server-initiated passive mode,
// advertising the control socket's own local IP (spec.md §4.3.6):
// "prefer the control-socket's local IP ... fall back to 0.0.0.0."
func (s *session) handlePASV() {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}

	if s.pasvListener != nil {
		s.pasvListener.Close()
		s.pasvListener = nil
	}

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		s.reply(425, "Can't open passive connection.")
		return
	}
	s.pasvListener = ln
	s.activeIP = ""

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	host, _, err := net.SplitHostPort(s.conn.LocalAddr().String())
	ipParts := []string{"0", "0", "0", "0"}
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				ipParts = strings.Split(v4.String(), ".")
			}
		}
	}

	p1, p2 := port/256, port%256
	s.reply(227, fmt.Sprintf("Entering Passive Mode (%s,%s,%s,%s,%d,%d).",
		ipParts[0], ipParts[1], ipParts[2], ipParts[3], p1, p2))
}

// connData opens the data connection for the pending transfer, in
// whichever mode (PORT/PASV) was last set up; PORT/PASV must precede
// RETR/STOR/APPE/LIST/NLST/MLSD per spec.md §8.
func (s *session) connData() (*dataChannel, error) {
	var (
		conn net.Conn
		err  error
	)
	switch {
	case s.pasvListener != nil:
		conn, err = s.connPassive()
	case s.activeIP != "":
		conn, err = s.connActive()
	default:
		return nil, &Error{Kind: KindNoDataConn, Message: "no data connection setup"}
	}
	if err != nil {
		return nil, &Error{Kind: KindNoDataConn, Message: "can't open data connection", Err: err}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetDeadline(time.Now().Add(s.server.dataTimeout))
	}
	return s.wrapDataConn(s.throttle(conn))
}

// throttle applies the global and per-session bandwidth limiters (if
// configured) to a freshly opened data connection. The more
// restrictive of the two ends up governing throughput, since both
// layers must admit a chunk before it is read or written.
func (s *session) throttle(conn net.Conn) net.Conn {
	if s.server.globalLimiter == nil && s.limiter == nil {
		return conn
	}
	r := io.Reader(conn)
	w := io.Writer(conn)
	if s.server.globalLimiter != nil {
		r = ratelimit.NewReader(r, s.server.globalLimiter)
		w = ratelimit.NewWriter(w, s.server.globalLimiter)
	}
	if s.limiter != nil {
		r = ratelimit.NewReader(r, s.limiter)
		w = ratelimit.NewWriter(w, s.limiter)
	}
	return &throttledConn{Conn: conn, r: r, w: w}
}

// throttledConn layers rate-limited Read/Write over an existing
// net.Conn while preserving its other methods (deadlines, addresses).
type throttledConn struct {
	net.Conn
	r io.Reader
	w io.Writer
}

func (t *throttledConn) Read(p []byte) (int, error)  { return t.r.Read(p) }
func (t *throttledConn) Write(p []byte) (int, error) { return t.w.Write(p) }

func (s *session) connPassive() (net.Conn, error) {
	if t, ok := s.pasvListener.(*net.TCPListener); ok {
		_ = t.SetDeadline(time.Now().Add(s.server.dataTimeout))
	}
	conn, err := s.pasvListener.Accept()
	s.pasvListener.Close()
	s.pasvListener = nil
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *session) connActive() (net.Conn, error) {
	addr := net.JoinHostPort(s.activeIP, strconv.Itoa(s.activePort))
	conn, err := net.DialTimeout("tcp", addr, s.server.dataTimeout)
	s.activeIP = ""
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// wrapDataConn derives the session cipher pair for a freshly opened
// data connection when AUTH XCRYPT is active, using a fresh
// per-connection key (see dataCiphers) rather than continuing the
// control channel's keystream. The returned dataChannel is unwrapped
// (no automatic XOR) so the transfer handlers can pick zero-copy
// io.Copy when ciphers are nil.
func (s *session) wrapDataConn(conn net.Conn) (*dataChannel, error) {
	if !s.cryptoActive {
		return &dataChannel{Conn: conn}, nil
	}
	tx, rx, err := s.dataCiphers()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &dataChannel{Conn: conn, tx: tx, rx: rx}, nil
}
