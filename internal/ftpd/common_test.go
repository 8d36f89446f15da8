package ftpd

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func fatalIfErr(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf(format+": %v", append(args, err)...)
	}
}

// testClient is a bare-bones FTP control-channel client used to drive
// integration tests without a client library: the spec's wire-level
// invariants (reply ordering, PORT anti-bounce, REST resume) are
// better exercised talking raw FTP over net.Conn than through a
// library that mediates the sequencing.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(t, err, "dial %s", addr)
	c := &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	c.readReply() // banner
	return c
}

func (c *testClient) close() {
	c.conn.Close()
}

// cmd sends one command line and returns the reply's code and message.
// Multi-line replies collapse to the final line's code/message.
func (c *testClient) cmd(line string) (int, string) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\r\n", line)
	fatalIfErr(c.t, err, "write %q", line)
	return c.readReply()
}

func (c *testClient) readReply() (int, string) {
	c.t.Helper()
	var code int
	var msg string
	for {
		line, err := c.r.ReadString('\n')
		fatalIfErr(c.t, err, "read reply")
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 4 {
			c.t.Fatalf("malformed reply line %q", line)
		}
		n, cerr := strconv.Atoi(line[:3])
		fatalIfErr(c.t, cerr, "parse reply code %q", line)
		code = n
		msg = line[4:]
		if line[3] == ' ' {
			return code, msg
		}
		// "-" continuation: keep reading until the matching final line.
	}
}

// login performs USER/PASS as the anonymous user and fails the test
// unless USER gets 331 and PASS gets 230.
func (c *testClient) login() {
	c.t.Helper()
	code, _ := c.cmd("USER anonymous")
	if code != 331 {
		c.t.Fatalf("USER: expected 331, got %d", code)
	}
	code, _ = c.cmd("PASS anything")
	if code != 230 {
		c.t.Fatalf("PASS: expected 230, got %d", code)
	}
}

// openPassive issues PASV and dials the returned data address.
func (c *testClient) openPassive() net.Conn {
	c.t.Helper()
	code, msg := c.cmd("PASV")
	if code != 227 {
		c.t.Fatalf("PASV: expected 227, got %d: %s", code, msg)
	}
	start := strings.IndexByte(msg, '(')
	end := strings.IndexByte(msg, ')')
	if start < 0 || end < 0 {
		c.t.Fatalf("PASV: malformed reply %q", msg)
	}
	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		c.t.Fatalf("PASV: malformed address %q", msg)
	}
	ip := strings.Join(parts[:4], ".")
	p1, _ := strconv.Atoi(parts[4])
	p2, _ := strconv.Atoi(parts[5])
	port := p1*256 + p2
	dataConn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), 5*time.Second)
	fatalIfErr(c.t, err, "dial data connection")
	return dataConn
}

// startServer brings up a Server on a loopback listener rooted at dir
// and returns the client-facing address; the listener is closed by
// t.Cleanup.
func startServer(t *testing.T, dir string, opts ...Option) string {
	t.Helper()
	driver, err := NewFSDriver(dir, false)
	fatalIfErr(t, err, "NewFSDriver")

	allOpts := append([]Option{WithDriver(driver)}, opts...)
	srv, err := NewServer(allOpts...)
	fatalIfErr(t, err, "NewServer")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")

	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
	})
	return ln.Addr().String()
}
