package ftpd

import (
	"net"

	"github.com/duskvale/xftpd/internal/xchacha"
)

// cipherConn wraps a net.Conn, XOR-transforming every byte read and
// written. tx and rx are two independent *xchacha.Cipher instances,
// each derived with a direction-distinguishing tag (see
// directionNonce in session_crypto.go) so the two directions use
// distinct keystreams entirely. A single shared cipher would advance
// one keystream counter in local read/write call order, which does
// not match the peer's own interleaving of its reads and writes of
// the same connection; two independent, per-direction instances avoid
// that desync and avoid reusing one keystream across two plaintext
// streams.
type cipherConn struct {
	net.Conn
	tx *xchacha.Cipher
	rx *xchacha.Cipher
}

func newCipherConn(conn net.Conn, tx, rx *xchacha.Cipher) net.Conn {
	return &cipherConn{Conn: conn, tx: tx, rx: rx}
}

func (c *cipherConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.rx.XOR(p[:n])
	}
	return n, err
}

func (c *cipherConn) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	c.tx.XOR(buf)
	return c.Conn.Write(buf)
}
