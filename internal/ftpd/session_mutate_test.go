package ftpd

import (
	"os"
	"path/filepath"
	"testing"
)

// TestRnfrClearedByInterveningCommand checks spec.md's rename ordering
// guarantee: RNFR must immediately precede RNTO, so any other command
// in between clears the staged source.
func TestRnfrClearedByInterveningCommand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644), "seed file")
	fatalIfErr(t, os.Mkdir(filepath.Join(dir, "x"), 0o755), "seed dir")

	addr := startServer(t, dir)
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, _ := c.cmd("RNFR a.txt")
	if code != 350 {
		t.Fatalf("RNFR: expected 350, got %d", code)
	}
	code, _ = c.cmd("CWD x")
	if code != 250 {
		t.Fatalf("CWD: expected 250, got %d", code)
	}
	code, _ = c.cmd("RNTO b.txt")
	if code != 503 {
		t.Fatalf("RNTO after intervening CWD: expected 503, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("a.txt should not have been renamed away: %v", err)
	}
}

func TestDeleteMissingFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	addr := startServer(t, dir)
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, _ := c.cmd("DELE missing.txt")
	if code != 550 {
		t.Fatalf("DELE missing file: expected 550, got %d", code)
	}
}

func TestMkdDuplicate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.Mkdir(filepath.Join(dir, "exists"), 0o755), "seed dir")

	addr := startServer(t, dir)
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, _ := c.cmd("MKD exists")
	if code != 550 {
		t.Fatalf("MKD duplicate: expected 550, got %d", code)
	}
}

func TestRnfrMissingSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	addr := startServer(t, dir)
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, _ := c.cmd("RNFR missing.txt")
	if code != 550 {
		t.Fatalf("RNFR missing source: expected 550, got %d", code)
	}
	// renameFrom must not be staged on failure: a subsequent RNTO
	// should fail with 503, not attempt a rename from a bad path.
	code, _ = c.cmd("RNTO whatever.txt")
	if code != 503 {
		t.Fatalf("RNTO after failed RNFR: expected 503, got %d", code)
	}
}
