package ftpd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirMessageBanner(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755), "seed dir")
	fatalIfErr(t, os.WriteFile(filepath.Join(dir, "sub", ".message"), []byte("welcome to sub"), 0o644), "seed message")

	addr := startServer(t, dir, WithDirMessage(true))
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, msg := c.cmd("CWD sub")
	if code != 250 {
		t.Fatalf("CWD: expected 250, got %d", code)
	}
	if !strings.Contains(msg, "welcome to sub") {
		t.Fatalf("CWD reply missing .message banner: %q", msg)
	}
}

func TestCwdWithoutDirMessageOption(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755), "seed dir")
	fatalIfErr(t, os.WriteFile(filepath.Join(dir, "sub", ".message"), []byte("hidden"), 0o644), "seed message")

	addr := startServer(t, dir) // dirMessage defaults to false
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, msg := c.cmd("CWD sub")
	if code != 250 {
		t.Fatalf("CWD: expected 250, got %d", code)
	}
	if strings.Contains(msg, "hidden") {
		t.Fatalf("CWD reply leaked .message content when dirMessage disabled: %q", msg)
	}
}
