package ftpd

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFSDriverAuthenticateAnonymousOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	driver, err := NewFSDriver(dir, false)
	fatalIfErr(t, err, "NewFSDriver")

	for _, user := range []string{"anonymous", "ftp"} {
		ctx, err := driver.Authenticate(user, "whatever")
		fatalIfErr(t, err, "Authenticate(%s)", user)
		ctx.Close()
	}

	if _, err := driver.Authenticate("bob", "whatever"); err != os.ErrPermission {
		t.Fatalf("Authenticate(bob): expected os.ErrPermission, got %v", err)
	}
}

func TestNewFSDriverRejectsNonDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	fatalIfErr(t, os.WriteFile(file, []byte("x"), 0o644), "seed file")

	if _, err := NewFSDriver(file, false); err == nil {
		t.Fatal("expected error for non-directory root")
	}
}

func TestFSContextReadOnlyRejectsWrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644), "seed file")

	driver, err := NewFSDriver(dir, true)
	fatalIfErr(t, err, "NewFSDriver")
	ctx, err := driver.Authenticate("anonymous", "")
	fatalIfErr(t, err, "Authenticate")
	defer ctx.Close()

	if err := ctx.MakeDir("/sub"); err != os.ErrPermission {
		t.Errorf("MakeDir: expected os.ErrPermission, got %v", err)
	}
	if err := ctx.DeleteFile("/f.txt"); err != os.ErrPermission {
		t.Errorf("DeleteFile: expected os.ErrPermission, got %v", err)
	}
	if err := ctx.RemoveDir("/sub"); err != os.ErrPermission {
		t.Errorf("RemoveDir: expected os.ErrPermission, got %v", err)
	}
	if err := ctx.Rename("/f.txt", "/g.txt"); err != os.ErrPermission {
		t.Errorf("Rename: expected os.ErrPermission, got %v", err)
	}
	if err := ctx.SetTime("/f.txt", time.Now()); err != os.ErrPermission {
		t.Errorf("SetTime: expected os.ErrPermission, got %v", err)
	}
	if err := ctx.Chmod("/f.txt", 0o600); err != os.ErrPermission {
		t.Errorf("Chmod: expected os.ErrPermission, got %v", err)
	}
	if _, err := ctx.OpenFile("/new.txt", os.O_WRONLY|os.O_CREATE); err != os.ErrPermission {
		t.Errorf("OpenFile write: expected os.ErrPermission, got %v", err)
	}
}

func TestFSContextListDirAndHash(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644), "seed file")
	fatalIfErr(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755), "seed dir")

	driver, err := NewFSDriver(dir, false)
	fatalIfErr(t, err, "NewFSDriver")
	ctx, err := driver.Authenticate("anonymous", "")
	fatalIfErr(t, err, "Authenticate")
	defer ctx.Close()

	infos, err := ctx.ListDir("/")
	fatalIfErr(t, err, "ListDir")
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}

	sum, err := ctx.GetHash("/a.txt", "SHA-256")
	fatalIfErr(t, err, "GetHash")
	wantSum := sha256.Sum256([]byte("hello"))
	want := hex.EncodeToString(wantSum[:])
	if sum != want {
		t.Fatalf("GetHash mismatch: got %s want %s", sum, want)
	}

	if _, err := ctx.GetHash("/a.txt", "bogus-algo"); err == nil {
		t.Fatal("expected error for unsupported hash algorithm")
	}
}

func TestIsSafePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want bool
	}{
		{"/dev", true},
		{"/dev/sda", true},
		{"/proc/1/status", true},
		{"/sys/class", true},
		{"/home/user", false},
		{"/development", false}, // must not match /dev as a bare prefix
	}
	for _, tt := range tests {
		if got := isSafePath(tt.path); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDirEntryStubSynthesizesInfo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fatalIfErr(t, os.WriteFile(filepath.Join(dir, "x"), nil, 0o644), "seed file")

	entries, err := os.ReadDir(dir)
	fatalIfErr(t, err, "ReadDir")
	stub := dirEntryStub{entry: entries[0]}

	if stub.Name() != "x" {
		t.Errorf("Name() = %q, want x", stub.Name())
	}
	if stub.Size() != 0 {
		t.Errorf("Size() = %d, want 0", stub.Size())
	}
	if !stub.ModTime().IsZero() {
		t.Errorf("ModTime() = %v, want zero", stub.ModTime())
	}
	if stub.IsDir() {
		t.Errorf("IsDir() = true, want false")
	}
}
