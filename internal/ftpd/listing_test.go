package ftpd

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeFileInfo) Sys() any           { return nil }

func TestPrintListEntry(t *testing.T) {
	t.Parallel()
	info := fakeFileInfo{name: "report.txt", size: 1234, mode: 0o644, modTime: time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)}

	var buf bytes.Buffer
	printListEntry(&buf, info)
	line := buf.String()

	if !strings.HasSuffix(line, "report.txt\r\n") {
		t.Fatalf("printListEntry did not end with name+CRLF: %q", line)
	}
	if !strings.Contains(line, "1234") {
		t.Fatalf("printListEntry missing size: %q", line)
	}
	if !strings.Contains(line, "Mar 05") {
		t.Fatalf("printListEntry missing formatted date: %q", line)
	}
}

// TestPrintListEntryUsesUTC checks that the LIST date field is
// normalized to UTC, matching writeMLEntry, instead of the host's
// local zone.
func TestPrintListEntryUsesUTC(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("TEST+9", 9*60*60)
	local := time.Date(2024, 3, 5, 2, 30, 0, 0, loc) // 2024-03-04 17:30 UTC
	info := fakeFileInfo{name: "report.txt", size: 1234, mode: 0o644, modTime: local}

	var buf bytes.Buffer
	printListEntry(&buf, info)
	line := buf.String()

	if !strings.Contains(line, "Mar 04 17:30") {
		t.Fatalf("printListEntry did not normalize to UTC: %q", line)
	}
	if strings.Contains(line, "Mar 05 02:30") {
		t.Fatalf("printListEntry used local time instead of UTC: %q", line)
	}
}

func TestWriteMLEntry(t *testing.T) {
	t.Parallel()
	fileInfo := fakeFileInfo{name: "a.txt", size: 10, mode: 0o644, modTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	dirInfo := fakeFileInfo{name: "sub", mode: os.ModeDir | 0o755}

	var buf bytes.Buffer
	writeMLEntry(&buf, fileInfo)
	line := buf.String()
	if !strings.Contains(line, "type=file;") {
		t.Errorf("writeMLEntry file type mismatch: %q", line)
	}
	if !strings.Contains(line, "modify=20240102030405;") {
		t.Errorf("writeMLEntry modify field mismatch: %q", line)
	}
	if !strings.HasSuffix(line, " a.txt\r\n") {
		t.Errorf("writeMLEntry name suffix mismatch: %q", line)
	}

	buf.Reset()
	writeMLEntry(&buf, dirInfo)
	if !strings.Contains(buf.String(), "type=dir;") {
		t.Errorf("writeMLEntry dir type mismatch: %q", buf.String())
	}
}

func TestMLSTCannedReply(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	addr := startServer(t, dir)
	c := dialTestClient(t, addr)
	defer c.close()
	c.login()

	code, msg := c.cmd("MLST")
	if code != 502 {
		t.Fatalf("MLST: expected 502, got %d: %s", code, msg)
	}
}
