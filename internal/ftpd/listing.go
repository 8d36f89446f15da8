package ftpd

import (
	"fmt"
	"io"
	"os"
)

// handleLIST writes a Unix ls -l style directory listing over the
// data channel.
func (s *session) handleLIST(arg string) {
	s.listCommon(arg, printListEntry, "Directory send OK.")
}

// handleNLST writes a name-only listing over the data channel.
func (s *session) handleNLST(arg string) {
	s.listCommon(arg, func(w io.Writer, info os.FileInfo) {
		fmt.Fprintf(w, "%s\r\n", info.Name())
	}, "Directory send OK.")
}

// handleMLSD writes an RFC 3659 machine-readable listing.
func (s *session) handleMLSD(arg string) {
	s.listCommon(arg, writeMLEntry, "MLSD listing complete.")
}

// handleMLST is a canned stub: a full RFC 3659 single-file machine
// listing is out of scope.
func (s *session) handleMLST(_ string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	s.reply(502, "MLST not fully implemented.")
}

func (s *session) listCommon(arg string, entryWriter func(io.Writer, os.FileInfo), doneMsg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}

	target := s.cwd
	if arg != "" {
		var err error
		target, err = s.resolver.Resolve(s.cwd, arg)
		if err != nil {
			s.reply(550, "Invalid path.")
			return
		}
	}

	entries, err := s.fs.ListDir(target)
	if err != nil {
		s.replyErr(err)
		return
	}

	dc, err := s.connData()
	if err != nil {
		s.replyErr(err)
		return
	}
	defer dc.Close()

	s.reply(150, "Here comes the directory listing.")
	w := dc.Writer()
	for _, entry := range entries {
		entryWriter(w, entry)
	}
	s.reply(226, doneMsg)
}

func printListEntry(w io.Writer, info os.FileInfo) {
	fmt.Fprintf(w, "%s 1 owner group %12d %s %s\r\n",
		info.Mode().String(), info.Size(), info.ModTime().UTC().Format("Jan 02 15:04"), info.Name())
}

func writeMLEntry(w io.Writer, info os.FileInfo) {
	t := "file"
	if info.IsDir() {
		t = "dir"
	}
	fmt.Fprintf(w, "type=%s;size=%d;modify=%s; %s\r\n",
		t, info.Size(), info.ModTime().UTC().Format("20060102150405"), info.Name())
}
