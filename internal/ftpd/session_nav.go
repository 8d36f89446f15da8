package ftpd

import (
	"fmt"
	"io"
	"os"
)

// handleCWD changes the working directory, also serving CDUP (called
// with "..") since both just resolve+validate a target directory.
func (s *session) handleCWD(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}

	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	if err := s.fs.ChangeDir(target); err != nil {
		s.replyErr(err)
		return
	}
	s.cwd = target

	if s.server.dirMessage {
		if msg := s.readDirMessage(target); msg != "" {
			s.reply(250, fmt.Sprintf("Directory changed to %s. %s", target, msg))
			return
		}
	}
	s.reply(250, "Directory changed to "+target+".")
}

// readDirMessage returns the contents of a ".message" file in dir, if
// present and small enough to inline in a reply (supplemented feature,
// grounded on the teacher's directory-banner behavior).
func (s *session) readDirMessage(dir string) string {
	msgPath, err := s.resolver.Resolve(dir, ".message")
	if err != nil {
		return ""
	}
	f, err := s.fs.OpenFile(msgPath, os.O_RDONLY)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 256)
	n, _ := io.ReadFull(f, buf)
	return string(buf[:n])
}

func (s *session) handlePWD() {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	s.reply(257, fmt.Sprintf("%q is the current directory.", s.cwd))
}
