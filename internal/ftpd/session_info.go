package ftpd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func (s *session) handleSIZE(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	info, err := s.fs.GetFileInfo(target)
	if err != nil {
		s.replyErr(err)
		return
	}
	s.reply(213, strconv.FormatInt(info.Size(), 10))
}

// handleMDTM replies with the file's modification time, always in UTC,
// per spec.md §4.3.7.
func (s *session) handleMDTM(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	info, err := s.fs.GetFileInfo(target)
	if err != nil {
		s.replyErr(err)
		return
	}
	s.reply(213, info.ModTime().UTC().Format("20060102150405"))
}

// handleSTAT sends a canned status reply when given no argument; with
// a path argument it sends that entry's LIST line inside a 213
// multi-line reply.
func (s *session) handleSTAT(arg string) {
	if arg != "" {
		if !s.loggedIn {
			s.reply(530, "Please login with USER and PASS.")
			return
		}
		target, err := s.resolver.Resolve(s.cwd, arg)
		if err != nil {
			s.reply(550, "Invalid path.")
			return
		}
		info, err := s.fs.GetFileInfo(target)
		if err != nil {
			s.replyErr(err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		w := s.writer
		fmt.Fprintf(w, "213-Status of %s:\r\n", target)
		printListEntry(w, info)
		fmt.Fprintf(w, "213 End of status.\r\n")
		w.Flush()
		return
	}
	s.reply(211, "Server status OK.")
}

func (s *session) handleSYST() {
	s.reply(215, "UNIX Type: L8")
}

func (s *session) handleFEAT() {
	features := []string{
		"SIZE",
		"MDTM",
		"REST STREAM",
		"APPE",
		"UTF8",
		"MLSD",
		"HASH SHA-256;SHA-512;SHA-1;MD5;CRC32",
		"MFMT",
	}
	if s.server.psk != nil {
		features = append(features, "XCRYPT")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.writer
	fmt.Fprintf(w, "211-Features:\r\n")
	for _, f := range features {
		fmt.Fprintf(w, " %s\r\n", f)
	}
	fmt.Fprintf(w, "211 End\r\n")
	w.Flush()
}

func (s *session) handleHELP(arg string) {
	if arg != "" {
		s.reply(214, strings.ToUpper(arg)+" is a recognized command.")
		return
	}
	s.reply(214, "Commands: USER PASS QUIT NOOP CWD CDUP PWD LIST NLST MLSD RETR STOR APPE REST DELE RMD MKD RNFR RNTO PORT PASV SIZE MDTM STAT SYST FEAT HELP TYPE MODE STRU AUTH SITE HASH MFMT.")
}

// handleSITE implements the single supplemented SITE subcommand,
// CHMOD, grounded on the wider corpus's common extension set.
func (s *session) handleSITE(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	fields := strings.Fields(arg)
	if len(fields) < 1 {
		s.reply(501, "Syntax error in SITE command.")
		return
	}
	switch strings.ToUpper(fields[0]) {
	case "CHMOD":
		if len(fields) != 3 {
			s.reply(501, "Usage: SITE CHMOD <mode> <path>.")
			return
		}
		mode, err := strconv.ParseUint(fields[1], 8, 32)
		if err != nil {
			s.reply(501, "Invalid mode.")
			return
		}
		target, err := s.resolver.Resolve(s.cwd, fields[2])
		if err != nil {
			s.reply(550, "Invalid path.")
			return
		}
		if err := s.fs.Chmod(target, os.FileMode(mode)); err != nil {
			s.replyErr(err)
			return
		}
		s.reply(200, "SITE CHMOD command successful.")
	default:
		s.reply(502, "SITE command not implemented.")
	}
}

// handleHASH computes a checksum for the selected algorithm, per the
// RFC 3659-adjacent HASH extension.
func (s *session) handleHASH(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	sum, err := s.fs.GetHash(target, "SHA-256")
	if err != nil {
		s.replyErr(err)
		return
	}
	s.reply(213, "SHA-256 "+sum+" "+target)
}

// handleMFMT sets a file's modification time: "MFMT YYYYMMDDhhmmss path".
func (s *session) handleMFMT(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	fields := strings.SplitN(arg, " ", 2)
	if len(fields) != 2 {
		s.reply(501, "Usage: MFMT <timestamp> <path>.")
		return
	}
	t, err := time.ParseInLocation("20060102150405", fields[0], time.UTC)
	if err != nil {
		s.reply(501, "Invalid timestamp.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, fields[1])
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	if err := s.fs.SetTime(target, t); err != nil {
		s.replyErr(err)
		return
	}
	s.reply(213, "Modify="+fields[0]+"; "+target)
}
