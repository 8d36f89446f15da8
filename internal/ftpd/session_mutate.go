package ftpd

func (s *session) handleDELE(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	if err := s.fs.DeleteFile(target); err != nil {
		s.replyErr(err)
		return
	}
	s.reply(250, "File deleted.")
}

func (s *session) handleRMD(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	if err := s.fs.RemoveDir(target); err != nil {
		s.replyErr(err)
		return
	}
	s.reply(250, "Directory removed.")
}

func (s *session) handleMKD(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	if err := s.fs.MakeDir(target); err != nil {
		s.replyErr(err)
		return
	}
	s.reply(257, "\""+target+"\" created.")
}

// handleRNFR stages the rename source; RNTO must follow directly with
// a valid target, per spec.md's rename two-step.
func (s *session) handleRNFR(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.reply(550, "Invalid path.")
		return
	}
	if _, err := s.fs.GetFileInfo(target); err != nil {
		s.replyErr(err)
		return
	}
	s.renameFrom = target
	s.reply(350, "File exists, ready for destination name.")
}

func (s *session) handleRNTO(arg string) {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return
	}
	if s.renameFrom == "" {
		s.reply(503, "RNFR required first.")
		return
	}
	target, err := s.resolver.Resolve(s.cwd, arg)
	if err != nil {
		s.renameFrom = ""
		s.reply(550, "Invalid path.")
		return
	}
	from := s.renameFrom
	s.renameFrom = ""
	if err := s.fs.Rename(from, target); err != nil {
		s.replyErr(err)
		return
	}
	s.reply(250, "Rename successful.")
}
