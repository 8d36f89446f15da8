package ftpd

import (
	"errors"
	"os"
)

// Kind classifies a failure so that replyCode can map it to an FTP
// reply code.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindPermission
	KindExist
	KindPathInvalid
	KindProtocol
	KindNoDataConn
	KindAuthFailed
)

// Error is a typed session-level error. It wraps an underlying cause
// (often os.ErrNotExist/os.ErrPermission from a ClientContext) so that
// errors.Is/errors.As against the stdlib sentinels still work.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// wrapErr classifies a generic error from a ClientContext/vpath call
// into a Kind, preferring the existing os.Err* sentinels so that
// errors.Is continues to work against the original cause.
func wrapErr(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &Error{Kind: KindNotFound, Message: "not found", Err: err}
	case errors.Is(err, os.ErrPermission):
		return &Error{Kind: KindPermission, Message: "permission denied", Err: err}
	case errors.Is(err, os.ErrExist):
		return &Error{Kind: KindExist, Message: "already exists", Err: err}
	default:
		return &Error{Kind: KindOther, Message: "action failed", Err: err}
	}
}

// replyCode returns the FTP reply code and message for a classified
// error. Handlers reach it through session.replyErr for driver and
// data-connection failures; a path that fails to resolve is answered
// by the handler itself with 550 "Invalid path.".
func replyCode(err error) (int, string) {
	e := wrapErr(err)
	switch e.Kind {
	case KindNotFound:
		return 550, "File not found."
	case KindPermission:
		return 550, "Permission denied."
	case KindExist:
		return 550, "File already exists."
	case KindPathInvalid:
		return 550, "Invalid path."
	case KindNoDataConn:
		return 425, "Can't open data connection."
	default:
		return 550, "Action failed: " + e.Err.Error()
	}
}
