package ftpd

import (
	"io"
	"os"
	"time"
)

// Driver authenticates clients and produces a session-scoped
// ClientContext. The only implementation shipped here is FSDriver,
// rooted at a local directory with anonymous-only access (there is no
// multi-user account database in scope).
type Driver interface {
	// Authenticate validates user/pass. Anonymous-only drivers accept
	// "anonymous" or "ftp" as user and any password.
	Authenticate(user, pass string) (ClientContext, error)
}

// ClientContext isolates one session's view of the served filesystem.
// All paths passed in are already root-resolved, root-contained
// absolute paths produced by vpath.Resolver — ClientContext
// implementations do not need to re-validate containment.
//
// Error handling: return os.ErrNotExist / os.ErrPermission / os.ErrExist
// so replyCode can map them to the right FTP reply code.
type ClientContext interface {
	ChangeDir(path string) error
	GetWd() (string, error)
	MakeDir(path string) error
	RemoveDir(path string) error
	DeleteFile(path string) error
	Rename(fromPath, toPath string) error
	ListDir(path string) ([]os.FileInfo, error)
	OpenFile(path string, flag int) (io.ReadWriteCloser, error)
	GetFileInfo(path string) (os.FileInfo, error)
	GetHash(path string, algo string) (string, error)
	SetTime(path string, t time.Time) error
	Chmod(path string, mode os.FileMode) error
	Close() error
}
