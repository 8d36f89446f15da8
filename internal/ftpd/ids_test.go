package ftpd

import "testing"

func TestNewSessionIDUnique(t *testing.T) {
	t.Parallel()
	a := newSessionID()
	b := newSessionID()
	if a == "" || b == "" {
		t.Fatal("newSessionID returned an empty string")
	}
	if a == b {
		t.Fatal("newSessionID returned the same id twice")
	}
}
