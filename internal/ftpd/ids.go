package ftpd

import "github.com/google/uuid"

// newSessionID generates a session identifier for logging and metrics.
func newSessionID() string {
	return uuid.NewString()
}
