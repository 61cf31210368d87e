package convo

import "fmt"

// NotFoundError is returned when a session_id is unknown in memory and
// absent (or soft-deleted) in persistence -- spec failure class
// SessionNotFound.
type NotFoundError struct{ SessionID string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("convo: session %q not found", e.SessionID)
}
