package stream

import "log/slog"

func logPersistFailure(sessionID string, err error) {
	slog.Warn("stream: message persistence failed, continuing", "session_id", sessionID, "error", err)
}
