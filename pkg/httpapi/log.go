package httpapi

import (
	"log/slog"
	"time"
)

func logRequest(method, path string, dur time.Duration) {
	slog.Debug("http request", "method", method, "path", path, "duration", dur)
}
