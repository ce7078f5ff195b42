package utils

import (
	"io"

	"github.com/MrSnakeDoc/divesite/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// MustClose closes c and logs any error under the given name.
// Use for shutdown paths where we want to track close errors.
func MustClose(c io.Closer, name string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close",
			logger.String("component", name),
			logger.Error(err))
	}
}
