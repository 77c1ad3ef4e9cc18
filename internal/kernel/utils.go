package kernel

import (
	"os"

	"mycelia/internal/logger"
)

// SystemLogLevel reads the kernel's log level from KERNEL_LOG_LEVEL,
// defaulting to ERROR — the teacher's own default, kept so a production
// embedding program stays quiet unless explicitly turned up.
func SystemLogLevel() logger.Level {
	if envLevel := os.Getenv("KERNEL_LOG_LEVEL"); envLevel != "" {
		return logger.ParseLevel(envLevel)
	}
	return logger.ERROR
}
