package logger

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Config holds logging configuration options.
type Config struct {
	Level  string // Logging level (e.g., "info", "debug", "error")
	Format string // Logging format ("text" or "json")
}

// Configure sets up the logger according to the provided Config settings.
// Logs go to stderr: stdout is reserved for the prompts and decision
// summaries the operator interacts with.
func Configure(c Config) (err error) {
	parsedLevel, err := log.ParseLevel(c.Level)
	if err != nil {
		return
	}
	log.SetLevel(parsedLevel)

	switch c.Format {
	case "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		err = fmt.Errorf("invalid log format '%s'", c.Format)
		return
	}

	log.SetOutput(os.Stderr)

	return
}
