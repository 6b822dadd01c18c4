package corvid

import (
	"os"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("controller")

var logFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} %{message}`,
)

// InitLogging wires go-logging's backend to stderr (stdout is
// reserved for protocol output) and sets the root level from name,
// falling back to INFO on a bad level string.
func InitLogging(name string) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logFormat)
	logging.SetBackend(formatted)

	level, err := logging.LogLevel(name)
	if err != nil {
		level = logging.INFO
	}
	logging.SetLevel(level, "")
}
