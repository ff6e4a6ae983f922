package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New creates the process logger. Verbose runs log at Info level, others
// only report warnings and errors.
func New(verbose bool, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	})

	if verbose {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}

	return logger
}
