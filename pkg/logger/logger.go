package logger

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Logger receives deploy events
type Logger interface {
	Copy(localPath, remotePath string)
	Mkdir(remotePath string)
	Command(command string)
	Fetch(remotePath, localPath string)
	Summary(files int)
	Error(operation, path string, err error)
}

// SyncLogger writes events to a logrus logger and the summary line to Out
type SyncLogger struct {
	Log logrus.FieldLogger
	Out io.Writer
}

func NewSyncLogger(log logrus.FieldLogger, out io.Writer) *SyncLogger {
	return &SyncLogger{Log: log, Out: out}
}

func (l *SyncLogger) Copy(localPath, remotePath string) {
	l.Log.Infof("Copy %s to %s.", localPath, remotePath)
}

func (l *SyncLogger) Mkdir(remotePath string) {
	l.Log.Infof("Create remote directory %s.", remotePath)
}

func (l *SyncLogger) Command(command string) {
	l.Log.Infof("Running remote command: %s.", command)
}

func (l *SyncLogger) Fetch(remotePath, localPath string) {
	l.Log.Infof("Copy from remote: %s to %s.", remotePath, localPath)
}

func (l *SyncLogger) Summary(files int) {
	fmt.Fprintf(l.Out, "Copied %d files.\n", files)
}

func (l *SyncLogger) Error(operation, path string, err error) {
	l.Log.WithFields(logrus.Fields{
		"operation": operation,
		"path":      path,
	}).Error(err)
}

type NullLogger struct{}

func (l *NullLogger) Copy(localPath, remotePath string) {}

func (l *NullLogger) Mkdir(remotePath string) {}

func (l *NullLogger) Command(command string) {}

func (l *NullLogger) Fetch(remotePath, localPath string) {}

func (l *NullLogger) Summary(files int) {}

func (l *NullLogger) Error(operation, path string, err error) {}
