// Package remote provides the SSH session used by a deploy: an SFTP file
// channel for transfers and single-shot command execution.
package remote

import (
	"fmt"
	"io"
	"os"
)

// FileChannel is a file-transfer channel on an open session.
type FileChannel interface {
	List(remotePath string) ([]os.FileInfo, error)
	MakeDirectory(remotePath string) error
	Upload(r io.Reader, remotePath string) error
	Download(remotePath string, w io.Writer) error
	Close() error
}

// Executor runs a shell command on the remote host.
type Executor interface {
	Execute(command string, stdout, stderr io.Writer) error
}

// Session is an authenticated connection to a host.
type Session interface {
	Executor
	OpenFileChannel() (FileChannel, error)
	Close() error
}

// ConnectionError reports a failure to establish a session.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExitError is returned by Execute when the remote command finished with a
// non-zero status. Status is -1 when the server did not report one.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Status)
}
