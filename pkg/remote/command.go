package remote

import (
	"bytes"
	"errors"
)

// Output holds everything a remote command wrote.
type Output struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Run executes command in a single remote shell invocation and buffers both
// streams. A non-zero exit status is reported in Output, not as an error.
func Run(e Executor, command string) (*Output, error) {
	var stdout, stderr bytes.Buffer

	err := e.Execute(command, &stdout, &stderr)

	out := &Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitStatus = exitErr.Status
	default:
		return nil, err
	}

	return out, nil
}
