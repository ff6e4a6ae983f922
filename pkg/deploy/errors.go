package deploy

import "fmt"

// TransferError reports the operation that stopped a transfer. Any transfer
// failure is fatal to the whole deploy.
type TransferError struct {
	Op   string // walk, list, mkdir, open, upload, create or download
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
