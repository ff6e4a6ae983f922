package deploy

import (
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/yuya-takeyama/ssh-deploy/pkg/logger"
	"github.com/yuya-takeyama/ssh-deploy/pkg/remote"
)

// Collector copies remote result files to the local machine.
type Collector struct {
	fs      afero.Fs
	channel remote.FileChannel
	logger  logger.Logger
}

func NewCollector(fsys afero.Fs, channel remote.FileChannel, logger logger.Logger) *Collector {
	return &Collector{
		fs:      fsys,
		channel: channel,
		logger:  logger,
	}
}

// Fetch downloads remotePath into localDir, keeping its base name, and returns
// the local path. An existing local file is overwritten.
func (c *Collector) Fetch(remotePath, localDir string) (string, error) {
	localPath := filepath.Join(localDir, path.Base(remotePath))
	c.logger.Fetch(remotePath, localPath)

	f, err := c.fs.Create(localPath)
	if err != nil {
		return "", c.fail(&TransferError{Op: "create", Path: localPath, Err: err})
	}

	if err := c.channel.Download(remotePath, f); err != nil {
		f.Close()
		// Do not leave a truncated file behind.
		_ = c.fs.Remove(localPath)
		return "", c.fail(&TransferError{Op: "download", Path: remotePath, Err: err})
	}

	if err := f.Close(); err != nil {
		return "", c.fail(&TransferError{Op: "create", Path: localPath, Err: err})
	}
	return localPath, nil
}

func (c *Collector) fail(err *TransferError) error {
	c.logger.Error(err.Op, err.Path, err.Err)
	return err
}
