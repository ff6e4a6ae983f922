// Package deploy mirrors local trees to a remote host and fetches result
// files back.
package deploy

import (
	"errors"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/yuya-takeyama/ssh-deploy/internal/walker"
	"github.com/yuya-takeyama/ssh-deploy/pkg/exclude"
	"github.com/yuya-takeyama/ssh-deploy/pkg/logger"
	"github.com/yuya-takeyama/ssh-deploy/pkg/remote"
)

// Job is one local tree to mirror under RemoteBase.
type Job struct {
	LocalRoot  string
	RemoteBase string
	Exclusions *exclude.Matcher
}

// Result summarises a finished sync.
type Result struct {
	Files int
}

// Synchronizer uploads local trees over a file channel, one entry at a time.
type Synchronizer struct {
	fs      afero.Fs
	channel remote.FileChannel
	logger  logger.Logger
}

func NewSynchronizer(fsys afero.Fs, channel remote.FileChannel, logger logger.Logger) *Synchronizer {
	return &Synchronizer{
		fs:      fsys,
		channel: channel,
		logger:  logger,
	}
}

// RemoteRoot returns where the tree at localRoot lands: the base name of the
// local root under remoteBase.
func RemoteRoot(remoteBase, localRoot string) string {
	return path.Join(remoteBase, filepath.Base(filepath.Clean(localRoot)))
}

// Sync mirrors job.LocalRoot to RemoteRoot(job.RemoteBase, job.LocalRoot).
// Every included file is uploaded and replaces the remote copy. The first
// failure aborts the sync and no partial count is returned.
func (s *Synchronizer) Sync(job Job) (Result, error) {
	matcher := job.Exclusions
	if matcher == nil {
		matcher = &exclude.Matcher{}
	}

	skipDir := func(name, relPath string) bool {
		return matcher.IsExcludedDir(name) || matcher.IsExcludedPath(relPath)
	}

	w, err := walker.NewWalker(s.fs, job.LocalRoot, skipDir)
	if err != nil {
		return Result{}, s.fail(&TransferError{Op: "walk", Path: job.LocalRoot, Err: err})
	}

	remoteRoot := RemoteRoot(job.RemoteBase, w.Root())

	var files int
	err = w.Walk(func(dir walker.Directory) error {
		remoteDir := path.Join(remoteRoot, dir.RelPath)
		if err := s.ensureDir(remoteDir); err != nil {
			return err
		}

		for _, name := range dir.Files {
			if matcher.IsExcludedFile(name) || matcher.IsExcludedPath(path.Join(dir.RelPath, name)) {
				continue
			}

			localPath := filepath.Join(dir.Path, name)
			remotePath := path.Join(remoteDir, name)

			s.logger.Copy(localPath, remotePath)
			if err := s.upload(localPath, remotePath); err != nil {
				return err
			}
			files++
		}
		return nil
	})
	if err != nil {
		var transferErr *TransferError
		if !errors.As(err, &transferErr) {
			transferErr = &TransferError{Op: "walk", Path: w.Root(), Err: err}
		}
		return Result{}, s.fail(transferErr)
	}

	s.logger.Summary(files)
	return Result{Files: files}, nil
}

// ensureDir creates remoteDir unless it can already be listed.
func (s *Synchronizer) ensureDir(remoteDir string) error {
	if _, err := s.channel.List(remoteDir); err == nil {
		return nil
	}

	s.logger.Mkdir(remoteDir)
	if err := s.channel.MakeDirectory(remoteDir); err != nil {
		return &TransferError{Op: "mkdir", Path: remoteDir, Err: err}
	}
	return nil
}

func (s *Synchronizer) upload(localPath, remotePath string) error {
	f, err := s.fs.Open(localPath)
	if err != nil {
		return &TransferError{Op: "open", Path: localPath, Err: err}
	}
	defer f.Close()

	if err := s.channel.Upload(f, remotePath); err != nil {
		return &TransferError{Op: "upload", Path: remotePath, Err: err}
	}
	return nil
}

func (s *Synchronizer) fail(err *TransferError) error {
	s.logger.Error(err.Op, err.Path, err.Err)
	return err
}
