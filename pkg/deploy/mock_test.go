package deploy

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
)

// fakeChannel is an in-memory remote.FileChannel that records every call
type fakeChannel struct {
	dirs  map[string]bool
	files map[string]string
	ops   []string

	uploadFunc func(remotePath string) error
}

func newFakeChannel(dirs ...string) *fakeChannel {
	c := &fakeChannel{
		dirs:  map[string]bool{"/": true},
		files: map[string]string{},
	}
	for _, d := range dirs {
		c.dirs[d] = true
	}
	return c
}

func (c *fakeChannel) List(remotePath string) ([]os.FileInfo, error) {
	c.ops = append(c.ops, "list "+remotePath)
	if !c.dirs[remotePath] {
		return nil, fmt.Errorf("list %s: %w", remotePath, os.ErrNotExist)
	}
	return nil, nil
}

func (c *fakeChannel) MakeDirectory(remotePath string) error {
	c.ops = append(c.ops, "mkdir "+remotePath)
	if c.dirs[remotePath] {
		return fmt.Errorf("mkdir %s: %w", remotePath, os.ErrExist)
	}
	if !c.dirs[path.Dir(remotePath)] {
		return fmt.Errorf("mkdir %s: %w", remotePath, os.ErrNotExist)
	}
	c.dirs[remotePath] = true
	return nil
}

func (c *fakeChannel) Upload(r io.Reader, remotePath string) error {
	c.ops = append(c.ops, "upload "+remotePath)
	if c.uploadFunc != nil {
		if err := c.uploadFunc(remotePath); err != nil {
			return err
		}
	}
	if !c.dirs[path.Dir(remotePath)] {
		return fmt.Errorf("create %s: %w", remotePath, os.ErrNotExist)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.files[remotePath] = string(data)
	return nil
}

func (c *fakeChannel) Download(remotePath string, w io.Writer) error {
	c.ops = append(c.ops, "download "+remotePath)
	data, ok := c.files[remotePath]
	if !ok {
		return fmt.Errorf("open %s: %w", remotePath, os.ErrNotExist)
	}
	_, err := io.WriteString(w, data)
	return err
}

func (c *fakeChannel) Close() error {
	return nil
}

func (c *fakeChannel) fileNames() []string {
	names := make([]string, 0, len(c.files))
	for name := range c.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recordingLogger is a logger.Logger that keeps the events it receives
type recordingLogger struct {
	copies  []string
	mkdirs  []string
	fetches []string
	errors  []string
	summary []int
}

func (l *recordingLogger) Copy(localPath, remotePath string) {
	l.copies = append(l.copies, localPath+" -> "+remotePath)
}

func (l *recordingLogger) Mkdir(remotePath string) {
	l.mkdirs = append(l.mkdirs, remotePath)
}

func (l *recordingLogger) Command(command string) {}

func (l *recordingLogger) Fetch(remotePath, localPath string) {
	l.fetches = append(l.fetches, remotePath+" -> "+localPath)
}

func (l *recordingLogger) Summary(files int) {
	l.summary = append(l.summary, files)
}

func (l *recordingLogger) Error(operation, path string, err error) {
	l.errors = append(l.errors, operation+" "+path)
}
