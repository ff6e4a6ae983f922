package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/yuya-takeyama/ssh-deploy/pkg/remote"
)

// fakeSession is an in-memory remote.Session. Its file channels share one
// remote tree.
type fakeSession struct {
	dirs  map[string]bool
	files map[string]string

	ops    []string
	closed bool

	openErr error
	execute func(command string, stdout, stderr io.Writer) error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		dirs:  map[string]bool{"/": true},
		files: map[string]string{},
	}
}

func (s *fakeSession) Execute(command string, stdout, stderr io.Writer) error {
	s.ops = append(s.ops, "exec "+command)
	if s.execute == nil {
		return nil
	}
	return s.execute(command, stdout, stderr)
}

func (s *fakeSession) OpenFileChannel() (remote.FileChannel, error) {
	s.ops = append(s.ops, "open channel")
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &fakeChannel{session: s}, nil
}

func (s *fakeSession) Close() error {
	s.ops = append(s.ops, "close session")
	s.closed = true
	return nil
}

func (s *fakeSession) fileNames() []string {
	var names []string
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fakeChannel struct {
	session *fakeSession
}

func (c *fakeChannel) List(remotePath string) ([]os.FileInfo, error) {
	if !c.session.dirs[remotePath] {
		return nil, fmt.Errorf("list %s: %w", remotePath, os.ErrNotExist)
	}
	return nil, nil
}

func (c *fakeChannel) MakeDirectory(remotePath string) error {
	if !c.session.dirs[path.Dir(remotePath)] {
		return fmt.Errorf("mkdir %s: %w", remotePath, os.ErrNotExist)
	}
	c.session.dirs[remotePath] = true
	return nil
}

func (c *fakeChannel) Upload(r io.Reader, remotePath string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	c.session.files[remotePath] = buf.String()
	return nil
}

func (c *fakeChannel) Download(remotePath string, w io.Writer) error {
	data, ok := c.session.files[remotePath]
	if !ok {
		return fmt.Errorf("open %s: %w", remotePath, os.ErrNotExist)
	}
	_, err := io.WriteString(w, data)
	return err
}

func (c *fakeChannel) Close() error {
	c.session.ops = append(c.session.ops, "close channel")
	return nil
}
