package remote

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
)

// SFTPChannel is a FileChannel backed by an SFTP client.
type SFTPChannel struct {
	client *sftp.Client
}

func NewSFTPChannel(client *sftp.Client) *SFTPChannel {
	return &SFTPChannel{client: client}
}

func (c *SFTPChannel) List(remotePath string) ([]os.FileInfo, error) {
	entries, err := c.client.ReadDir(remotePath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", remotePath, err)
	}
	return entries, nil
}

func (c *SFTPChannel) MakeDirectory(remotePath string) error {
	if err := c.client.Mkdir(remotePath); err != nil {
		return fmt.Errorf("mkdir %s: %w", remotePath, err)
	}
	return nil
}

// Upload creates or truncates remotePath and writes r into it.
func (c *SFTPChannel) Upload(r io.Reader, remotePath string) error {
	f, err := c.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", remotePath, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remotePath, err)
	}
	return nil
}

func (c *SFTPChannel) Download(remotePath string, w io.Writer) error {
	f, err := c.client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", remotePath, err)
	}
	return nil
}

func (c *SFTPChannel) Close() error {
	return c.client.Close()
}
