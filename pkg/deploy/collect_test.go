package deploy

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuya-takeyama/ssh-deploy/pkg/logger"
)

func TestFetch(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/results", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/results/out.txt", []byte("stale result"), 0o644))

	channel := newFakeChannel()
	channel.files["/home/u/deploy/proj/out.txt"] = "42"
	log := &recordingLogger{}

	c := NewCollector(fsys, channel, log)
	local, err := c.Fetch("/home/u/deploy/proj/out.txt", "/results")
	require.NoError(t, err)

	assert.Equal(t, "/results/out.txt", local)
	data, err := afero.ReadFile(fsys, local)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))
	assert.Equal(t, []string{"/home/u/deploy/proj/out.txt -> /results/out.txt"}, log.fetches)
}

func TestFetchMissingRemoteFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/results", 0o755))

	c := NewCollector(fsys, newFakeChannel(), &logger.NullLogger{})
	_, err := c.Fetch("/home/u/deploy/proj/missing.txt", "/results")

	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, "download", transferErr.Op)
	assert.Equal(t, "/home/u/deploy/proj/missing.txt", transferErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	exists, err := afero.Exists(fsys, "/results/missing.txt")
	require.NoError(t, err)
	assert.False(t, exists, "partial local file is removed")
}

func TestFetchUnwritableDestination(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())

	channel := newFakeChannel()
	channel.files["/deploy/out.txt"] = "42"

	c := NewCollector(fsys, channel, &logger.NullLogger{})
	_, err := c.Fetch("/deploy/out.txt", "/results")

	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, "create", transferErr.Op)
	assert.Equal(t, "/results/out.txt", transferErr.Path)
	assert.NotContains(t, channel.ops, "download /deploy/out.txt")
}
