package walker

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// Directory is one visited local directory
type Directory struct {
	Path    string   // Absolute local path
	RelPath string   // Slash-separated path from root, "" for the root itself
	Files   []string // File names in lexical order
}

// SkipFunc reports whether a subdirectory should be pruned from the walk
type SkipFunc func(name, relPath string) bool

// Walker walks a local tree top-down, one directory at a time
type Walker struct {
	fs   afero.Fs
	root string
	skip SkipFunc
}

// NewWalker creates a new directory walker rooted at root
func NewWalker(fsys afero.Fs, root string, skip SkipFunc) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := fsys.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	if skip == nil {
		skip = func(string, string) bool { return false }
	}

	return &Walker{
		fs:   fsys,
		root: absRoot,
		skip: skip,
	}, nil
}

// Root returns the absolute root of the walk
func (w *Walker) Root() string {
	return w.root
}

// Walk calls visit for every directory that is not pruned. A directory is
// visited before any of its subdirectories, and pruned subdirectories are
// never read.
func (w *Walker) Walk(visit func(Directory) error) error {
	return w.walk(w.root, "", visit)
}

func (w *Walker) walk(dir, rel string, visit func(Directory) error) error {
	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	current := Directory{Path: dir, RelPath: rel}
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		switch mode := entry.Mode(); {
		case mode.IsDir():
			if w.skip(name, path.Join(rel, name)) {
				continue
			}
			subdirs = append(subdirs, name)
		case mode.IsRegular():
			current.Files = append(current.Files, name)
		case mode&os.ModeSymlink != 0:
			// Links to files are uploaded, links to directories are not followed.
			target, err := w.fs.Stat(filepath.Join(dir, name))
			if err == nil && target.IsDir() {
				continue
			}
			current.Files = append(current.Files, name)
		}
	}

	if err := visit(current); err != nil {
		return err
	}

	for _, name := range subdirs {
		if err := w.walk(filepath.Join(dir, name), path.Join(rel, name), visit); err != nil {
			return err
		}
	}

	return nil
}
