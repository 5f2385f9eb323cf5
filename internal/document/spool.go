package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// Spool buffers uploaded files on disk before extraction. Concurrent
// uploads of the same file name serialize on a per-name file lock so a
// half-written upload is never extracted.
type Spool struct {
	dir string
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Put writes r to a spool file named after name and returns its path.
// The caller must invoke cleanup when extraction is done; it releases
// the name lock and removes the spool file.
func (s *Spool) Put(name string, r io.Reader) (path string, cleanup func(), err error) {
	safe := sanitizeName(name)
	path = filepath.Join(s.dir, safe)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", nil, fmt.Errorf("locking spool entry: %w", err)
	}

	cleanup = func() {
		_ = os.Remove(path)
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("creating spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing spool file: %w", err)
	}
	return path, cleanup, nil
}

// sanitizeName strips path components and characters unsafe for a
// file name, keeping the extension so extraction can dispatch on it.
func sanitizeName(name string) string {
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '\x00':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "upload"
	}
	return base
}
