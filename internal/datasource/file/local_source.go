// Package file implements local filesystem sources and destinations, topic
// list files and the timestamped output naming used by extraction.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"topicetl/internal/datasource"
)

var (
	_ datasource.Source      = (*Local)(nil)
	_ datasource.Destination = (*Local)(nil)
)

// Local is a file on the local disk.
type Local struct{ path string }

// NewLocal binds a Local to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A context that is already done wins over
// the filesystem. Errors keep the os error chain (errors.Is(err,
// os.ErrNotExist) works).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Create truncates or creates the file, making parent directories as needed.
func (l *Local) Create(ctx context.Context) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", l.path, err)
		}
	}
	f, err := os.Create(l.path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", l.path, err)
	}
	return f, nil
}
