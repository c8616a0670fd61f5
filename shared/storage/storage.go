// Package storage opens the auxiliary files a job reads by path. Paths
// starting with s3:// are served from an S3-compatible object store,
// everything else from the local disk.
package storage

import (
	"context"
	"io"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

// ErrNotFound is returned when the path does not exist.
var ErrNotFound = xerrors.New("file not found")

// FileSystem opens files for sequential reading.
type FileSystem interface {
	// Open returns ErrNotFound (possibly wrapped) when path does not exist.
	// Any other error means the file may exist but cannot be read.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// LocalFileSystem reads from the local disk.
type LocalFileSystem struct{}

func (LocalFileSystem) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, xerrors.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// Resolver picks the FileSystem for a path.
type Resolver struct {
	Local FileSystem
	// S3 is nil when no object store is configured.
	S3 FileSystem
}

// Open dispatches on the path scheme.
func (r Resolver) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if strings.HasPrefix(path, S3Scheme) {
		if r.S3 == nil {
			return nil, xerrors.Errorf("no object store configured for %s", path)
		}
		return r.S3.Open(ctx, path)
	}
	local := r.Local
	if local == nil {
		local = LocalFileSystem{}
	}
	return local.Open(ctx, path)
}
