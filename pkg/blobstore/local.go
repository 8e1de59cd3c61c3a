package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/logger"
)

// Local writes blobs to a directory on disk. Development backend; the
// directory is also served under /uploads/ for direct download.
type Local struct {
	dir string
	log *logger.Logger
}

func NewLocal(dir string, log *logger.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Local{dir: dir, log: log}, nil
}

func (l *Local) Put(_ context.Context, filename string, r io.Reader) (string, error) {
	name := timestampedName(filepath.Base(filename))
	dst, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return "", wrap(err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", wrap(err)
	}
	l.log.Debug("blob stored", "backend", "local", "ref", name)
	return "/uploads/" + name, nil
}

func (l *Local) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	name := filepath.Base(strings.TrimPrefix(ref, "/uploads/"))
	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("blob", ref)
		}
		return nil, wrap(err)
	}
	return f, nil
}
