// Package storage publishes finished exports to their final location.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tejashwikalptaru/govis/internal/ports"
)

// LocalSink keeps exports on the local filesystem. With a non-empty Dir the
// file is moved there; otherwise it stays where the encoder wrote it.
type LocalSink struct {
	Dir string
}

// NewLocalSink creates a sink that collects exports under dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{Dir: dir}
}

// Name implements ports.ExportSink.
func (s *LocalSink) Name() string { return "local" }

// Publish implements ports.ExportSink and returns the absolute file path.
func (s *LocalSink) Publish(ctx context.Context, _ string, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("local sink: %w", err)
	}

	dest := path
	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return "", fmt.Errorf("local sink: %w", err)
		}
		dest = filepath.Join(s.Dir, filepath.Base(path))
		if err := move(path, dest); err != nil {
			return "", fmt.Errorf("local sink: %w", err)
		}
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return dest, nil
	}
	return abs, nil
}

// move renames src to dst, copying when they are on different filesystems.
func move(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

var _ ports.ExportSink = (*LocalSink)(nil)
