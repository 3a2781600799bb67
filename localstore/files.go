package localstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// files keeps object bytes under an os.Root so keys cannot escape the bucket directory.
type files struct {
	root *os.Root
}

type writeResult struct {
	size int64
	etag string
}

func (f *files) open(ctx context.Context, key string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := f.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSuchKey
		}
		return nil, fmt.Errorf("open object: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, ErrNoSuchKey
	}

	return file, nil
}

func (f *files) exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := f.root.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return !info.IsDir(), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// write replaces the object at key with content. Bytes land in a temp file
// first and are renamed into place, so readers never see a partial object.
func (f *files) write(ctx context.Context, key string, content io.Reader) (writeResult, error) {
	if err := ctx.Err(); err != nil {
		return writeResult{}, err
	}

	tmpName := fmt.Sprintf(".t%s", uuid.NewString())
	tmp, err := f.root.Create(tmpName)
	if err != nil {
		return writeResult{}, fmt.Errorf("create temp object: %w", err)
	}

	committed := false
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil {
			slog.Warn("failed to close temp object", "err", closeErr)
		}
		if !committed {
			if rmErr := f.root.Remove(tmpName); rmErr != nil {
				slog.Warn("failed to remove temp object", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(h, tmp), &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return writeResult{}, fmt.Errorf("copy object contents: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return writeResult{}, fmt.Errorf("sync object: %w", err)
	}

	if dir := filepath.Dir(key); dir != "." {
		if err := f.root.MkdirAll(dir, 0o755); err != nil {
			return writeResult{}, fmt.Errorf("create object directories: %w", err)
		}
	}

	if err := f.root.Rename(tmpName, key); err != nil {
		return writeResult{}, fmt.Errorf("rename object: %w", err)
	}
	committed = true

	return writeResult{size: size, etag: hex.EncodeToString(h.Sum(nil))}, nil
}
