package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// localStorage keeps assets in a directory tree on disk, mirroring the storage keys.
// Writes land in a temporary file next to the destination and are hard-linked into place,
// so a reader never observes a partially written asset and an existing file is never replaced.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem-backed Storage rooted at root, creating root/apps if needed.
func NewLocal(root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, AppsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &localStorage{root: abs}, nil
}

func (s *localStorage) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// EnsureAppStorage creates apps/<title>/ and apps/<title>/screenshots/ when absent.
func (s *localStorage) EnsureAppStorage(ctx context.Context, title string) (AppLocation, error) {
	seg, err := SafeSegment(title)
	if err != nil {
		return AppLocation{}, err
	}
	loc := AppLocation{
		PackageDir:     AppKey(seg),
		ScreenshotsDir: AppKey(seg, ScreenshotsDir),
	}
	for _, key := range []string{loc.PackageDir, loc.ScreenshotsDir} {
		if err := ctx.Err(); err != nil {
			return AppLocation{}, err
		}
		p, err := s.path(key)
		if err != nil {
			return AppLocation{}, err
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return AppLocation{}, fmt.Errorf("create %s: %w", key, err)
		}
	}
	return loc, nil
}

// Put streams r into a new file for key.
func (s *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Link(tmp.Name(), p)
	}
	_ = os.Remove(tmp.Name())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrExists, key)
		}
		return ObjectInfo{}, fmt.Errorf("write %s: %w", key, err)
	}

	st, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the file for key. The content type is sniffed from the file header.
func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}
	mt, err := mimetype.DetectReader(f)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("sniff %s: %w", key, err)
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  mt.String(),
		LastModified: st.ModTime(),
	}, nil
}

// Delete removes the file for key.
func (s *localStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// DeletePrefix removes the directory for prefix and everything below it.
func (s *localStorage) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == AppsDir {
		return fmt.Errorf("%w: refusing to delete the asset root", ErrInvalidKey)
	}
	p, err := s.path(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

// ctxReader stops a copy once the request context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
