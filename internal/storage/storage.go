// Package storage contains the asset storage abstraction and its backends: a local directory tree
// served as static files, and an S3-compatible object store (MinIO).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned by Get when no object exists under the key.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for keys that are empty or would escape the storage root.
	ErrInvalidKey = errors.New("storage: invalid key")
	// ErrExists is returned by Put when an object is already stored under the key.
	ErrExists = errors.New("storage: object already exists")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// AppLocation holds the storage keys of an application's asset folders.
type AppLocation struct {
	PackageDir     string
	ScreenshotsDir string
}

// Storage is the asset store used by upload, delete and download flows.
// Keys are slash-separated and relative to the storage root, e.g. apps/Foo/icon.png.
type Storage interface {
	// EnsureAppStorage provisions the folders for an application title. It is idempotent.
	EnsureAppStorage(ctx context.Context, title string) (AppLocation, error)
	// Put uploads an object under the given key using the provided reader and options.
	// It never replaces an existing object; ErrExists is returned instead.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object below the given folder key.
	DeletePrefix(ctx context.Context, prefix string) error
}
