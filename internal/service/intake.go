package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"appstore/internal/storage"
)

// FileUpload is one submitted file. Open may be called more than once; each call starts at byte 0.
type FileUpload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// AssetFiles groups the files of one submission. Every member is optional.
type AssetFiles struct {
	Package     *FileUpload
	Icon        *FileUpload
	Screenshots []FileUpload
}

// AssetPaths are the public URLs of stored assets.
type AssetPaths struct {
	IconURL     string
	APKURL      string
	Screenshots []string
}

// IntakeLimits bounds what a single submission may contain.
type IntakeLimits struct {
	MaxPackageBytes int64
	MaxImageBytes   int64
	MaxScreenshots  int
}

type assetKind int

const (
	kindPackage assetKind = iota
	kindImage
)

var (
	packageExts = map[string]bool{".apk": true, ".aab": true}
	imageExts   = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true}
)

// plannedAsset is a validated file waiting to be written.
type plannedAsset struct {
	field       string
	file        FileUpload
	screenshot  bool
	name        string
	contentType string
}

// assetIntake validates every file of a submission before writing any of them, then writes them
// one at a time. Existing objects are never replaced. A failed write removes whatever the
// submission itself already stored.
type assetIntake struct {
	store  storage.Storage
	limits IntakeLimits
	log    logrus.FieldLogger
}

func newAssetIntake(store storage.Storage, limits IntakeLimits, log logrus.FieldLogger) *assetIntake {
	if limits.MaxScreenshots <= 0 {
		limits.MaxScreenshots = 10
	}
	return &assetIntake{store: store, limits: limits, log: log}
}

// Store writes files below the folder of title and returns their URLs along with the written keys.
// On error nothing written by this call remains in storage.
func (a *assetIntake) Store(ctx context.Context, title string, files AssetFiles) (AssetPaths, []string, error) {
	plan, err := a.plan(files)
	if err != nil {
		return AssetPaths{}, nil, err
	}
	if len(plan) == 0 {
		return AssetPaths{Screenshots: []string{}}, nil, nil
	}

	loc, err := a.store.EnsureAppStorage(ctx, title)
	if err != nil {
		if errors.Is(err, storage.ErrUnsafeName) {
			return AssetPaths{}, nil, invalid("title", err.Error())
		}
		return AssetPaths{}, nil, fmt.Errorf("%w: provision folders: %v", ErrStorage, err)
	}

	paths := AssetPaths{Screenshots: []string{}}
	written := make([]string, 0, len(plan))
	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			a.rollback(written)
			return AssetPaths{}, nil, err
		}
		dir := loc.PackageDir
		if p.screenshot {
			dir = loc.ScreenshotsDir
		}
		key := path.Join(dir, p.name)
		if err := a.write(ctx, key, p); err != nil {
			a.rollback(written)
			if errors.Is(err, storage.ErrExists) {
				a.log.WithFields(logrus.Fields{"key": key, "field": p.field}).Warn("asset already stored by another submission")
				return AssetPaths{}, nil, fmt.Errorf("%w: asset %s already exists", ErrConflict, storage.PublicURL(key))
			}
			a.log.WithError(err).WithFields(logrus.Fields{"key": key, "field": p.field}).Error("asset write failed")
			return AssetPaths{}, nil, fmt.Errorf("%w: write %s", ErrStorage, p.field)
		}
		written = append(written, key)

		url := storage.PublicURL(key)
		switch p.field {
		case "apk":
			paths.APKURL = url
		case "icon":
			paths.IconURL = url
		default:
			paths.Screenshots = append(paths.Screenshots, url)
		}
	}
	return paths, written, nil
}

func (a *assetIntake) write(ctx context.Context, key string, p plannedAsset) error {
	rc, err := p.file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = a.store.Put(ctx, key, rc, storage.PutObjectOptions{
		Size:        p.file.Size,
		ContentType: p.contentType,
		Metadata:    map[string]string{"original-filename": p.file.Filename},
	})
	return err
}

// Remove deletes keys written by Store. Failures are logged.
func (a *assetIntake) Remove(keys []string) {
	a.rollback(keys)
}

func (a *assetIntake) rollback(keys []string) {
	// the request context may already be cancelled
	ctx := context.Background()
	for _, key := range keys {
		if err := a.store.Delete(ctx, key); err != nil {
			a.log.WithError(err).WithField("key", key).Warn("asset rollback failed")
		}
	}
}

func (a *assetIntake) plan(files AssetFiles) ([]plannedAsset, error) {
	if len(files.Screenshots) > a.limits.MaxScreenshots {
		return nil, invalid("screenshots", fmt.Sprintf("at most %d files allowed", a.limits.MaxScreenshots))
	}

	var plan []plannedAsset
	used := map[string]bool{}
	add := func(field string, f FileUpload, kind assetKind, screenshot bool) error {
		ct, err := a.check(field, f, kind)
		if err != nil {
			return err
		}
		name := uniqueName(storage.SanitizeFilename(f.Filename), screenshot, used)
		plan = append(plan, plannedAsset{field: field, file: f, screenshot: screenshot, name: name, contentType: ct})
		return nil
	}

	if files.Package != nil {
		if err := add("apk", *files.Package, kindPackage, false); err != nil {
			return nil, err
		}
	}
	if files.Icon != nil {
		if err := add("icon", *files.Icon, kindImage, false); err != nil {
			return nil, err
		}
	}
	for _, s := range files.Screenshots {
		if err := add("screenshots", s, kindImage, true); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// check applies the extension allow-list, the size cap and content sniffing, returning the sniffed type.
func (a *assetIntake) check(field string, f FileUpload, kind assetKind) (string, error) {
	ext := strings.ToLower(path.Ext(f.Filename))
	limit := a.limits.MaxImageBytes
	switch kind {
	case kindPackage:
		if !packageExts[ext] {
			return "", invalid(field, "must be an .apk or .aab file")
		}
		limit = a.limits.MaxPackageBytes
	case kindImage:
		if !imageExts[ext] {
			return "", invalid(field, "must be a .png, .jpg, .jpeg, .webp or .gif image")
		}
	}
	if f.Size <= 0 {
		return "", invalid(field, fmt.Sprintf("%s is empty", f.Filename))
	}
	if limit > 0 && f.Size > limit {
		return "", invalid(field, fmt.Sprintf("%s exceeds %d bytes", f.Filename, limit))
	}
	if f.Open == nil {
		return "", invalid(field, "file is unreadable")
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	mt, err := mimetype.DetectReader(rc)
	rc.Close()
	if err != nil {
		return "", fmt.Errorf("sniff %s: %w", field, err)
	}

	switch kind {
	case kindPackage:
		if !isZipFamily(mt) {
			return "", invalid(field, "content is not an Android package")
		}
	case kindImage:
		if !strings.HasPrefix(mt.String(), "image/") {
			return "", invalid(field, "content is not an image")
		}
	}
	return mt.String(), nil
}

func isZipFamily(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

// uniqueName suffixes name with -N until it is unused within its folder for this submission.
func uniqueName(name string, screenshot bool, used map[string]bool) string {
	dir := "."
	if screenshot {
		dir = storage.ScreenshotsDir
	}
	candidate := name
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; used[dir+"/"+candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	used[dir+"/"+candidate] = true
	return candidate
}
