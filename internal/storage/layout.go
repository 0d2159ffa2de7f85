package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// AppsDir is the top-level folder holding one sub-folder per application title.
	AppsDir = "apps"
	// ScreenshotsDir is the per-application screenshots sub-folder.
	ScreenshotsDir = "screenshots"
	// PublicPrefix is the URL prefix the asset tree is served under.
	PublicPrefix = "/" + AppsDir

	maxSegmentRunes = 100
)

// ErrUnsafeName is returned when a user-supplied string cannot be used as a path segment.
var ErrUnsafeName = errors.New("storage: unsafe name")

// SafeSegment validates a user-supplied title for use as a single folder name.
// Surrounding whitespace is trimmed; anything that could traverse, nest or is illegal on
// common filesystems is rejected rather than rewritten, so the folder name always equals the title.
func SafeSegment(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", fmt.Errorf("%w: empty", ErrUnsafeName)
	case !utf8.ValidString(s):
		return "", fmt.Errorf("%w: invalid utf-8", ErrUnsafeName)
	case utf8.RuneCountInString(s) > maxSegmentRunes:
		return "", fmt.Errorf("%w: longer than %d characters", ErrUnsafeName, maxSegmentRunes)
	case strings.HasPrefix(s, "."):
		return "", fmt.Errorf("%w: leading dot", ErrUnsafeName)
	case strings.HasSuffix(s, "."):
		return "", fmt.Errorf("%w: trailing dot", ErrUnsafeName)
	}
	for _, r := range s {
		if unicode.IsControl(r) || strings.ContainsRune(`/\<>:"|?*`, r) {
			return "", fmt.Errorf("%w: character %q not allowed", ErrUnsafeName, r)
		}
	}
	return s, nil
}

// SanitizeFilename reduces a submitted filename to its base name made of [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// AppKey joins an application title and optional sub-path into a storage key under AppsDir.
// The title must already have passed SafeSegment.
func AppKey(title string, elem ...string) string {
	return path.Join(append([]string{AppsDir, title}, elem...)...)
}

// PublicURL renders a storage key as a URL path, escaping each segment.
func PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(parts, "/")
}

// ResolveAssetKey maps an unescaped path relative to the asset tree (e.g. "Foo/foo.apk")
// to a storage key below AppsDir. Traversal outside the tree is impossible by construction.
// Every asset lives in a title folder, so a path without one (a bare file name) is invalid.
func ResolveAssetKey(rel string) (string, error) {
	if strings.ContainsRune(rel, 0) || strings.Contains(rel, `\`) {
		return "", ErrInvalidKey
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if cleaned == "" || !strings.Contains(cleaned, "/") {
		return "", ErrInvalidKey
	}
	return path.Join(AppsDir, cleaned), nil
}

// checkKey rejects keys that are not already in canonical relative form.
func checkKey(key string) error {
	if key == "" || key == "." || strings.HasPrefix(key, "/") || path.Clean(key) != key ||
		key == ".." || strings.HasPrefix(key, "../") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
