package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) (Storage, string) {
	t.Helper()
	root := t.TempDir()
	st, err := NewLocal(root)
	require.NoError(t, err)
	return st, root
}

func TestLocal_EnsureAppStorage(t *testing.T) {
	st, root := newTestLocal(t)
	ctx := context.Background()

	loc, err := st.EnsureAppStorage(ctx, "My App")
	require.NoError(t, err)
	assert.Equal(t, "apps/My App", loc.PackageDir)
	assert.Equal(t, "apps/My App/screenshots", loc.ScreenshotsDir)

	info, err := os.Stat(filepath.Join(root, "apps", "My App", "screenshots"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// idempotent
	again, err := st.EnsureAppStorage(ctx, "My App")
	require.NoError(t, err)
	assert.Equal(t, loc, again)

	_, err = st.EnsureAppStorage(ctx, "../escape")
	assert.ErrorIs(t, err, ErrUnsafeName)
	_, err = os.Stat(filepath.Join(root, "escape"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_PutGet(t *testing.T) {
	st, root := newTestLocal(t)
	ctx := context.Background()
	payload := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 4096)...)

	info, err := st.Put(ctx, "apps/Foo/icon.png", bytes.NewReader(payload), PutObjectOptions{Size: int64(len(payload)), ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Equal(t, "apps/Foo/icon.png", info.Key)

	onDisk, err := os.ReadFile(filepath.Join(root, "apps", "Foo", "icon.png"))
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)

	rc, got, err := st.Get(ctx, "apps/Foo/icon.png")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, int64(len(payload)), got.Size)

	entries, err := os.ReadDir(filepath.Join(root, "apps", "Foo"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".upload-"), "temp file left behind")
	}
}

func TestLocal_GetMissing(t *testing.T) {
	st, _ := newTestLocal(t)
	ctx := context.Background()

	_, _, err := st.Get(ctx, "apps/Nope/nope.apk")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.EnsureAppStorage(ctx, "Dir")
	require.NoError(t, err)
	_, _, err = st.Get(ctx, "apps/Dir")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_InvalidKeys(t *testing.T) {
	st, _ := newTestLocal(t)
	ctx := context.Background()

	_, err := st.Put(ctx, "../outside.txt", strings.NewReader("x"), PutObjectOptions{Size: 1})
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, _, err = st.Get(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, st.DeletePrefix(ctx, "apps"), ErrInvalidKey)
}

func TestLocal_PutCancelled(t *testing.T) {
	st, root := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.Put(ctx, "apps/Foo/foo.apk", strings.NewReader("data"), PutObjectOptions{Size: 4})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(root, "apps", "Foo", "foo.apk"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocal_PutRefusesOverwrite(t *testing.T) {
	st, root := newTestLocal(t)
	ctx := context.Background()

	_, err := st.Put(ctx, "apps/Foo/foo.apk", strings.NewReader("first"), PutObjectOptions{Size: 5})
	require.NoError(t, err)

	_, err = st.Put(ctx, "apps/Foo/foo.apk", strings.NewReader("second"), PutObjectOptions{Size: 6})
	assert.ErrorIs(t, err, ErrExists)

	onDisk, err := os.ReadFile(filepath.Join(root, "apps", "Foo", "foo.apk"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(onDisk))

	entries, err := os.ReadDir(filepath.Join(root, "apps", "Foo"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	// the key is free again once deleted
	require.NoError(t, st.Delete(ctx, "apps/Foo/foo.apk"))
	_, err = st.Put(ctx, "apps/Foo/foo.apk", strings.NewReader("third"), PutObjectOptions{Size: 5})
	require.NoError(t, err)
}

func TestLocal_DeleteAndDeletePrefix(t *testing.T) {
	st, root := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"apps/Foo/foo.apk", "apps/Foo/icon.png", "apps/Foo/screenshots/s1.png", "apps/Bar/bar.apk"} {
		_, err := st.Put(ctx, key, strings.NewReader("x"), PutObjectOptions{Size: 1})
		require.NoError(t, err)
	}

	require.NoError(t, st.Delete(ctx, "apps/Foo/icon.png"))
	require.NoError(t, st.Delete(ctx, "apps/Foo/icon.png"), "deleting twice is fine")

	require.NoError(t, st.DeletePrefix(ctx, "apps/Foo"))
	_, err := os.Stat(filepath.Join(root, "apps", "Foo"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "apps", "Bar", "bar.apk"))
	assert.NoError(t, err)

	require.NoError(t, st.DeletePrefix(ctx, "apps/Missing"))
}
