package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		uri  string
		want Location
	}{
		{"/data/runs", Location{Scheme: "file", Path: "/data/runs"}},
		{"runs", Location{Scheme: "file", Path: "runs"}},
		{"file:///data/runs", Location{Scheme: "file", Path: "/data/runs"}},
		{"s3://sims/exodus/", Location{Scheme: "s3", Bucket: "sims", Path: "exodus"}},
		{"s3://sims", Location{Scheme: "s3", Bucket: "sims"}},
		{"gs://sims/a/b", Location{Scheme: "gs", Bucket: "sims", Path: "a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseLocation(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "ftp://host/x", "s3:///key"} {
		_, err := ParseLocation(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "%q: %v", bad, err)
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "cube/index.seq", objectKey("", "cube/index.seq"))
	assert.Equal(t, "out/cube/index.seq", objectKey("out", "/cube/index.seq"))
}

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.e")
	require.NoError(t, os.WriteFile(path, []byte("mesh"), 0o644))

	st, name, err := Resolve(context.Background(), path, nil)
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, "cube.e", name)
	assert.Equal(t, path, st.URI(name))

	st, name, err = Resolve(context.Background(), "cube.e", nil)
	require.NoError(t, err)
	assert.Equal(t, "cube.e", name)
	assert.IsType(t, &LocalStore{}, st)
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	work := t.TempDir()

	st, err := Open(ctx, "file://"+root, nil)
	require.NoError(t, err)
	defer st.Close()

	src := filepath.Join(work, "cube_part0.seq")
	require.NoError(t, os.WriteFile(src, []byte("first"), 0o644))

	ok, err := st.Exists(ctx, "cube/cube_part0.seq")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Put(ctx, src, "cube/cube_part0.seq"))
	ok, err = st.Exists(ctx, "cube/cube_part0.seq")
	require.NoError(t, err)
	assert.True(t, ok)

	// overwrite
	require.NoError(t, os.WriteFile(src, []byte("second"), 0o644))
	require.NoError(t, st.Put(ctx, src, "cube/cube_part0.seq"))
	data, err := os.ReadFile(filepath.Join(root, "cube", "cube_part0.seq"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	dst := filepath.Join(work, "fetched.seq")
	require.NoError(t, os.WriteFile(dst, []byte("stale contents"), 0o644))
	require.NoError(t, st.Fetch(ctx, "cube/cube_part0.seq", dst))
	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	require.NoError(t, st.Delete(ctx, "cube/cube_part0.seq"))
	require.NoError(t, st.Delete(ctx, "cube/cube_part0.seq"))
	ok, err = st.Exists(ctx, "cube/cube_part0.seq")
	require.NoError(t, err)
	assert.False(t, ok)

	err = st.Fetch(ctx, "cube/absent.seq", dst)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	// no temporary files left behind
	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLocalStoreSameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cube.e")
	require.NoError(t, os.WriteFile(path, []byte("mesh"), 0o644))

	st := NewLocalStore(dir)
	require.NoError(t, st.Fetch(context.Background(), "cube.e", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mesh", string(data))
}

func TestLocalStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := NewLocalStore(t.TempDir())
	err := st.Fetch(ctx, "cube.e", filepath.Join(t.TempDir(), "cube.e"))
	assert.True(t, errors.IsRetryable(err))
}
