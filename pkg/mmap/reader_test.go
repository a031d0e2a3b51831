package mmap

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadRange(t *testing.T) {
	data := make([]byte, 3*os.Getpagesize()+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	r, err := Open(writeFile(t, data))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(len(data)), r.Size())

	got, err := r.ReadRange(100, 50)
	require.NoError(t, err)
	assert.Equal(t, data[100:150], got)

	// clipped at end of file
	got, err = r.ReadRange(int64(len(data)-5), 100)
	require.NoError(t, err)
	assert.Equal(t, data[len(data)-5:], got)

	_, err = r.ReadRange(int64(len(data)), 1)
	assert.Error(t, err)
	_, err = r.ReadRange(-1, 1)
	assert.Error(t, err)

	bytesRead, pages := r.Stats()
	assert.Equal(t, int64(55), bytesRead)
	assert.Equal(t, int64(2), pages)
}

func TestReadAt(t *testing.T) {
	data := []byte("exodus mesh payload")
	r, err := Open(writeFile(t, data))
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "mesh", string(buf))

	buf = make([]byte, 10)
	n, err = r.ReadAt(buf, int64(len(data)-3))
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "oad", string(buf[:n]))

	_, err = r.ReadAt(buf, int64(len(data)))
	assert.Equal(t, io.EOF, err)

	r.Sequential()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := make([]byte, 6)
			_, err := r.ReadAt(b, 0)
			assert.NoError(t, err)
			assert.Equal(t, "exodus", string(b))
		}()
	}
	wg.Wait()
}

func TestEmptyFile(t *testing.T) {
	r, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Size())
	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, io.EOF, err)
	require.NoError(t, r.Close())
}

func TestClosed(t *testing.T) {
	r, err := Open(writeFile(t, []byte("abc")))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = r.ReadRange(0, 1)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
