package seqfile

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/exoseq/pkg/compression"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

func sampleRecords() []Record {
	coords := typedbytes.FloatArray{0, 0.5, 1, 1.5}
	return []Record{
		{Key: typedbytes.Int(-1), Value: coords},
		{Key: typedbytes.Int(-2), Value: coords},
		{Key: typedbytes.Int(-3), Value: typedbytes.FloatArray{0, 0, 0, 0}},
		{Key: typedbytes.Tuple{typedbytes.Int(0), typedbytes.Float(0)}, Value: typedbytes.FloatArray{300, 301, 302, 303}},
		{Key: typedbytes.Tuple{typedbytes.Int(1), typedbytes.Float(0.1)}, Value: typedbytes.Seq{
			typedbytes.Tuple{typedbytes.String("TEMP"), typedbytes.FloatArray{1, 2, 3, 4}},
		}},
		{Key: typedbytes.String("total"), Value: typedbytes.Int(2)},
	}
}

func writeAll(t *testing.T, w *Writer, records []Record) {
	t.Helper()
	for _, rec := range records {
		require.NoError(t, w.Append(rec.Key, rec.Value))
	}
	require.NoError(t, w.Close())
}

func readAll(t *testing.T, r *Reader) []Record {
	t.Helper()
	var out []Record
	for rec, err := range r.All() {
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func assertRecords(t *testing.T, want, got []Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, typedbytes.Equal(want[i].Key, got[i].Key), "key %d: %s", i, typedbytes.Format(got[i].Key, 4))
		assert.True(t, typedbytes.Equal(want[i].Value, got[i].Value), "value %d: %s", i, typedbytes.Format(got[i].Value, 4))
	}
}

func TestWriteRead(t *testing.T) {
	for _, alg := range compression.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, WithCompression(alg), WithMetadata("source", "cube.e"))
			require.NoError(t, err)
			writeAll(t, w, sampleRecords())
			assert.Equal(t, int64(6), w.Records())

			r, err := NewReader(&buf)
			require.NoError(t, err)
			h := r.Header()
			assert.Equal(t, alg, h.Compression)
			assert.Equal(t, TypedBytesClass, h.KeyType)
			assert.Equal(t, TypedBytesClass, h.ValueType)
			assert.Equal(t, "cube.e", h.Metadata["source"])
			if alg != compression.None {
				assert.NotEmpty(t, h.Codec)
			}
			assertRecords(t, sampleRecords(), readAll(t, r))
		})
	}
}

func TestEmptyContainer(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WithMetadata("b", "2"), WithMetadata("a", "1"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	want := []byte("TBS")
	want = append(want, Version, byte(len(TypedBytesClass)))
	want = append(want, TypedBytesClass...)
	want = append(want, byte(len(TypedBytesClass)))
	want = append(want, TypedBytesClass...)
	want = append(want, 0, 0, 0, 0, 2, 1, 'a', 1, '1', 1, 'b', 1, '2')
	assert.Equal(t, want, buf.Bytes())
}

func TestCompressedMatchesPlain(t *testing.T) {
	var plain, packed bytes.Buffer
	w, err := NewWriter(&plain)
	require.NoError(t, err)
	writeAll(t, w, sampleRecords())
	w, err = NewWriter(&packed, WithCompression(compression.Zstd), WithCompressionLevel(compression.Best))
	require.NoError(t, err)
	writeAll(t, w, sampleRecords())

	r1, err := NewReader(&plain)
	require.NoError(t, err)
	r2, err := NewReader(&packed)
	require.NoError(t, err)
	assertRecords(t, readAll(t, r1), readAll(t, r2))
}

func TestTruncatedContainer(t *testing.T) {
	for _, alg := range []compression.Algorithm{compression.None, compression.Snappy} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, WithCompression(alg))
		require.NoError(t, err)
		writeAll(t, w, sampleRecords())
		full := buf.Bytes()

		r, err := NewReader(bytes.NewReader(full[:len(full)-3]))
		require.NoError(t, err)
		var got int
		var lastErr error
		for _, err := range r.All() {
			if err != nil {
				lastErr = err
				break
			}
			got++
		}
		assert.Equal(t, len(sampleRecords())-1, got, "%s", alg)
		require.Error(t, lastErr)
		assert.True(t, errors.IsType(lastErr, errors.ErrorTypeMalformedEncoding), "%s: %v", alg, lastErr)

		// the error is sticky
		_, err = r.Next()
		assert.Equal(t, lastErr, err)
	}
}

func TestBadHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		typ  errors.ErrorType
	}{
		{"empty", nil, errors.ErrorTypeMalformedEncoding},
		{"magic", []byte("SEQ\x06"), errors.ErrorTypeMalformedEncoding},
		{"version", []byte("TBS\x02"), errors.ErrorTypeMalformedEncoding},
		{"cut in key type", []byte("TBS\x01\x05ab"), errors.ErrorTypeMalformedEncoding},
		{"wrong classes", append([]byte("TBS\x01\x01a\x01b"), 0, 0, 0, 0, 0), errors.ErrorTypeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.typ), "got %v", err)
		})
	}
}

func TestUnknownCodec(t *testing.T) {
	h := Header{Version: Version, KeyType: TypedBytesClass, ValueType: TypedBytesClass, Compression: compression.Gzip, Codec: "org.example.MysteryCodec"}
	_, err := NewReader(bytes.NewReader(appendHeader(nil, h)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
}

func TestAppendAfterClosePanics(t *testing.T) {
	w, err := NewWriter(io.Discard)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Panics(t, func() { _ = w.Append(typedbytes.Int(1), typedbytes.Int(2)) })
}

func TestAppendRejectsUnencodable(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	err = w.Append(typedbytes.Int(1), typedbytes.Seq{nil})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
	require.NoError(t, w.Append(typedbytes.Int(1), typedbytes.Int(2)))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assertRecords(t, []Record{{Key: typedbytes.Int(1), Value: typedbytes.Int(2)}}, readAll(t, r))
}

// flakyCompressor fails its first Compress call.
type flakyCompressor struct {
	compression.Compressor
	failed bool
}

func (c *flakyCompressor) Compress(data []byte) ([]byte, error) {
	if !c.failed {
		c.failed = true
		return nil, io.ErrShortBuffer
	}
	return c.Compressor.Compress(data)
}

func TestCompressFailureLeavesNoPartialRecord(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WithCompression(compression.Zstd))
	require.NoError(t, err)
	w.comp = &flakyCompressor{Compressor: w.comp}

	err = w.Append(typedbytes.String("lost"), typedbytes.FloatArray{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWriteFailure))
	assert.Equal(t, int64(0), w.Records())

	require.NoError(t, w.Append(typedbytes.String("kept"), typedbytes.FloatArray{4, 5}))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assertRecords(t, []Record{{Key: typedbytes.String("kept"), Value: typedbytes.FloatArray{4, 5}}}, readAll(t, r))
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, io.ErrClosedPipe
	}
	f.after--
	return len(p), nil
}

func TestWriteFailure(t *testing.T) {
	w, err := NewWriter(&failingWriter{after: 1}, WithBufferSize(16))
	require.NoError(t, err)
	err = w.Append(typedbytes.String("a long enough key to spill"), typedbytes.Int(1))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWriteFailure))
	assert.True(t, errors.IsRetryable(err))
}

func TestCreateAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.seq")

	w, err := CreateAtomic(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(typedbytes.String("cube_part0.seq"), typedbytes.Int(10)))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "final file visible before Close")
	_, err = os.Stat(path + ".tmp")
	require.NoError(t, err)

	require.NoError(t, w.Close())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	h, records, err := ReadAll(path)
	require.NoError(t, err)
	assert.False(t, h.Compressed())
	assertRecords(t, []Record{{Key: typedbytes.String("cube_part0.seq"), Value: typedbytes.Int(10)}}, records)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.seq"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestVLong(t *testing.T) {
	values := []int64{0, 1, -1, 127, -112, 128, -113, -121, 255, 256, 1 << 20, -(1 << 20), 1<<62 + 5, -1 << 63, 1<<63 - 1}
	for _, v := range values {
		b := appendVLong(nil, v)
		got, err := readVLong(bufio.NewReader(bytes.NewReader(b)))
		require.NoError(t, err, "%d", v)
		assert.Equal(t, v, got, "bytes % x", b)
	}

	assert.Equal(t, []byte{0x7f}, appendVLong(nil, 127))
	assert.Equal(t, []byte{0x8f, 0x80}, appendVLong(nil, 128))
	assert.Equal(t, []byte{0x8e, 0x01, 0x00}, appendVLong(nil, 256))
	assert.Equal(t, []byte{0x87, 0x70}, appendVLong(nil, -113))
}

func TestDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.seq")

	w, err := CreateAtomic(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(typedbytes.String("cube_part0.seq"), typedbytes.Int(10)))
	require.NoError(t, w.Discard())
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
