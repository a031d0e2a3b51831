package compression

import "fmt"

// Hadoop codec class names recorded in container headers.
const (
	DefaultCodecClass = "org.apache.hadoop.io.compress.DefaultCodec"
	GzipCodecClass    = "org.apache.hadoop.io.compress.GzipCodec"
	SnappyCodecClass  = "org.apache.hadoop.io.compress.SnappyCodec"
	LZ4CodecClass     = "org.apache.hadoop.io.compress.Lz4Codec"
	ZstdCodecClass    = "org.apache.hadoop.io.compress.ZStandardCodec"
	S2CodecClass      = "com.github.klauspost.compress.S2Codec"
)

var codecClasses = map[Algorithm]string{
	Deflate: DefaultCodecClass,
	Gzip:    GzipCodecClass,
	Snappy:  SnappyCodecClass,
	LZ4:     LZ4CodecClass,
	Zstd:    ZstdCodecClass,
	S2:      S2CodecClass,
}

// CodecClass returns the class name a container header records for a. None
// has no class name.
func CodecClass(a Algorithm) (string, error) {
	class, ok := codecClasses[a]
	if !ok {
		return "", fmt.Errorf("no codec class for algorithm %q", a)
	}
	return class, nil
}

// AlgorithmForCodec maps a header class name back to its algorithm.
func AlgorithmForCodec(class string) (Algorithm, error) {
	for a, c := range codecClasses {
		if c == class {
			return a, nil
		}
	}
	return "", fmt.Errorf("unsupported compression codec %q", class)
}
