package compression

import (
	"fmt"
	"math/rand"
	"testing"
)

// noisyFieldBytes is fieldBytes with measurement noise, the worst realistic case.
func noisyFieldBytes(n int) []byte {
	buf := fieldBytes(n)
	r := rand.New(rand.NewSource(1))
	for off := 6; off+8 <= len(buf); off += 9 {
		buf[off+7] = byte(r.Intn(256))
		buf[off+6] = byte(r.Intn(256))
	}
	return buf
}

// Benchmark compression algorithms over field-sized values
func BenchmarkCompression(b *testing.B) {
	nodeCounts := []int{1_000, 100_000, 1_000_000}
	dataTypes := map[string]func(int) []byte{
		"Smooth": fieldBytes,
		"Noisy":  noisyFieldBytes,
	}

	for _, algo := range Algorithms[1:] {
		for _, nodes := range nodeCounts {
			for dataType, generator := range dataTypes {
				testData := generator(nodes)

				b.Run(fmt.Sprintf("%s/%s/%s", algo, dataType, formatBytes(len(testData))), func(b *testing.B) {
					compressor, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
					if err != nil {
						b.Fatal(err)
					}

					b.ResetTimer()
					b.SetBytes(int64(len(testData)))
					for i := 0; i < b.N; i++ {
						if _, err := compressor.Compress(testData); err != nil {
							b.Fatal(err)
						}
					}
				})
			}
		}
	}
}

// Benchmark decompression
func BenchmarkDecompression(b *testing.B) {
	testData := fieldBytes(100_000)
	for _, algo := range Algorithms[1:] {
		b.Run(string(algo), func(b *testing.B) {
			compressor, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
			if err != nil {
				b.Fatal(err)
			}
			compressed, err := compressor.Compress(testData)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.SetBytes(int64(len(testData)))
			for i := 0; i < b.N; i++ {
				if _, err := compressor.Decompress(compressed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Report compression ratios per level
func BenchmarkCompressionRatio(b *testing.B) {
	testData := noisyFieldBytes(100_000)
	for _, algo := range Algorithms[1:] {
		for _, level := range []Level{Fastest, Default, Best} {
			b.Run(fmt.Sprintf("%s/%s", algo, level), func(b *testing.B) {
				compressor, err := NewCompressor(&Config{Algorithm: algo, Level: level})
				if err != nil {
					b.Fatal(err)
				}
				var compressed []byte
				for i := 0; i < b.N; i++ {
					compressed, err = compressor.Compress(testData)
					if err != nil {
						b.Fatal(err)
					}
				}
				b.ReportMetric(float64(len(testData))/float64(len(compressed)), "ratio")
			})
		}
	}
}

func formatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.0f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
