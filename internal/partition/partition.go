// Package partition splits a time-indexed mesh dataset into fixed-size
// windows of time steps, writing each window as its own container file plus
// one index container listing them.
//
// # Layout
//
// For T steps and window size W, partition i covers steps
// [i*W, min(i*W+W-1, T-1)]. Every partition starts with three coordinate
// preambles keyed by AxisKey, followed by one record per step keyed by
// StepKey. The index holds one (filename, count) record per partition in
// creation order and a terminal (SummaryKey, T) record.
//
//	p := partition.New(partition.DefaultConfig(), logger)
//	res, err := p.Partition(ctx, ds, partition.Request{
//	    Artifact:   "/data/cube.e",
//	    WindowSize: 10,
//	    OutputDir:  "/out/cube",
//	    Variables:  []string{"TEMP"},
//	})
//
// A dataset with fewer than W steps is skipped: Result.Skipped is set and no
// file is created.
package partition

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/exoseq/pkg/compression"
	"github.com/ajitpratap0/exoseq/pkg/dataset"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
	"github.com/ajitpratap0/exoseq/pkg/seqfile"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

// IndexName is the file name of the index container.
const IndexName = "index.seq"

// Config controls how partitions are encoded.
type Config struct {
	Compression compression.Algorithm // Record value compression (None for plain containers)
	Level       compression.Level     // Compression level
	// NamedValues stores (name, array) tuples even for a single variable.
	NamedValues bool
}

// DefaultConfig returns plain containers with bare arrays for single
// variable requests.
func DefaultConfig() *Config {
	return &Config{
		Compression: compression.None,
		Level:       compression.Default,
	}
}

// Request names one conversion.
type Request struct {
	Artifact   string   // Input path; its base name without extension names the partitions
	WindowSize int      // Steps per partition
	OutputDir  string   // Existing directory receiving partitions and the index
	Variables  []string // Node variables stored per step, in value order
}

// Partition describes one written partition.
type Partition struct {
	Name  string `json:"name"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
	Count int    `json:"count"`
}

// Result reports the outcome of a conversion.
type Result struct {
	Skipped    bool          `json:"skipped"`
	Total      int           `json:"total"`
	Partitions []Partition   `json:"partitions,omitempty"`
	Index      string        `json:"index,omitempty"`
	Bytes      int64         `json:"bytes"`
	Duration   time.Duration `json:"duration"`
}

// Files returns the names of every file written, partitions first.
func (r *Result) Files() []string {
	if r.Skipped {
		return nil
	}
	names := make([]string, 0, len(r.Partitions)+1)
	for _, p := range r.Partitions {
		names = append(names, p.Name)
	}
	return append(names, IndexName)
}

// Partitioner converts datasets. A Partitioner holds no per-run state and may
// be shared, but each run must target its own OutputDir.
type Partitioner struct {
	config *Config
	logger *zap.Logger
}

// New creates a Partitioner. A nil config uses DefaultConfig.
func New(config *Config, logger *zap.Logger) *Partitioner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{
		config: config,
		logger: logger.With(zap.String("component", "partitioner")),
	}
}

// BaseName returns the artifact's base name without its last extension.
func BaseName(artifact string) string {
	base := filepath.Base(artifact)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PartName returns the file name of partition i.
func PartName(basename string, i int) string {
	return basename + "_part" + strconv.Itoa(i) + ".seq"
}

// Partition converts ds. Partial files are left in place on error.
func (p *Partitioner) Partition(ctx context.Context, ds dataset.Accessor, req Request) (*Result, error) {
	start := time.Now()
	if req.WindowSize < 1 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "window size must be at least 1, got %d", req.WindowSize).
			WithDetail("window_size", req.WindowSize)
	}
	total := ds.NumTimeSteps()
	logger := p.logger.With(
		zap.String("artifact", req.Artifact),
		zap.Int("window_size", req.WindowSize),
		zap.Int("time_steps", total),
	)
	if total < req.WindowSize {
		logger.Info("fewer time steps than window size, skipping")
		metrics.Conversions.WithLabelValues("skipped").Inc()
		return &Result{Skipped: true, Total: total, Duration: time.Since(start)}, nil
	}
	if len(req.Variables) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "no variables requested")
	}
	if err := dataset.CheckVariables(ds, req.Variables); err != nil {
		return nil, err
	}

	preambles, err := encodePreambles(ds)
	if err != nil {
		return nil, err
	}

	basename := BaseName(req.Artifact)
	opts := []seqfile.Option{
		seqfile.WithCompression(p.config.Compression),
		seqfile.WithCompressionLevel(p.config.Level),
	}
	index, err := seqfile.CreateAtomic(filepath.Join(req.OutputDir, IndexName), opts...)
	if err != nil {
		return nil, err
	}

	res := &Result{Total: total}
	throughput := metrics.NewThroughputTracker()
	for begin, i := 0, 0; begin < total; begin, i = begin+req.WindowSize, i+1 {
		if err := ctx.Err(); err != nil {
			_ = index.Discard()
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "conversion cancelled").
				WithDetail("partition", i)
		}
		part := Partition{
			Name:  PartName(basename, i),
			Begin: begin,
			End:   min(begin+req.WindowSize-1, total-1),
		}
		part.Count = part.End - part.Begin + 1

		size, err := p.writePartition(ds, filepath.Join(req.OutputDir, part.Name), part, preambles, req.Variables, opts)
		if err != nil {
			_ = index.Discard()
			return nil, err
		}
		if err := index.Append(typedbytes.String(part.Name), typedbytes.Int(part.Count)); err != nil {
			_ = index.Discard()
			return nil, err
		}
		throughput.Increment(int64(part.Count))
		res.Partitions = append(res.Partitions, part)
		res.Bytes += size
		logger.Debug("partition written",
			zap.String("file", part.Name),
			zap.Int("begin", part.Begin),
			zap.Int("end", part.End),
			zap.Int64("bytes", size))
	}

	if err := index.Append(SummaryKey(), typedbytes.Int(total)); err != nil {
		_ = index.Discard()
		return nil, err
	}
	if err := index.Close(); err != nil {
		return nil, err
	}
	metrics.RecordsWritten.WithLabelValues("index").Add(float64(index.Records()))
	size, err := fileSize(index.Path())
	if err != nil {
		return nil, err
	}
	res.Bytes += size
	metrics.BytesWritten.Add(float64(size))
	res.Index = IndexName
	res.Duration = time.Since(start)

	metrics.Conversions.WithLabelValues("converted").Inc()
	metrics.ConversionDuration.WithLabelValues("converted").Observe(res.Duration.Seconds())
	rate := throughput.GetAndReset()

	logger.Info("conversion complete",
		zap.Int("partitions", len(res.Partitions)),
		zap.Int64("bytes", res.Bytes),
		zap.Float64("steps_per_second", rate),
		zap.Duration("duration", res.Duration))
	return res, nil
}

type preamble struct {
	key, value []byte
}

// encodePreambles loads the coordinates once. Every partition appends the same
// bytes.
func encodePreambles(ds dataset.Accessor) ([]preamble, error) {
	out := make([]preamble, 0, len(dataset.Axes))
	for _, axis := range dataset.Axes {
		coords, err := ds.Coordinates(axis)
		if err != nil {
			return nil, readErr(err, "failed to read coordinates").WithDetail("axis", axis.String())
		}
		key, err := typedbytes.Encode(AxisKey(axis))
		if err != nil {
			return nil, err
		}
		value, err := typedbytes.Encode(typedbytes.FloatArray(coords))
		if err != nil {
			return nil, err
		}
		out = append(out, preamble{key: key, value: value})
	}
	return out, nil
}

func (p *Partitioner) writePartition(ds dataset.Accessor, path string, part Partition, preambles []preamble, variables []string, opts []seqfile.Option) (int64, error) {
	w, err := seqfile.Create(path, opts...)
	if err != nil {
		return 0, err
	}
	for _, pre := range preambles {
		if err := w.AppendRaw(pre.key, pre.value); err != nil {
			_ = w.Close()
			return 0, err
		}
	}
	for step := part.Begin; step <= part.End; step++ {
		t, err := ds.TimeValue(step)
		if err != nil {
			_ = w.Close()
			return 0, readErr(err, "failed to read time value").WithDetail("step", step)
		}
		value, err := p.stepValue(ds, variables, step)
		if err != nil {
			_ = w.Close()
			return 0, err
		}
		if err := w.Append(StepKey(step, t), value); err != nil {
			_ = w.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	metrics.PartitionsWritten.WithLabelValues(string(p.config.Compression)).Inc()
	metrics.RecordsWritten.WithLabelValues("preamble").Add(float64(len(preambles)))
	metrics.RecordsWritten.WithLabelValues("step").Add(float64(part.Count))
	size, err := fileSize(path)
	if err != nil {
		return 0, err
	}
	metrics.BytesWritten.Add(float64(size))
	return size, nil
}

// stepValue is a bare array for one variable, otherwise a sequence of
// (name, array) tuples in request order.
func (p *Partitioner) stepValue(ds dataset.Accessor, variables []string, step int) (typedbytes.Value, error) {
	if len(variables) == 1 && !p.config.NamedValues {
		vals, err := ds.VariableValues(variables[0], step)
		if err != nil {
			return nil, readErr(err, "failed to read variable").
				WithDetail("variable", variables[0]).WithDetail("step", step)
		}
		return typedbytes.FloatArray(vals), nil
	}
	seq := make(typedbytes.Seq, 0, len(variables))
	for _, name := range variables {
		vals, err := ds.VariableValues(name, step)
		if err != nil {
			return nil, readErr(err, "failed to read variable").
				WithDetail("variable", name).WithDetail("step", step)
		}
		seq = append(seq, typedbytes.Pair(typedbytes.String(name), typedbytes.FloatArray(vals)))
	}
	return seq, nil
}

// readErr keeps typed dataset errors and reports anything else as a data
// error.
func readErr(err error, msg string) *errors.Error {
	t := errors.TypeOf(err)
	if t == errors.ErrorTypeInternal {
		t = errors.ErrorTypeData
	}
	return errors.Wrap(err, t, msg)
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat container").WithDetail("path", path)
	}
	return fi.Size(), nil
}
