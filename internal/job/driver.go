// Package job runs conversions over a batch of inputs held in a shared
// store. Each input is fetched into a local work directory, partitioned, and
// its files uploaded to <output>/<basename>/. A failed input never aborts its
// siblings; it is retried with exponential backoff when the failure is
// transient and reported with code 1 otherwise.
package job

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/exoseq/internal/partition"
	"github.com/ajitpratap0/exoseq/pkg/config"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/exodus"
	"github.com/ajitpratap0/exoseq/pkg/logger"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
	"github.com/ajitpratap0/exoseq/pkg/observability"
	"github.com/ajitpratap0/exoseq/pkg/storage"
)

// inputDir holds fetched inputs under the work directory, apart from the
// per-input staging directories.
const inputDir = ".inputs"

// Driver converts batches of inputs.
type Driver struct {
	config      *config.Config
	logger      *zap.Logger
	partitioner *partition.Partitioner
	storeOpts   *storage.Options
	monitor     *ResourceMonitor
}

// New creates a Driver. The config must name an output location and a
// positive window size.
func New(cfg *config.Config, log *zap.Logger) (*Driver, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Conversion.WindowSize < 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "window_size must be at least 1")
	}
	if cfg.Job.OutputDir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output_dir is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	alg, err := cfg.Conversion.Algorithm()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
	}

	log = log.With(zap.String("component", "job"))
	return &Driver{
		config: cfg,
		logger: log,
		partitioner: partition.New(&partition.Config{
			Compression: alg,
			Level:       cfg.Conversion.Level(),
			NamedValues: cfg.Conversion.NamedValues,
		}, log),
		storeOpts: &storage.Options{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			CredentialsFile: cfg.Storage.CredentialsFile,
			PartSize:        cfg.Storage.UploadPartSize,
			Concurrency:     cfg.Storage.UploadConcurrency,
			Logger:          log,
		},
		monitor: NewResourceMonitor(),
	}, nil
}

// Run converts every input with at most Workers conversions in flight. Lines
// are parsed with ParseInput; blank lines are ignored. The returned error is
// non-nil only when the run could not start; per-input failures are in the
// report.
func (d *Driver) Run(ctx context.Context, inputs []string) (*Report, error) {
	timer := metrics.NewTimer("batch")
	defer func() {
		metrics.OperationDuration.WithLabelValues(timer.Name(), "ok").Observe(timer.Stop().Seconds())
	}()

	var tasks []string
	for _, line := range inputs {
		if in, ok := ParseInput(line); ok {
			tasks = append(tasks, in)
		}
	}

	if err := os.MkdirAll(d.config.Job.WorkDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create work directory").
			WithDetail("path", d.config.Job.WorkDir)
	}
	out, err := storage.Open(ctx, d.config.Job.OutputDir, d.storeOpts)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	workers := d.config.Job.GetWorkers()
	d.logger.Info("starting batch",
		zap.Int("inputs", len(tasks)),
		zap.Int("workers", workers),
		zap.Int("window_size", d.config.Conversion.WindowSize),
		zap.String("output", d.config.Job.OutputDir))

	statuses := make([]Status, len(tasks))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, input := range tasks {
		g.Go(func() error {
			statuses[i] = d.ConvertOne(ctx, out, input)
			return nil
		})
	}
	_ = g.Wait()

	report := NewReport(statuses)
	d.logger.Info("batch complete",
		zap.Int("converted", report.Converted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", report.Failures))

	if p := d.config.Job.ReportPath; p != "" {
		if err := report.WriteFile(p); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ConvertOne converts a single input and uploads its files to out. Transient
// failures are retried per the reliability settings.
func (d *Driver) ConvertOne(ctx context.Context, out storage.Store, input string) Status {
	start := time.Now()
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	ctx = logger.WithValue(ctx, logger.InputKey, input)
	log := d.logger.With(logger.Fields(ctx)...)
	rel := &d.config.Reliability
	status := Status{Input: input}

	var (
		res *partition.Result
		err error
	)
	for attempt := 1; ; attempt++ {
		status.Attempts = attempt
		res, err = d.attempt(logger.WithValue(ctx, logger.AttemptKey, attempt), out, input)
		if err == nil {
			metrics.TaskAttempts.WithLabelValues("success").Inc()
			break
		}
		if attempt >= rel.Attempts() || !errors.IsRetryable(err) || ctx.Err() != nil {
			metrics.TaskAttempts.WithLabelValues("failure").Inc()
			break
		}
		metrics.TaskAttempts.WithLabelValues("retry").Inc()
		delay := rel.Backoff(attempt)
		log.Warn("conversion attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := sleep(ctx, delay); serr != nil {
			err = errors.Wrap(serr, errors.ErrorTypeTimeout, "retry wait interrupted")
			break
		}
	}
	status.Duration = time.Since(start)

	if err != nil {
		status.Code = 1
		status.Error = err.Error()
		status.ErrorType = string(errors.TypeOf(err))
		metrics.Conversions.WithLabelValues("failed").Inc()
		metrics.ConversionDuration.WithLabelValues("failed").Observe(status.Duration.Seconds())
		log.Error("conversion failed",
			zap.Int("attempts", status.Attempts),
			zap.String("error_type", status.ErrorType),
			zap.Error(err))
	} else {
		status.Skipped = res.Skipped
		status.Partitions = len(res.Partitions)
		status.Bytes = res.Bytes
	}

	d.sampleResources(log)
	return status
}

// attempt runs one fetch, partition and upload cycle.
func (d *Driver) attempt(ctx context.Context, out storage.Store, input string) (*partition.Result, error) {
	if t := d.config.Job.TaskTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	var res *partition.Result
	err := observability.Trace(ctx, "convert", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("input", input)

		local, owned, err := d.fetch(ctx, input)
		if err != nil {
			return err
		}
		if owned && !d.config.Job.KeepStaging {
			defer os.Remove(local)
		}

		basename := partition.BaseName(local)
		staging := filepath.Join(d.config.Job.WorkDir, basename)
		if err := os.RemoveAll(staging); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to clear staging directory").WithDetail("path", staging)
		}
		if err := os.MkdirAll(staging, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create staging directory").WithDetail("path", staging)
		}
		if !d.config.Job.KeepStaging {
			defer os.RemoveAll(staging)
		}

		res, err = d.convert(ctx, local, staging)
		if err != nil {
			return err
		}
		span.SetAttribute("skipped", res.Skipped)
		span.SetAttribute("partitions", len(res.Partitions))
		if res.Skipped {
			d.logger.With(logger.Fields(ctx)...).Info("input skipped",
				zap.Int("steps", res.Total),
				zap.Int("window_size", d.config.Conversion.WindowSize))
			return nil
		}
		return d.upload(ctx, out, staging, basename, res.Files())
	})
	return res, err
}

// fetch copies input into the work directory, replacing any stale copy.
// owned is false for local inputs, which are read where they are.
func (d *Driver) fetch(ctx context.Context, input string) (local string, owned bool, err error) {
	err = observability.Trace(ctx, "fetch", func(ctx context.Context, span *observability.Span) error {
		src, name, err := storage.Resolve(ctx, input, d.storeOpts)
		if err != nil {
			return err
		}
		defer src.Close()

		span.SetAttribute("source", src.URI(name))
		if _, ok := src.(*storage.LocalStore); ok {
			// local inputs are read in place
			local = src.URI(name)
			return nil
		}
		dir := filepath.Join(d.config.Job.WorkDir, inputDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create input directory").WithDetail("path", dir)
		}
		local, owned = filepath.Join(dir, name), true
		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove stale input").WithDetail("path", local)
		}
		return src.Fetch(ctx, name, local)
	})
	return local, owned, err
}

func (d *Driver) convert(ctx context.Context, local, staging string) (*partition.Result, error) {
	f, err := exodus.Open(local)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return d.partitioner.Partition(ctx, f, partition.Request{
		Artifact:   local,
		WindowSize: d.config.Conversion.WindowSize,
		OutputDir:  staging,
		Variables:  d.config.Conversion.Variables,
	})
}

// upload puts every produced file under basename/, overwriting existing
// objects.
func (d *Driver) upload(ctx context.Context, out storage.Store, staging, basename string, files []string) error {
	return observability.Trace(ctx, "upload", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("files", len(files))
		for _, name := range files {
			if err := out.Put(ctx, filepath.Join(staging, name), path.Join(basename, name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) sampleResources(log *zap.Logger) {
	usage, err := d.monitor.Sample()
	if err != nil {
		log.Debug("resource sample unavailable", zap.Error(err))
		return
	}
	metrics.MemoryUsed.Set(float64(usage.MemoryRSS))
	log.Info("resource usage",
		zap.Uint64("rss_bytes", usage.MemoryRSS),
		zap.Float64("cpu_percent", usage.CPUPercent),
		zap.Int("goroutines", usage.GoroutineCount))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
