package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/exoseq/internal/partition"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/exodus"
	"github.com/ajitpratap0/exoseq/pkg/observability"
	"github.com/ajitpratap0/exoseq/pkg/storage"
)

func (a *app) convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <window_size> <input> <output_directory>",
		Short: "Partition one Exodus file into windows of time steps",
		Long: `Convert one Exodus file into <basename>_part<i>.seq files of window_size
time steps each, plus index.seq, inside an existing output directory.

The input may be a local path or an s3:// or gs:// object, which is fetched
into a temporary directory first. An input with fewer time steps than the
window size is skipped without writing anything.

Example:
  exoseq convert 10 heat.e out/ --variables TEMP,PRESSURE --compression zstd`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 3 {
				_ = cmd.Usage()
				return fmt.Errorf("convert takes 3 arguments, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := strconv.Atoi(args[0])
			if err != nil || window < 1 {
				_ = cmd.Usage()
				return errors.Newf(errors.ErrorTypeValidation, "window_size must be an integer of at least 1, got %q", args[0])
			}
			return a.convert(cmd.Context(), window, args[1], args[2])
		},
	}

	f := cmd.Flags()
	f.StringSlice("variables", []string{"TEMP"}, "Node variables stored per time step, in order")
	f.String("compression", "none", "Record value compression (none, gzip, deflate, snappy, s2, lz4, zstd)")
	f.Int("compression-level", 5, "Compression level (1-9)")
	f.Bool("named", false, "Store (name, values) tuples even for a single variable")
	return cmd
}

func (a *app) convert(ctx context.Context, window int, input, outdir string) error {
	if info, err := os.Stat(outdir); err != nil || !info.IsDir() {
		return errors.New(errors.ErrorTypeNotFound, "output directory does not exist").WithDetail("path", outdir)
	}

	alg, err := a.cfg.Conversion.Algorithm()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
	}
	p := partition.New(&partition.Config{
		Compression: alg,
		Level:       a.cfg.Conversion.Level(),
		NamedValues: a.cfg.Conversion.NamedValues,
	}, a.log)

	var res *partition.Result
	err = observability.Trace(ctx, "convert", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("input", input)
		span.SetAttribute("window_size", window)

		local, cleanup, err := a.localInput(ctx, input)
		if err != nil {
			return err
		}
		defer cleanup()

		ds, err := exodus.Open(local)
		if err != nil {
			return err
		}
		defer ds.Close()

		res, err = p.Partition(ctx, ds, partition.Request{
			Artifact:   local,
			WindowSize: window,
			OutputDir:  outdir,
			Variables:  a.cfg.Conversion.Variables,
		})
		return err
	})
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintf(a.stderr, "%s has %d time steps, fewer than the window size %d; nothing to do\n",
			input, res.Total, window)
		return nil
	}
	fmt.Fprintf(a.stdout, "wrote %d partitions of %d time steps to %s\n",
		len(res.Partitions), res.Total, filepath.Join(outdir, partition.IndexName))
	return nil
}

// localInput returns a local path for input, fetching remote objects into a
// temporary directory removed by cleanup.
func (a *app) localInput(ctx context.Context, input string) (string, func(), error) {
	loc, err := storage.ParseLocation(input)
	if err != nil {
		return "", nil, err
	}
	if loc.Scheme == "file" {
		return loc.Path, func() {}, nil
	}

	src, name, err := storage.Resolve(ctx, input, a.storeOptions())
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "exoseq-*")
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary directory")
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			a.log.Warn("failed to remove temporary directory", zap.String("path", dir), zap.Error(err))
		}
	}
	local := filepath.Join(dir, name)
	if err := src.Fetch(ctx, name, local); err != nil {
		cleanup()
		return "", nil, err
	}
	return local, cleanup, nil
}

func (a *app) storeOptions() *storage.Options {
	return &storage.Options{
		Region:          a.cfg.Storage.Region,
		Endpoint:        a.cfg.Storage.Endpoint,
		CredentialsFile: a.cfg.Storage.CredentialsFile,
		PartSize:        a.cfg.Storage.UploadPartSize,
		Concurrency:     a.cfg.Storage.UploadConcurrency,
		Logger:          a.log,
	}
}
