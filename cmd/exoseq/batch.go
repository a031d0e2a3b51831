package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/exoseq/internal/job"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/logger"
)

func (a *app) batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <input-list>",
		Short: "Convert every input listed in a file",
		Long: `Convert a batch of inputs in parallel. The input list holds one location
per line, either bare or as "offset<TAB>location"; "-" reads it from stdin.
Each input is fetched into the work directory, partitioned, and uploaded to
<outdir>/<basename>/. Failed inputs are retried when the failure is transient
and never stop the rest of the batch.

One "input<TAB>code" line is printed per input (0 converted or skipped,
1 failed), followed by the total number of failures.

Example:
  exoseq batch --timesteps 10 --outdir s3://sims/partitions --variables TEMP inputs.txt

--timesteps, --outdir and --variables are required; each may also come from
the config file or an EXOSEQ_* variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBatchSettings(cmd); err != nil {
				return err
			}
			inputs, err := readInputList(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			d, err := job.New(a.cfg, a.log)
			if err != nil {
				return err
			}

			ctx := logger.WithValue(cmd.Context(), logger.JobIDKey, "batch-"+strconv.FormatInt(time.Now().Unix(), 10))
			report, err := d.Run(ctx, inputs)
			if err != nil {
				return err
			}

			for _, t := range report.Totals() {
				fmt.Fprintf(a.stdout, "%s\t%d\n", t.Input, t.Code)
			}
			fmt.Fprintf(a.stdout, "failures\t%d\n", report.Failures)
			if report.Failures > 0 {
				return errors.Newf(errors.ErrorTypeInternal, "%d of %d inputs failed", report.Failures, len(report.Statuses))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Int("timesteps", 0, "Time steps per partition (window size, required)")
	f.String("outdir", "", "Output location: a directory, s3://bucket/prefix or gs://bucket/prefix (required)")
	f.StringSlice("variables", nil, "Node variables stored per time step, in order (required)")
	f.String("compression", "none", "Record value compression (none, gzip, deflate, snappy, s2, lz4, zstd)")
	f.Int("compression-level", 5, "Compression level (1-9)")
	f.Bool("named", false, "Store (name, values) tuples even for a single variable")
	f.Int("workers", 0, "Concurrent conversions (0 = number of CPUs)")
	f.String("work-dir", "work", "Local staging directory")
	f.Duration("task-timeout", 0, "Timeout for one attempt of one input (0 = none)")
	f.Int("retries", 3, "Attempts per input, including the first")
	f.Duration("retry-delay", time.Second, "Delay before the first retry; later retries back off exponentially")
	f.String("report", "", "Write one JSON status line per input to this file")
	f.Bool("keep-staging", false, "Keep local staging files after upload")
	f.String("region", "us-east-1", "S3 region")
	f.String("endpoint", "", "S3 or GCS endpoint override")
	return cmd
}

// requireBatchSettings rejects a batch missing its window size, output
// location or variable list. The variable list has a default for convert, so
// batch accepts it only when the user chose it.
func (a *app) requireBatchSettings(cmd *cobra.Command) error {
	var missing []string
	if a.cfg.Conversion.WindowSize < 1 {
		missing = append(missing, "--timesteps")
	}
	if a.cfg.Job.OutputDir == "" {
		missing = append(missing, "--outdir")
	}
	if !a.explicit(cmd, "variables", "conversion.variables") {
		missing = append(missing, "--variables")
	}
	if len(missing) == 0 {
		return nil
	}
	_ = cmd.Usage()
	return errors.Newf(errors.ErrorTypeValidation, "batch requires %s", strings.Join(missing, ", "))
}

func readInputList(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return job.ReadInputs(stdin)
	}
	f, err := os.Open(path) //nolint:gosec // G304: path is the user's input list
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "input list does not exist").WithDetail("path", path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input list").WithDetail("path", path)
	}
	defer f.Close()
	return job.ReadInputs(f)
}
