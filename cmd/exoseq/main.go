package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/exoseq/pkg/config"
	"github.com/ajitpratap0/exoseq/pkg/logger"
	"github.com/ajitpratap0/exoseq/pkg/metrics"
	"github.com/ajitpratap0/exoseq/pkg/observability"
)

var version = "0.1.0"

// flagKeys maps command line flags to configuration keys. A flag only
// overrides the configuration when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":         "observability.log_level",
	"log-format":        "observability.log_format",
	"metrics-file":      "observability.metrics_file",
	"tracing":           "observability.tracing_exporter",
	"variables":         "conversion.variables",
	"compression":       "conversion.compression",
	"compression-level": "conversion.compression_level",
	"named":             "conversion.named_values",
	"timesteps":         "conversion.window_size",
	"outdir":            "job.output_dir",
	"work-dir":          "job.work_dir",
	"workers":           "job.workers",
	"task-timeout":      "job.task_timeout",
	"report":            "job.report_path",
	"keep-staging":      "job.keep_staging",
	"retries":           "reliability.retry_attempts",
	"retry-delay":       "reliability.retry_delay",
	"region":            "storage.region",
	"endpoint":          "storage.endpoint",
}

// app carries the state shared by every command of one invocation.
type app struct {
	v *viper.Viper
	// file holds only the --config file, nil without one
	file   *viper.Viper
	cfg    *config.Config
	log    *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd(os.Stdout, os.Stderr)
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(ctx); err == nil {
		err = terr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The caller runs app.teardown after
// Execute, whether or not the command failed.
func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	a.v.SetEnvPrefix("EXOSEQ")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "exoseq",
		Short: "exoseq - Exodus mesh to typed bytes container partitioner",
		Long: `exoseq converts time-dependent Exodus II mesh results into windows of
typed bytes container files plus an index, one conversion per input or a
whole batch of inputs held in a shared store.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log encoding (json, console)")
	pf.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path on exit")
	pf.String("tracing", "none", "Span exporter (none, stdout)")

	root.AddCommand(
		a.versionCmd(),
		a.convertCmd(),
		a.batchCmd(),
		a.inspectCmd(),
		a.infoCmd(),
		a.synthCmd(),
	)
	return root, a
}

// setup layers defaults, the config file, EXOSEQ_* variables and explicit
// flags, in increasing priority, then starts logging and tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.v.BindPFlag("config", cmd.Flags().Lookup("config")); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg := config.NewConfig()
	if path := a.v.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg = loaded

		a.file = viper.New()
		a.file.SetConfigFile(path)
		a.file.SetConfigType("yaml")
		if err := a.file.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
	}
	base, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	a.v.SetConfigType("yaml")
	if err := a.v.ReadConfig(bytes.NewReader(base)); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := a.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    cfg.Observability.LogFormat,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return err
	}
	a.log = logger.With(zap.String("component", "exoseq-cli"))

	tracing := observability.DefaultConfig()
	tracing.ServiceVersion = version
	tracing.Exporter = cfg.Observability.TracingExporter
	tracing.SamplingRate = cfg.Observability.TracingSampleRate
	tracing.Output = a.stderr
	return observability.Init(tracing)
}

// explicit reports whether a configuration key was set by the user through
// its flag, an EXOSEQ_* variable or the config file rather than a default.
func (a *app) explicit(cmd *cobra.Command, flag, key string) bool {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return true
	}
	env := "EXOSEQ_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if _, ok := os.LookupEnv(env); ok {
		return true
	}
	return a.file != nil && a.file.IsSet(key)
}

func (a *app) teardown(ctx context.Context) error {
	if a.cfg == nil {
		return nil
	}
	if err := observability.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.log.Warn("failed to flush spans", zap.Error(err))
	}
	if a.cfg.Observability.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.Observability.MetricsFile); err != nil {
			return err
		}
	}
	_ = logger.Sync()
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "exoseq v%s\n", version)
			fmt.Fprintf(a.stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
