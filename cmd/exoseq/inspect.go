package main

import (
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/exoseq/internal/partition"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/exodus"
	"github.com/ajitpratap0/exoseq/pkg/seqfile"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

func (a *app) inspectCmd() *cobra.Command {
	var limit, maxRecords int
	cmd := &cobra.Command{
		Use:   "inspect <file.seq>",
		Short: "Print a container's header and records",
		Long: `Print a container's header and records. An index.seq container is also
checked: its partition counts must add up to its total.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspect(args[0], limit, maxRecords)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 8, "Elements printed per sequence (0 = all)")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "Records printed (0 = all)")
	return cmd
}

func (a *app) inspect(path string, limit, maxRecords int) error {
	r, err := seqfile.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	fmt.Fprintf(a.stdout, "version: %d\n", h.Version)
	fmt.Fprintf(a.stdout, "key_class: %s\n", h.KeyType)
	fmt.Fprintf(a.stdout, "value_class: %s\n", h.ValueType)
	if h.Compressed() {
		fmt.Fprintf(a.stdout, "compression: %s (%s)\n", h.Compression, h.Codec)
	} else {
		fmt.Fprintln(a.stdout, "compression: none")
	}
	for _, k := range slices.Sorted(maps.Keys(h.Metadata)) {
		fmt.Fprintf(a.stdout, "metadata: %s=%s\n", k, h.Metadata[k])
	}

	n := 0
	for rec, err := range r.All() {
		if err != nil {
			return err
		}
		n++
		if maxRecords > 0 && n > maxRecords {
			continue
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", recordKind(rec.Key), typedbytes.Format(rec.Key, limit), typedbytes.Format(rec.Value, limit))
	}
	fmt.Fprintf(a.stdout, "records: %d\n", n)

	if filepath.Base(path) != partition.IndexName {
		return nil
	}
	entries, total, err := partition.ReadIndex(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "index: %d partitions, %d time steps\n", len(entries), total)
	return nil
}

// recordKind names the role a key plays in a partition or index container.
func recordKind(key typedbytes.Value) string {
	if axis, ok := partition.AxisOf(key); ok {
		return "coord_" + axis.String()
	}
	if _, _, err := partition.ParseStepKey(key); err == nil {
		return "step"
	}
	if s, ok := key.(typedbytes.String); ok && s == partition.SummaryKey() {
		return "total"
	}
	return "entry"
}

func (a *app) infoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <exodus-file>",
		Short: "Summarize an Exodus file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := exodus.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Info()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.stdout, info)
			}
			fmt.Fprint(a.stdout, info.Synopsis())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (a *app) synthCmd() *cobra.Command {
	db := exodus.Synthetic{Title: "synthetic"}
	cmd := &cobra.Command{
		Use:   "synth <path>",
		Short: "Write a synthetic Exodus file for testing",
		Long: `Write a structured hexahedral mesh with analytic node variables.
Variable k at node n and step s holds 100*(k+1) + s + n/1000.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if db.NX < 1 || db.NY < 1 || db.Steps < 0 {
				return errors.New(errors.ErrorTypeValidation, "mesh dimensions must be positive")
			}
			if err := db.WriteFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s: %dx%dx%d nodes, %d time steps\n", args[0], db.NX, db.NY, max(db.NZ, 1), db.Steps)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&db.Title, "title", db.Title, "Database title")
	f.IntVar(&db.NX, "nx", 3, "Nodes along x")
	f.IntVar(&db.NY, "ny", 3, "Nodes along y")
	f.IntVar(&db.NZ, "nz", 3, "Nodes along z (0 or 1 for a 2-D mesh)")
	f.IntVar(&db.Steps, "steps", 10, "Time steps")
	f.Float64Var(&db.TimeStep, "dt", 0.1, "Time between steps")
	f.StringSliceVar(&db.Variables, "node-variables", []string{"TEMP"}, "Node variable names")
	f.BoolVar(&db.Combined, "combined", false, "Store all variables in one vals_nod_var array")
	return cmd
}
