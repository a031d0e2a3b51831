package dataset

import (
	"fmt"
	"strings"
)

// Info summarizes a dataset file.
type Info struct {
	Filename              string     `json:"filename"`
	Title                 string     `json:"title"`
	Version               float64    `json:"version"`
	APIVersion            float64    `json:"api_version"`
	FloatingPointWordSize int        `json:"floating_point_word_size"`
	FileSize              int        `json:"file_size"`
	NumNodes              int        `json:"num_nodes"`
	NumElem               int        `json:"num_elem"`
	NumDim                int        `json:"num_dim"`
	NumNodeVars           int        `json:"num_nod_var"`
	NumTimeSteps          int        `json:"num_time_steps"`
	CoordinateNames       []string   `json:"coordinate_names"`
	NodeVariableNames     []string   `json:"node_variable_names"`
	InfoRecords           []string   `json:"info_records"`
	QARecords             [][]string `json:"qa_records"`
}

// Synopsis renders a YAML-like summary. Coordinate names are cut after 5
// lines and node variables and info records after 10.
func (i Info) Synopsis() string {
	var b strings.Builder
	b.WriteString("exodus ii file:\n")
	fmt.Fprintf(&b, "  filename: %s\n", i.Filename)
	fmt.Fprintf(&b, "  title: '%s'\n", i.Title)
	fmt.Fprintf(&b, "  version: %.f\n", i.Version)
	fmt.Fprintf(&b, "  api_version: %.f\n", i.APIVersion)
	fmt.Fprintf(&b, "  floating_point_word_size: %d\n", i.FloatingPointWordSize)
	fmt.Fprintf(&b, "  file_size: %d\n", i.FileSize)
	b.WriteString("  dimensions:\n")
	fmt.Fprintf(&b, "    num_nodes: %d\n", i.NumNodes)
	fmt.Fprintf(&b, "    num_elem: %d\n", i.NumElem)
	fmt.Fprintf(&b, "    num_dim: %d\n", i.NumDim)
	fmt.Fprintf(&b, "    num_nod_var: %d\n", i.NumNodeVars)
	fmt.Fprintf(&b, "    num_time_steps: %d\n", i.NumTimeSteps)
	b.WriteString("  coordinates:\n")
	for _, name := range maxLines(i.CoordinateNames, 5) {
		fmt.Fprintf(&b, "    - '%s'\n", name)
	}
	b.WriteString("  node variables:\n")
	for _, name := range maxLines(i.NodeVariableNames, 10) {
		fmt.Fprintf(&b, "    - '%s'\n", name)
	}
	b.WriteString("  info records:\n")
	for _, line := range maxLines(i.InfoRecords, 10) {
		fmt.Fprintf(&b, "    - '%s'\n", line)
	}
	b.WriteString("  qa records:\n")
	for _, rec := range i.QARecords {
		b.WriteString("    - \n")
		for _, line := range rec {
			fmt.Fprintf(&b, "      - '%s'\n", line)
		}
	}
	return b.String()
}

func maxLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	out := append([]string(nil), lines[:n]...)
	return append(out, fmt.Sprintf("[... truncated to %d lines ...]", n))
}
