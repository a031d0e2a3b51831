package job

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// Status is the outcome of one input. Code is 0 for a conversion or a skip
// and 1 for a failure.
type Status struct {
	Input      string        `json:"input"`
	Code       int           `json:"code"`
	Skipped    bool          `json:"skipped,omitempty"`
	Attempts   int           `json:"attempts"`
	Partitions int           `json:"partitions,omitempty"`
	Bytes      int64         `json:"bytes,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	ErrorType  string        `json:"error_type,omitempty"`
}

// Reduce sums status codes per input.
func Reduce(statuses []Status) map[string]int {
	sums := make(map[string]int, len(statuses))
	for _, s := range statuses {
		sums[s.Input] += s.Code
	}
	return sums
}

// Report summarizes a batch run. Statuses keep the order of the inputs.
type Report struct {
	Statuses  []Status `json:"statuses"`
	Failures  int      `json:"failures"`
	Skipped   int      `json:"skipped"`
	Converted int      `json:"converted"`
}

// NewReport tallies statuses.
func NewReport(statuses []Status) *Report {
	r := &Report{Statuses: statuses}
	for _, s := range statuses {
		switch {
		case s.Code != 0:
			r.Failures++
		case s.Skipped:
			r.Skipped++
		default:
			r.Converted++
		}
	}
	return r
}

// Totals returns the reduced codes as sorted (input, code) pairs.
func (r *Report) Totals() []Total {
	sums := Reduce(r.Statuses)
	totals := make([]Total, 0, len(sums))
	for input, code := range sums {
		totals = append(totals, Total{Input: input, Code: code})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Input < totals[j].Input })
	return totals
}

// Total is the summed code of one input.
type Total struct {
	Input string
	Code  int
}

// Write encodes one JSON line per status.
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, s := range r.Statuses {
		if err := enc.Encode(s); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode status").WithDetail("input", s.Input)
		}
	}
	return nil
}

// WriteFile writes the report to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create report").WithDetail("path", path)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close report").WithDetail("path", path)
	}
	return nil
}
