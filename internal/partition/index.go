package partition

import (
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/seqfile"
	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

// IndexEntry is one partition listed by an index container.
type IndexEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReadIndex reads the index container at path and checks that the partition
// counts add up to its total.
func ReadIndex(path string) ([]IndexEntry, int, error) {
	_, records, err := seqfile.ReadAll(path)
	if err != nil {
		return nil, 0, err
	}
	if len(records) == 0 {
		return nil, 0, errors.New(errors.ErrorTypeData, "index has no summary record").WithDetail("path", path)
	}

	var entries []IndexEntry
	sum := 0
	for i, rec := range records {
		name, ok := rec.Key.(typedbytes.String)
		count, ok2 := rec.Value.(typedbytes.Int)
		if !ok || !ok2 {
			return nil, 0, errors.Newf(errors.ErrorTypeData, "index record %d is not a (string, int) pair", i).
				WithDetail("path", path)
		}
		if i == len(records)-1 {
			if string(name) != SummaryName {
				return nil, 0, errors.Newf(errors.ErrorTypeData, "index ends with %q, want %q", string(name), SummaryName).
					WithDetail("path", path)
			}
			if int(count) != sum {
				return nil, 0, errors.Newf(errors.ErrorTypeData, "index total %d does not match partition counts %d", int(count), sum).
					WithDetail("path", path)
			}
			return entries, int(count), nil
		}
		entries = append(entries, IndexEntry{Name: string(name), Count: int(count)})
		sum += int(count)
	}
	return entries, sum, nil
}
