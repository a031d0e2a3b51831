package job

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// ParseInput extracts the input location from one line of a batch listing.
// Lines are either bare locations or "offset\tlocation" as produced by line
// oriented splitters. Blank lines report false.
func ParseInput(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if prefix, rest, ok := strings.Cut(line, "\t"); ok {
		if _, err := strconv.ParseInt(strings.TrimSpace(prefix), 10, 64); err == nil {
			line = rest
		}
	}
	line = strings.TrimSpace(line)
	return line, line != ""
}

// ReadInputs reads a batch listing, one input per line.
func ReadInputs(r io.Reader) ([]string, error) {
	var inputs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if in, ok := ParseInput(sc.Text()); ok {
			inputs = append(inputs, in)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input listing")
	}
	return inputs, nil
}
