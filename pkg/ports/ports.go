// Package ports builds the deduplicated, ascending port set for a scan run.
package ports

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// DefaultPorts is the safe default set applied when neither an explicit
// list nor a ports file is given.
var DefaultPorts = []int{22, 53, 80, 443, 445, 3389}

// ErrInvalidPort is returned for non-numeric tokens or values outside [1,65535].
var ErrInvalidPort = errors.New("invalid port value")

// Build merges an explicit comma-separated port list and an optional ports
// file (newline or comma delimited, '#' starts a comment line) into a
// deduplicated ascending set. With both sources absent the result is exactly
// DefaultPorts.
func Build(list string, filePath string) ([]int, error) {
	values := make(map[int]bool)

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		values[p] = true
	}

	if filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read ports file: %w", err)
		}
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, tok := range strings.Split(line, ",") {
				tok = strings.TrimSpace(tok)
				if tok == "" {
					continue
				}
				p, err := parsePort(tok)
				if err != nil {
					return nil, err
				}
				values[p] = true
			}
		}
	}

	if len(values) == 0 {
		out := make([]int, len(DefaultPorts))
		copy(out, DefaultPorts)
		return out, nil
	}

	out := make([]int, 0, len(values))
	for p := range values {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func parsePort(value string) (int, error) {
	p, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPort, value)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPort, value)
	}
	return p, nil
}
