package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseIntList parses a comma-separated batch-size list like "1,2,4,8".
func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad batch size %q: %w", part, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("batch size must be positive, got %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", s)
	}
	return out, nil
}

// parseWaitList parses a comma-separated wait list in seconds, like
// "0.1,1.0".
func parseWaitList(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		secs, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("bad wait time %q: %w", part, err)
		}
		if secs < 0 {
			return nil, fmt.Errorf("wait time must be non-negative, got %s", part)
		}
		out = append(out, time.Duration(secs*float64(time.Second)))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", s)
	}
	return out, nil
}
