package budget

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses values like "512000", "500KB" or "2MB" into bytes. A bare
// integer is a byte count.
func ParseSize(v string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(v))
	if s == "" {
		return 0, errors.New("size is required")
	}

	units := []struct {
		suffix string
		factor int64
	}{
		{"KB", 1024},
		{"MB", 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"B", 1},
	}

	factor := int64(1)
	for _, u := range units {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			s, factor = strings.TrimSpace(rest), u.factor
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", v)
	}
	return n * factor, nil
}
