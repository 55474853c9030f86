package utils

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes parses a human-readable byte string such as "100G", "512MB" or "64MiB".
func ParseBytes(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "B"), "I"))
	multiplier := int64(1)
	if n := len(s); n > 0 {
		if idx := strings.IndexByte("KMGTP", s[n-1]); idx >= 0 {
			multiplier = int64(1) << (10 * uint(idx+1))
			s = strings.TrimSpace(s[:n-1])
		}
	}

	num, err := strconv.ParseFloat(s, 64)
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(num * float64(multiplier)), nil
}

// SecureJoin joins elements onto base and fails if the result escapes base.
func SecureJoin(base string, elements ...string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}

	cleanBase := filepath.Clean(base)
	fullPath := filepath.Join(append([]string{cleanBase}, elements...)...)
	if fullPath != cleanBase && !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory %s", base)
	}
	return fullPath, nil
}
