// Package misc holds small helpers shared by the adapters and the config loader.
package misc

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseSeconds reads a bare integer as whole seconds and anything else as a
// Go duration ("1m30s", "250ms").
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// ParseBool accepts 1/0, true/false, t/f, yes/no, y/n and on/off in any case.
// ok is false for anything else.
func ParseBool(s string) (v, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, true
	case "0", "false", "f", "no", "n", "off":
		return false, true
	}
	return false, false
}

// GetDuration reads key with ParseSeconds. Unset or malformed values yield
// def; non-positive ones yield 0 so callers can reject them.
func GetDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := ParseSeconds(v)
	if err != nil {
		return def
	}
	return max(d, 0)
}

// GetBool reads key with ParseBool, falling back to def.
func GetBool(key string, def bool) bool {
	if v, ok := ParseBool(os.Getenv(key)); ok {
		return v
	}
	return def
}
