package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/zbxreporter/internal/misc"
)

// envString returns the trimmed value of key, then flagVal, then def.
func envString(key, flagVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// envBool resolves a switch. flagSet tells whether the flag was given on the
// command line, so a default-true flag can still be turned off with -x=false.
func envBool(key string, flagVal, flagSet, def bool) bool {
	if flagSet {
		def = flagVal
	}
	return misc.GetBool(key, def)
}

// envSeconds resolves an interval. A zero flag means the flag was not given.
// Non-positive env values come back as 0 for the caller to reject.
func envSeconds(key string, flagSeconds, defSeconds int) time.Duration {
	d := time.Duration(defSeconds) * time.Second
	if flagSeconds != 0 {
		d = time.Duration(flagSeconds) * time.Second
	}
	return misc.GetDuration(key, d)
}

// envInt resolves a count, ignoring values below floor.
func envInt(key string, flagVal, def, floor int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= floor {
		return n
	}
	if flagVal >= floor {
		return flagVal
	}
	return def
}
