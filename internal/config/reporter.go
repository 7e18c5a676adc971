package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/misc"
)

const (
	defaultZabbixAddr     = "localhost:10051"
	defaultReportInterval = 60
	defaultPollInterval   = 2
	defaultRateUnit       = "s"
	defaultDurationUnit   = "ms"
	defaultSendTimeout    = 10 * time.Second
	defaultTimestamps     = true
	defaultJournalSize    = 64
)

// hostname is swapped in tests.
var hostname = os.Hostname

// ReporterConfig holds the resolved reporter settings.
type ReporterConfig struct {
	ZabbixAddress  string
	Host           string
	Prefix         string
	Suffix         string
	ReportInterval time.Duration
	PollInterval   time.Duration
	RateUnit       time.Duration
	DurationUnit   time.Duration
	Filter         *regexp.Regexp
	LLDEnabled     bool
	LLDRuleKey     string
	LLDMacro       string
	Timestamps     bool
	SendTimeout    time.Duration
	JournalFile    string
	JournalURL     string
	JournalSize    int
	Key            string
	DSN            string
	StatusAddress  string
}

// LoadReporterConfig resolves settings with precedence ENV > CLI > defaults.
func LoadReporterConfig(args []string, out io.Writer) (ReporterConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("reporter", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		addrOpt, hostOpt, prefixOpt, suffixOpt        string
		rateOpt, durationOpt, filterOpt, timeoutOpt   string
		lldKeyOpt, lldMacroOpt                        string
		journalFileOpt, journalURLOpt, keyOpt, dsnOpt string
		statusOpt                                     string
		reportOpt, pollOpt, journalSizeOpt            int
		lldOpt, timestampsOpt                         bool
	)
	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("zabbix server/proxy trapper address, default: %s", defaultZabbixAddr))
	fs.StringVar(&hostOpt, "host", "", "host name the records are reported for, default: os hostname")
	fs.StringVar(&prefixOpt, "prefix", "", "string prepended to every item key")
	fs.StringVar(&suffixOpt, "suffix", "", "string appended to every item key")
	fs.IntVar(&reportOpt, "r", 0, fmt.Sprintf("report interval in seconds, default: %d", defaultReportInterval))
	fs.IntVar(&pollOpt, "p", 0, fmt.Sprintf("runtime poll interval in seconds, default: %d", defaultPollInterval))
	fs.StringVar(&rateOpt, "rate-unit", "", fmt.Sprintf("unit rates are expressed per, default: %s", defaultRateUnit))
	fs.StringVar(&durationOpt, "duration-unit", "", fmt.Sprintf("unit durations are expressed in, default: %s", defaultDurationUnit))
	fs.StringVar(&filterOpt, "filter", "", "regexp selecting the metrics to report, default: all")
	fs.BoolVar(&lldOpt, "lld", false, "announce item keys through low-level discovery")
	fs.StringVar(&lldKeyOpt, "lld-key", "", "discovery rule item key")
	fs.StringVar(&lldMacroOpt, "lld-macro", "", "discovery macro name")
	fs.BoolVar(&timestampsOpt, "timestamps", defaultTimestamps, "stamp records with the report clock")
	fs.StringVar(&timeoutOpt, "timeout", "", fmt.Sprintf("send timeout, default: %s", defaultSendTimeout))
	fs.StringVar(&journalFileOpt, "journal-file", "", "append report cycle summaries to this file")
	fs.StringVar(&journalURLOpt, "journal-url", "", "POST report cycle summaries to this URL")
	fs.IntVar(&journalSizeOpt, "journal-size", 0, fmt.Sprintf("report cycles kept in memory for the status API, default: %d", defaultJournalSize))
	fs.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 signatures")
	fs.StringVar(&dsnOpt, "d", "", "DATABASE_DSN for the Postgres cycle journal")
	fs.StringVar(&statusOpt, "status", "", "status API listen address, default: disabled")

	if err := fs.Parse(args); err != nil {
		return ReporterConfig{}, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	addr := envString("ZABBIX_ADDRESS", addrOpt, defaultZabbixAddr)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "10051")
	}

	host := envString("HOST_NAME", hostOpt, "")
	if host == "" {
		h, err := hostname()
		if err != nil || strings.TrimSpace(h) == "" {
			return ReporterConfig{}, fmt.Errorf("resolve host name: %w", errors.Join(domain.ErrNoHost, err))
		}
		host = strings.TrimSpace(h)
	}

	report := envSeconds("REPORT_INTERVAL", reportOpt, defaultReportInterval)
	if report <= 0 {
		return ReporterConfig{}, fmt.Errorf("report interval must be > 0, got %v", report)
	}
	poll := envSeconds("POLL_INTERVAL", pollOpt, defaultPollInterval)
	if poll <= 0 {
		return ReporterConfig{}, fmt.Errorf("poll interval must be > 0, got %v", poll)
	}

	rateUnit, err := ParseUnit(envString("RATE_UNIT", rateOpt, defaultRateUnit))
	if err != nil {
		return ReporterConfig{}, fmt.Errorf("rate unit: %w", err)
	}
	durationUnit, err := ParseUnit(envString("DURATION_UNIT", durationOpt, defaultDurationUnit))
	if err != nil {
		return ReporterConfig{}, fmt.Errorf("duration unit: %w", err)
	}

	var filter *regexp.Regexp
	if expr := envString("METRIC_FILTER", filterOpt, ""); expr != "" {
		if filter, err = regexp.Compile(expr); err != nil {
			return ReporterConfig{}, fmt.Errorf("metric filter: %w", err)
		}
	}

	timeout := defaultSendTimeout
	if raw := envString("SEND_TIMEOUT", timeoutOpt, ""); raw != "" {
		if timeout, err = misc.ParseSeconds(raw); err != nil || timeout <= 0 {
			return ReporterConfig{}, fmt.Errorf("invalid send timeout %q", raw)
		}
	}

	return ReporterConfig{
		ZabbixAddress:  addr,
		Host:           host,
		Prefix:         envString("KEY_PREFIX", prefixOpt, ""),
		Suffix:         envString("KEY_SUFFIX", suffixOpt, ""),
		ReportInterval: report,
		PollInterval:   poll,
		RateUnit:       rateUnit,
		DurationUnit:   durationUnit,
		Filter:         filter,
		LLDEnabled:     envBool("LLD_ENABLED", lldOpt, set["lld"], false),
		LLDRuleKey:     envString("LLD_RULE_KEY", lldKeyOpt, ""),
		LLDMacro:       envString("LLD_MACRO", lldMacroOpt, ""),
		Timestamps:     envBool("ZABBIX_TIMESTAMPS", timestampsOpt, set["timestamps"], defaultTimestamps),
		SendTimeout:    timeout,
		JournalFile:    envString("JOURNAL_FILE", journalFileOpt, ""),
		JournalURL:     envString("JOURNAL_URL", journalURLOpt, ""),
		JournalSize:    envInt("JOURNAL_SIZE", journalSizeOpt, defaultJournalSize, 1),
		Key:            envString("KEY", keyOpt, ""),
		DSN:            envString("DATABASE_DSN", dsnOpt, ""),
		StatusAddress:  normalizeListenAddr(envString("STATUS_ADDRESS", statusOpt, "")),
	}, nil
}

var units = map[string]time.Duration{
	"ns": time.Nanosecond, "nanosecond": time.Nanosecond, "nanoseconds": time.Nanosecond,
	"us": time.Microsecond, "µs": time.Microsecond, "microsecond": time.Microsecond, "microseconds": time.Microsecond,
	"ms": time.Millisecond, "millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseUnit accepts a unit name ("ms", "seconds", "MINUTES") or a positive Go
// duration such as "10s".
func ParseUnit(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if u, ok := units[s]; ok {
		return u, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, s)
}

func normalizeListenAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
