package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// DateLayout is the day granularity used for snapshot keys.
const DateLayout = "2006-01-02"

// Domain is a validated host name without scheme, port or path.
type Domain string

var ErrInvalidDomain = errors.New("invalid domain")

// ParseDomain normalizes raw enumeration output into a Domain.
// It accepts things like "https://Dev.Example.com/path" and "*.example.com".
func ParseDomain(raw string) (Domain, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "*.")
	s = strings.TrimSuffix(strings.ToLower(s), ".")

	if s == "" || len(s) > 253 || !strings.Contains(s, ".") {
		return "", ErrInvalidDomain
	}
	for _, label := range strings.Split(s, ".") {
		if !validLabel(label) {
			return "", ErrInvalidDomain
		}
	}
	return Domain(s), nil
}

func validLabel(l string) bool {
	if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for _, c := range l {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// ProbeResult is the outcome of probing one domain in a run.
// IP is empty when resolution failed, independently of Alive.
type ProbeResult struct {
	Domain Domain `json:"domain"`
	IP     string `json:"ip,omitempty"`
	Alive  bool   `json:"alive"`
}

// DailySnapshot is the alive set recorded for one calendar day.
type DailySnapshot struct {
	Date    time.Time `json:"date"`
	Domains []Domain  `json:"domains"`
	IPs     []string  `json:"ips"`
}

// Key returns the YYYY-MM-DD storage key of the snapshot.
func (s DailySnapshot) Key() string { return DateKey(s.Date) }

// DateKey formats t at day granularity.
func DateKey(t time.Time) string { return t.Format(DateLayout) }

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDay parses a YYYY-MM-DD key in UTC.
func ParseDay(key string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, time.UTC)
}

type Action string

const (
	ActionNew Action = "new"
)

// ChangeEvent describes domains newly alive compared to the previous day.
type ChangeEvent struct {
	Action     Action    `json:"action"`
	Domains    []Domain  `json:"domains"`
	DetectedAt time.Time `json:"detected_at"`
}

// UniqueDomains drops duplicates and returns the rest sorted.
func UniqueDomains(in []Domain) []Domain {
	seen := make(map[Domain]struct{}, len(in))
	out := make([]Domain, 0, len(in))
	for _, d := range in {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UniqueStrings drops empty values and duplicates, keeping first-seen order.
func UniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
