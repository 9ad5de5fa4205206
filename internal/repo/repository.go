package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hamed0406/subwatch/internal/domain"
)

// ErrNotFound is returned by Read when no snapshot was written for the date.
// It is distinct from a snapshot that has zero domains.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore persists one alive-set per calendar day.
// Write overwrites an existing record for the same day.
type SnapshotStore interface {
	Write(ctx context.Context, date time.Time, domains []domain.Domain, ips []string) error
	Read(ctx context.Context, date time.Time) (*domain.DailySnapshot, error)
}

// DomainsKey and IPsKey name the two objects stored per day.
func DomainsKey(date time.Time) string { return domain.DateKey(date) + "_domains.txt" }
func IPsKey(date time.Time) string     { return domain.DateKey(date) + "_ips.txt" }

// EncodeDomains renders one domain per line.
func EncodeDomains(ds []domain.Domain) string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = string(d)
	}
	return strings.Join(lines, "\n")
}

// EncodeLines renders one value per line.
func EncodeLines(vs []string) string { return strings.Join(vs, "\n") }

// DecodeDomains reads the per-line layout back, skipping blank lines.
func DecodeDomains(body string) []domain.Domain {
	lines := DecodeLines(body)
	out := make([]domain.Domain, len(lines))
	for i, l := range lines {
		out[i] = domain.Domain(l)
	}
	return out
}

func DecodeLines(body string) []string {
	var out []string
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// NewSnapshot builds the record the stores persist, enforcing set semantics.
func NewSnapshot(date time.Time, domains []domain.Domain, ips []string) *domain.DailySnapshot {
	ds := domain.UniqueDomains(domains)
	is := domain.UniqueStrings(ips)
	if is == nil {
		is = []string{}
	}
	return &domain.DailySnapshot{Date: domain.Day(date), Domains: ds, IPs: is}
}
