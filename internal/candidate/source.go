// Package candidate supplies the raw host names a run should probe.
package candidate

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
)

// Source lists deduplicated candidate domains. Missing or empty input is
// an empty list, not an error.
type Source interface {
	List(ctx context.Context) ([]domain.Domain, error)
}

// Static serves a fixed list.
type Static []string

func (s Static) List(ctx context.Context) ([]domain.Domain, error) {
	return Normalize(zap.NewNop(), s), nil
}

// Normalize validates raw host strings and drops duplicates, keeping the
// first occurrence. Invalid entries are logged and skipped.
func Normalize(log *zap.Logger, raw []string) []domain.Domain {
	seen := make(map[domain.Domain]struct{}, len(raw))
	out := make([]domain.Domain, 0, len(raw))
	for _, r := range raw {
		d, err := domain.ParseDomain(r)
		if err != nil {
			if r != "" {
				log.Debug("candidate_invalid", zap.String("raw", r))
			}
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
