// Package diff compares consecutive daily snapshots.
//
// Only additions are reported. Domains that disappear from one day to the
// next never produce an event.
package diff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

// NewDomains returns current minus previous, sorted. A nil previous is the
// empty set, so a first run reports everything alive.
func NewDomains(previous *domain.DailySnapshot, current domain.DailySnapshot) []domain.Domain {
	prev := make(map[domain.Domain]struct{})
	if previous != nil {
		for _, d := range previous.Domains {
			prev[d] = struct{}{}
		}
	}
	var added []domain.Domain
	for _, d := range current.Domains {
		if _, ok := prev[d]; !ok {
			added = append(added, d)
		}
	}
	return domain.UniqueDomains(added)
}

type Detector struct {
	Store  repo.SnapshotStore
	Logger *zap.Logger
	Now    func() time.Time
}

func NewDetector(store repo.SnapshotStore, log *zap.Logger) *Detector {
	return &Detector{Store: store, Logger: log, Now: time.Now}
}

// Detect compares day with the day before it. It returns nil, nil when
// nothing new appeared.
func (d *Detector) Detect(ctx context.Context, day time.Time) (*domain.ChangeEvent, error) {
	cur, err := d.Store.Read(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("read current snapshot %s: %w", domain.DateKey(day), err)
	}

	yesterday := domain.Day(day).AddDate(0, 0, -1)
	prev, err := d.Store.Read(ctx, yesterday)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		d.Logger.Info("diff_no_previous_snapshot", zap.String("day", domain.DateKey(yesterday)))
		prev = nil
	case err != nil:
		return nil, fmt.Errorf("read previous snapshot %s: %w", domain.DateKey(yesterday), err)
	}

	added := NewDomains(prev, *cur)
	if len(added) == 0 {
		return nil, nil
	}
	d.Logger.Info("diff_new_domains",
		zap.String("day", domain.DateKey(day)),
		zap.Int("count", len(added)),
	)
	return &domain.ChangeEvent{
		Action:     domain.ActionNew,
		Domains:    added,
		DetectedAt: d.Now().UTC(),
	}, nil
}
