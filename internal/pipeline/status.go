package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

// DefaultLookback bounds how far back the status scan looks for the first
// snapshot.
const DefaultLookback = 90

type Status struct {
	Today           string     `json:"today"`
	MonitoringSince *time.Time `json:"monitoring_since,omitempty"`
	Days            int        `json:"days"`
	AliveToday      int        `json:"alive_today"`
	HasToday        bool       `json:"has_today"`
}

// BuildStatus scans back from now up to lookback days. The earliest snapshot
// found is reported as the monitoring start.
func BuildStatus(ctx context.Context, store repo.SnapshotStore, now time.Time, lookback int) (Status, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	today := domain.Day(now)
	st := Status{Today: domain.DateKey(today)}

	for i := 0; i < lookback; i++ {
		day := today.AddDate(0, 0, -i)
		snap, err := store.Read(ctx, day)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return st, err
		}
		st.Days++
		d := snap.Date
		st.MonitoringSince = &d
		if i == 0 {
			st.HasToday = true
			st.AliveToday = len(snap.Domains)
		}
	}
	return st, nil
}
