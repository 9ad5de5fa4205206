package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.DailySnapshot
}

func New() *Store {
	return &Store{
		snapshots: make(map[string]*domain.DailySnapshot),
	}
}

func (m *Store) Write(ctx context.Context, date time.Time, domains []domain.Domain, ips []string) error {
	s := repo.NewSnapshot(date, domains, ips)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.Key()] = s
	return nil
}

func (m *Store) Read(ctx context.Context, date time.Time) (*domain.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[domain.DateKey(date)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	// copy so callers can't mutate the stored record
	cp := *s
	cp.Domains = append([]domain.Domain(nil), s.Domains...)
	cp.IPs = append([]string(nil), s.IPs...)
	return &cp, nil
}
