package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

var _ repo.SnapshotStore = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
  day        DATE PRIMARY KEY,
  domains    TEXT[] NOT NULL,
  ips        TEXT[] NOT NULL,
  written_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// EnsureSchema creates the snapshots table on a fresh database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Write(ctx context.Context, date time.Time, domains []domain.Domain, ips []string) error {
	snap := repo.NewSnapshot(date, domains, ips)
	names := make([]string, len(snap.Domains))
	for i, d := range snap.Domains {
		names[i] = string(d)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (day, domains, ips, written_at)
		VALUES ($1::date, $2, $3, now())
		ON CONFLICT (day)
		DO UPDATE SET domains=EXCLUDED.domains, ips=EXCLUDED.ips, written_at=EXCLUDED.written_at`,
		snap.Key(), names, snap.IPs,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.Key(), err)
	}
	s.log.Debug("pg_snapshot_upserted", zap.String("day", snap.Key()), zap.Int("domains", len(names)))
	return nil
}

func (s *Store) Read(ctx context.Context, date time.Time) (*domain.DailySnapshot, error) {
	var (
		names []string
		ips   []string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT domains, ips FROM snapshots WHERE day = $1::date`,
		domain.DateKey(date),
	).Scan(&names, &ips)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("select snapshot %s: %w", domain.DateKey(date), err)
	}
	ds := make([]domain.Domain, len(names))
	for i, n := range names {
		ds[i] = domain.Domain(n)
	}
	return repo.NewSnapshot(date, ds, ips), nil
}
