// Package filestore keeps daily snapshots as flat text files in a directory,
// using the same object names as the bucket layout.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Write(ctx context.Context, date time.Time, domains []domain.Domain, ips []string) error {
	snap := repo.NewSnapshot(date, domains, ips)
	if err := s.writeFile(repo.DomainsKey(date), repo.EncodeDomains(snap.Domains)); err != nil {
		return err
	}
	return s.writeFile(repo.IPsKey(date), repo.EncodeLines(snap.IPs))
}

func (s *Store) Read(ctx context.Context, date time.Time) (*domain.DailySnapshot, error) {
	body, err := os.ReadFile(filepath.Join(s.dir, repo.DomainsKey(date)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("read domains: %w", err)
	}
	ips, err := os.ReadFile(filepath.Join(s.dir, repo.IPsKey(date)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read ips: %w", err)
	}
	return repo.NewSnapshot(date, repo.DecodeDomains(string(body)), repo.DecodeLines(string(ips))), nil
}

// writeFile replaces name atomically so a failed write leaves the old copy intact.
func (s *Store) writeFile(name, body string) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
