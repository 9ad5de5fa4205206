package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

const DefaultPrefix = "snapshot"

// NewRedisUniversalClient accepts either "host:port" or a redis:// URL.
func NewRedisUniversalClient(addr string) (redis.UniversalClient, error) {
	if !strings.Contains(addr, "://") {
		return redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}}), nil
	}
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{opt.Addr},
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}), nil
}

// Store keeps each day under "<prefix>:<YYYY-MM-DD>:domains" and ":ips".
// Records never expire.
type Store struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Write(ctx context.Context, date time.Time, domains []domain.Domain, ips []string) error {
	snap := repo.NewSnapshot(date, domains, ips)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(date, "domains"), repo.EncodeDomains(snap.Domains), 0)
		p.Set(ctx, s.key(date, "ips"), repo.EncodeLines(snap.IPs), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write snapshot %s: %w", snap.Key(), err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, date time.Time) (*domain.DailySnapshot, error) {
	body, err := s.client.Get(ctx, s.key(date, "domains")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis read domains %s: %w", domain.DateKey(date), err)
	}
	ips, err := s.client.Get(ctx, s.key(date, "ips")).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis read ips %s: %w", domain.DateKey(date), err)
	}
	return repo.NewSnapshot(date, repo.DecodeDomains(body), repo.DecodeLines(ips)), nil
}

func (s *Store) key(date time.Time, kind string) string {
	return s.prefix + ":" + domain.DateKey(date) + ":" + kind
}
