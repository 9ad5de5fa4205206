package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

// ObjectAPI is the subset of *s3.Client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

type Store struct {
	client ObjectAPI
	bucket string
}

func New(client ObjectAPI, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("s3store: bucket name is required")
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) Write(ctx context.Context, date time.Time, domains []domain.Domain, ips []string) error {
	snap := repo.NewSnapshot(date, domains, ips)
	if err := s.put(ctx, repo.DomainsKey(date), repo.EncodeDomains(snap.Domains)); err != nil {
		return err
	}
	return s.put(ctx, repo.IPsKey(date), repo.EncodeLines(snap.IPs))
}

func (s *Store) Read(ctx context.Context, date time.Time) (*domain.DailySnapshot, error) {
	body, err := s.get(ctx, repo.DomainsKey(date))
	if err != nil {
		return nil, err
	}
	ips, err := s.get(ctx, repo.IPsKey(date))
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return repo.NewSnapshot(date, repo.DecodeDomains(body), repo.DecodeLines(ips)), nil
}

func (s *Store) put(ctx context.Context, key, body string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return "", repo.ErrNotFound
		}
		return "", fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return string(b), nil
}
