package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	putErr  error
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Store_WriteRead(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBucket{}
	s, err := New(fb, "data-bucket")
	require.NoError(t, err)

	day := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Write(ctx, day, []domain.Domain{"a.com", "b.com"}, []string{"1.1.1.1", "1.1.1.1"}))

	assert.Equal(t, "a.com\nb.com", fb.objects["data-bucket/2025-08-18_domains.txt"])
	assert.Equal(t, "1.1.1.1", fb.objects["data-bucket/2025-08-18_ips.txt"])

	got, err := s.Read(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []domain.Domain{"a.com", "b.com"}, got.Domains)
	assert.Equal(t, []string{"1.1.1.1"}, got.IPs)
}

func TestS3Store_NoSuchKeyIsNotFound(t *testing.T) {
	s, err := New(&fakeBucket{}, "data-bucket")
	require.NoError(t, err)

	_, err = s.Read(context.Background(), time.Now())
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestS3Store_PutErrorSurfaces(t *testing.T) {
	s, err := New(&fakeBucket{putErr: errors.New("access denied")}, "data-bucket")
	require.NoError(t, err)

	err = s.Write(context.Background(), time.Now(), []domain.Domain{"a.com"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Store_RequiresBucket(t *testing.T) {
	_, err := New(&fakeBucket{}, "")
	assert.Error(t, err)
}
