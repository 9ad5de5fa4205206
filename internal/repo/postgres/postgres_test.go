package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/repo"
)

func TestPostgresStore_Write_Read_Overwrite(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	// Far-past day so we don't collide with real data on a shared database.
	day := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	_, _ = store.pool.Exec(ctx, `DELETE FROM snapshots WHERE day = $1::date`, domain.DateKey(day))

	if _, err := store.Read(ctx, day); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound before write, got %v", err)
	}

	if err := store.Write(ctx, day, []domain.Domain{"a.com", "b.com"}, []string{"1.1.1.1", "1.1.1.1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ctx, day)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Domains) != 2 || len(got.IPs) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if err := store.Write(ctx, day, nil, nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Read(ctx, day)
	if err != nil {
		t.Fatalf("Read after overwrite: %v", err)
	}
	if len(got.Domains) != 0 {
		t.Fatalf("want empty snapshot after overwrite, got %v", got.Domains)
	}
}
