package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/diff"
	"github.com/hamed0406/subwatch/internal/domain"
	apimw "github.com/hamed0406/subwatch/internal/httpapi/middleware"
	"github.com/hamed0406/subwatch/internal/pipeline"
	"github.com/hamed0406/subwatch/internal/repo/memory"
)

// ---- test helpers ----

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) Execute(ctx context.Context) (pipeline.Report, error) {
	f.calls++
	return pipeline.Report{RunID: "r1", Day: "2024-05-02", Alive: 2}, f.err
}

var now = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T, run *fakeRunner) http.Handler {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	ctx := context.Background()
	_ = store.Write(ctx, now.AddDate(0, 0, -1), []domain.Domain{"a.com", "b.com"}, []string{"1.1.1.1"})
	_ = store.Write(ctx, now, []domain.Domain{"a.com", "c.com"}, []string{"1.1.1.1"})

	det := diff.NewDetector(store, log)
	srv := NewServer(log, store, det, run)
	srv.Now = func() time.Time { return now }

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	return srv.Router(keys, 10_000, 10_000)
}

func do(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzNeedsNoKey(t *testing.T) {
	rr := do(setupRouter(t, &fakeRunner{}), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}

func TestAPIRequiresKey(t *testing.T) {
	rr := do(setupRouter(t, &fakeRunner{}), http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", rr.Code)
	}
}

func TestSnapshot(t *testing.T) {
	h := setupRouter(t, &fakeRunner{})

	rr := do(h, http.MethodGet, "/api/snapshots/2024-05-02", "pub_test")
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var v snapshotView
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Date != "2024-05-02" || len(v.Domains) != 2 || len(v.IPs) != 1 {
		t.Fatalf("unexpected snapshot: %+v", v)
	}

	if rr := do(h, http.MethodGet, "/api/snapshots/2024-01-01", "pub_test"); rr.Code != http.StatusNotFound {
		t.Fatalf("missing day: want 404 got %d", rr.Code)
	}
	if rr := do(h, http.MethodGet, "/api/snapshots/May-2", "pub_test"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad date: want 400 got %d", rr.Code)
	}
}

func TestChanges(t *testing.T) {
	h := setupRouter(t, &fakeRunner{})

	rr := do(h, http.MethodGet, "/api/changes/today", "pub_test")
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200 got %d", rr.Code)
	}
	var v changesView
	_ = json.Unmarshal(rr.Body.Bytes(), &v)
	if len(v.Domains) != 1 || v.Domains[0] != "c.com" || v.Action != domain.ActionNew {
		t.Fatalf("unexpected changes: %+v", v)
	}

	// first monitored day against an empty previous day
	rr = do(h, http.MethodGet, "/api/changes/yesterday", "pub_test")
	_ = json.Unmarshal(rr.Body.Bytes(), &v)
	if rr.Code != http.StatusOK || len(v.Domains) != 2 {
		t.Fatalf("yesterday: %d %+v", rr.Code, v)
	}
}

func TestStatus(t *testing.T) {
	rr := do(setupRouter(t, &fakeRunner{}), http.MethodGet, "/api/status", "pub_test")
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200 got %d", rr.Code)
	}
	var st pipeline.Status
	_ = json.Unmarshal(rr.Body.Bytes(), &st)
	if st.Days != 2 || st.AliveToday != 2 || st.MonitoringSince == nil {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRunNeedsAdmin(t *testing.T) {
	run := &fakeRunner{}
	h := setupRouter(t, run)

	if rr := do(h, http.MethodPost, "/api/runs", "pub_test"); rr.Code != http.StatusForbidden {
		t.Fatalf("public key: want 403 got %d", rr.Code)
	}
	rr := do(h, http.MethodPost, "/api/runs", "adm_test")
	if rr.Code != http.StatusOK || run.calls != 1 {
		t.Fatalf("admin run: %d calls=%d", rr.Code, run.calls)
	}
	var rep pipeline.Report
	_ = json.Unmarshal(rr.Body.Bytes(), &rep)
	if rep.RunID != "r1" || rep.Alive != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestRunFailureIsBadGateway(t *testing.T) {
	h := setupRouter(t, &fakeRunner{err: errors.New("no network")})
	if rr := do(h, http.MethodPost, "/api/runs", "adm_test"); rr.Code != http.StatusBadGateway {
		t.Fatalf("want 502 got %d", rr.Code)
	}
}
