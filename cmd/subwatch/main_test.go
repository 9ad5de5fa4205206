package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/subwatch/internal/domain"
	"github.com/hamed0406/subwatch/internal/pipeline"
)

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, pipeline.Report{Day: "2024-05-02", Candidates: 12345, Alive: 40, IPs: 3, New: []domain.Domain{"c.com"}})
	out := buf.String()
	for _, want := range []string{"12,345 candidates", "40 alive", "1 new", "  c.com"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -14)

	var buf bytes.Buffer
	printStatus(&buf, pipeline.Status{MonitoringSince: &since, Days: 15, HasToday: true, AliveToday: 1200}, now)
	out := buf.String()
	for _, want := range []string{"monitoring since 2024-04-18", "2 weeks ago", "alive today: 1,200"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	buf.Reset()
	printStatus(&buf, pipeline.Status{}, now)
	if !strings.Contains(buf.String(), "no snapshots found") {
		t.Fatalf("unexpected: %q", buf.String())
	}
}
