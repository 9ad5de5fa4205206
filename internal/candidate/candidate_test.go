package candidate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
)

func TestFileSource_DedupesAndCleans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.txt")
	body := "a.example.com\n\nhttps://b.example.com/login\nA.example.com\n*.c.example.com\nnot a host\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewFileSource(path, zap.NewNop()).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []domain.Domain{"a.example.com", "b.example.com", "c.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSource_MissingFileIsEmpty(t *testing.T) {
	got, err := NewFileSource(filepath.Join(t.TempDir(), "nope.txt"), zap.NewNop()).List(context.Background())
	if err != nil {
		t.Fatalf("missing input should not fail: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty, got %v", got)
	}
}

func TestStatic_Normalizes(t *testing.T) {
	got, _ := Static{"x.com", "x.com", ""}.List(context.Background())
	if len(got) != 1 || got[0] != "x.com" {
		t.Fatalf("unexpected: %v", got)
	}
}

type fakeLogs struct {
	streams     []types.LogStream
	events      map[string][]string
	pages       map[string][][]string // paged streams, served by token "p/<n>"
	describeErr error
}

func (f *fakeLogs) DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &cloudwatchlogs.DescribeLogStreamsOutput{LogStreams: f.streams}, nil
}

func (f *fakeLogs) GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	name := aws.ToString(in.LogStreamName)
	if pages, ok := f.pages[name]; ok {
		n := 0
		if in.NextToken != nil {
			n, _ = strconv.Atoi(strings.TrimPrefix(aws.ToString(in.NextToken), "p/"))
		}
		if n >= len(pages) {
			return &cloudwatchlogs.GetLogEventsOutput{NextForwardToken: in.NextToken}, nil
		}
		var evs []types.OutputLogEvent
		for _, m := range pages[n] {
			evs = append(evs, types.OutputLogEvent{Message: aws.String(m)})
		}
		return &cloudwatchlogs.GetLogEventsOutput{Events: evs, NextForwardToken: aws.String("p/" + strconv.Itoa(n+1))}, nil
	}
	// second call returns the same token with no events, like the real API
	if in.NextToken != nil {
		return &cloudwatchlogs.GetLogEventsOutput{NextForwardToken: in.NextToken}, nil
	}
	var evs []types.OutputLogEvent
	for _, m := range f.events[name] {
		evs = append(evs, types.OutputLogEvent{Message: aws.String(m)})
	}
	return &cloudwatchlogs.GetLogEventsOutput{Events: evs, NextForwardToken: aws.String("f/" + name)}, nil
}

func TestCloudWatchSource_TodayStreamsOnly(t *testing.T) {
	now := time.Date(2025, 8, 18, 15, 0, 0, 0, time.UTC)
	fl := &fakeLogs{
		streams: []types.LogStream{
			{LogStreamName: aws.String("ecs/subfinder/1"), LastEventTimestamp: aws.Int64(now.Add(-time.Hour).UnixMilli())},
			{LogStreamName: aws.String("ecs/never")},
			{LogStreamName: aws.String("ecs/amass/2"), LastEventTimestamp: aws.Int64(now.Add(-2 * time.Hour).UnixMilli())},
			{LogStreamName: aws.String("ecs/old"), LastEventTimestamp: aws.Int64(now.AddDate(0, 0, -1).UnixMilli())},
		},
		events: map[string][]string{
			"ecs/subfinder/1": {`{"host":"a.example.com","source":"crtsh"}`, `{"host":"b.example.com"}`, `not json`},
			"ecs/amass/2":     {`{"host":"b.example.com"}`, `{"name":"skip"}`},
			"ecs/old":         {`{"host":"stale.example.com"}`},
		},
	}
	src := NewCloudWatchSource(fl, "", zap.NewNop())
	src.Now = func() time.Time { return now }

	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []domain.Domain{"a.example.com", "b.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestCloudWatchSource_EmptyPageMidStream(t *testing.T) {
	now := time.Date(2025, 8, 18, 15, 0, 0, 0, time.UTC)
	fl := &fakeLogs{
		streams: []types.LogStream{
			{LogStreamName: aws.String("ecs/subfinder/1"), LastEventTimestamp: aws.Int64(now.Add(-time.Minute).UnixMilli())},
		},
		pages: map[string][][]string{
			"ecs/subfinder/1": {
				{`{"host":"a.example.com"}`},
				{},
				{`{"host":"late.example.com"}`},
			},
		},
	}
	src := NewCloudWatchSource(fl, "", zap.NewNop())
	src.Now = func() time.Time { return now }

	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []domain.Domain{"a.example.com", "late.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestCloudWatchSource_MissingGroupIsEmpty(t *testing.T) {
	fl := &fakeLogs{describeErr: &types.ResourceNotFoundException{Message: aws.String("no group")}}
	got, err := NewCloudWatchSource(fl, "/ecs/x", zap.NewNop()).List(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("want empty list, got %v err=%v", got, err)
	}
}

func TestCloudWatchSource_APIErrorSurfaces(t *testing.T) {
	fl := &fakeLogs{describeErr: errors.New("throttled")}
	_, err := NewCloudWatchSource(fl, "/ecs/x", zap.NewNop()).List(context.Background())
	if err == nil {
		t.Fatal("want error")
	}
}
