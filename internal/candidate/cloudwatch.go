package candidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
)

// DefaultLogGroup is where the enumeration containers write their output.
const DefaultLogGroup = "/ecs/domain_enumerator"

// LogsAPI is the subset of *cloudwatchlogs.Client the source needs.
type LogsAPI interface {
	DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

var _ LogsAPI = (*cloudwatchlogs.Client)(nil)

// CloudWatchSource collects hosts from today's enumeration log streams.
// Each event is a JSON line carrying a "host" field.
type CloudWatchSource struct {
	Client   LogsAPI
	LogGroup string
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewCloudWatchSource(client LogsAPI, logGroup string, log *zap.Logger) *CloudWatchSource {
	if logGroup == "" {
		logGroup = DefaultLogGroup
	}
	return &CloudWatchSource{Client: client, LogGroup: logGroup, Logger: log, Now: time.Now}
}

type hostEvent struct {
	Host string `json:"host"`
}

func (c *CloudWatchSource) List(ctx context.Context) ([]domain.Domain, error) {
	streams, err := c.todayStreams(ctx)
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			c.Logger.Info("candidate_log_group_missing", zap.String("log_group", c.LogGroup))
			return []domain.Domain{}, nil
		}
		return nil, err
	}

	var raw []string
	for _, s := range streams {
		hosts, err := c.streamHosts(ctx, s)
		if err != nil {
			return nil, err
		}
		raw = append(raw, hosts...)
	}

	out := Normalize(c.Logger, raw)
	c.Logger.Info("candidates_loaded",
		zap.String("log_group", c.LogGroup),
		zap.Int("streams", len(streams)),
		zap.Int("events", len(raw)),
		zap.Int("domains", len(out)),
	)
	return out, nil
}

// todayStreams walks streams newest first and stops at the first one whose
// last event is before today.
func (c *CloudWatchSource) todayStreams(ctx context.Context) ([]string, error) {
	now := c.Now()
	today := domain.Day(now)

	var names []string
	var token *string
	for {
		out, err := c.Client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
			LogGroupName: aws.String(c.LogGroup),
			OrderBy:      types.OrderByLastEventTime,
			Descending:   aws.Bool(true),
			NextToken:    token,
		})
		if err != nil {
			return nil, fmt.Errorf("describe log streams %s: %w", c.LogGroup, err)
		}
		for _, s := range out.LogStreams {
			if s.LastEventTimestamp == nil {
				continue
			}
			last := time.UnixMilli(*s.LastEventTimestamp).In(now.Location())
			if domain.Day(last).Before(today) {
				return names, nil
			}
			if domain.Day(last).Equal(today) {
				names = append(names, aws.ToString(s.LogStreamName))
			}
		}
		if out.NextToken == nil || aws.ToString(out.NextToken) == aws.ToString(token) {
			return names, nil
		}
		token = out.NextToken
	}
}

func (c *CloudWatchSource) streamHosts(ctx context.Context, stream string) ([]string, error) {
	var hosts []string
	var token *string
	for {
		out, err := c.Client.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(c.LogGroup),
			LogStreamName: aws.String(stream),
			StartFromHead: aws.Bool(true),
			NextToken:     token,
		})
		if err != nil {
			return nil, fmt.Errorf("get log events %s/%s: %w", c.LogGroup, stream, err)
		}
		for _, ev := range out.Events {
			var he hostEvent
			if err := json.Unmarshal([]byte(aws.ToString(ev.Message)), &he); err != nil || he.Host == "" {
				c.Logger.Debug("candidate_event_skipped", zap.String("stream", stream), zap.String("message", aws.ToString(ev.Message)))
				continue
			}
			hosts = append(hosts, he.Host)
		}
		// pages can be empty mid-stream; only a repeated forward token ends it
		if out.NextForwardToken == nil || aws.ToString(out.NextForwardToken) == aws.ToString(token) {
			return hosts, nil
		}
		token = out.NextForwardToken
	}
}
