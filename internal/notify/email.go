package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// DefaultTopicName is the notification topic created by the deployment.
const DefaultTopicName = "tf_shodanmore_email_notifcation"

var ErrTopicNotFound = errors.New("notification topic not found")

// TopicAPI is the subset of *sns.Client used for email alerts.
type TopicAPI interface {
	ListTopics(ctx context.Context, in *sns.ListTopicsInput, optFns ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ TopicAPI = (*sns.Client)(nil)

// Email publishes alerts to a pre-existing topic found by name suffix.
// The ARN is looked up once and reused.
type Email struct {
	Client    TopicAPI
	TopicName string
	Subject   string

	mu  sync.Mutex
	arn string
}

func NewEmail(client TopicAPI, topicName string) *Email {
	if topicName == "" {
		topicName = DefaultTopicName
	}
	return &Email{Client: client, TopicName: topicName, Subject: "Alert"}
}

func (e *Email) Send(ctx context.Context, p Payload) error {
	arn, err := e.topicARN(ctx)
	if err != nil {
		return err
	}
	_, err = e.Client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Message:  aws.String(FormatList(p.Message)),
		Subject:  aws.String(e.Subject),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", arn, err)
	}
	return nil
}

func (e *Email) topicARN(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.arn != "" {
		return e.arn, nil
	}

	suffix := ":" + e.TopicName
	var token *string
	for {
		out, err := e.Client.ListTopics(ctx, &sns.ListTopicsInput{NextToken: token})
		if err != nil {
			return "", fmt.Errorf("list topics: %w", err)
		}
		for _, t := range out.Topics {
			if arn := aws.ToString(t.TopicArn); strings.HasSuffix(arn, suffix) {
				e.arn = arn
				return arn, nil
			}
		}
		if out.NextToken == nil {
			return "", fmt.Errorf("%w: %s", ErrTopicNotFound, e.TopicName)
		}
		token = out.NextToken
	}
}
