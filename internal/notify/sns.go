// Package notify publishes terminal job events for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"specgen/internal/common/logger"
	"specgen/internal/models"
)

var ErrPublishFailed = errors.New("NOTIFICATION_PUBLISH_FAILED")

// Publisher is the subset of the SNS client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes each event as JSON with status and projectId message
// attributes, so subscriptions can filter without parsing the body.
type SNSNotifier struct {
	publisher Publisher
	topicARN  string
	logger    logger.Logger
}

func NewSNSNotifier(publisher Publisher, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		publisher: publisher,
		topicARN:  topicARN,
		logger:    log.With(map[string]interface{}{"component": "notify"}),
	}
}

func (n *SNSNotifier) Notify(ctx context.Context, event models.JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshal event: %v", ErrPublishFailed, err)
	}

	out, err := n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject(event)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Status)),
			},
			"projectId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.ProjectID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	n.logger.Debug("job event published", map[string]interface{}{
		"jobId":     event.JobID,
		"status":    string(event.Status),
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

func subject(event models.JobEvent) string {
	if event.Status == models.JobCompleted {
		return fmt.Sprintf("Specification v%d generated", event.Version)
	}
	return "Specification generation failed"
}
