package matching

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

// SNSSink publishes match events to an SNS topic for the push pipeline.
type SNSSink struct {
	client   snsiface.SNSAPI
	topicARN string
}

func NewSNSSink(client snsiface.SNSAPI, topicARN string) *SNSSink {
	return &SNSSink{client: client, topicARN: topicARN}
}

func (s *SNSSink) NotifyMutualMatch(ctx context.Context, event MatchEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode match event: %w", err)
	}

	_, err = s.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String("mutual_match"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish match event: %w", err)
	}
	return nil
}
