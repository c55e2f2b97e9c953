// Package sns delivers approval notifications through an SNS topic.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNS rejects subjects longer than this.
const maxSubjectLen = 100

type PublishAPI interface {
	Publish(ctx context.Context, in *awssns.PublishInput, opts ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

type Notifier struct {
	Client PublishAPI
}

func New(ctx context.Context, region string) (*Notifier, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Notifier{Client: awssns.NewFromConfig(awsCfg)}, nil
}

// Notify publishes to the topic ARN given as address.
func (n *Notifier) Notify(ctx context.Context, address, subject, body string) error {
	if address == "" {
		return errors.New("sns topic arn is empty")
	}
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}
	_, err := n.Client.Publish(ctx, &awssns.PublishInput{
		TopicArn: aws.String(address),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
