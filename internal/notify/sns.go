package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// smsMaxBytes keeps a message within SNS's single-SMS limit.
const smsMaxBytes = 1600

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes text messages to a phone number through AWS SNS. Credentials
// and region come from the default AWS chain.
type SNS struct {
	phone  string
	client snsPublisher
}

func NewSNS(ctx context.Context, phone string) (*SNS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNS{phone: phone, client: sns.NewFromConfig(cfg)}, nil
}

func (s *SNS) Name() string { return "sns" }

func (s *SNS) Send(ctx context.Context, message string) error {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(s.phone),
		Message:     aws.String(truncate(message, smsMaxBytes)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	if out != nil && out.MessageId == nil {
		return fmt.Errorf("sns publish returned no message id")
	}
	return nil
}
