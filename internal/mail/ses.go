package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/taxbridge/backend/internal/config"
)

// SESMailer sends email through Amazon SES.
type SESMailer struct {
	client *sesv2.Client
	sender string
}

// NewSESMailer configures an SES client with the provided sender identity.
func NewSESMailer(ctx context.Context, cfg config.EmailConfig) (*SESMailer, error) {
	if strings.TrimSpace(cfg.SenderEmail) == "" {
		return nil, fmt.Errorf("ses mailer: sender email is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SESMailer{
		client: sesv2.NewFromConfig(awsCfg),
		sender: cfg.SenderEmail,
	}, nil
}

// Send delivers a single message with both HTML and plain-text bodies.
func (m *SESMailer) Send(ctx context.Context, to, subject, html, text string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html)},
					Text: &types.Content{Data: aws.String(text)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

var _ Mailer = (*SESMailer)(nil)
