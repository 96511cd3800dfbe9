// Package notify delivers escalation alerts to the care team over SNS and
// SES. Delivery is best effort; the pipelines treat failures as warnings.
package notify

import (
	"context"
	"fmt"
	"strings"

	"carepath/internal/common/config"
	"carepath/internal/common/logger"
	"carepath/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Interfaces for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// CareTeamNotifier fans an escalation out to the configured SNS topic and
// care-team email address.
type CareTeamNotifier struct {
	cfg       config.NotificationConfig
	sesClient SESService
	snsClient SNSService
	log       logger.Logger
}

func NewCareTeamNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*CareTeamNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &CareTeamNotifier{
		cfg:       cfg,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		log:       log.With(map[string]interface{}{"component": "notify"}),
	}, nil
}

// NewCareTeamNotifierWithClients wires explicit clients. Used by tests.
func NewCareTeamNotifierWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *CareTeamNotifier {
	return &CareTeamNotifier{cfg: cfg, sesClient: sesClient, snsClient: snsClient, log: log}
}

// EscalationRaised publishes the directive to SNS and emails the care team.
// Either channel may be unconfigured; both failing returns the first error.
func (n *CareTeamNotifier) EscalationRaised(ctx context.Context, directive models.EscalationDirective) error {
	message := formatEscalation(directive)

	var firstErr error
	if n.cfg.SNS.TopicARN != "" {
		_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.cfg.SNS.TopicARN),
			Subject:  aws.String(fmt.Sprintf("Patient escalation: %s", directive.PatientID)),
			Message:  aws.String(message),
		})
		if err != nil {
			n.log.Error("SNS publish failed", map[string]interface{}{"error": err.Error()})
			firstErr = err
		}
	}

	if n.cfg.Email.CareTeam != "" {
		_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
			Destination: &sestypes.Destination{
				ToAddresses: []string{n.cfg.Email.CareTeam},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(fmt.Sprintf("Patient escalation: %s (%s urgency)", directive.PatientID, directive.UrgencyLevel))},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(message)},
				},
			},
			Source: aws.String(n.cfg.Email.FromEmail),
		})
		if err != nil {
			n.log.Error("email send failed", map[string]interface{}{"error": err.Error()})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func formatEscalation(d models.EscalationDirective) string {
	return fmt.Sprintf(
		"Patient %s requires attention.\n\nReason: %s\nUrgency: %s\nConfidence: %.2f\nPrimary concerns: %s\n",
		d.PatientID, d.Reason, d.UrgencyLevel, d.Confidence, strings.Join(d.PrimaryConcerns, "; "),
	)
}

// NopNotifier drops every notification. Used when notifications are
// disabled.
type NopNotifier struct{}

func (NopNotifier) EscalationRaised(context.Context, models.EscalationDirective) error { return nil }
