package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/barbershop-booking/internal/config"
	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/infrastructure/awsconf"
)

// Push is one message for one device token.
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Publisher delivers mobile/web push through an SNS platform application.
type Publisher struct {
	client         *sns.Client
	applicationARN string
}

func NewPublisher(ctx context.Context, cfg *config.Config) (*Publisher, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Publisher{
		client:         sns.NewFromConfig(awsCfg, clientOpts...),
		applicationARN: cfg.SNSPlatformApplicationARN,
	}, nil
}

// Publish sends p and returns the provider's message id. A token the
// provider no longer accepts yields domain.ErrTokenInvalid.
func (p *Publisher) Publish(ctx context.Context, push Push) (string, error) {
	ep, err := p.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(p.applicationARN),
		Token:                  aws.String(push.Token),
	})
	if err != nil {
		return "", classify("create platform endpoint", err)
	}

	msg, err := payload(push)
	if err != nil {
		return "", err
	}
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        ep.EndpointArn,
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", classify("publish", err)
	}
	return aws.ToString(out.MessageId), nil
}

// payload renders the per-platform message document. FCM receives both a
// notification block for display and the raw data for the client.
func payload(push Push) (string, error) {
	fcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{"title": push.Title, "body": push.Body},
		"data":         push.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal fcm payload: %w", err)
	}
	doc, err := json.Marshal(map[string]string{
		"default": push.Body,
		"GCM":     string(fcm),
	})
	if err != nil {
		return "", fmt.Errorf("marshal push payload: %w", err)
	}
	return string(doc), nil
}

func classify(op string, err error) error {
	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) || strings.Contains(err.Error(), "registration-token-not-registered") {
		return fmt.Errorf("sns %s: %w: %v", op, domain.ErrTokenInvalid, err)
	}
	var invalid *types.InvalidParameterException
	if errors.As(err, &invalid) && strings.Contains(strings.ToLower(aws.ToString(invalid.Message)), "token") {
		return fmt.Errorf("sns %s: %w: %v", op, domain.ErrTokenInvalid, err)
	}
	return fmt.Errorf("sns %s: %w: %v", op, domain.ErrDeliveryFailed, err)
}
