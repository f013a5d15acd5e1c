package pkg

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/ibuddy-app/ibuddy-service/internal/config"
)

// AWSClients builds SDK clients from one shared configuration. An endpoint
// override applies to every client.
type AWSClients struct {
	cfg      aws.Config
	endpoint string
}

func NewAWSClients(ctx context.Context, c config.AWSConfig) (*AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &AWSClients{cfg: cfg, endpoint: c.Endpoint}, nil
}

func (a *AWSClients) DynamoDB() *dynamodb.Client {
	return dynamodb.NewFromConfig(a.cfg, func(o *dynamodb.Options) {
		if a.endpoint != "" {
			o.BaseEndpoint = aws.String(a.endpoint)
		}
	})
}

func (a *AWSClients) S3() *s3.Client {
	return s3.NewFromConfig(a.cfg, func(o *s3.Options) {
		if a.endpoint != "" {
			o.BaseEndpoint = aws.String(a.endpoint)
			o.UsePathStyle = true
		}
	})
}

func (a *AWSClients) SES() *sesv2.Client {
	return sesv2.NewFromConfig(a.cfg, func(o *sesv2.Options) {
		if a.endpoint != "" {
			o.BaseEndpoint = aws.String(a.endpoint)
		}
	})
}
