package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Clients holds the service clients used by the api and the worker.
// SQS is nil unless requested with WithSQS.
type Clients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

type clientOptions struct {
	sqs bool
}

// ClientOption selects optional service clients.
type ClientOption func(*clientOptions)

// WithSQS builds an SQS client for publishing payment jobs.
func WithSQS() ClientOption {
	return func(o *clientOptions) { o.sqs = true }
}

// NewClients loads the AWS config once and builds the DynamoDB and CloudWatch
// clients plus any optional ones.
func NewClients(ctx context.Context, opts ...ClientOption) (*Clients, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	c := &Clients{
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}
	if o.sqs {
		c.SQS = sqs.NewFromConfig(cfg)
	}
	return c, nil
}
