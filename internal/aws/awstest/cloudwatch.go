package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// CloudWatch records PutMetricData calls.
type CloudWatch struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (c *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]float64{}
	}
	for _, d := range in.MetricData {
		if d.MetricName != nil && d.Value != nil {
			c.counts[*d.MetricName] += *d.Value
		}
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Total returns the summed value published for metric name.
func (c *CloudWatch) Total(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}
