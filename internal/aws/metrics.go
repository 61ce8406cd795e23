package aws

import (
	"context"
	"log"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by the api and worker.
const (
	MetricCartsBuilt        = "CartsBuilt"
	MetricCartLines         = "CartLines"
	MetricCartBuildFailures = "CartBuildFailures"
	MetricCartMismatch      = "CartMismatch"
	MetricPaymentsSubmitted = "PaymentsSubmitted"
	MetricPaymentsFailed    = "PaymentsFailed"
)

// Metrics publishes counters to CloudWatch. A nil *Metrics is a no-op.
type Metrics struct {
	cw        CloudWatchAPI
	namespace string
}

// NewMetrics returns a Metrics writing under namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{cw: cw, namespace: namespace}
}

// Count records value for name. Publishing errors are logged and dropped.
func (m *Metrics) Count(ctx context.Context, name string, value float64, dims map[string]string) {
	if m == nil || m.cw == nil {
		return
	}

	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: awsString(dims[k]),
		})
	}

	_, err := m.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		log.Printf("[metrics] put %s failed: %v", name, err)
	}
}
