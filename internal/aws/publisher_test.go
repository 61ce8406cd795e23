package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/imrishuroy/go-msp-checkout/internal/queue"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestPublisher_Publish(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.local/payments")

	msg := queue.Message{PaymentID: "p1", OrderID: "o1", IdempotencyKey: "k1"}
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(fake.inputs))
	}

	in := fake.inputs[0]
	if *in.QueueUrl != "https://sqs.local/payments" {
		t.Fatalf("queue url mismatch: %s", *in.QueueUrl)
	}
	var got queue.Message
	if err := json.Unmarshal([]byte(*in.MessageBody), &got); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if got != msg {
		t.Fatalf("body mismatch: %+v", got)
	}
	if v := in.MessageAttributes["payment_id"].StringValue; v == nil || *v != "p1" {
		t.Fatalf("payment_id attribute missing")
	}
	if _, ok := in.MessageAttributes["correlation_id"]; ok {
		t.Fatalf("empty correlation id should not be sent")
	}
}

func TestPublisher_PublishError(t *testing.T) {
	p := NewPublisher(&fakeSQS{err: errors.New("boom")}, "q")
	if err := p.Publish(context.Background(), queue.Message{PaymentID: "p1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMetrics_Count(t *testing.T) {
	fake := &fakeCloudWatch{}
	m := NewMetrics(fake, "MSPCheckout")

	m.Count(context.Background(), MetricCartLines, 3, map[string]string{"Currency": "EUR", "Gateway": "IDEAL"})

	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 put, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.Namespace != "MSPCheckout" {
		t.Fatalf("namespace mismatch: %s", *in.Namespace)
	}
	datum := in.MetricData[0]
	if *datum.MetricName != MetricCartLines || *datum.Value != 3 || datum.Unit != cwtypes.StandardUnitCount {
		t.Fatalf("unexpected datum: %+v", datum)
	}
	if len(datum.Dimensions) != 2 || *datum.Dimensions[0].Name != "Currency" {
		t.Fatalf("dimensions not sorted: %+v", datum.Dimensions)
	}
}

func TestMetrics_NilAndErrorsAreSwallowed(t *testing.T) {
	var m *Metrics
	m.Count(context.Background(), MetricCartsBuilt, 1, nil)

	m = NewMetrics(&fakeCloudWatch{err: errors.New("throttled")}, "ns")
	m.Count(context.Background(), MetricCartsBuilt, 1, nil)
}
