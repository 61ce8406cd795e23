package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/imrishuroy/go-msp-checkout/internal/aws"
	"github.com/imrishuroy/go-msp-checkout/internal/config"
	"github.com/imrishuroy/go-msp-checkout/internal/idempotency"
	"github.com/imrishuroy/go-msp-checkout/internal/msp"
	"github.com/imrishuroy/go-msp-checkout/internal/payments"
	"github.com/imrishuroy/go-msp-checkout/internal/queue"
	"github.com/imrishuroy/go-msp-checkout/internal/settings"
)

func main() {
	cfg := config.Load()

	clients, err := aws.NewClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	p := NewProcessor(ProcessorConfig{
		Payments:    payments.NewStore(clients.DynamoDB, cfg.PaymentsTable),
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.TTLWindow),
		Settings:    settings.NewStore(clients.DynamoDB, cfg.SettingsTable),
		Metrics:     aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		StaleAfter:  cfg.ProcessingStaleAfter,
		MSPBaseURL:  cfg.MSPBaseURL,
		NewClient: func(baseURL, apiKey string) orderCreator {
			return msp.NewClient(msp.Options{
				BaseURL:             baseURL,
				APIKey:              apiKey,
				Timeout:             cfg.MSPTimeout,
				ConsecutiveFailures: cfg.BreakerFailures,
				OpenTimeout:         cfg.BreakerTimeout,
			})
		},
	})

	if cfg.QueueDriver == config.QueueDriverAMQP {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect to amqp: %v", err)
		}
		defer conn.Close()

		log.Printf("[worker] consuming %s", cfg.AMQPQueue)
		if err := queue.Consume(ctx, conn, cfg.AMQPQueue, p.Process); err != nil && ctx.Err() == nil {
			log.Fatalf("consumer stopped: %v", err)
		}
		return
	}

	// RUN_LOCAL=true processes one simulated SQS event and exits.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Fatal("LOCAL_SQS_BODY is required with RUN_LOCAL=true")
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.Fatalf("local handler failed: %v %+v", err, resp.BatchItemFailures)
		}
		return
	}

	lambda.Start(p.Handle)
}
