package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-msp-checkout/internal/aws"
	"github.com/imrishuroy/go-msp-checkout/internal/config"
	"github.com/imrishuroy/go-msp-checkout/internal/handlers"
	"github.com/imrishuroy/go-msp-checkout/internal/queue"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, cfg)
	return r
}

// newPublisher returns the job publisher for the configured queue driver and a
// cleanup func.
func newPublisher(cfg config.Config, clients *aws.Clients) (queue.Publisher, func(), error) {
	if cfg.QueueDriver != config.QueueDriverAMQP {
		return aws.NewPublisher(clients.SQS, cfg.QueueURL), func() {}, nil
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, nil, err
	}
	p, err := queue.NewAMQPPublisher(conn, cfg.AMQPQueue)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return p, func() {
		p.Close()
		conn.Close()
	}, nil
}

func main() {
	cfg := config.Load()

	var opts []aws.ClientOption
	if cfg.QueueDriver != config.QueueDriverAMQP {
		opts = append(opts, aws.WithSQS())
	}
	clients, err := aws.NewClients(context.Background(), opts...)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	publisher, closePublisher, err := newPublisher(cfg, clients)
	if err != nil {
		log.Fatalf("failed to init %s publisher: %v", cfg.QueueDriver, err)
	}
	defer closePublisher()

	tolerance, err := decimal.NewFromString(cfg.ReconcileTolerance)
	if err != nil {
		log.Fatalf("invalid RECONCILE_TOLERANCE %q: %v", cfg.ReconcileTolerance, err)
	}

	r := setupRouter(handlers.HandlerConfig{
		DynamoDBClient:     clients.DynamoDB,
		Publisher:          publisher,
		Metrics:            aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		OrdersTable:        cfg.OrdersTable,
		SettingsTable:      cfg.SettingsTable,
		PaymentsTable:      cfg.PaymentsTable,
		IdempotencyTable:   cfg.IdempotencyTable,
		TTLWindow:          cfg.TTLWindow,
		ReconcileTolerance: tolerance,
	})

	// RUN_LOCAL=true serves plain HTTP for development.
	if cfg.RunLocal {
		log.Printf("running local server on %s", cfg.Addr)
		if err := r.Run(cfg.Addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
