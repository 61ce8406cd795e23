package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes payment jobs to a durable RabbitMQ queue.
type AMQPPublisher struct {
	ch        amqpChannel
	queueName string
}

// NewAMQPPublisher opens a channel on conn and declares queueName.
func NewAMQPPublisher(conn *amqp.Connection, queueName string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newAMQPPublisher(ch, queueName)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, queueName string) (*AMQPPublisher, error) {
	if _, err := declareQueue(ch, queueName); err != nil {
		return nil, err
	}
	return &AMQPPublisher{ch: ch, queueName: queueName}, nil
}

func declareQueue(ch amqpChannel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}

// Publish sends msg as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	headers := amqp.Table{}
	for k, v := range msg.Attributes() {
		headers[k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			MessageId:     msg.PaymentID,
			CorrelationId: msg.CorrelationID,
			Headers:       headers,
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("publish payment %s: %w", msg.PaymentID, err)
	}

	log.Printf("[queue] published payment=%s order=%s", msg.PaymentID, msg.OrderID)
	return nil
}

// Close closes the underlying channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// Handler processes one decoded message. Returning an error requeues it.
type Handler func(ctx context.Context, msg Message) error

// Consume reads queueName until ctx is done or the channel closes. Malformed
// bodies are dropped, handler failures are requeued.
func Consume(ctx context.Context, conn *amqp.Connection, queueName string, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := declareQueue(ch, queueName); err != nil {
		return err
	}
	// one message in flight per consumer
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName,
		"payment-worker", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			settle(ctx, d.Body, d, handle)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(ctx context.Context, body []byte, ack acknowledger, handle Handler) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("[queue] dropping malformed message: %v", err)
		ack.Nack(false, false)
		return
	}
	if err := handle(ctx, msg); err != nil {
		log.Printf("[queue] payment=%s failed, requeueing: %v", msg.PaymentID, err)
		ack.Nack(false, true)
		return
	}
	if err := ack.Ack(false); err != nil {
		log.Printf("[queue] ack payment=%s: %v", msg.PaymentID, err)
	}
}
