package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the client uses. It keeps the publisher testable.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitmqClient struct {
	//conn is a tcp connection to rabbitmq server
	conn *amqp.Connection
	chn  channel
}

func NewClient(url string) (*RabbitmqClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	//Open a channel. This open a logical session inside the connection.
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	return &RabbitmqClient{conn: conn, chn: chn}, nil
}

// close cleans up
func (r *RabbitmqClient) Close() error {
	if err := r.chn.Close(); err != nil {
		return err
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// CreateQueue declares a durable queue.
func (r *RabbitmqClient) CreateQueue(queueName string) error {
	_, err := r.chn.QueueDeclare(
		queueName, //name of queue
		true,      //durable
		false,     //delete when unused
		false,     //exclusive
		false,     //no-wait
		nil,       //arguments
	)
	return err
}

// PublishBytes sends a persistent JSON message to a queue on the default exchange.
func (r *RabbitmqClient) PublishBytes(ctx context.Context, queueName, messageID string, body []byte) error {
	return r.chn.PublishWithContext(
		ctx,
		"",        //exchange
		queueName, //routing key (queue name)
		false,     //mandatory
		false,     //immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
}

// QueuePublisher publishes events to one queue. It satisfies the same Publisher
// contract as the kafka producer so the billing service can switch brokers by config.
type QueuePublisher struct {
	client *RabbitmqClient
	queue  string
}

func NewQueuePublisher(client *RabbitmqClient, queue string) (*QueuePublisher, error) {
	if err := client.CreateQueue(queue); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &QueuePublisher{client: client, queue: queue}, nil
}

func (p *QueuePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal rabbitmq body: %w", err)
	}
	return p.client.PublishBytes(ctx, p.queue, key, body)
}

func (p *QueuePublisher) Close() error {
	return p.client.Close()
}
