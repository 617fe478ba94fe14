package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const (
	QueueMintResults QueueName = "mint-results"
)

var ErrNotConnected = errors.New("connection is not open yet")

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	// Queues are declared durable on every (re)connect.
	Queues []QueueName
}

// Queue keeps a single RabbitMQ connection alive and publishes to queues
// through the default exchange.
type Queue struct {
	config *Config
	conn   *amqp.Connection
	mu     sync.RWMutex
	log    *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config: config,
		log:    slog.With("component", "queue"),
	}
}

// Start connects and reconnects until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("Starting the queue manager.")
	defer q.log.Info("Stopping the queue manager.")

	return q.reconnectLoop(ctx)
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	defer q.close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		q.log.Info("connecting to Rabbit MQ...")
		connErrors, err := q.connect()
		if err != nil {
			q.log.Error("connection to Rabbit MQ failed", "error", err)
			if !q.wait(ctx) {
				return nil
			}
			continue
		}

		q.log.Info("connected to Rabbit MQ")

		select {
		case <-ctx.Done():
			return nil
		case err := <-connErrors:
			q.log.Error("rabbit mq connection closed", "error", err)
		}

		q.close()

		if !q.wait(ctx) {
			return nil
		}
	}
}

func (q *Queue) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(q.config.ReconnectInterval):
		return true
	}
}

func (q *Queue) connect() (chan *amqp.Error, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, err
	}

	if err := declare(conn, q.config.Queues); err != nil {
		_ = conn.Close()
		return nil, err
	}

	connErrors := make(chan *amqp.Error, 1)
	conn.NotifyClose(connErrors)

	q.mu.Lock()
	q.conn = conn
	q.mu.Unlock()

	return connErrors, nil
}

func declare(conn *amqp.Connection, queues []QueueName) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("couldn't open channel: %w", err)
	}
	defer ch.Close()

	for _, name := range queues {
		if _, err := ch.QueueDeclare(string(name), true, false, false, false, nil); err != nil {
			return fmt.Errorf("couldn't declare queue %s: %w", name, err)
		}
	}

	return nil
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		_ = q.conn.Close()
	}
	q.conn = nil
}

// Ping reports whether the connection is currently open.
func (q *Queue) Ping(context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.conn == nil || q.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

func (q *Queue) Publish(queueName QueueName, message []byte) error {
	q.mu.RLock()
	conn := q.conn
	q.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("couldn't open channel: %w", err)
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), q.config.PublishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		"",                // default exchange, routed by queue name
		string(queueName), // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         message,
		},
	)
	if err != nil {
		q.log.Error("Failed to publish", "queue", queueName, "error", err)
		return err
	}

	return nil
}
