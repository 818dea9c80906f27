// Package queue is the RabbitMQ layer that carries batch jobs from the API
// server to worker processes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// MessageQueue is the broker interface the execution strategies depend on.
type MessageQueue interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, persistent bool) error
	EnsureExchange(exchange, kind string, durable bool) error
	EnsureQueue(queue string, durable bool) error
	BindQueue(queue, exchange, routingKey string) error
	StartConsumer(queue string, prefetchCount int, handler func([]byte) bool) (chan<- struct{}, error)
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ wraps one AMQP connection with a pooled channel set and caches of
// declared topology.
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	declared     map[string]bool // exchanges, queues and bindings already declared
	declaredMu   sync.Mutex
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ connects to the broker named in the configuration.
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq URL not configured")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq at %s: %w", cfg.URL, err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]bool),
		cfg:      cfg,
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, chErr := conn.Channel()
			if chErr != nil {
				logger.Error().Err(chErr).Msg("open rabbitmq channel")
				return nil
			}
			return ch
		},
	}

	// Verify we can actually open a channel before declaring victory.
	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel")
	}
	mq.putChannel(testCh)

	logger.Info().Str("url", cfg.URL).Msg("connected to rabbitmq")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			logger.Error().Err(err).Msg("open rabbitmq channel")
			return nil
		}
		return newCh
	}
	return ch.(*amqp.Channel)
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil {
		r.channelPool.Put(ch)
	}
}

// Close shuts down the underlying connection.
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

func (r *RabbitMQ) alreadyDeclared(key string) bool {
	r.declaredMu.Lock()
	defer r.declaredMu.Unlock()
	if r.declared[key] {
		return true
	}
	r.declared[key] = true
	return false
}

// EnsureExchange declares the exchange once per process.
func (r *RabbitMQ) EnsureExchange(exchange, kind string, durable bool) error {
	if exchange == "" {
		return fmt.Errorf("exchange name must not be empty")
	}
	if r.alreadyDeclared("exchange:" + exchange) {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("open rabbitmq channel")
	}
	defer r.putChannel(ch)

	if err := ch.ExchangeDeclare(exchange, kind, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// EnsureQueue declares the queue once per process.
func (r *RabbitMQ) EnsureQueue(queue string, durable bool) error {
	if queue == "" {
		return fmt.Errorf("queue name must not be empty")
	}
	if r.alreadyDeclared("queue:" + queue) {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("open rabbitmq channel")
	}
	defer r.putChannel(ch)

	if _, err := ch.QueueDeclare(queue, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// BindQueue binds a queue to an exchange for one routing key.
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	if r.alreadyDeclared(fmt.Sprintf("binding:%s:%s:%s", exchange, queue, routingKey)) {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("open rabbitmq channel")
	}
	defer r.putChannel(ch)

	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s (%s): %w", queue, exchange, routingKey, err)
	}
	return nil
}

// PublishMessage publishes raw bytes, optionally persistent.
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("open rabbitmq channel")
	}
	defer r.putChannel(ch)

	var deliveryMode uint8 = amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish to %s (%s): %w", exchange, routingKey, err)
	}
	return nil
}

// PublishJSON marshals data and publishes it.
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return r.PublishMessage(ctx, exchange, routingKey, jsonData, persistent)
}

// StartConsumer attaches a handler to the queue. The handler's return value
// decides ack (true) versus nack-with-requeue (false). Closing the returned
// channel stops the consumer.
func (r *RabbitMQ) StartConsumer(queue string, prefetchCount int, handler func([]byte) bool) (chan<- struct{}, error) {
	stopCh := make(chan struct{})

	ch := r.getChannel()
	if ch == nil {
		return nil, fmt.Errorf("open rabbitmq channel")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("register consumer on %s: %w", queue, err)
	}

	go func() {
		defer r.putChannel(ch)
		log := logger.With("queue-consumer")
		log.Info().Str("queue", queue).Int("prefetch", prefetchCount).Msg("consumer started")
		defer log.Info().Str("queue", queue).Msg("consumer stopped")

		for {
			select {
			case <-stopCh:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Warn().Str("queue", queue).Msg("delivery channel closed")
					return
				}
				if handler(delivery.Body) {
					if err := delivery.Ack(false); err != nil {
						log.Error().Err(err).Msg("ack message")
					}
				} else {
					if err := delivery.Nack(false, true); err != nil {
						log.Error().Err(err).Msg("nack message")
					}
				}
			}
		}
	}()

	return stopCh, nil
}
