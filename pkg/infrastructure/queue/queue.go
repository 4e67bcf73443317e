package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends every tick observation as a JSON message to a queue. It
// implements interfaces.MetricsSink.
type Publisher struct {
	conn      *amqp.Connection
	ch        channel
	queueName string
	mu        sync.Mutex
}

func Connect(url, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, PrettyLogger.WrapError(err, "queue.Connect(): error connecting to queue")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, PrettyLogger.WrapError(err, "queue.Connect(): error opening channel")
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, PrettyLogger.WrapError(err, "queue.Connect(): error declaring queue %s", queueName)
	}
	return &Publisher{conn: conn, ch: ch, queueName: q.Name}, nil
}

func Encode(m data.TickMetrics) (amqp.Publishing, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return amqp.Publishing{}, PrettyLogger.WrapError(err, "queue.Encode(): failed to marshal tick %d", m.Tick)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: m.RunId,
		Type:          "tick-metrics",
		Body:          body,
	}, nil
}

func (p *Publisher) Observe(m data.TickMetrics) error {
	msg, err := Encode(m)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err = p.ch.PublishWithContext(ctx, "", p.queueName, false, false, msg); err != nil {
		return PrettyLogger.WrapError(err, "queue.Observe(): failed to publish tick %d of run %s", m.Tick, m.RunId)
	}
	return nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return PrettyLogger.WrapError(err, "queue.Close(): error closing channel")
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
