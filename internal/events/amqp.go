package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQP publishes persistent JSON messages. A channel is not safe for
// concurrent use, so publishes are serialized. A channel closed by the broker
// is replaced on the next publish.
type AMQP struct {
	mu        sync.Mutex
	open      func() (channel, error)
	closeConn func() error
	ch        channel
	declared  map[string]bool
	log       *zap.Logger
	now       func() time.Time
}

// Dial connects to the broker at url and opens a channel.
func Dial(url string, log *zap.Logger) (*AMQP, error) {
	d := &dialer{url: url}
	p := newAMQP(d.channel, log)
	p.closeConn = d.close
	if err := p.ensure(); err != nil {
		_ = d.close()
		return nil, err
	}
	return p, nil
}

// dialer opens channels, redialing when the connection is gone. It is only
// used under the publisher's mutex.
type dialer struct {
	url  string
	conn *amqp.Connection
}

func (d *dialer) channel() (channel, error) {
	if d.conn == nil || d.conn.IsClosed() {
		conn, err := amqp.Dial(d.url)
		if err != nil {
			return nil, fmt.Errorf("amqp dial: %w", err)
		}
		d.conn = conn
	}
	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return ch, nil
}

func (d *dialer) close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func newAMQP(open func() (channel, error), log *zap.Logger) *AMQP {
	return &AMQP{open: open, declared: map[string]bool{}, log: log, now: time.Now}
}

// ensure opens a channel when there is none or the broker closed it.
// Queue declarations are repeated on a new channel.
func (p *AMQP) ensure() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.ch != nil {
		p.log.Info("amqp channel closed, reopening")
	}
	ch, err := p.open()
	if err != nil {
		return err
	}
	p.ch = ch
	p.declared = map[string]bool{}
	return nil
}

// Publish marshals event and sends it to the durable queue named topic.
func (p *AMQP) Publish(ctx context.Context, topic string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensure(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if !p.declared[topic] {
		if _, err := p.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", topic, err)
		}
		p.declared[topic] = true
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", topic, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debug("event published", zap.String("topic", topic), zap.Int("bytes", len(body)))
	return nil
}

// Close closes the channel and the connection.
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		if cerr := p.closeConn(); err == nil {
			err = cerr
		}
	}
	return err
}

// Logged wraps a publisher so that failures are logged and never returned.
type Logged struct {
	Next Publisher
	Log  *zap.Logger
}

// Publish implements Publisher.
func (l Logged) Publish(ctx context.Context, topic string, event any) error {
	if err := l.Next.Publish(ctx, topic, event); err != nil {
		l.Log.Warn("event dropped", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}
