package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/vladosShikos/losb-back/internal/application/verification"
)

const (
	DefaultExchange = "losb.events"

	RoutingKeyPhoneVerified = "user.phone.verified"

	// Minimum window to wait for Return / Confirm.
	publishWait = 2 * time.Second

	// A mandatory Return arrives before the Ack on the same channel; this
	// is only the grace period for reading both off their Go channels.
	returnGrace = 50 * time.Millisecond
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	url      string
	exchange string
	lg       zerolog.Logger

	mu sync.Mutex

	conn *amqp.Connection
	ch   channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string, lg zerolog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		lg:       lg.With().Str("component", "rabbitmq_publisher").Logger(),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// PublishPhoneVerified implements verification.EventPublisher.
func (p *Publisher) PublishPhoneVerified(ctx context.Context, evt verification.PhoneVerifiedEvent) error {
	return p.publishJSON(ctx, RoutingKeyPhoneVerified, evt)
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.lg.Info().Str("exchange", p.exchange).Msg("reconnecting")
	return p.connect()
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishWait)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}
	return p.publishLocked(ctx, routingKey, body)
}

// publishLocked expects p.mu held and a live channel.
func (p *Publisher) publishLocked(ctx context.Context, routingKey string, body []byte) error {
	// Drain stale confirm / return messages so results are not mixed up.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		p.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	select {
	case ret := <-p.returnCh:
		return unroutable(routingKey, ret)

	case conf := <-p.confirmCh:
		select {
		case ret := <-p.returnCh:
			return unroutable(routingKey, ret)
		case <-time.After(returnGrace):
		}
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		p.lg.Debug().Str("routing_key", routingKey).Uint64("delivery_tag", conf.DeliveryTag).Msg("published")
		return nil

	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish timeout: key=%s: %w", routingKey, ctx.Err())
	}
}

func unroutable(routingKey string, ret amqp.Return) error {
	return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
