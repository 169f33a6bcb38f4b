package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/totp-auth/internal/application/auth"
)

const (
	DefaultExchange = "auth.events"

	appID          = "totp-auth"
	envelopeV1     = 1
	confirmTimeout = 2 * time.Second
)

var errNoEventType = errors.New("security event without type")

// envelope is the wire shape consumers bind to. Payload fields stay flat so
// a consumer can decode straight into its own event struct.
type envelope struct {
	ID         string    `json:"id"`
	Version    int       `json:"version"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends security events to a durable topic exchange, one event per
// message, routed by event type. Each publish waits for the broker confirm.
type Publisher struct {
	url      string
	exchange string
	now      func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms <-chan amqp.Confirmation
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{url: url, exchange: exchange, now: time.Now}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dial(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.teardown()
}

func (p *Publisher) PublishSecurityEvent(ctx context.Context, evt auth.SecurityEvent) error {
	env, err := p.wrap(evt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.Type, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, confirmTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.send(ctx, env, body)
	if err == nil || !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	// broker restarted under us: one redial, one retry
	_ = p.teardown()
	if derr := p.dial(); derr != nil {
		return derr
	}
	return p.send(ctx, env, body)
}

func (p *Publisher) wrap(evt auth.SecurityEvent) (envelope, error) {
	if evt.Type == "" {
		return envelope{}, errNoEventType
	}
	at := evt.At
	if at.IsZero() {
		at = p.now()
	}
	return envelope{
		ID:         uuid.NewString(),
		Version:    envelopeV1,
		Type:       evt.Type,
		UserID:     evt.UserID,
		Email:      evt.Email,
		OccurredAt: at.UTC(),
	}, nil
}

// send requires p.mu.
func (p *Publisher) send(ctx context.Context, env envelope, body []byte) error {
	if p.ch == nil || p.ch.IsClosed() {
		_ = p.teardown()
		if err := p.dial(); err != nil {
			return err
		}
	}

	for drained := false; !drained; {
		select {
		case <-p.confirms:
		default:
			drained = true
		}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         env.Type,
		AppId:        appID,
		Timestamp:    env.OccurredAt,
		Body:         body,
	}
	// not mandatory: nobody may be bound to a given event type yet
	if err := p.ch.PublishWithContext(ctx, p.exchange, env.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}

	select {
	case c, ok := <-p.confirms:
		switch {
		case !ok:
			return fmt.Errorf("confirm %s: %w", env.Type, amqp.ErrClosed)
		case !c.Ack:
			return fmt.Errorf("broker nacked %s (tag %d)", env.Type, c.DeliveryTag)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("confirm %s: %w", env.Type, ctx.Err())
	}
}

// dial requires p.mu.
func (p *Publisher) dial() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareTopology(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return nil
}

func declareTopology(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}
	return nil
}

// teardown requires p.mu.
func (p *Publisher) teardown() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	p.confirms = nil
	return errors.Join(errs...)
}
