// Package rabbitmq announces completed signups on a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/meeting-machine/internal/application/signup"
	appCtx "github.com/baechuer/meeting-machine/internal/pkg/context"
)

const (
	DefaultExchange = "meetingmachine.events"

	RoutingKeyUserSignedUp = "user.signed_up"

	// publishWait applies when the caller's context carries no deadline.
	publishWait = 2 * time.Second

	// dialWait bounds TCP connect, the AMQP handshake and channel setup.
	dialWait  = 5 * time.Second
	closeWait = time.Second
	heartbeat = 10 * time.Second
)

var (
	// ErrUnroutable means the broker returned a mandatory message because no
	// queue is bound for its routing key.
	ErrUnroutable = errors.New("rabbitmq unroutable")

	// ErrNotConnected means no usable channel exists right now. A reconnect
	// has been started in the background.
	ErrNotConnected = errors.New("rabbitmq not connected")
)

// channel is one confirm-mode AMQP channel plus its notification streams.
type channel struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	acks     <-chan amqp.Confirmation
	returned <-chan amqp.Return
}

// dialer connects under ctx and leaves a handshake deadline on the socket.
// The client clears it once the connection is open.
func dialer(ctx context.Context, timeout time.Duration) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func openChannel(ctx context.Context, url, exchange string, timeout time.Duration) (c *channel, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial:      dialer(ctx, timeout),
		Heartbeat: heartbeat,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	// a broker that stalls after the handshake must not hold setup open
	stop := context.AfterFunc(ctx, func() { _ = conn.CloseDeadline(time.Now()) })
	defer func() {
		stop()
		if err != nil {
			_ = conn.CloseDeadline(time.Now().Add(closeWait))
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	// durable topic exchange, never auto-deleted
	if err = ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq exchange %q: %w", exchange, err)
	}
	if err = ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("rabbitmq confirm mode: %w", err)
	}

	return &channel{
		conn:     conn,
		ch:       ch,
		acks:     ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		returned: ch.NotifyReturn(make(chan amqp.Return, 1)),
	}, nil
}

func (c *channel) usable() bool {
	return c != nil && !c.conn.IsClosed() && !c.ch.IsClosed()
}

// close tears down the connection, which also closes its channel.
func (c *channel) close() {
	if c == nil {
		return
	}
	_ = c.conn.CloseDeadline(time.Now().Add(closeWait))
}

// discardStale empties notifications left behind by a publish whose caller
// gave up before the broker answered.
func (c *channel) discardStale() {
	for {
		select {
		case <-c.acks:
		case <-c.returned:
		default:
			return
		}
	}
}

// Publisher sends persistent, mandatory messages and waits for the broker's
// verdict on each one. Publishing never dials: when the channel is gone the
// call fails fast and a single reconnect runs in the background.
type Publisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration

	// slot admits one publish at a time onto the shared channel
	slot    chan struct{}
	dialing atomic.Bool

	base context.Context
	stop context.CancelFunc

	mu     sync.Mutex // guards cur and closed, never held across I/O
	cur    *channel
	closed bool
}

func newPublisher(url, exchange string, dialTimeout time.Duration) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	base, stop := context.WithCancel(context.Background())
	return &Publisher{
		url:         url,
		exchange:    exchange,
		dialTimeout: dialTimeout,
		slot:        make(chan struct{}, 1),
		base:        base,
		stop:        stop,
	}
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	p := newPublisher(url, exchange, dialWait)
	c, err := openChannel(p.base, url, p.exchange, p.dialTimeout)
	if err != nil {
		p.stop()
		return nil, err
	}
	p.cur = c
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	c := p.cur
	p.cur, p.closed = nil, true
	p.mu.Unlock()

	p.stop()
	c.close()
	return nil
}

func (p *Publisher) current() *channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// drop forgets c if it is still the current channel.
func (p *Publisher) drop(c *channel) {
	p.mu.Lock()
	if p.cur == c {
		p.cur = nil
	}
	p.mu.Unlock()
	c.close()
}

// redial reopens the channel off the request path and retires the broken
// one. Only one attempt runs at a time; callers keep failing fast until it
// lands.
func (p *Publisher) redial() {
	if p.base.Err() != nil || !p.dialing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.dialing.Store(false)

		c, err := openChannel(p.base, p.url, p.exchange, p.dialTimeout)
		if err != nil {
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.close()
			return
		}
		old := p.cur
		p.cur = c
		p.mu.Unlock()
		old.close()
	}()
}

func (p *Publisher) PublishUserSignedUp(ctx context.Context, evt signup.UserSignedUpEvent) error {
	body, err := json.Marshal(newUserSignedUpMessage(ctx, evt))
	if err != nil {
		return fmt.Errorf("encode %s: %w", RoutingKeyUserSignedUp, err)
	}
	return p.publish(ctx, RoutingKeyUserSignedUp, body)
}

// userSignedUpMessage is the wire format consumers bind to.
type userSignedUpMessage struct {
	Event      string    `json:"event"`
	RequestID  string    `json:"request_id,omitempty"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	CRMStatus  string    `json:"crm_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newUserSignedUpMessage(ctx context.Context, evt signup.UserSignedUpEvent) userSignedUpMessage {
	return userSignedUpMessage{
		Event:      RoutingKeyUserSignedUp,
		RequestID:  appCtx.GetRequestID(ctx),
		UserID:     evt.UserID,
		Email:      evt.Email,
		FirstName:  evt.FirstName,
		LastName:   evt.LastName,
		CRMStatus:  evt.CRMStatus,
		OccurredAt: evt.OccurredAt,
	}
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishWait)
		defer cancel()
	}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish %s: %w", key, ctx.Err())
	}

	c := p.current()
	if !c.usable() {
		<-p.slot
		p.redial()
		return fmt.Errorf("rabbitmq publish %s: %w", key, ErrNotConnected)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		CorrelationId: appCtx.GetRequestID(ctx),
		Body:          body,
	}

	// the socket write can outlive ctx; the caller never waits past it
	done := make(chan error, 1)
	go func() {
		defer func() { <-p.slot }()
		done <- p.send(ctx, c, key, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish %s: %w", key, ctx.Err())
	}
}

func (p *Publisher) send(ctx context.Context, c *channel, key string, msg amqp.Publishing) error {
	c.discardStale()
	if err := c.ch.PublishWithContext(ctx, p.exchange, key, true, false, msg); err != nil {
		p.drop(c)
		return fmt.Errorf("rabbitmq publish %s: %w", key, err)
	}
	return awaitVerdict(ctx, c, key)
}

// awaitVerdict reads the broker's answer. For an unroutable mandatory
// message basic.return arrives ahead of the ack.
func awaitVerdict(ctx context.Context, c *channel, key string) error {
	select {
	case ret := <-c.returned:
		return fmt.Errorf("%w: key=%s code=%d text=%s", ErrUnroutable, key, ret.ReplyCode, ret.ReplyText)
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return fmt.Errorf("rabbitmq nack: key=%s tag=%d", key, conf.DeliveryTag)
	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish %s: %w", key, ctx.Err())
	}
}
