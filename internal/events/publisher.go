// Package events publishes a ChangeEvent for every write the service
// accepts, so other processes can react without polling.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// Static errors for err113 compliance.
var (
	ErrNATSURLRequired          = errors.New("NATS URL required for NATS publisher")
	ErrUnsupportedPublisherType = errors.New("unsupported publisher type")
	ErrPublisherClosed          = errors.New("publisher closed")
)

// Publisher is a redmine.ChangePublisher that can be closed.
type Publisher interface {
	redmine.ChangePublisher
	Close() error
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes JSON-encoded events to "<prefix>.<type>.<operation>".
type NATSPublisher struct {
	conn    Conn
	prefix  string
	timeout time.Duration
	closed  bool
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = constants.DefaultSubjectPrefix
	}

	return &NATSPublisher{
		conn:    conn,
		prefix:  strings.TrimSuffix(prefix, "."),
		timeout: constants.DefaultPublishTimeout,
	}
}

// ConnectNATS dials url, retrying with exponential backoff, and returns a
// publisher that owns the connection.
func ConnectNATS(url, prefix string) (*NATSPublisher, error) {
	if url == "" {
		return nil, ErrNATSURLRequired
	}

	var conn *nats.Conn

	dial := func() error {
		var err error

		conn, err = nats.Connect(url,
			nats.Name(constants.DefaultUserAgent),
			nats.Timeout(constants.ShortHTTPTimeout),
		)

		return err
	}

	err := backoff.Retry(dial, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), constants.NATSConnectRetries))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	return NewNATSPublisher(conn, prefix), nil
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(event redmine.ChangeEvent) string {
	return p.prefix + "." + event.Resource + "." + event.Operation
}

// Publish sends event and flushes, so a nil error means the server has it.
func (p *NATSPublisher) Publish(ctx context.Context, event redmine.ChangeEvent) error {
	if p.closed {
		return ErrPublisherClosed
	}

	err := ctx.Err()
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}

	subject := p.Subject(event)

	err = p.conn.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	err = p.conn.FlushTimeout(timeout)
	if err != nil {
		return fmt.Errorf("flushing %s: %w", subject, err)
	}

	return nil
}

// Close closes the underlying connection.
func (p *NATSPublisher) Close() error {
	if !p.closed {
		p.closed = true
		p.conn.Close()
	}

	return nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) Publish(context.Context, redmine.ChangeEvent) error { return nil }
func (*NoopPublisher) Close() error                                         { return nil }

// Chain fans an event out to several publishers.
type Chain struct {
	publishers []Publisher
}

// NewChain creates a new publisher chain.
func NewChain(publishers ...Publisher) *Chain {
	return &Chain{
		publishers: publishers,
	}
}

// Publish sends event to every publisher concurrently and collects their
// errors.
func (c *Chain) Publish(ctx context.Context, event redmine.ChangeEvent) error {
	var g multierror.Group

	for _, p := range c.publishers {
		g.Go(func() error { return p.Publish(ctx, event) })
	}

	return g.Wait().ErrorOrNil()
}

// Close closes every publisher.
func (c *Chain) Close() error {
	var closeErrors *multierror.Error

	for _, p := range c.publishers {
		err := p.Close()
		if err != nil {
			closeErrors = multierror.Append(closeErrors, err)
		}
	}

	return closeErrors.ErrorOrNil()
}
