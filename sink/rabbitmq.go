package sink

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// RabbitClient publishes a JSON-serialised message per invocation onto
// the subject that stands in for an AMQP exchange+routing-key pair
// (spec.md §6). True AMQP 0-9-1 framing is explicitly out of scope
// (spec.md §1); NATS is the nearest message-broker client the retrieved
// pack actually imports (`module/nats_broker.go`), so the `rabbitmq`
// action's exchange and key parameters collapse onto a single NATS
// subject behind the same publish contract a real AMQP client would
// satisfy; no queue is declared or bound.
type RabbitClient struct {
	conn    *nats.Conn
	subject string
}

// NewRabbitClient connects to the broker at url and binds to subject,
// built once at config-load time from the action's exchange and key
// parameters (e.g. "exchange.key").
func NewRabbitClient(url, subject string) (*RabbitClient, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: connect to %s: %w", url, err)
	}
	return &RabbitClient{conn: conn, subject: subject}, nil
}

// Close closes the underlying connection without draining it.
func (c *RabbitClient) Close() {
	c.conn.Close()
}

// Publish sends body (already JSON-serialised by the caller) to the
// bound subject.
func (c *RabbitClient) Publish(body []byte) error {
	return c.conn.Publish(c.subject, body)
}
