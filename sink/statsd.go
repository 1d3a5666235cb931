// Package sink implements the terminal forwarders behind the sink
// actions (spec.md §6): statsd, rabbitmq (NATS-backed), elasticsearch_http,
// and logging. Each client is built once at config-load time from the
// action's parameters and invoked once per message on the hot path.
package sink

import (
	"fmt"
	"net"
	"time"
)

// StatsdKind selects the statsd metric shape a StatsdClient publishes
// as (spec.md §6).
type StatsdKind int

const (
	StatsdCounter StatsdKind = iota
	StatsdGauge
	StatsdTimer
)

// StatsdClient sends pre-formatted lines over the UDP statsd wire
// protocol. The protocol is a single datagram per metric, so a raw
// net.Conn is the whole client (DESIGN.md: stdlib-justified, nothing in
// the pack or the wider ecosystem adds meaningful value over
// net.Dial("udp", ...) for a protocol this small).
type StatsdClient struct {
	conn       net.Conn
	sampleRate float64
}

// NewStatsdClient dials the statsd UDP endpoint. Dialing UDP never
// blocks on the network (no handshake), so this can't fail for
// connectivity reasons; it only fails on malformed addresses.
func NewStatsdClient(host string, port int, sampleRate float64) (*StatsdClient, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("statsd: dial %s: %w", addr, err)
	}
	if sampleRate <= 0 {
		sampleRate = 1.0
	}
	return &StatsdClient{conn: conn, sampleRate: sampleRate}, nil
}

// Close releases the underlying UDP socket.
func (c *StatsdClient) Close() error {
	return c.conn.Close()
}

// Send writes one statsd line: counters as `name:delta|c`, gauges as
// `name:value|g` (or `name:+value|g`/`name:-value|g` for a delta gauge),
// timers as `name:value|ms`.
func (c *StatsdClient) Send(kind StatsdKind, name string, value float64, delta bool) error {
	var line string
	switch kind {
	case StatsdCounter:
		line = fmt.Sprintf("%s:%g|c", name, value)
	case StatsdGauge:
		if delta {
			sign := "+"
			if value < 0 {
				sign = ""
			}
			line = fmt.Sprintf("%s:%s%g|g", name, sign, value)
		} else {
			line = fmt.Sprintf("%s:%g|g", name, value)
		}
	case StatsdTimer:
		line = fmt.Sprintf("%s:%g|ms", name, value)
	default:
		return fmt.Errorf("statsd: unknown metric kind %d", kind)
	}

	if c.sampleRate < 1.0 {
		line = fmt.Sprintf("%s|@%g", line, c.sampleRate)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return fmt.Errorf("statsd: %w", err)
	}
	_, err := c.conn.Write([]byte(line))
	return err
}
