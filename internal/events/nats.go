package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// DefaultNATSSubjectPrefix is prepended to every NATS subject.
const DefaultNATSSubjectPrefix = "fleet.maintenance"

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NATSPublisher publishes events as JSON to <prefix>.<type>. Trace context
// from the publishing ctx travels in the message headers.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("fleet-maintenance"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	p := NewNATSPublisherConn(nc, prefix)
	p.owned = true
	return p, nil
}

// NewNATSPublisherConn publishes over an existing connection. Close leaves
// the connection open.
func NewNATSPublisherConn(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultNATSSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

// Publish serializes ev and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: p.Subject(ev.Type),
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return p.nc.PublishMsg(msg)
}

// Subscribe decodes events on subject (wildcards allowed) and hands them to
// handler together with the extracted trace context. Malformed messages are
// dropped.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, Event)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, ev)
	})
}

// Close flushes pending messages and closes an owned connection.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Flush(); err != nil && p.nc.IsConnected() {
		return err
	}
	if p.owned {
		p.nc.Close()
	}
	return nil
}
