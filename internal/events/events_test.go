package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishedMsg struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeMQTTClient struct {
	mu           sync.Mutex
	published    []publishedMsg
	token        mqtt.Token
	disconnected bool
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMsg{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func (c *fakeMQTTClient) Disconnect(uint) { c.disconnected = true }

func sampleEvent() Event {
	return New(ProposalAccepted, "req-1", "u-rev", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		map[string]any{"proposal_id": "p-1", "amount": 470.0})
}

func TestNew(t *testing.T) {
	ev := sampleEvent()
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ProposalAccepted, ev.Type)
	assert.NotEqual(t, ev.ID, sampleEvent().ID)
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), ev))
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeMQTTClient{token: newFakeToken(nil, true)}
	p := newMQTTPublisher(client, MQTTConfig{TopicPrefix: "depot7/", QoS: 1})

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, client.published, 1)
	msg := client.published[0]
	assert.Equal(t, "depot7/proposal/accepted", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got Event
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, 470.0, got.Payload["amount"])

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_Errors(t *testing.T) {
	t.Run("broker error", func(t *testing.T) {
		client := &fakeMQTTClient{token: newFakeToken(errors.New("not authorized"), true)}
		p := newMQTTPublisher(client, MQTTConfig{})
		assert.Equal(t, "fleet/maintenance/request/created", p.Topic(RequestCreated))
		assert.EqualError(t, p.Publish(context.Background(), sampleEvent()), "not authorized")
	})

	t.Run("context cancelled", func(t *testing.T) {
		client := &fakeMQTTClient{token: newFakeToken(nil, false)}
		p := newMQTTPublisher(client, MQTTConfig{Timeout: time.Minute})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, p.Publish(ctx, sampleEvent()), context.Canceled)
	})

	t.Run("timeout", func(t *testing.T) {
		client := &fakeMQTTClient{token: newFakeToken(nil, false)}
		p := newMQTTPublisher(client, MQTTConfig{Timeout: 10 * time.Millisecond})
		assert.Error(t, p.Publish(context.Background(), sampleEvent()))
	})

	t.Run("missing broker", func(t *testing.T) {
		_, err := NewMQTTPublisher(MQTTConfig{})
		assert.Error(t, err)
	})
}

func startNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	ns.Start()
	if !ns.ReadyForConnections(2 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
	})
	return ns, nc
}

func TestNATSPublisher_PublishPropagatesTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	_, nc := startNATS(t)

	type received struct {
		ev  Event
		ctx context.Context
	}
	ch := make(chan received, 1)
	sub, err := Subscribe(nc, "fleet.maintenance.>", func(ctx context.Context, ev Event) {
		ch <- received{ev: ev, ctx: ctx}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b, 0x0c, 0x01},
		SpanID:     trace.SpanID{0x01, 0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	p := NewNATSPublisherConn(nc, "")
	assert.Equal(t, "fleet.maintenance.proposal.accepted", p.Subject(ProposalAccepted))
	require.NoError(t, p.Publish(ctx, sampleEvent()))

	select {
	case got := <-ch:
		assert.Equal(t, ProposalAccepted, got.ev.Type)
		assert.Equal(t, "req-1", got.ev.RequestID)
		assert.Equal(t, sc.TraceID(), trace.SpanContextFromContext(got.ctx).TraceID())
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	require.NoError(t, p.Close())
	assert.True(t, nc.IsConnected(), "borrowed connection stays open")
}

func TestNATSPublisher_OwnedConnection(t *testing.T) {
	ns, _ := startNATS(t)

	p, err := NewNATSPublisher(ns.ClientURL(), "depot7")
	require.NoError(t, err)
	assert.Equal(t, "depot7.work.started", p.Subject(WorkStarted))
	require.NoError(t, p.Publish(context.Background(), New(WorkStarted, "req-2", "u-adm", time.Now(), nil)))
	require.NoError(t, p.Close())
	assert.True(t, p.nc.IsClosed())

	_, err = NewNATSPublisher("nats://127.0.0.1:1", "")
	assert.Error(t, err)
}

func TestNATSHeaderCarrier(t *testing.T) {
	c := &natsHeaderCarrier{}
	assert.Equal(t, "", c.Get("traceparent"))
	assert.Nil(t, c.Keys())
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Len(t, c.Keys(), 1)
}
