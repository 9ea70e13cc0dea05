package rabbitmq

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/socketbus/internal/runtime/config"
	"github.com/drblury/socketbus/transport"
)

type stubPublisher struct{ closed int }

func (s *stubPublisher) Publish(string, ...*message.Message) error { return nil }
func (s *stubPublisher) Close() error                              { s.closed++; return nil }

type stubSubscriber struct{ closed int }

func (s *stubSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, nil
}
func (s *stubSubscriber) Close() error { s.closed++; return nil }

type fixture struct {
	conn      *amqp.ConnectionWrapper
	connURI   string
	closes    int
	pub       *stubPublisher
	sub       *stubSubscriber
	pubErr    error
	subErr    error
	amqpQueue string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{conn: &amqp.ConnectionWrapper{}, pub: &stubPublisher{}, sub: &stubSubscriber{}}

	origConn, origPub, origSub, origClose := ConnectionFactory, PublisherFactory, SubscriberFactory, closeConnection
	t.Cleanup(func() {
		ConnectionFactory, PublisherFactory, SubscriberFactory, closeConnection = origConn, origPub, origSub, origClose
	})

	ConnectionFactory = func(cfg amqp.ConnectionConfig, _ watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
		f.connURI = cfg.AmqpURI
		return f.conn, nil
	}
	PublisherFactory = func(cfg amqp.Config, _ watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
		assert.Same(t, f.conn, conn)
		f.amqpQueue = cfg.Queue.GenerateName("bus.topic")
		if f.pubErr != nil {
			return nil, f.pubErr
		}
		return f.pub, nil
	}
	SubscriberFactory = func(_ amqp.Config, _ watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
		assert.Same(t, f.conn, conn)
		if f.subErr != nil {
			return nil, f.subErr
		}
		return f.sub, nil
	}
	closeConnection = func(conn *amqp.ConnectionWrapper) error {
		assert.Same(t, f.conn, conn)
		f.closes++
		return nil
	}
	return f
}

func TestRegistered(t *testing.T) {
	caps, ok := transport.DefaultRegistry.Capabilities(TransportName)
	require.True(t, ok)
	assert.True(t, caps.Acks)
	assert.True(t, caps.Persistent)
}

func TestBuildSharesConnection(t *testing.T) {
	f := newFixture(t)

	tr, err := Build(context.Background(), &config.Config{RabbitMQURL: "amqp://localhost:5672/"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "amqp://localhost:5672/", f.connURI)
	assert.Equal(t, "bus.topic", f.amqpQueue)

	require.NoError(t, tr.Close())
	assert.Equal(t, 1, f.sub.closed)
	assert.Equal(t, 1, f.pub.closed)
	assert.Equal(t, 1, f.closes)
}

func TestBuildConnectionError(t *testing.T) {
	newFixture(t)
	boom := errors.New("dial tcp: refused")
	ConnectionFactory = func(amqp.ConnectionConfig, watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
		return nil, boom
	}

	_, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
}

func TestBuildPublisherErrorClosesConnection(t *testing.T) {
	f := newFixture(t)
	f.pubErr = errors.New("channel closed")

	_, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, f.pubErr)
	assert.Equal(t, 1, f.closes)
}

func TestBuildSubscriberErrorReleasesEverything(t *testing.T) {
	f := newFixture(t)
	f.subErr = errors.New("queue declare failed")

	_, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, f.subErr)
	assert.Equal(t, 1, f.pub.closed)
	assert.Equal(t, 1, f.closes)
}
