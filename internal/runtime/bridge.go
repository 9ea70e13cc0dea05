package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/handle"
	"github.com/drblury/socketbus/internal/runtime/ids"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
	"github.com/drblury/socketbus/internal/runtime/metadata"
)

const tracerName = "github.com/drblury/socketbus"

// RemoteDescriptor stands in for a descriptor that arrived over a transport
// and is not known locally. It never compares equal to a local descriptor.
type RemoteDescriptor string

func (d RemoteDescriptor) DescriptorName() string { return string(d) }

// DescriptorResolver maps a bridged descriptor name back to the local
// descriptor value consumers compare against.
type DescriptorResolver func(name string) (Descriptor, bool)

// Bridge moves messages between sockets and a Watermill topic. Forward drains
// a socket into the topic; Ingest posts messages read from the topic into
// local sockets. Handles never leave the process: sockets travel by name.
type Bridge struct {
	registry   *Registry
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     loggingpkg.Logger
	tracer     trace.Tracer
	resolve    DescriptorResolver
	maxSize    int64
	origin     string
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

func WithBridgeLogger(logger loggingpkg.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) BridgeOption {
	return func(b *Bridge) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

// WithDescriptorResolver restores descriptor identity on ingest. Without it,
// ingested messages carry a RemoteDescriptor.
func WithDescriptorResolver(resolve DescriptorResolver) BridgeOption {
	return func(b *Bridge) { b.resolve = resolve }
}

// WithMessageLimit drops forwarded messages larger than n bytes instead of
// failing the whole publish. Zero disables the check.
func WithMessageLimit(n int64) BridgeOption {
	return func(b *Bridge) { b.maxSize = n }
}

// NewBridge connects r to a transport. Either side may be nil when the bridge
// only forwards or only ingests.
func NewBridge(r *Registry, pub message.Publisher, sub message.Subscriber, opts ...BridgeOption) (*Bridge, error) {
	if r == nil {
		return nil, errspkg.ErrRegistryRequired
	}
	if pub == nil && sub == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	b := &Bridge{
		registry:   r,
		publisher:  pub,
		subscriber: sub,
		logger:     loggingpkg.NopLogger{},
		tracer:     otel.Tracer(tracerName),
		origin:     ids.NewString(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Origin identifies this bridge in published metadata. Ingest skips messages
// carrying its own origin.
func (b *Bridge) Origin() string { return b.origin }

// Forward drains h and publishes every message to topic in one batch. It
// returns the number of messages drained. Drained messages are gone even if
// the publish fails.
func (b *Bridge) Forward(ctx context.Context, h handle.Handle, topic string) (uint32, error) {
	if b.publisher == nil {
		return 0, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return 0, errspkg.ErrTopicRequired
	}
	socketName, ok := b.registry.GetSocketName(h)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errspkg.ErrSocketNotFound, h)
	}

	var (
		batch     []*message.Message
		oversized int
	)
	n, err := b.registry.Dispatch(h, func(m *Message) {
		if b.maxSize > 0 && int64(m.Len()) > b.maxSize {
			oversized++
			return
		}
		batch = append(batch, b.toWatermill(m, socketName))
	})
	if err != nil {
		return 0, err
	}
	if oversized > 0 {
		b.logger.Warn("Dropped messages larger than the transport limit", loggingpkg.LogFields{
			"socket":  socketName,
			"dropped": oversized,
			"limit":   b.maxSize,
		})
	}
	if len(batch) == 0 {
		return n, nil
	}

	ctx, span := b.tracer.Start(ctx, "socketbus.forward", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("socketbus.socket", socketName),
		attribute.String("messaging.destination", topic),
		attribute.Int("messaging.batch.message_count", len(batch)),
	)
	for _, msg := range batch {
		msg.SetContext(ctx)
	}

	if err := b.publisher.Publish(topic, batch...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return n, fmt.Errorf("forward %s to %s: %w", socketName, topic, err)
	}
	b.logger.Trace("Messages forwarded", loggingpkg.LogFields{
		"socket": socketName,
		"topic":  topic,
		"count":  len(batch),
	})
	return n, nil
}

func (b *Bridge) toWatermill(m *Message, receiver string) *message.Message {
	env := metadata.Envelope{
		MessageID:        m.ID,
		SenderPath:       m.Sender.Path,
		SenderFragment:   m.Sender.Fragment,
		ReceiverSocket:   receiver,
		ReceiverPath:     m.Receiver.Path,
		ReceiverFragment: m.Receiver.Fragment,
		Origin:           b.origin,
	}
	if m.Descriptor != nil {
		env.Descriptor = m.Descriptor.DescriptorName()
	}
	if name, ok := b.registry.GetSocketName(m.Sender.Socket); ok {
		env.SenderSocket = name
	}

	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)
	msg := message.NewMessage(ids.NewString(), payload)
	msg.Metadata = env.ToWatermill()
	return msg
}

// Ingest subscribes to topic and posts each message into the socket named by
// its receiver metadata, or into fallback when that socket does not exist
// here. It blocks until ctx is cancelled or the subscription ends, and
// returns ctx.Err() in both cases.
//
// Messages that can never be delivered are acked and logged. When the
// registry has shut down the message is nacked and Ingest returns.
func (b *Bridge) Ingest(ctx context.Context, topic string, fallback handle.Handle) error {
	if b.subscriber == nil {
		return errspkg.ErrSubscriberRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}
	messages, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			if err := b.ingest(msg, topic, fallback); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
		}
	}
}

// Handler adapts ingest to a Watermill router handler. Returning an error
// makes the router nack the message.
func (b *Bridge) Handler(topic string, fallback handle.Handle) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		return b.ingest(msg, topic, fallback)
	}
}

func (b *Bridge) ingest(msg *message.Message, topic string, fallback handle.Handle) error {
	_, span := b.tracer.Start(msg.Context(), "socketbus.ingest", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.source", topic),
		attribute.String("messaging.message.id", msg.UUID),
	)

	env, err := metadata.FromWatermill(msg.Metadata)
	if err != nil {
		span.RecordError(err)
		b.logger.Error("Dropping bridged message with invalid metadata", err, loggingpkg.LogFields{
			"topic": topic,
			"uuid":  msg.UUID,
		})
		return nil
	}
	if env.Origin == b.origin {
		return nil
	}

	target := fallback
	if env.ReceiverSocket != "" {
		if h, ok := b.registry.GetSocket(env.ReceiverSocket); ok {
			target = h
		}
	}
	span.SetAttributes(attribute.String("socketbus.socket", env.ReceiverSocket))

	sender := URL{Path: env.SenderPath, Fragment: env.SenderFragment}
	if env.SenderSocket != "" {
		sender.Socket, _ = b.registry.GetSocket(env.SenderSocket)
	}

	opts := []PostOption{
		WithSender(sender),
		WithReceiver(env.ReceiverPath, env.ReceiverFragment),
	}
	if d := b.descriptor(env.Descriptor); d != nil {
		opts = append(opts, WithDescriptor(d))
	}

	err = b.registry.Post(target, env.MessageID, msg.Payload, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errspkg.ErrRegistryClosed):
		return err
	default:
		span.RecordError(err)
		b.logger.Warn("Dropping bridged message", loggingpkg.LogFields{
			"topic":      topic,
			"uuid":       msg.UUID,
			"socket":     env.ReceiverSocket,
			"message_id": formatID(env.MessageID),
			"error":      err.Error(),
		})
		return nil
	}
}

func (b *Bridge) descriptor(name string) Descriptor {
	if name == "" {
		return nil
	}
	if b.resolve != nil {
		if d, ok := b.resolve(name); ok && d != nil {
			return d
		}
	}
	return RemoteDescriptor(name)
}
