package transport

// Capabilities describes what a backend guarantees to a bridge.
type Capabilities struct {
	Name string

	// Ordered reports whether messages published to one topic are consumed in
	// publish order, which keeps the FIFO order of a forwarded socket.
	Ordered bool

	// Acks reports whether Nack redelivers a message.
	Acks bool

	// Persistent reports whether the broker retains messages while no
	// subscriber is connected.
	Persistent bool

	// MaxMessageSize in bytes, 0 when unknown or unlimited.
	MaxMessageSize int64
}

// Fits reports whether a message of size bytes can be published.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

var (
	ChannelCapabilities = Capabilities{
		Name:    "channel",
		Ordered: true,
		Acks:    true,
	}

	KafkaCapabilities = Capabilities{
		Name:           "kafka",
		Ordered:        true,
		Persistent:     true,
		MaxMessageSize: 1 << 20,
	}

	RabbitMQCapabilities = Capabilities{
		Name:       "rabbitmq",
		Ordered:    true,
		Acks:       true,
		Persistent: true,
	}

	NATSCapabilities = Capabilities{
		Name:           "nats",
		MaxMessageSize: 1 << 20,
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:           "nats-jetstream",
		Ordered:        true,
		Acks:           true,
		Persistent:     true,
		MaxMessageSize: 1 << 20,
	}

	AWSCapabilities = Capabilities{
		Name:           "aws",
		Acks:           true,
		Persistent:     true,
		MaxMessageSize: 256 << 10,
	}

	HTTPCapabilities = Capabilities{
		Name: "http",
	}
)
