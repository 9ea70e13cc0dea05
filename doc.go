// Package socketbus is an in-process message bus built around named sockets.
// A Registry hands out generational handles for a fixed number of sockets;
// any goroutine may Post a copied payload to a socket, and the socket's single
// owner drains it with Dispatch in posting order. Deleted sockets leave stale
// handles behind that fail cleanly instead of aliasing a new socket.
//
// Service runs a Registry from Config: it binds consumers to sockets, drives
// them at a fixed update frequency, and serves Prometheus metrics and a small
// inspection API. Messages posted to the "@system" socket are decoded by
// NewSystemHandler and forwarded to an engine.
//
// # Transports
//
// A Bridge forwards sockets to a Watermill topic and ingests messages from it,
// so buses in separate processes can exchange messages. Transports register
// themselves when their package is imported:
//   - channel: In-memory Go channels for tests and single-process setups
//   - kafka: Partitioned by receiver socket to keep per-socket order
//   - rabbitmq: AMQP durable queues
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats and nats-jetstream: Core NATS or JetStream streams
//   - http: Webhook-style delivery
//
// # Payloads
//
// The bus carries payload bytes and an opaque Descriptor untouched. Two
// descriptor families ship with it: ProtoDescriptor for protobuf messages and
// DDFDescriptor for fixed-layout little-endian structs such as the system
// commands.
//
// # Hooks
//
// Hooks observe socket creation and deletion, posts, dispatches and drops.
// LoggingHooks and Metrics are ready-made; Hooks.Merge combines several.
package socketbus
