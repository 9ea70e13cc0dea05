/*
Package runtime provides the in-process message bus behind socketbus.

# Architecture Overview

A Registry owns a fixed number of socket slots. Sockets are named queues
addressed by generational handles: a handle stays cheap to copy and becomes
stale, never dangling, once its socket is deleted. Producers Post from any
goroutine; the single owner of a socket drains it with Dispatch, which detaches
the queue before the first callback so callbacks can post freely.

# Package Structure

## Registry (registry.go, socket.go)

Socket lifecycle, name lookup, the delete and shutdown policies, and the
socket table reported by the inspection API.

## Messaging (message.go, dispatch.go, descriptor.go)

Post, PostTo, Dispatch, DispatchWith and Consume, plus URL formatting and the
protobuf descriptor adapter used by PostProto and DispatchProto.

## Observation (hooks.go, metrics.go, resources.go)

Hooks fire after socket and message events with no lock held. Metrics turns
them into Prometheus collectors; LoggingHooks reports drops and lifecycle.

## Bridge (bridge.go)

Forwards sockets to a Watermill topic and ingests messages from it into local
sockets, so buses in different processes can exchange messages. Sockets travel
by name; handles never leave the process.

## Service (service.go, webui.go)

Runs a registry from Config: binds consumers, forwards bridged sockets on a
fixed update frequency, and serves /metrics and the inspection API.

# Sub-packages

  - config/: Configuration loading and validation
  - ddf/: Fixed-layout descriptors and the little-endian payload codec
  - errors/: Sentinel errors and error types
  - handle/: Generational socket handles
  - hashing/: Name hashes and the reverse hash table
  - ids/: ULID generation for bridged messages
  - indexpool/: Free-slot pool
  - jsoncodec/: JSON codec of the inspection API
  - logging/: Logger interface and adapters
  - metadata/: Bridged message metadata
  - system/: The "@system" socket handler

# Usage Example

	conf, _ := config.Load()
	svc, err := runtime.NewService(ctx, conf, logger, runtime.ServiceDependencies{
		Consumers: []runtime.Consumer{{Socket: "main", Handle: onMain}},
	})
	if err != nil {
		return err
	}
	defer svc.Shutdown(context.Background())

	h, _ := svc.Registry().GetSocket("main")
	_ = svc.Registry().Post(h, hashing.String64("hello"), []byte("world"))

	return svc.Start(ctx)
*/
package runtime
