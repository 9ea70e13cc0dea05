package socketbus

import (
	"google.golang.org/protobuf/proto"

	runtimepkg "github.com/drblury/socketbus/internal/runtime"
	configpkg "github.com/drblury/socketbus/internal/runtime/config"
	"github.com/drblury/socketbus/internal/runtime/ddf"
	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/handle"
	"github.com/drblury/socketbus/internal/runtime/hashing"
	jsoncodec "github.com/drblury/socketbus/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
	"github.com/drblury/socketbus/internal/runtime/system"
	transportpkg "github.com/drblury/socketbus/transport"
)

type (
	Config              = configpkg.Config
	Registry            = runtimepkg.Registry
	Option              = runtimepkg.Option
	DeletePolicy        = runtimepkg.DeletePolicy
	ShutdownPolicy      = runtimepkg.ShutdownPolicy
	Handle              = handle.Handle
	URL                 = runtimepkg.URL
	Message             = runtimepkg.Message
	Descriptor          = runtimepkg.Descriptor
	PostOption          = runtimepkg.PostOption
	SocketInfo          = runtimepkg.SocketInfo
	ProtoDescriptor     = runtimepkg.ProtoDescriptor
	ReverseTable        = hashing.ReverseTable
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	ServiceStatus       = runtimepkg.ServiceStatus
	Consumer            = runtimepkg.Consumer
	ProcessUsage        = runtimepkg.ProcessUsage

	// Observation
	Hooks         = runtimepkg.Hooks
	SocketEvent   = runtimepkg.SocketEvent
	PostEvent     = runtimepkg.PostEvent
	DispatchEvent = runtimepkg.DispatchEvent
	DropEvent     = runtimepkg.DropEvent
	DropReason    = runtimepkg.DropReason
	Metrics       = runtimepkg.Metrics

	// Bridge
	Bridge             = runtimepkg.Bridge
	BridgeOption       = runtimepkg.BridgeOption
	RemoteDescriptor   = runtimepkg.RemoteDescriptor
	DescriptorResolver = runtimepkg.DescriptorResolver

	// Fixed-layout payloads
	DDFDescriptor = ddf.Descriptor
	DDFField      = ddf.Field
	DDFMessage    = ddf.Message

	// System socket
	SystemEngine  = system.Engine
	SystemHandler = system.Handler

	LogFields = loggingpkg.LogFields
	Logger    = loggingpkg.Logger

	ConfigValidationError = errspkg.ConfigValidationError

	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

const (
	DefaultCapacity = runtimepkg.DefaultCapacity

	DeletePolicyDrop     = runtimepkg.DeletePolicyDrop
	DeletePolicyReject   = runtimepkg.DeletePolicyReject
	ShutdownPolicyForce  = runtimepkg.ShutdownPolicyForce
	ShutdownPolicyReject = runtimepkg.ShutdownPolicyReject

	DropReasonSocketDeleted = runtimepkg.DropReasonSocketDeleted
	DropReasonShutdown      = runtimepkg.DropReasonShutdown
	DropReasonConsumed      = runtimepkg.DropReasonConsumed

	SystemSocket = system.SocketName
)

var (
	NewRegistry     = runtimepkg.NewRegistry
	DefaultRegistry = runtimepkg.DefaultRegistry

	WithCapacity       = runtimepkg.WithCapacity
	WithLogger         = runtimepkg.WithLogger
	WithHooks          = runtimepkg.WithHooks
	WithMetrics        = runtimepkg.WithMetrics
	WithDeletePolicy   = runtimepkg.WithDeletePolicy
	WithShutdownPolicy = runtimepkg.WithShutdownPolicy
	WithMaxPayloadSize = runtimepkg.WithMaxPayloadSize

	WithSender     = runtimepkg.WithSender
	WithReceiver   = runtimepkg.WithReceiver
	WithDescriptor = runtimepkg.WithDescriptor

	ProtoDescriptorOf = runtimepkg.ProtoDescriptorOf
	ProtoMessageID    = runtimepkg.ProtoMessageID
	PostProto         = runtimepkg.PostProto
	UnmarshalProto    = runtimepkg.UnmarshalProto

	NewService = runtimepkg.NewService

	LoggingHooks = runtimepkg.LoggingHooks
	NewMetrics   = runtimepkg.NewMetrics

	NewBridge              = runtimepkg.NewBridge
	WithBridgeLogger       = runtimepkg.WithBridgeLogger
	WithTracer             = runtimepkg.WithTracer
	WithDescriptorResolver = runtimepkg.WithDescriptorResolver
	WithMessageLimit       = runtimepkg.WithMessageLimit

	NewDDFDescriptor = ddf.NewDescriptor
	MarshalDDF       = ddf.Marshal
	UnmarshalDDF     = ddf.Unmarshal

	NewSystemHandler  = system.NewHandler
	PostSystem        = system.Post
	SystemDescriptors = system.Descriptors
	WithSystemDebug   = system.WithDebug
	WithSystemLogger  = system.WithLogger
	WithSystemReverse = system.WithReverseTable

	HashString      = hashing.String64
	NewReverseTable = hashing.NewReverseTable

	LoadConfig     = configpkg.Load
	LoadConfigFile = configpkg.LoadFile
	DefaultConfig  = configpkg.Defaults

	NewSlogLogger      = loggingpkg.NewSlogLogger
	NewWatermillLogger = loggingpkg.NewWatermillLogger

	// Import individual transports via: _ "github.com/drblury/socketbus/transport/kafka"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	NewTransportRegistry     = transportpkg.NewRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrSocketExists       = errspkg.ErrSocketExists
	ErrSocketNotFound     = errspkg.ErrSocketNotFound
	ErrOutOfResources     = errspkg.ErrOutOfResources
	ErrInvalidSocketName  = errspkg.ErrInvalidSocketName
	ErrSocketHasPending   = errspkg.ErrSocketHasPending
	ErrSocketsOpen        = errspkg.ErrSocketsOpen
	ErrRegistryClosed     = errspkg.ErrRegistryClosed
	ErrPayloadTooLarge    = errspkg.ErrPayloadTooLarge
	ErrCallbackRequired   = errspkg.ErrCallbackRequired
	ErrDescriptorMismatch = errspkg.ErrDescriptorMismatch
	ErrUnknownDescriptor  = errspkg.ErrUnknownDescriptor
	ErrMalformedPayload   = errspkg.ErrMalformedPayload
	ErrUnknownTransport   = errspkg.ErrUnknownTransport
)

func DispatchWith[C any](r *Registry, h Handle, fn func(*Message, C), c C) (uint32, error) {
	return runtimepkg.DispatchWith(r, h, fn, c)
}

func DispatchProto[T proto.Message](r *Registry, h Handle, fn func(*Message, T), other func(*Message)) (uint32, error) {
	return runtimepkg.DispatchProto(r, h, fn, other)
}

func NewProtoMessage[T proto.Message]() (T, error) {
	return runtimepkg.NewProtoMessage[T]()
}
