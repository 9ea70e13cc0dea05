package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/drblury/socketbus/internal/runtime/config"
	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
	"github.com/drblury/socketbus/internal/runtime/handle"
	"github.com/drblury/socketbus/internal/runtime/hashing"
	loggingpkg "github.com/drblury/socketbus/internal/runtime/logging"
	transportpkg "github.com/drblury/socketbus/transport"
)

const (
	ingestHandlerName  = "socketbus_ingest"
	routerCloseTimeout = 5 * time.Second
	readHeaderTimeout  = 5 * time.Second
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// Consumer owns one socket and receives its messages on every update.
type Consumer struct {
	Socket string
	Handle func(*Message)
}

// ServiceDependencies holds the optional collaborators of a Service.
type ServiceDependencies struct {
	Consumers []Consumer
	// Transports builds the bridge transport; nil means transport.DefaultRegistry.
	Transports *transportpkg.Registry
	// Descriptors restores descriptor identity of ingested messages.
	Descriptors DescriptorResolver
	// Registerer and Gatherer default to the Prometheus globals.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Hooks      Hooks
}

type ownedSocket struct {
	name   string
	handle handle.Handle
}

type boundConsumer struct {
	ownedSocket
	fn func(*Message)
}

// Service runs a registry: it dispatches consumer sockets at the update
// frequency, forwards bridged sockets through the configured transport and
// serves the metrics and inspection endpoints.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.Logger

	registry    *Registry
	reverse     *hashing.ReverseTable
	metrics     *Metrics
	descriptors DescriptorResolver

	owned     []ownedSocket
	consumers []boundConsumer
	forwarded []ownedSocket

	transport     transportpkg.Transport
	transportCaps transportpkg.Capabilities
	bridge        *Bridge
	router        *message.Router

	frequency atomic.Uint32
	retick    chan struct{}
	startedAt time.Time
	sampler   *processSampler

	httpServers   map[int]*http.ServeMux
	servers       []*http.Server
	httpServersMu sync.Mutex

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewService builds the registry described by conf and binds deps to it.
// Sockets named by consumers or by the bridge settings are created when they
// do not exist yet.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.Logger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := errspkg.NewConfigValidationError(conf.Validate()); err != nil {
		return nil, err
	}
	log.Info("Creating socket bus", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	s := &Service{
		Conf:        conf,
		Logger:      log,
		retick:      make(chan struct{}, 1),
		startedAt:   time.Now(),
		sampler:     newProcessSampler(),
		descriptors: deps.Descriptors,
	}
	s.frequency.Store(conf.UpdateFrequency)

	if conf.ReverseHashes {
		reverse, err := hashing.NewReverseTable(conf.ReverseTableSize)
		if err != nil {
			return nil, err
		}
		s.reverse = reverse
	}

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if conf.MetricsEnabled {
		s.metrics = NewMetrics(registerer)
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	s.registry = NewRegistry(registryOptions(conf, log, s.metrics, deps.Hooks)...)

	if err := s.bindConsumers(deps.Consumers); err != nil {
		return nil, err
	}
	if conf.PubSubSystem != "" {
		if err := s.setupBridge(ctx, deps, registerer); err != nil {
			return nil, errors.Join(err, s.registry.Shutdown())
		}
	}

	if conf.MetricsEnabled && conf.MetricsPort > 0 {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		s.RegisterHTTPHandler(conf.MetricsPort, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if conf.WebUIEnabled {
		s.registerWebUI()
	}
	return s, nil
}

func registryOptions(conf *configpkg.Config, log loggingpkg.Logger, m *Metrics, hooks Hooks) []Option {
	opts := []Option{
		WithCapacity(conf.Capacity),
		WithLogger(log),
		WithHooks(LoggingHooks(log).Merge(hooks)),
		WithMaxPayloadSize(conf.MaxPayloadSize),
	}
	if strings.EqualFold(conf.DeletePolicy, configpkg.DeletePolicyReject) {
		opts = append(opts, WithDeletePolicy(DeletePolicyReject))
	}
	if strings.EqualFold(conf.ShutdownPolicy, configpkg.ShutdownPolicyReject) {
		opts = append(opts, WithShutdownPolicy(ShutdownPolicyReject))
	}
	if m != nil {
		opts = append(opts, WithMetrics(m))
	}
	return opts
}

func (s *Service) bindConsumers(consumers []Consumer) error {
	for _, c := range consumers {
		if c.Handle == nil {
			return fmt.Errorf("consumer %q: %w", c.Socket, errspkg.ErrCallbackRequired)
		}
		sock, err := s.claimSocket(c.Socket)
		if err != nil {
			return err
		}
		s.consumers = append(s.consumers, boundConsumer{ownedSocket: sock, fn: c.Handle})
	}
	return nil
}

// claimSocket gives the service single ownership of a socket's drain side.
func (s *Service) claimSocket(name string) (ownedSocket, error) {
	for _, o := range s.owned {
		if o.name == name {
			return ownedSocket{}, fmt.Errorf("socket %q is already drained by the service", name)
		}
	}
	h, err := s.ensureSocket(name)
	if err != nil {
		return ownedSocket{}, err
	}
	sock := ownedSocket{name: name, handle: h}
	s.owned = append(s.owned, sock)
	return sock, nil
}

func (s *Service) ensureSocket(name string) (handle.Handle, error) {
	if h, ok := s.registry.GetSocket(name); ok {
		return h, nil
	}
	h, err := s.registry.NewSocket(name)
	if err != nil {
		return handle.Handle{}, fmt.Errorf("create socket %q: %w", name, err)
	}
	return h, nil
}

func (s *Service) setupBridge(ctx context.Context, deps ServiceDependencies, registerer prometheus.Registerer) error {
	transports := deps.Transports
	if transports == nil {
		transports = transportpkg.DefaultRegistry
	}
	wmLogger := loggingpkg.NewWatermillAdapter(s.Logger)

	tr, caps, err := transports.Build(ctx, s.Conf, wmLogger)
	if err != nil {
		return err
	}
	s.transport = tr
	s.transportCaps = caps
	if !caps.Ordered {
		s.Logger.Warn("Transport does not preserve message order", loggingpkg.LogFields{"transport": caps.Name})
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, wmLogger)
	if err != nil {
		return errors.Join(err, tr.Close())
	}
	router.AddMiddleware(middleware.CorrelationID, middleware.Recoverer)

	pub, sub := tr.Publisher, tr.Subscriber
	if s.Conf.MetricsEnabled {
		builder := metrics.NewPrometheusMetricsBuilder(registerer, "socketbus", metricsSubsystem(caps.Name))
		builder.AddPrometheusRouterMetrics(router)
		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return errors.Join(err, tr.Close())
		}
		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return errors.Join(err, tr.Close())
		}
	}

	s.bridge, err = NewBridge(s.registry, pub, sub,
		WithBridgeLogger(s.Logger),
		WithDescriptorResolver(deps.Descriptors),
		WithMessageLimit(caps.MaxMessageSize),
	)
	if err != nil {
		return errors.Join(err, tr.Close())
	}

	for _, name := range s.Conf.BridgeSockets {
		sock, err := s.claimSocket(name)
		if err != nil {
			return errors.Join(err, tr.Close())
		}
		s.forwarded = append(s.forwarded, sock)
	}

	var fallback handle.Handle
	if s.Conf.IngestSocket != "" {
		if fallback, err = s.ensureSocket(s.Conf.IngestSocket); err != nil {
			return errors.Join(err, tr.Close())
		}
	}
	router.AddNoPublisherHandler(ingestHandlerName, s.Conf.BridgeTopic, sub, s.bridge.Handler(s.Conf.BridgeTopic, fallback))
	s.router = router
	return nil
}

func metricsSubsystem(transportName string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(transportName)
}

// Registry is the registry the service runs.
func (s *Service) Registry() *Registry { return s.registry }

// ReverseTable is nil unless reverse hashing is enabled.
func (s *Service) ReverseTable() *hashing.ReverseTable { return s.reverse }

// Bridge is nil when no transport is configured.
func (s *Service) Bridge() *Bridge { return s.bridge }

// Metrics is nil unless metrics are enabled.
func (s *Service) Metrics() *Metrics { return s.metrics }

// UpdateFrequency is the current number of updates per second.
func (s *Service) UpdateFrequency() uint32 { return s.frequency.Load() }

// SetUpdateFrequency changes how many updates run per second. Zero is ignored.
func (s *Service) SetUpdateFrequency(hz uint32) {
	if hz == 0 {
		return
	}
	s.frequency.Store(hz)
	select {
	case s.retick <- struct{}{}:
	default:
	}
}

func (s *Service) interval() time.Duration {
	hz := s.frequency.Load()
	if hz == 0 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

// Update dispatches every consumer socket, then forwards every bridged
// socket. It returns the number of messages drained.
func (s *Service) Update(ctx context.Context) uint32 {
	var total uint32
	for _, c := range s.consumers {
		n, err := s.registry.Dispatch(c.handle, c.fn)
		if err != nil {
			s.Logger.Error("Failed to dispatch socket", err, loggingpkg.LogFields{"socket": c.name})
			continue
		}
		total += n
	}
	for _, f := range s.forwarded {
		n, err := s.bridge.Forward(ctx, f.handle, s.Conf.BridgeTopic)
		if err != nil {
			s.Logger.Error("Failed to forward socket", err, loggingpkg.LogFields{
				"socket": f.name,
				"topic":  s.Conf.BridgeTopic,
			})
		}
		total += n
	}
	return total
}

// Start serves HTTP, runs the bridge router and updates until ctx is
// cancelled. Call Shutdown afterwards to release the sockets and transport.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.startHTTPServers()

	var routerErr chan error
	routerDone := make(chan struct{})
	if s.router == nil {
		close(routerDone)
	} else {
		routerErr = make(chan error, 1)
		go func() {
			defer close(routerDone)
			routerErr <- routerRun(s.router, ctx)
		}()

		// Forwarding publishers may block until a subscriber acks, so the
		// ingest handler subscribes before the first update.
		select {
		case <-s.router.Running():
		case err := <-routerErr:
			return routerStopped(ctx, err)
		case <-ctx.Done():
			<-routerDone
			return nil
		}
	}

	err := s.run(ctx, routerErr)
	cancel()
	<-routerDone
	return err
}

func (s *Service) run(ctx context.Context, routerErr <-chan error) error {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-routerErr:
			return routerStopped(ctx, err)
		case <-s.retick:
			ticker.Reset(s.interval())
		case <-ticker.C:
			s.Update(ctx)
		}
	}
}

func routerStopped(ctx context.Context, err error) error {
	if err != nil {
		return fmt.Errorf("bridge router: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("bridge router stopped")
}

// Shutdown stops the HTTP servers and the bridge, releases the sockets the
// service created and shuts the registry down under its shutdown policy.
// Only the first call does any work.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error

		s.httpServersMu.Lock()
		for _, srv := range s.servers {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.servers = nil
		s.httpServersMu.Unlock()

		if s.router != nil {
			errs = append(errs, s.router.Close())
		}
		errs = append(errs, s.transport.Close())

		for _, o := range s.owned {
			if _, err := s.registry.Consume(o.handle); err != nil {
				continue
			}
			errs = append(errs, s.registry.DeleteSocket(o.handle))
		}
		errs = append(errs, s.registry.Shutdown())
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// RegisterHTTPHandler adds a handler to the server listening on port. Servers
// start with Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}
	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}
	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		s.servers = append(s.servers, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server stopped", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}
