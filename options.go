package sdk

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemos-ai/sdk/cache"
	"github.com/mnemos-ai/sdk/config"
	"github.com/mnemos-ai/sdk/notify"
)

// Option configures the Manager.
type Option func(*managerConfig)

// managerConfig holds configuration for the Manager instance.
type managerConfig struct {
	configPath    string
	cfg           *config.Config
	logger        *slog.Logger
	tracer        trace.Tracer
	meter         metric.Meter
	bus           *notify.Bus
	snapshotStore cache.SnapshotStore
}

// WithConfig sets the configuration file path for the manager. The
// config file carries cache bounds, rule engine limits, retrieval
// defaults, and enhancement queue settings.
func WithConfig(path string) Option {
	return func(c *managerConfig) {
		c.configPath = path
	}
}

// WithConfigStruct sets an already-loaded configuration, bypassing file
// loading. It takes precedence over WithConfig.
func WithConfigStruct(cfg *config.Config) Option {
	return func(c *managerConfig) {
		c.cfg = cfg
	}
}

// WithLogger sets a custom logger for the manager.
// If not provided, a default logger will be created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for distributed tracing.
// This enables observability across retrieval and enhancement operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *managerConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter. When provided, the manager
// records cache, rule, retrieval, and enhancement metrics from its
// notification bus.
func WithMeter(meter metric.Meter) Option {
	return func(c *managerConfig) {
		c.meter = meter
	}
}

// WithBus sets the notification bus shared by all components. If not
// provided, the manager creates one; subscribe through Manager.Bus.
func WithBus(bus *notify.Bus) Option {
	return func(c *managerConfig) {
		c.bus = bus
	}
}

// WithSnapshotStore sets the store the cache persists to on Shutdown and
// restores from on Start.
func WithSnapshotStore(store cache.SnapshotStore) Option {
	return func(c *managerConfig) {
		c.snapshotStore = store
	}
}
