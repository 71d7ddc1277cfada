package otel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName scopes the tracers created by the vault daemon.
const InstrumentationName = "cryptvault"

// Attribute keys shared by the daemon's resource and spans.
const (
	WantKey     = attribute.Key("cryptvault.want")
	DeployerKey = attribute.Key("cryptvault.deployer")
	PoolKey     = attribute.Key("cryptvault.pool_id")
	StrategyKey = attribute.Key("cryptvault.strategy")
	CallerKey   = attribute.Key("cryptvault.caller")
)

// Deployment identifies the vault a daemon serves. Its fields become resource
// attributes so every exported span and metric can be traced to one vault.
type Deployment struct {
	Want     common.Address
	Deployer common.Address
	PoolID   uint64
}

// Config captures the knobs for wiring OpenTelemetry exporters.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
	Headers        map[string]string
	Metrics        bool
	Traces         bool
	// SampleRatio is the fraction of root traces kept; 0 keeps all.
	SampleRatio    float64
	MetricInterval time.Duration
	Deployment     Deployment
}

// Init configures the global OpenTelemetry providers. Callers should invoke the
// returned shutdown function during service teardown. A disabled config
// leaves the no-op global providers in place.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name required for telemetry")
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio %v outside [0, 1]", cfg.SampleRatio)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4318"
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 15 * time.Second
	}

	res, err := Resource(cfg)
	if err != nil {
		return nil, err
	}

	shutdownFns := make([]func(context.Context) error, 0, 2)
	if cfg.Traces {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		shutdownFns = append(shutdownFns, tp.Shutdown)
	}
	if cfg.Metrics {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		shutdownFns = append(shutdownFns, mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var shutdownErr error
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			if err := shutdownFns[i](ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
		return shutdownErr
	}, nil
}

// Resource describes the daemon process: service identity plus the vault it
// serves. Zero addresses are omitted.
func Resource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}
	dep := cfg.Deployment
	if dep.Want != (common.Address{}) {
		attrs = append(attrs, WantKey.String(dep.Want.Hex()))
	}
	if dep.Deployer != (common.Address{}) {
		attrs = append(attrs, DeployerKey.String(dep.Deployer.Hex()))
	}
	attrs = append(attrs, PoolKey.Int64(int64(dep.PoolID)))

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(2*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))),
	), nil
}

// sampler keeps every trace unless a ratio below one is requested. Child spans
// follow their parent's decision so a harvest trace is never split.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Tracer returns the named tracer from the global provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(InstrumentationName + "/" + component)
}

// HarvestAttributes labels a keeper span with the strategy and caller.
func HarvestAttributes(strategy, caller common.Address) []attribute.KeyValue {
	return []attribute.KeyValue{
		StrategyKey.String(strategy.Hex()),
		CallerKey.String(caller.Hex()),
	}
}

// ParseHeaders converts a comma-separated OTEL header string (key=value,foo=bar)
// into a map suitable for the exporter configuration.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		if key = strings.TrimSpace(key); key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
