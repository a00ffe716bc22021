package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes domain-level OTel instruments.
type Metrics struct {
	ledgerEntries   metric.Int64Counter
	xpAwarded       metric.Int64Counter
	rewardUnlocks   metric.Int64Counter
	snapshotRebuild metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "habitquest"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("habitquest_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	xpAwarded, err := meter.Int64Counter("habitquest_xp_awarded_total")
	if err != nil {
		return nil, err
	}
	rewardUnlocks, err := meter.Int64Counter("habitquest_reward_unlocks_total")
	if err != nil {
		return nil, err
	}
	snapshotRebuild, err := meter.Int64Counter("habitquest_snapshot_rebuilds_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:   ledgerEntries,
		xpAwarded:       xpAwarded,
		rewardUnlocks:   rewardUnlocks,
		snapshotRebuild: snapshotRebuild,
	}, nil
}

// RecordLedgerEntry increments ledger entry counts and the awarded XP total.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, source, domainKey string, xp int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("domain", strings.TrimSpace(domainKey)),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
	if xp > 0 {
		m.xpAwarded.Add(ctx, xp, metric.WithAttributes(attrs...))
	}
}

// RecordRewardUnlock increments reward unlock counts.
func (m *Metrics) RecordRewardUnlock(ctx context.Context, rewardType, conditionKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("reward_type", strings.TrimSpace(rewardType)),
		attribute.String("condition", strings.TrimSpace(conditionKind)),
	)
	m.rewardUnlocks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSnapshotRebuild counts rebuild runs by outcome.
func (m *Metrics) RecordSnapshotRebuild(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.snapshotRebuild.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"domain":      {},
	"reward_type": {},
	"condition":   {},
	"status":      {},
	"outcome":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// User identifiers never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
