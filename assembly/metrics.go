package assembly

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("dgcache.assembly")
	meter  = otel.Meter("dgcache.assembly")
)

var (
	cacheCycles      metric.Int64Counter
	cachedPoints     metric.Int64Histogram
	cycleElements    metric.Int64Histogram
	assemblyDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheCycles, err = meter.Int64Counter(
			"cache_cycles_total",
			metric.WithDescription("Total number of element cache update cycles"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cachedPoints, err = meter.Int64Histogram(
			"cached_points",
			metric.WithDescription("Live cache rows per cycle"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cycleElements, err = meter.Int64Histogram(
			"cycle_elements",
			metric.WithDescription("Elements cached per cycle"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assemblyDuration, err = meter.Float64Histogram(
			"assembly_duration_seconds",
			metric.WithDescription("Duration of one partition's assembly"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCycle(ctx context.Context, partition, elements, points int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("partition", partition))
	cacheCycles.Add(ctx, 1, attrs)
	cycleElements.Record(ctx, int64(elements), attrs)
	cachedPoints.Record(ctx, int64(points), attrs)
}

func recordAssembly(ctx context.Context, partition int, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	assemblyDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Int("partition", partition)))
}

func startAssemblySpan(ctx context.Context, nCells, partitions int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Assembler.Assemble",
		trace.WithAttributes(
			attribute.Int("assembly.cells", nCells),
			attribute.Int("assembly.partitions", partitions),
		),
	)
}
