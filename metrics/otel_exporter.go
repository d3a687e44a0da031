package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/job"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

/* OTelExporter exports queue gauges and pipeline counters in Prometheus format
 * It observes admission decisions, job transitions and routed alerts, so it can be
 * handed to the budget controller, the worker pool and the alert router as their Observer
 */
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	queueDepthGauge    metric.Int64ObservableGauge
	activeWorkersGauge metric.Int64ObservableGauge
	decisions          metric.Int64Counter
	outcomes           metric.Int64Counter
	alerts             metric.Int64Counter
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"jobgate",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	if oe.collector != nil {
		oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
			"jobgate.queue.depth",
			metric.WithDescription("Number of jobs waiting per queue key"),
			metric.WithUnit("{jobs}"),
			metric.WithInt64Callback(oe.observeQueueDepths),
		)
		if err != nil {
			return fmt.Errorf("creating queue depth gauge: %w", err)
		}

		oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
			"jobgate.workers.active",
			metric.WithDescription("Number of heartbeating workers per queue key"),
			metric.WithUnit("{workers}"),
			metric.WithInt64Callback(oe.observeActiveWorkers),
		)
		if err != nil {
			return fmt.Errorf("creating active workers gauge: %w", err)
		}
	}

	oe.decisions, err = oe.meter.Int64Counter(
		"jobgate.admission.decisions",
		metric.WithDescription("Admission decisions by outcome and reason"),
		metric.WithUnit("{decisions}"),
	)
	if err != nil {
		return fmt.Errorf("creating decisions counter: %w", err)
	}

	oe.outcomes, err = oe.meter.Int64Counter(
		"jobgate.jobs.outcomes",
		metric.WithDescription("Recorded job transitions by status and reason"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return fmt.Errorf("creating outcomes counter: %w", err)
	}

	oe.alerts, err = oe.meter.Int64Counter(
		"jobgate.alerts",
		metric.WithDescription("Routed alerts by class, severity and result"),
		metric.WithUnit("{alerts}"),
	)
	if err != nil {
		return fmt.Errorf("creating alerts counter: %w", err)
	}

	return nil
}

// ObserveDecision counts an admission decision
func (oe *OTelExporter) ObserveDecision(ctx context.Context, d budget.Decision) {
	oe.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", d.Outcome.String()),
		attribute.String("reason", string(d.Reason)),
		attribute.String("lookup", d.Lookup.String()),
	))
}

// ObserveOutcome counts a job transition
func (oe *OTelExporter) ObserveOutcome(ctx context.Context, status job.Status, reason string) {
	oe.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status.String()),
		attribute.String("reason", reason),
	))
}

// ObserveAlert counts a routed alert
func (oe *OTelExporter) ObserveAlert(ctx context.Context, r alert.Record, result string) {
	oe.alerts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", string(r.Class)),
		attribute.String("severity", r.Severity.String()),
		attribute.String("result", result),
	))
}

func (oe *OTelExporter) observeQueueDepths(ctx context.Context, observer metric.Int64Observer) error {
	depths, err := oe.collector.QueueDepths(ctx)
	if err != nil {
		return err
	}

	for key, depth := range depths {
		observer.Observe(depth, metric.WithAttributes(
			attribute.String("queue.key", key),
		))
	}

	return nil
}

func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.ActiveWorkers(ctx)
	if err != nil {
		return err
	}

	for key, list := range workers {
		observer.Observe(int64(len(list)), metric.WithAttributes(
			attribute.String("queue.key", key),
		))
	}

	return nil
}

// Handler serves the Prometheus-formatted metrics of this exporter
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
