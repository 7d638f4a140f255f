package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/memoauth"
	"github.com/MrEthical07/memoauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() memoauth.MetricsSnapshot
	AuditDropped() uint64
}

// OTel has no observable histogram. Each memoauth histogram becomes a bucket
// gauge keyed by an le attribute plus count and sum gauges.
type latencyInstruments struct {
	id      memoauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
	le      []metric.ObserveOption
}

// Exporter publishes memoauth metrics as OTel observable instruments. One
// callback reads a snapshot per collection cycle.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     map[memoauth.MetricID]metric.Int64ObservableCounter
	latency      []latencyInstruments
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter. source is usually a
// *memoauth.Manager.
func NewExporter(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[memoauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		li, err := newLatencyInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		e.latency = append(e.latency, li)
		observables = append(observables, li.buckets, li.count, li.sum)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newLatencyInstruments(meter metric.Meter, def internaldefs.HistogramDef) (latencyInstruments, error) {
	li := latencyInstruments{id: def.ID}
	var err error

	if li.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per le bound.")); err != nil {
		return li, fmt.Errorf("create gauge %s_bucket: %w", def.Name, err)
	}
	if li.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Sample count.")); err != nil {
		return li, fmt.Errorf("create gauge %s_count: %w", def.Name, err)
	}
	if li.sum, err = meter.Float64ObservableGauge(def.Name+"_sum",
		metric.WithDescription(def.Help+" Sum of samples."), metric.WithUnit("s")); err != nil {
		return li, fmt.Errorf("create gauge %s_sum: %w", def.Name, err)
	}

	for _, le := range internaldefs.HistogramBoundLabels {
		li.le = append(li.le, metric.WithAttributes(attribute.String("le", le)))
	}
	return li, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}
	for _, li := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[li.id]))
		for i, opt := range li.le {
			o.ObserveInt64(li.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(li.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(li.sum, snapshot.HistogramSums[li.id].Seconds())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
