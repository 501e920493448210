// Package metrics exports attachment lifecycle telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	apperrors "github.com/welldanyogia/node-attachments-backend/internal/errors"
)

const defaultNamespace = "node_attachments"

// OutcomeOK labels successful operations
const OutcomeOK = "ok"

// Observer captures telemetry for attachment operations.
type Observer interface {
	RecordCreate(duration time.Duration, sizeBytes int64, err error)
	RecordDelete(duration time.Duration, err error)
	RecordCascade(deleted, failed int)
	RecordOrphans(found, removed int)
}

// PrometheusObserver exports attachment metrics to Prometheus.
type PrometheusObserver struct {
	operationDuration *prometheus.HistogramVec
	operations        *prometheus.CounterVec
	storedBytes       prometheus.Counter
	cascadeDeleted    *prometheus.CounterVec
	orphans           *prometheus.CounterVec
}

// NewPrometheusObserver registers the attachment metrics on reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of attachment create and delete operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Attachment operations by outcome code.",
		}, []string{"operation", "outcome"}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Cumulative size of attachments successfully created.",
		}),
		cascadeDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_attachments_total",
			Help:      "Attachments processed by node cascade deletes.",
		}, []string{"result"}),
		orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_blobs_total",
			Help:      "Blobs without a catalog record seen by the orphan sweeper.",
		}, []string{"result"}),
	}
	collectors := []prometheus.Collector{
		observer.operationDuration,
		observer.operations,
		observer.storedBytes,
		observer.cascadeDeleted,
		observer.orphans,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register attachment metric: %w", err)
		}
	}
	return observer, nil
}

// RecordCreate tracks create latency, outcome and stored bytes.
func (o *PrometheusObserver) RecordCreate(duration time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	o.record("create", duration, err)
	if err == nil {
		o.storedBytes.Add(float64(sizeBytes))
	}
}

func (o *PrometheusObserver) RecordDelete(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.record("delete", duration, err)
}

func (o *PrometheusObserver) RecordCascade(deleted, failed int) {
	if o == nil {
		return
	}
	o.cascadeDeleted.WithLabelValues("deleted").Add(float64(deleted))
	o.cascadeDeleted.WithLabelValues("failed").Add(float64(failed))
}

func (o *PrometheusObserver) RecordOrphans(found, removed int) {
	if o == nil {
		return
	}
	o.orphans.WithLabelValues("found").Add(float64(found))
	o.orphans.WithLabelValues("removed").Add(float64(removed))
}

func (o *PrometheusObserver) record(op string, duration time.Duration, err error) {
	o.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
	o.operations.WithLabelValues(op, Outcome(err)).Inc()
}

// Outcome maps an operation error to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return apperrors.GetErrorCode(err)
}

// Nop returns an Observer that discards everything.
func Nop() Observer { return nopObserver{} }

type nopObserver struct{}

func (nopObserver) RecordCreate(time.Duration, int64, error) {}

func (nopObserver) RecordDelete(time.Duration, error) {}

func (nopObserver) RecordCascade(int, int) {}

func (nopObserver) RecordOrphans(int, int) {}
