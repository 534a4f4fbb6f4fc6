package metrics

import (
	"sync"

	"github.com/teerapat-ch/eventhub/pkg/telemetry"
)

var (
	// Admission counters
	JoinsAccepted   *telemetry.Counter
	JoinsRejected   *telemetry.Counter
	LeavesAccepted  *telemetry.Counter
	LeavesRejected  *telemetry.Counter
	EventsCreated   *telemetry.Counter
	CapacityChanges *telemetry.Counter

	// Histograms
	AdmissionDuration *telemetry.Histogram

	// Gauges
	ReconcileBacklog *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all admission metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	JoinsAccepted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "rsvp_joins_accepted_total",
		Description: "Total number of accepted event joins",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	JoinsRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "rsvp_joins_rejected_total",
		Description: "Total number of rejected event joins, by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	LeavesAccepted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "rsvp_leaves_accepted_total",
		Description: "Total number of accepted event leaves",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	LeavesRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "rsvp_leaves_rejected_total",
		Description: "Total number of rejected event leaves, by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	EventsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "events_created_total",
		Description: "Total number of events created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	CapacityChanges, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "event_capacity_changes_total",
		Description: "Total number of accepted capacity changes",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	AdmissionDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "admission_duration_seconds",
		Description: "Duration of join and leave operations",
		Unit:        "s",
	})
	if err != nil {
		return err
	}

	ReconcileBacklog, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "reconcile_backlog",
		Description: "Events pending reconciliation in the current sweep",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}
