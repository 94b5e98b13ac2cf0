package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bus-simulator/internal/bus"
)

type Collector struct {
	reg *prometheus.Registry

	Passengers      prometheus.Gauge
	InspectorAboard prometheus.Gauge
	TotalFines      prometheus.Gauge
	AtStop          prometheus.Gauge
	RouteIndex      prometheus.Gauge

	Arrivals     prometheus.Counter
	Departures   prometheus.Counter
	Inspections  prometheus.Counter
	FinesIssued  prometheus.Counter
	Transits     *prometheus.CounterVec // phase label: inside|exiting
	Intents      *prometheus.CounterVec // intent, result labels
	JournalDrops prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	SpeedMultiplier prometheus.Gauge
	FrameInterval   prometheus.Gauge // seconds
	PublishInterval prometheus.Gauge // seconds
}

func NewCollector(speedMultiplier float64, frameInterval, publishInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Passengers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_passengers",
			Help: "Riders aboard, including the inspector.",
		}),
		InspectorAboard: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_inspector_aboard",
			Help: "1 if the fare inspector is riding, 0 otherwise.",
		}),
		TotalFines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_fines",
			Help: "Fines accumulated since the last reset.",
		}),
		AtStop: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_at_stop",
			Help: "1 while the bus dwells at a stop.",
		}),
		RouteIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_route_index",
			Help: "Index of the route point the bus is at or leaving.",
		}),
		Arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_stop_arrivals_total",
			Help: "Total stop arrivals.",
		}),
		Departures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_stop_departures_total",
			Help: "Total stop departures.",
		}),
		Inspections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_inspections_total",
			Help: "Total inspections performed.",
		}),
		FinesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_fines_issued_total",
			Help: "Total fines issued by the inspector.",
		}),
		Transits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_door_transits_total",
			Help: "Completed walks through the door.",
		}, []string{"phase"}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bus_intents_total",
			Help: "Rider intents by outcome.",
		}, []string{"intent", "result"}),
		JournalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_journal_dropped_total",
			Help: "Events dropped because the journal queue was full.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bus_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bus_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bus_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_speed_multiplier",
			Help: "Current speed multiplier.",
		}),
		FrameInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_frame_interval_seconds",
			Help: "Simulation frame interval in seconds.",
		}),
		PublishInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bus_publish_interval_seconds",
			Help: "Publish interval in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.Passengers, c.InspectorAboard, c.TotalFines, c.AtStop, c.RouteIndex,
		c.Arrivals, c.Departures, c.Inspections, c.FinesIssued, c.Transits, c.Intents, c.JournalDrops,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.SpeedMultiplier, c.FrameInterval, c.PublishInterval,
	)

	// Set static gauges
	c.SpeedMultiplier.Set(speedMultiplier)
	c.FrameInterval.Set(frameInterval.Seconds())
	c.PublishInterval.Set(publishInterval.Seconds())

	return c
}

// ObserveState mirrors a snapshot into the gauges.
func (c *Collector) ObserveState(s bus.State) {
	c.Passengers.Set(float64(s.PassengerCount))
	c.InspectorAboard.Set(boolGauge(s.InspectorAboard))
	c.TotalFines.Set(float64(s.TotalFines))
	c.AtStop.Set(boolGauge(s.AtStop))
	c.RouteIndex.Set(float64(s.RouteIndex))
}

// ObserveEvent bumps the counters matching a simulation event.
func (c *Collector) ObserveEvent(ev bus.Event) {
	switch e := ev.(type) {
	case bus.ArriveEvent:
		c.Arrivals.Inc()
	case bus.DepartEvent:
		c.Departures.Inc()
	case bus.InspectionEvent:
		c.Inspections.Inc()
		c.FinesIssued.Add(float64(e.Fines))
	case bus.TransitDoneEvent:
		c.Transits.WithLabelValues(e.Phase.String()).Inc()
	}
}

// ObserveIntent counts an intent and whether the simulation accepted it.
func (c *Collector) ObserveIntent(intent string, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	c.Intents.WithLabelValues(intent, result).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
