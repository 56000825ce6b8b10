// Package metrics exposes the service's Prometheus collectors on a private
// registry. Every method is safe to call on a nil *Collector.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rodovar"

type Collector struct {
	reg *prometheus.Registry

	TrackingLookups *prometheus.CounterVec // result: found|not_found
	Pings           prometheus.Counter
	TripsStarted    prometheus.Counter
	TripsStopped    prometheus.Counter
	Deliveries      prometheus.Counter

	GeocodeRequests  *prometheus.CounterVec // op, outcome
	GeocodeCacheHits prometheus.Counter

	EventsPublished *prometheus.CounterVec // kind: position|status
	PublishErrors   prometheus.Counter
	PublishDuration prometheus.Histogram
	NATSConnected   prometheus.Gauge

	HTTPDuration *prometheus.HistogramVec // method, route, status
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TrackingLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_lookups_total",
			Help:      "Tracking code lookups by result.",
		}, []string{"result"}),
		Pings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gps_pings_total",
			Help:      "GPS positions received from drivers.",
		}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_started_total",
			Help:      "Trips started by drivers.",
		}),
		TripsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_stopped_total",
			Help:      "Trips paused by drivers.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Shipments marked as delivered.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		GeocodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_hits_total",
			Help:      "Reverse geocoding lookups served from cache.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to NATS by kind.",
		}, []string{"kind"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "NATS publish errors.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_seconds",
			Help:      "Time to marshal and publish one event.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nats_connected",
			Help:      "1 if the NATS connection is established, 0 otherwise.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.TrackingLookups, c.Pings, c.TripsStarted, c.TripsStopped, c.Deliveries,
		c.GeocodeRequests, c.GeocodeCacheHits,
		c.EventsPublished, c.PublishErrors, c.PublishDuration, c.NATSConnected,
		c.HTTPDuration,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) TrackingLookup(found bool) {
	if c == nil {
		return
	}
	if found {
		c.TrackingLookups.WithLabelValues("found").Inc()
	} else {
		c.TrackingLookups.WithLabelValues("not_found").Inc()
	}
}

func (c *Collector) PingInc() {
	if c != nil {
		c.Pings.Inc()
	}
}

func (c *Collector) TripStartedInc() {
	if c != nil {
		c.TripsStarted.Inc()
	}
}

func (c *Collector) TripStoppedInc() {
	if c != nil {
		c.TripsStopped.Inc()
	}
}

func (c *Collector) DeliveryInc() {
	if c != nil {
		c.Deliveries.Inc()
	}
}

// GeocodeObserve matches geocode.Observer.
func (c *Collector) GeocodeObserve(op, outcome string) {
	if c != nil {
		c.GeocodeRequests.WithLabelValues(op, outcome).Inc()
	}
}

func (c *Collector) GeocodeCacheHitInc() {
	if c != nil {
		c.GeocodeCacheHits.Inc()
	}
}

func (c *Collector) EventPublishedInc(kind string) {
	if c != nil {
		c.EventsPublished.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) EventPublishErrInc() {
	if c != nil {
		c.PublishErrors.Inc()
	}
}

func (c *Collector) PublishObserve(d time.Duration) {
	if c != nil {
		c.PublishDuration.Observe(d.Seconds())
	}
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// ObserveHTTP records one finished request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
