package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pasapalabra"

// Prometheus implements Collector using Prometheus metrics.
type Prometheus struct {
	reg           *prom.Registry
	eventsEmitted *prom.CounterVec
	eventsRecv    *prom.CounterVec
	eventsDropped *prom.CounterVec
	handlerFails  *prom.CounterVec
	storeWrites   *prom.CounterVec
	timerFinishes prom.Counter
	gatewayConns  prom.Gauge
}

// NewPrometheus constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheus(reg *prom.Registry) *Prometheus {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	p := &Prometheus{
		reg: reg,
		eventsEmitted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Sync events emitted by this context",
		}, []string{"type"}),
		eventsRecv: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Sync events received from other contexts",
		}, []string{"type"}),
		eventsDropped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Sync events ignored on receipt",
		}, []string{"reason"}),
		handlerFails: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Subscriber handlers that panicked",
		}, []string{"type"}),
		storeWrites: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Envelope writes by operation and result",
		}, []string{"op", "result"}),
		timerFinishes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "timer_finished_total",
			Help:      "Countdown timers that reached zero",
		}),
		gatewayConns: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_connections",
			Help:      "Open websocket connections on the sync gateway",
		}),
	}
	reg.MustRegister(p.eventsEmitted, p.eventsRecv, p.eventsDropped, p.handlerFails,
		p.storeWrites, p.timerFinishes, p.gatewayConns)
	return p
}

func (p *Prometheus) RecordEventEmitted(eventType string) {
	p.eventsEmitted.WithLabelValues(eventType).Inc()
}

func (p *Prometheus) RecordEventReceived(eventType string) {
	p.eventsRecv.WithLabelValues(eventType).Inc()
}

func (p *Prometheus) RecordEventDropped(reason string) {
	p.eventsDropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RecordHandlerFailure(eventType string) {
	p.handlerFails.WithLabelValues(eventType).Inc()
}

func (p *Prometheus) RecordStoreWrite(op string, success bool) {
	p.storeWrites.WithLabelValues(op, result(success)).Inc()
}

func (p *Prometheus) RecordTimerFinished() {
	p.timerFinishes.Inc()
}

func (p *Prometheus) SetGatewayConnections(n int) {
	p.gatewayConns.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
