package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldnode/fndh-power/internal/envsensor"
	"github.com/fieldnode/fndh-power/internal/power"
)

// Metrics exports the latest readings as Prometheus gauges. It carries its
// own registry so multiple instances never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	volts       *prometheus.GaugeVec
	milliamps   *prometheus.GaugeVec
	outputState *prometheus.GaugeVec
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	rpcRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		volts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fndh_output_volts",
			Help: "Sensed output voltage in volts.",
		}, []string{"output"}),
		milliamps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fndh_output_milliamps",
			Help: "Sensed output current in milliamps.",
		}, []string{"output"}),
		outputState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fndh_output_on",
			Help: "Last commanded output state (1 on, 0 off).",
		}, []string{"output"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fndh_temperature_celsius",
			Help: "Internal enclosure temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fndh_humidity_percent",
			Help: "Internal enclosure relative humidity.",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fndh_rpc_requests_total",
			Help: "RPC requests handled, by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(m.volts, m.milliamps, m.outputState,
		m.temperature, m.humidity, m.rpcRequests)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReading records one output's sensed values.
func (m *Metrics) ObserveReading(name string, r power.Reading) {
	m.volts.WithLabelValues(name).Set(r.Volts)
	m.milliamps.WithLabelValues(name).Set(r.Milliamps)
	state := 0.0
	if r.On {
		state = 1.0
	}
	m.outputState.WithLabelValues(name).Set(state)
}

// ObserveEnv records the environment sensor values.
func (m *Metrics) ObserveEnv(r envsensor.Reading) {
	m.temperature.Set(r.TempC)
	m.humidity.Set(r.Humidity)
}

// ObserveRPC counts one handled RPC request.
func (m *Metrics) ObserveRPC(route string, code int) {
	m.rpcRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
