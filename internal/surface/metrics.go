package surface

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the surface's view of the pool over Prometheus. The
// gauges mirror the last retained state, not live hardware reads.
type Metrics struct {
	connected      prometheus.Gauge
	pumpOn         prometheus.Gauge
	wifiRSSI       prometheus.Gauge
	temperature    prometheus.Gauge
	timerRemaining prometheus.Gauge
	commandsTotal  *prometheus.CounterVec
	overridesTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool",
			Name:      "broker_connected_binary",
			Help:      "Registers when the broker session is up",
		}),
		pumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool",
			Name:      "pump_on_binary",
			Help:      "Last reported pump relay state",
		}),
		wifiRSSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool",
			Name:      "wifi_rssi_dbm",
			Help:      "Last reported controller wifi signal strength",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool",
			Name:      "water_temperature_celsius",
			Help:      "Last reported water temperature",
		}),
		timerRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool",
			Name:      "timer_remaining_seconds",
			Help:      "Local countdown display for the run timer",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pool",
			Name:      "commands_total",
			Help:      "Commands published, by channel",
		}, []string{"channel"}),
		overridesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pool",
			Name:      "manual_overrides_total",
			Help:      "Increase when manual control preempts a program",
		}),
	}

	reg.MustRegister(
		m.connected,
		m.pumpOn,
		m.wifiRSSI,
		m.temperature,
		m.timerRemaining,
		m.commandsTotal,
		m.overridesTotal,
	)
	return m
}

func (m *Metrics) SetConnected(up bool) {
	m.connected.Set(boolToFloat(up))
}

func (m *Metrics) SetPump(on bool) {
	m.pumpOn.Set(boolToFloat(on))
}

func (m *Metrics) SetRSSI(rssi int) {
	m.wifiRSSI.Set(float64(rssi))
}

func (m *Metrics) SetTemperature(temp float64) {
	m.temperature.Set(temp)
}

func (m *Metrics) SetTimerRemaining(seconds int) {
	m.timerRemaining.Set(float64(seconds))
}

func (m *Metrics) CountCommand(channel string) {
	m.commandsTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) CountOverride() {
	m.overridesTotal.Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
