package stream

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	rxStanzas *prometheus.CounterVec
	txStanzas *prometheus.CounterVec
	rxDropped prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		rxStanzas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmpp",
			Subsystem: "stream",
			Name:      "rx_stanzas_total",
			Help:      "Stanzas received on the stream, by kind.",
		}, []string{"kind"}),
		txStanzas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmpp",
			Subsystem: "stream",
			Name:      "tx_stanzas_total",
			Help:      "Stanzas sent on the stream, by kind.",
		}, []string{"kind"}),
		rxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmpp",
			Subsystem: "stream",
			Name:      "rx_dropped_total",
			Help:      "Inbound elements dropped as unparseable or unknown.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rxStanzas, m.txStanzas, m.rxDropped)
	}
	return m
}

func (m *metrics) rx(kind string) { m.rxStanzas.WithLabelValues(kind).Inc() }
func (m *metrics) tx(kind string) { m.txStanzas.WithLabelValues(kind).Inc() }
func (m *metrics) dropped()       { m.rxDropped.Inc() }
