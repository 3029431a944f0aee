package observability

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	deliveredLocal  prometheus.Counter
	deliveredRemote prometheus.Counter
	queuedOffline   prometheus.Counter
	publishFailures prometheus.Counter
	logins          prometheus.Counter
	loginRejections prometheus.Counter
	liveSessions    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		deliveredLocal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_delivered_local_total",
			Help: "Messages delivered directly to a local connection.",
		}),
		deliveredRemote: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_delivered_remote_total",
			Help: "Messages published on the bus for another instance.",
		}),
		queuedOffline: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_queued_offline_total",
			Help: "Messages appended to a durable offline queue.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_bus_publish_failures_total",
			Help: "Bus publishes that failed and fell back to offline queuing.",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_logins_total",
			Help: "Successful logins on this instance.",
		}),
		loginRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_login_rejections_total",
			Help: "Logins rejected for bad credentials or duplicate sessions.",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_live_sessions",
			Help: "Sessions currently held by this instance.",
		}),
	}

	reg.MustRegister(
		m.deliveredLocal,
		m.deliveredRemote,
		m.queuedOffline,
		m.publishFailures,
		m.logins,
		m.loginRejections,
		m.liveSessions,
	)
	return m
}

func (m *Metrics) DeliveredLocal()  { m.deliveredLocal.Inc() }
func (m *Metrics) DeliveredRemote() { m.deliveredRemote.Inc() }
func (m *Metrics) QueuedOffline()   { m.queuedOffline.Inc() }
func (m *Metrics) PublishFailure()  { m.publishFailures.Inc() }
func (m *Metrics) Login()           { m.logins.Inc() }
func (m *Metrics) LoginRejected()   { m.loginRejections.Inc() }

func (m *Metrics) SetLiveSessions(n int) { m.liveSessions.Set(float64(n)) }
