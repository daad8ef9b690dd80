// Registers:
//
//	#engageflow_remote_requests_total{endpoint,status}
//	#engageflow_task_results_total{result}
//	#engageflow_spins_total{outcome}
//	#engageflow_spin_payout_total
//	#engageflow_sessions_active{kind}
//	#go_* and process_* system metrics
//
// Handler exposes them for mounting on the HTTP router.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once           sync.Once
	registry       *prometheus.Registry
	remoteRequests *prometheus.CounterVec
	taskResults    *prometheus.CounterVec
	spins          *prometheus.CounterVec
	spinPayout     prometheus.Counter
	sessionsActive *prometheus.GaugeVec
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		remoteRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engageflow_remote_requests_total",
				Help: "Requests issued to the rewards platform",
			},
			[]string{"endpoint", "status"},
		)
		taskResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engageflow_task_results_total",
				Help: "Campaign tasks by final result",
			},
			[]string{"result"},
		)
		spins = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engageflow_spins_total",
				Help: "Wheel spins by classified outcome",
			},
			[]string{"outcome"},
		)
		spinPayout = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engageflow_spin_payout_total",
			Help: "Sum of payouts from winning spins",
		})
		sessionsActive = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engageflow_sessions_active",
				Help: "Automation sessions currently running",
			},
			[]string{"kind"},
		)

		registry.MustRegister(remoteRequests, taskResults, spins, spinPayout, sessionsActive)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registered metrics. Init must have been called.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveRemoteRequest counts one platform call. A zero status means the
// call failed before a response arrived.
func ObserveRemoteRequest(endpoint string, status int) {
	if remoteRequests != nil {
		remoteRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
}

func ObserveTaskResult(result string) {
	if taskResults != nil {
		taskResults.WithLabelValues(result).Inc()
	}
}

func ObserveSpin(outcome string, payout float64) {
	if spins != nil {
		spins.WithLabelValues(outcome).Inc()
	}
	if spinPayout != nil && payout > 0 {
		spinPayout.Add(payout)
	}
}

func SessionStarted(kind string) {
	if sessionsActive != nil {
		sessionsActive.WithLabelValues(kind).Inc()
	}
}

func SessionEnded(kind string) {
	if sessionsActive != nil {
		sessionsActive.WithLabelValues(kind).Dec()
	}
}
