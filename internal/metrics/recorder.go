// Package metrics exports bot activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/consultbot/internal/signup"
)

const namespace = "consultbot"

// Recorder implements the update, render, conversation and sender observers.
type Recorder struct {
	updates     *prometheus.CounterVec
	limited     prometheus.Counter
	outbound    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	ignored     *prometheus.CounterVec
	renders     *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

// NewRecorder registers the bot metrics on reg. sessions, when set, backs
// the active sessions gauge.
func NewRecorder(reg prometheus.Registerer, sessions func() int) *Recorder {
	factory := promauto.With(reg)
	r := &Recorder{
		updates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Inbound updates by kind",
			},
			[]string{"kind"},
		),
		limited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_rate_limited_total",
			Help:      "Updates dropped by the per-user rate limit",
		}),
		outbound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbound_jobs_total",
				Help:      "Queued Telegram calls by action and result",
			},
			[]string{"action", "result"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signup_transitions_total",
				Help:      "Conversation state transitions",
			},
			[]string{"from", "to"},
		),
		ignored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signup_ignored_total",
				Help:      "Inputs the current state does not accept",
			},
			[]string{"state", "input"},
		),
		renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Prompts delivered by kind and disposition",
			},
			[]string{"kind", "disposition"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Submission persist attempts by status",
			},
			[]string{"status"},
		),
	}
	if sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversations in progress",
		}, func() float64 { return float64(sessions()) })
	}
	return r
}

// ObserveUpdate counts one inbound update.
func (r *Recorder) ObserveUpdate(kind string) {
	r.updates.WithLabelValues(kind).Inc()
}

// RateLimited counts one throttled update.
func (r *Recorder) RateLimited() {
	r.limited.Inc()
}

// SendResult counts one finished dispatcher job.
func (r *Recorder) SendResult(action, result string) {
	r.outbound.WithLabelValues(action, result).Inc()
}

func (r *Recorder) Transition(from, to signup.State) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *Recorder) Ignored(state signup.State, kind signup.EventKind) {
	st := string(state)
	if st == "" {
		st = "none"
	}
	r.ignored.WithLabelValues(st, kind.String()).Inc()
}

func (r *Recorder) Submitted(err error) {
	status := "ok"
	if err != nil {
		status = "fail"
	}
	r.submissions.WithLabelValues(status).Inc()
}

func (r *Recorder) Rendered(kind string, d signup.Disposition) {
	r.renders.WithLabelValues(kind, string(d)).Inc()
}
