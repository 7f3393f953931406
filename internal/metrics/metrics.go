package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics groups the collectors exported by the rule engine. A nil
// *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	RuleRuns       *prometheus.CounterVec
	RuleDuration   *prometheus.HistogramVec
	ActionsApplied *prometheus.CounterVec
	TickDuration   prometheus.Histogram
	DueRules       prometheus.Gauge
	BudgetResets   *prometheus.CounterVec
}

// NewEngineMetrics registers the engine collectors on reg
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		RuleRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppc_automation",
			Name:      "rule_runs_total",
			Help:      "Rule runs by rule type and resulting log status.",
		}, []string{"rule_type", "status"}),
		RuleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ppc_automation",
			Name:      "rule_run_duration_seconds",
			Help:      "Wall time of a single rule run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"rule_type"}),
		ActionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppc_automation",
			Name:      "actions_applied_total",
			Help:      "Bid/budget changes and negatives accepted by the ads platform.",
		}, []string{"rule_type", "kind"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ppc_automation",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scheduler pass over the due rules.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		DueRules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ppc_automation",
			Name:      "due_rules",
			Help:      "Rules found due on the last tick.",
		}),
		BudgetResets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppc_automation",
			Name:      "budget_resets_total",
			Help:      "Campaign budgets restored by the nightly sweep, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *EngineMetrics) ObserveRuleRun(ruleType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RuleRuns.WithLabelValues(ruleType, status).Inc()
	m.RuleDuration.WithLabelValues(ruleType).Observe(d.Seconds())
}

func (m *EngineMetrics) AddActions(ruleType, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ActionsApplied.WithLabelValues(ruleType, kind).Add(float64(n))
}

func (m *EngineMetrics) ObserveTick(due int, d time.Duration) {
	if m == nil {
		return
	}
	m.DueRules.Set(float64(due))
	m.TickDuration.Observe(d.Seconds())
}

func (m *EngineMetrics) AddBudgetResets(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BudgetResets.WithLabelValues(outcome).Add(float64(n))
}
