// Package metrics defines and registers all custom Prometheus metrics for
// the session gateway. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default registry at package load; the /metrics
// endpoint is mounted by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_gateway"

// ── Credential metrics ────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Labels:
//   - mode: "live" (webhook backend) or "demo" (local simulation)
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by backend mode and result.",
	},
	[]string{"mode", "result"},
)

// RegistrationsTotal counts registration attempts with the same labels as
// LoginsTotal.
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by backend mode and result.",
	},
	[]string{"mode", "result"},
)

// VerificationsTotal counts session verification rounds, startup and periodic.
// Label:
//   - result: "restored" or "invalidated"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total session verification rounds, by outcome.",
	},
	[]string{"result"},
)

// ── Credit metrics ────────────────────────────────────────────────────────────

// CreditsConsumedTotal counts credits spent by metered features.
// Label:
//   - reason: the metered operation (e.g. "scrape")
var CreditsConsumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_consumed_total",
		Help:      "Total credits deducted by metered operations.",
	},
	[]string{"reason"},
)

// CreditsDeniedTotal counts metered requests refused for lack of credits.
var CreditsDeniedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_denied_total",
		Help:      "Total metered requests refused because no credits remained.",
	},
	[]string{"reason"},
)

// CreditBalance tracks the current session's credit balance.
var CreditBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "credit_balance",
		Help:      "Credit balance of the active session (0 when logged out).",
	},
)

// ── Feature metrics ───────────────────────────────────────────────────────────

// ScrapesTotal counts scrape jobs forwarded to the external workflow.
// Label:
//   - result: "success" or "failure"
var ScrapesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrapes_total",
		Help:      "Total scrape jobs forwarded to the workflow, by result.",
	},
	[]string{"result"},
)

// ── Journal metrics ───────────────────────────────────────────────────────────

// JournalQueueDepth tracks entries buffered in the ledger journal workers.
var JournalQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "journal_queue_depth",
		Help:      "Ledger entries currently buffered in the journal worker queues.",
	},
)
