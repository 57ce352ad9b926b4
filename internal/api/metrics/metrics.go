// Package metrics defines all custom Prometheus metrics for the account
// gateway. It is the single source of truth for metric names, labels, and
// help strings; metrics register themselves with the default registry at
// package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "account_gateway"

// ── Identity resolution ───────────────────────────────────────────────────────

// ResolutionsTotal counts per-request identity resolutions.
// Label:
//   - outcome: "authenticated" or "guest"
var ResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_resolutions_total",
		Help:      "Total identity resolutions, by outcome.",
	},
	[]string{"outcome"},
)

// ResolutionDuration measures a full identity resolution round trip.
var ResolutionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "identity_resolution_duration_seconds",
		Help:      "Duration of identity resolution from credential to identity.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Auth operations ───────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "denied", or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success", "rejected", or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total registration attempts, by result.",
	},
	[]string{"result"},
)

// ActivationsTotal counts activation-token redemptions.
// Label:
//   - result: "success" or "invalid"
var ActivationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activations_total",
		Help:      "Total account activation attempts, by result.",
	},
	[]string{"result"},
)

// LogoutsTotal counts explicit logouts.
var LogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total explicit logouts.",
	},
)
