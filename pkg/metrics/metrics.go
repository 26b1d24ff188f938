package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	OAuthCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "oauth_callbacks_total", Help: "OAuth callbacks by provider and outcome code."},
		[]string{"provider", "outcome"},
	)
	TokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "token_validations_total", Help: "Credential validations by provider and result."},
		[]string{"provider", "result"},
	)
	CustomerDeletes = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "portal", Name: "customer_deletes_total", Help: "Administrative customer deletions that removed a record."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(OAuthCallbacks)
	reg.MustRegister(TokenValidations)
	reg.MustRegister(CustomerDeletes)
}
