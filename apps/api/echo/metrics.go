package echoapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// login outcomes
const (
	loginSucceeded   = "succeeded"
	loginChallenged  = "challenged"
	loginFailed      = "failed"
	loginRateLimited = "rate_limited"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darasa",
		Name:      "login_attempts_total",
		Help:      "Password logins by role & outcome.",
	}, []string{"role", "outcome"})

	secondFactorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darasa",
		Name:      "second_factor_events_total",
		Help:      "Two-factor verifications, enrollments & removals by outcome.",
	}, []string{"event", "outcome"})
)
