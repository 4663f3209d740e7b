package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_engine_evaluations_total",
		Help: "Eligibility evaluations by outcome",
	}, []string{"outcome"})

	engineRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_engine_rejections_total",
		Help: "Ineligible evaluations by reason",
	}, []string{"reason"})

	engineFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_engine_faults_total",
		Help: "Misconfigured rules that forced a zero discount",
	}, []string{"kind"})
)

// Fault kinds.
const (
	FaultMalformedCondition = "malformed_condition"
	FaultMissingBuyXGetY    = "missing_buy_x_get_y_rule"
	FaultInvalidBuyXGetY    = "invalid_buy_x_get_y_rule"
	FaultUnknownType        = "unknown_discount_type"
)
