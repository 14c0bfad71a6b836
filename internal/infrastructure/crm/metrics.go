package crm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var crmRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signup_service",
		Name:      "crm_requests_total",
		Help:      "Total number of CRM API calls by operation and outcome",
	},
	[]string{"operation", "status"}, // synced, rejected, timeout, transport_failure
)
