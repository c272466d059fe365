// Package metrics instruments the deployment pipeline with Prometheus
// counters/histograms, optionally pushed to a pushgateway on a ticker loop.
// Grounded on the teacher's services/metrics_service.go: package-level
// CounterVec/HistogramVec registered in init(), plus a CollectAndPush loop
// — generalized from the teacher's empty TODO collectors to the concrete
// deployment-outcome/dependency-resolution/service-restart counters
// SPEC_FULL.md's ambient stack section calls for.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"edgecored/internal/logger"
)

var (
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgecored_deployments_total",
			Help: "Total deployments processed, labeled by final status",
		},
		[]string{"status"},
	)

	DeploymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgecored_deployment_duration_seconds",
			Help:    "Wall-clock duration of a deployment's full pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	DependencyResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgecored_dependency_resolutions_total",
			Help: "Dependency resolution attempts, labeled by outcome",
		},
		[]string{"outcome"},
	)

	ServiceRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgecored_service_restarts_total",
			Help: "Supervised component process restarts",
		},
		[]string{"component"},
	)

	IPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgecored_ipc_requests_total",
			Help: "Local IPC requests handled, labeled by route and status class",
		},
		[]string{"route", "status"},
	)

	IPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgecored_ipc_request_duration_seconds",
			Help:    "Local IPC request handling time, labeled by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		DeploymentsTotal, DeploymentDuration,
		DependencyResolutionsTotal, ServiceRestartsTotal,
		IPCRequestsTotal, IPCRequestDuration,
	)
}

// ObserveIPCRequest records one Local IPC HTTP request's route, status
// class, and handling time, called from internal/middleware's gin
// middleware.
func ObserveIPCRequest(route, status string, duration time.Duration) {
	IPCRequestsTotal.WithLabelValues(route, status).Inc()
	IPCRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveDeployment records one completed deployment's outcome and
// duration, called from internal/deployment.Orchestrator.process.
func ObserveDeployment(status string, duration time.Duration) {
	DeploymentsTotal.WithLabelValues(status).Inc()
	DeploymentDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveDependencyResolution records one Resolve call's outcome, called
// from internal/deployment's Orchestrator around its depresolver call.
func ObserveDependencyResolution(outcome string) {
	DependencyResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveServiceRestart records one auto-restart, called from
// internal/proc.Instance's watcher.
func ObserveServiceRestart(componentName string) {
	ServiceRestartsTotal.WithLabelValues(componentName).Inc()
}

// Push sends the registered collectors to a pushgateway once, for the
// `edgecored metrics` CLI subcommand's one-shot push.
func Push(gatewayAddr, job string) error {
	return push.New(gatewayAddr, job).
		Collector(DeploymentsTotal).
		Collector(DeploymentDuration).
		Collector(DependencyResolutionsTotal).
		Collector(ServiceRestartsTotal).
		Collector(IPCRequestsTotal).
		Collector(IPCRequestDuration).
		Push()
}

// PushLoop periodically pushes the registered collectors to a pushgateway
// until ctx is cancelled, mirroring the teacher's CollectAndPushMetrics
// ticker loop but actually wiring prometheus/client_golang's push package
// instead of leaving it as a TODO.
func PushLoop(ctx context.Context, gatewayAddr, job string, interval time.Duration) {
	if gatewayAddr == "" {
		return
	}
	pusher := push.New(gatewayAddr, job).
		Collector(DeploymentsTotal).
		Collector(DeploymentDuration).
		Collector(DependencyResolutionsTotal).
		Collector(ServiceRestartsTotal).
		Collector(IPCRequestsTotal).
		Collector(IPCRequestDuration)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pusher.Push(); err != nil {
				logger.Warnf("metrics push to %s failed: %v", gatewayAddr, err)
			}
		}
	}
}
