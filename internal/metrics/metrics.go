// Package metrics exposes Prometheus collectors for the control loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecoilTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoilctl_recoil_ticks_total",
			Help: "Total number of compensation ticks executed while shooting",
		},
	)

	ShootingSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoilctl_shooting_sessions_total",
			Help: "Total number of shooting sessions started",
		},
	)

	Shooting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoilctl_shooting",
			Help: "1 while a shooting session is active",
		},
	)

	PullFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoilctl_pull_failures_total",
			Help: "Custom pull evaluations that failed and fell back to steady pull",
		},
	)

	ClicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoilctl_auto_clicks_total",
			Help: "Total number of synthetic left clicks",
		},
	)

	BackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoilctl_backend_errors_total",
			Help: "Input backend failures by operation",
		},
		[]string{"op"},
	)

	ProfileReloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoilctl_profile_reloads_total",
			Help: "Total number of profile list reloads",
		},
	)

	ProfilesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoilctl_profiles_loaded",
			Help: "Number of weapon profiles in the active set",
		},
	)
)
