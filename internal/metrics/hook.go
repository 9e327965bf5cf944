// Package metrics exports lifecycle transitions as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/moolen/groundwork/internal/grouping"
	"github.com/moolen/groundwork/internal/lifecycle"
	"github.com/prometheus/client_golang/prometheus"
)

const ungroupedLabel = "_ungrouped"

// LifecycleHook implements lifecycle.Hook.
type LifecycleHook struct {
	Notifications *prometheus.CounterVec   // per (event, group, result)
	Duration      *prometheus.HistogramVec // time to notify every member of a group
	Groups        *prometheus.GaugeVec     // number of groups in the last computed order
}

// NewLifecycleHook creates the lifecycle metrics and registers them on reg.
func NewLifecycleHook(reg prometheus.Registerer) *LifecycleHook {
	h := &LifecycleHook{
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groundwork_lifecycle_group_notifications_total",
			Help: "Total number of group notifications by sub-event and result",
		}, []string{"event", "group", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groundwork_lifecycle_group_duration_seconds",
			Help:    "Time taken to notify all members of a group",
			Buckets: prometheus.DefBuckets,
		}, []string{"event", "group"}),
		Groups: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "groundwork_lifecycle_groups",
			Help: "Number of groups in the most recent transition",
		}, []string{"transition"}),
	}

	reg.MustRegister(h.Notifications)
	reg.MustRegister(h.Duration)
	reg.MustRegister(h.Groups)
	return h
}

func (h *LifecycleHook) GroupsComputed(_ context.Context, t lifecycle.Transition, groups []grouping.Group) {
	h.Groups.WithLabelValues(t.String()).Set(float64(len(groups)))
}

func (h *LifecycleHook) GroupNotified(_ context.Context, event lifecycle.Event, group grouping.Group, _ int, elapsed time.Duration) {
	name := groupLabel(group.Name)
	h.Notifications.WithLabelValues(string(event), name, "success").Inc()
	h.Duration.WithLabelValues(string(event), name).Observe(elapsed.Seconds())
}

func (h *LifecycleHook) Failed(_ context.Context, event lifecycle.Event, group grouping.Group, _ error) {
	h.Notifications.WithLabelValues(string(event), groupLabel(group.Name), "error").Inc()
}

func groupLabel(name string) string {
	if name == "" {
		return ungroupedLabel
	}
	return name
}
