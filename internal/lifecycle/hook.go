package lifecycle

import (
	"context"
	"time"

	"github.com/moolen/groundwork/internal/grouping"
	"github.com/moolen/groundwork/internal/logging"
)

// Hook observes a transition at fixed points. Hooks never influence control
// flow and must not block for long; they run on the notifier's goroutine.
type Hook interface {
	// GroupsComputed is called once per transition with the group order
	// that will be walked for every sub-event.
	GroupsComputed(ctx context.Context, t Transition, groups []grouping.Group)
	// GroupNotified is called after every member of a group has handled the
	// sub-event. invoked counts members that implement the sub-event.
	GroupNotified(ctx context.Context, event Event, group grouping.Group, invoked int, elapsed time.Duration)
	// Failed is called with the error that aborts the transition.
	Failed(ctx context.Context, event Event, group grouping.Group, err error)
}

// NopHook ignores every call.
type NopHook struct{}

func (NopHook) GroupsComputed(context.Context, Transition, []grouping.Group) {}
func (NopHook) GroupNotified(context.Context, Event, grouping.Group, int, time.Duration) {}
func (NopHook) Failed(context.Context, Event, grouping.Group, error) {}

type multiHook []Hook

// Hooks fans calls out to every hook in order.
func Hooks(hooks ...Hook) Hook {
	return multiHook(hooks)
}

func (m multiHook) GroupsComputed(ctx context.Context, t Transition, groups []grouping.Group) {
	for _, h := range m {
		h.GroupsComputed(ctx, t, groups)
	}
}

func (m multiHook) GroupNotified(ctx context.Context, event Event, group grouping.Group, invoked int, elapsed time.Duration) {
	for _, h := range m {
		h.GroupNotified(ctx, event, group, invoked, elapsed)
	}
}

func (m multiHook) Failed(ctx context.Context, event Event, group grouping.Group, err error) {
	for _, h := range m {
		h.Failed(ctx, event, group, err)
	}
}

// LogHook writes transitions to a logger.
type LogHook struct {
	logger *logging.Logger
}

// NewLogHook returns a hook logging to logger.
func NewLogHook(logger *logging.Logger) *LogHook {
	return &LogHook{logger: logger}
}

func (h *LogHook) GroupsComputed(ctx context.Context, t Transition, groups []grouping.Group) {
	h.logger.WithContext(ctx).InfoWithFields("Computed "+t.String()+" order",
		logging.Field("groups", displayNames(groups)),
	)
}

func (h *LogHook) GroupNotified(ctx context.Context, event Event, group grouping.Group, invoked int, elapsed time.Duration) {
	h.logger.WithContext(ctx).DebugWithFields("Group notified",
		logging.Field("event", event),
		logging.Field("group", displayName(group.Name)),
		logging.Field("members", len(group.Members)),
		logging.Field("invoked", invoked),
		logging.Field("duration_ms", elapsed.Milliseconds()),
	)
}

func (h *LogHook) Failed(ctx context.Context, event Event, group grouping.Group, err error) {
	h.logger.WithContext(ctx).ErrorWithFields("Transition aborted",
		logging.Field("event", event),
		logging.Field("group", displayName(group.Name)),
		logging.Field("error", err.Error()),
	)
}

func displayName(name string) string {
	if name == "" {
		return "<ungrouped>"
	}
	return name
}

func displayNames(groups []grouping.Group) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = displayName(g.Name)
	}
	return names
}
