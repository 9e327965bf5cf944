package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moolen/groundwork/internal/grouping"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(key string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, key+"."+string(event))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fullComponent implements every sub-event.
type fullComponent struct {
	key  string
	rec  *recorder
	fail map[Event]error
}

func (c *fullComponent) handle(event Event) error {
	c.rec.record(c.key, event)
	return c.fail[event]
}

func (c *fullComponent) PreStart(context.Context) error  { return c.handle(EventPreStart) }
func (c *fullComponent) Start(context.Context) error     { return c.handle(EventStart) }
func (c *fullComponent) PostStart(context.Context) error { return c.handle(EventPostStart) }
func (c *fullComponent) PreStop(context.Context) error   { return c.handle(EventPreStop) }
func (c *fullComponent) Stop(context.Context) error      { return c.handle(EventStop) }
func (c *fullComponent) PostStop(context.Context) error  { return c.handle(EventPostStop) }

type startOnly struct {
	key string
	rec *recorder
}

func (c *startOnly) Start(context.Context) error {
	c.rec.record(c.key, EventStart)
	return nil
}

type funcStarter func(ctx context.Context) error

func (f funcStarter) Start(ctx context.Context) error { return f(ctx) }

func quietLogs(t *testing.T) {
	t.Helper()
	t.Cleanup(logging.SetOutput(io.Discard))
}

func newContainer(t *testing.T) *registry.Container {
	t.Helper()
	c, err := registry.NewContainer()
	require.NoError(t, err)
	return c
}

func lifecycleTags(group string) registry.Tags {
	tags := registry.Tags{registry.TagLifecycle: ""}
	if group != "" {
		tags[registry.TagGroup] = group
	}
	return tags
}

func groupNames(groups []grouping.Group) []string {
	return grouping.Names(groups)
}

func TestNotifier_StartAndStopOrder(t *testing.T) {
	quietLogs(t)
	rec := &recorder{}
	c := newContainer(t)

	require.NoError(t, c.Constant("A", &fullComponent{key: "A", rec: rec}, lifecycleTags("db")))
	require.NoError(t, c.Constant("B", &fullComponent{key: "B", rec: rec}, lifecycleTags("server")))
	require.NoError(t, c.Constant("C", &fullComponent{key: "C", rec: rec}, lifecycleTags("")))

	n := NewNotifier(c, Config{Order: []string{"db", "server"}})
	assert.Equal(t, StateIdle, n.State())

	require.NoError(t, n.Start(context.Background()))
	assert.Equal(t, StateStarted, n.State())
	assert.Equal(t, []string{
		"A.preStart", "B.preStart", "C.preStart",
		"A.start", "B.start", "C.start",
		"A.postStart", "B.postStart", "C.postStart",
	}, rec.Calls())

	rec.calls = nil
	require.NoError(t, n.Stop(context.Background()))
	assert.Equal(t, StateStopped, n.State())
	assert.Equal(t, []string{
		"C.preStop", "B.preStop", "A.preStop",
		"C.stop", "B.stop", "A.stop",
		"C.postStop", "B.postStop", "A.postStop",
	}, rec.Calls())
}

func TestNotifier_StopIsReverseOfStart(t *testing.T) {
	c := newContainer(t)
	for i, group := range []string{"web", "db", "", "cache", "db", "queue"} {
		key := fmt.Sprintf("c%d", i)
		require.NoError(t, c.Constant(key, struct{}{}, lifecycleTags(group)))
	}

	n := NewNotifier(c, Config{Order: []string{"queue", "db"}})
	start := n.Groups(TransitionStart)
	stop := n.Groups(TransitionStop)

	assert.Equal(t, []string{"queue", "db", "", "cache", "web"}, groupNames(start))
	require.Len(t, stop, len(start))
	for i := range start {
		assert.Equal(t, start[len(start)-1-i], stop[i])
	}
	// member order inside a group is never reversed
	assert.Equal(t, []string{"c1", "c4"}, start[1].Keys())
	assert.Equal(t, []string{"c1", "c4"}, stop[3].Keys())
}

func TestNotifier_GroupsReflectCurrentRegistrations(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Constant("a", struct{}{}, lifecycleTags("a")))

	n := NewNotifier(c, DefaultConfig())
	assert.Equal(t, []string{"a"}, groupNames(n.Groups(TransitionStart)))

	require.NoError(t, c.Constant("b", struct{}{}, lifecycleTags("b")))
	assert.Equal(t, []string{"a", "b"}, groupNames(n.Groups(TransitionStart)))

	c.Unregister("a")
	assert.Equal(t, []string{"b"}, groupNames(n.Groups(TransitionStart)))
}

func TestNotifier_MarkerTagClassification(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Constant("srv", struct{}{}, registry.Tags{registry.TagLifecycle: "", "server": "server"}))
	require.NoError(t, c.Constant("db", struct{}{}, registry.Tags{registry.TagLifecycle: "", "db": "db"}))

	n := NewNotifier(c, Config{Order: []string{"db", "server"}})
	assert.Equal(t, []string{"db", "server"}, groupNames(n.Groups(TransitionStart)))
}

func TestNotifier_SkipsMissingMethodsAndTransients(t *testing.T) {
	quietLogs(t)
	rec := &recorder{}
	c := newContainer(t)

	require.NoError(t, c.Constant("only", &startOnly{key: "only", rec: rec}, lifecycleTags("")))
	require.NoError(t, c.Constant("plain", "not a component", lifecycleTags("")))
	require.NoError(t, c.Transient("transient", func(context.Context) (any, error) {
		return &startOnly{key: "transient", rec: rec}, nil
	}, lifecycleTags("")))

	n := NewNotifier(c, DefaultConfig())
	require.NoError(t, n.Start(context.Background()))
	require.NoError(t, n.Stop(context.Background()))

	assert.Equal(t, []string{"only.start"}, rec.Calls())
}

func TestNotifier_SequentialMembersCompleteInOrder(t *testing.T) {
	quietLogs(t)
	var mu sync.Mutex
	var events []string
	var running atomic.Int32
	c := newContainer(t)

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("m%d", i)
		require.NoError(t, c.Constant(key, funcStarter(func(context.Context) error {
			if running.Add(1) != 1 {
				return errors.New("overlapping invocation")
			}
			mu.Lock()
			events = append(events, key+" begin")
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			events = append(events, key+" end")
			mu.Unlock()
			running.Add(-1)
			return nil
		}), lifecycleTags("g")))
	}

	n := NewNotifier(c, Config{Parallel: false})
	require.NoError(t, n.Start(context.Background()))
	assert.Equal(t, []string{
		"m0 begin", "m0 end", "m1 begin", "m1 end",
		"m2 begin", "m2 end", "m3 begin", "m3 end",
	}, events)
}

func TestNotifier_ParallelMembersRunConcurrently(t *testing.T) {
	quietLogs(t)
	const members = 3
	var arrived sync.WaitGroup
	arrived.Add(members)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	var laterGroupSawAll atomic.Bool
	var finished atomic.Int32
	c := newContainer(t)

	for i := 0; i < members; i++ {
		require.NoError(t, c.Constant(fmt.Sprintf("p%d", i), funcStarter(func(context.Context) error {
			arrived.Done()
			select {
			case <-allArrived:
			case <-time.After(5 * time.Second):
				return errors.New("members were not invoked concurrently")
			}
			finished.Add(1)
			return nil
		}), lifecycleTags("first")))
	}
	require.NoError(t, c.Constant("later", funcStarter(func(context.Context) error {
		laterGroupSawAll.Store(finished.Load() == members)
		return nil
	}), lifecycleTags("second")))

	n := NewNotifier(c, Config{Order: []string{"first", "second"}, Parallel: true})
	require.NoError(t, n.Start(context.Background()))
	assert.True(t, laterGroupSawAll.Load(), "next group must wait for every member of the previous group")
}

func TestNotifier_ParallelErrorAwaitsSiblingsAndAborts(t *testing.T) {
	quietLogs(t)
	rec := &recorder{}
	boom := errors.New("boom")
	var slowDone atomic.Bool
	c := newContainer(t)

	require.NoError(t, c.Constant("failing", funcStarter(func(context.Context) error {
		return boom
	}), lifecycleTags("first")))
	require.NoError(t, c.Constant("slow", funcStarter(func(context.Context) error {
		time.Sleep(50 * time.Millisecond)
		slowDone.Store(true)
		return nil
	}), lifecycleTags("first")))
	require.NoError(t, c.Constant("next", &fullComponent{key: "next", rec: rec}, lifecycleTags("second")))

	n := NewNotifier(c, Config{Order: []string{"first", "second"}, Parallel: true})
	err := n.Start(context.Background())
	require.Error(t, err)

	assert.True(t, slowDone.Load(), "siblings must settle before the error surfaces")
	assert.ErrorIs(t, err, boom)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "failing", invErr.Key)
	assert.Equal(t, "first", invErr.Group)
	assert.Equal(t, EventStart, invErr.Event)

	// preStart reached the second group, start and postStart did not
	assert.Equal(t, []string{"next.preStart"}, rec.Calls())
	assert.Equal(t, StateFailed, n.State())
}

func TestNotifier_SequentialErrorStopsRemainingMembers(t *testing.T) {
	quietLogs(t)
	rec := &recorder{}
	c := newContainer(t)

	require.NoError(t, c.Constant("a", &fullComponent{key: "a", rec: rec, fail: map[Event]error{
		EventPreStop: errors.New("cannot drain"),
	}}, lifecycleTags("")))
	require.NoError(t, c.Constant("b", &fullComponent{key: "b", rec: rec}, lifecycleTags("")))

	n := NewNotifier(c, DefaultConfig())
	err := n.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot drain")
	assert.Equal(t, []string{"a.preStop"}, rec.Calls())
	assert.Equal(t, StateFailed, n.State())
}

func TestNotifier_ResolutionFailure(t *testing.T) {
	quietLogs(t)
	rec := &recorder{}
	c := newContainer(t)

	require.NoError(t, c.Singleton("broken", func(context.Context) (any, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, lifecycleTags("db")))
	require.NoError(t, c.Constant("srv", &fullComponent{key: "srv", rec: rec}, lifecycleTags("server")))

	n := NewNotifier(c, Config{Order: []string{"db", "server"}})
	err := n.Start(context.Background())

	var resErr *registry.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "broken", resErr.Key)
	assert.Empty(t, rec.Calls())
	assert.Equal(t, StateFailed, n.State())
}

type stubSource struct {
	handles []registry.Handle
	err     error
}

func (s stubSource) FindByPredicate(registry.Predicate) []registry.Handle { return s.handles }

func (s stubSource) Resolve(context.Context, registry.Handle) (any, error) { return nil, s.err }

type stubHandle string

func (h stubHandle) Key() string         { return string(h) }
func (h stubHandle) Kind() registry.Kind { return registry.KindSingleton }
func (h stubHandle) Tags() registry.Tags { return registry.Tags{registry.TagLifecycle: ""} }

func TestNotifier_WrapsForeignResolverErrors(t *testing.T) {
	quietLogs(t)
	cause := errors.New("not found")
	n := NewNotifier(stubSource{handles: []registry.Handle{stubHandle("x")}, err: cause}, DefaultConfig())

	err := n.Start(context.Background())
	var resErr *registry.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "x", resErr.Key)
	assert.ErrorIs(t, err, cause)
}

func TestNotifier_ConfigIsCopied(t *testing.T) {
	order := []string{"a", "b"}
	n := NewNotifier(newContainer(t), Config{Order: order, Parallel: true})
	order[0] = "z"

	cfg := n.Config()
	assert.Equal(t, []string{"a", "b"}, cfg.Order)
	assert.True(t, cfg.Parallel)

	cfg.Order[1] = "y"
	assert.Equal(t, []string{"a", "b"}, n.Config().Order)

	n.SetConfig(Config{Order: []string{"c"}})
	assert.Equal(t, Config{Order: []string{"c"}}, n.Config())
}

func TestNotifier_Plan(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Constant("api", struct{}{}, lifecycleTags("server")))
	require.NoError(t, c.Constant("pg", struct{}{}, lifecycleTags("db")))
	require.NoError(t, c.Constant("redis", struct{}{}, lifecycleTags("db")))

	n := NewNotifier(c, Config{Order: []string{"db"}, Parallel: true})
	plan := n.Plan()

	assert.Equal(t, "idle", plan.State)
	assert.True(t, plan.Parallel)
	assert.Equal(t, []PlanGroup{
		{Name: "db", Members: []string{"pg", "redis"}},
		{Name: "server", Members: []string{"api"}},
	}, plan.Start)
	assert.Equal(t, []PlanGroup{
		{Name: "server", Members: []string{"api"}},
		{Name: "db", Members: []string{"pg", "redis"}},
	}, plan.Stop)
}

type recordingHook struct {
	mu       sync.Mutex
	computed []string
	notified []string
	failed   []string
}

func (h *recordingHook) GroupsComputed(_ context.Context, t Transition, groups []grouping.Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.computed = append(h.computed, fmt.Sprintf("%s:%v", t, grouping.Names(groups)))
}

func (h *recordingHook) GroupNotified(_ context.Context, event Event, group grouping.Group, invoked int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notified = append(h.notified, fmt.Sprintf("%s:%s:%d", event, group.Name, invoked))
}

func (h *recordingHook) Failed(_ context.Context, event Event, group grouping.Group, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, fmt.Sprintf("%s:%s:%v", event, group.Name, errors.Unwrap(err)))
}

func TestNotifier_Hooks(t *testing.T) {
	quietLogs(t)
	rec := &recorder{}
	c := newContainer(t)
	require.NoError(t, c.Constant("a", &fullComponent{key: "a", rec: rec}, lifecycleTags("db")))
	require.NoError(t, c.Constant("b", &startOnly{key: "b", rec: rec}, lifecycleTags("db")))
	require.NoError(t, c.Constant("c", &fullComponent{key: "c", rec: rec, fail: map[Event]error{
		EventStart: errors.New("port in use"),
	}}, lifecycleTags("server")))

	hook := &recordingHook{}
	n := NewNotifier(c, Config{Order: []string{"db", "server"}}, WithHook(hook), WithHook(NopHook{}))
	require.Error(t, n.Start(context.Background()))

	assert.Equal(t, []string{"start:[db server]"}, hook.computed)
	assert.Equal(t, []string{
		"preStart:db:1",
		"preStart:server:1",
		"start:db:2",
	}, hook.notified)
	assert.Equal(t, []string{"start:server:port in use"}, hook.failed)
}

func TestNotifier_LogHookOutput(t *testing.T) {
	var buf syncBuffer
	t.Cleanup(logging.SetOutput(&buf))
	require.NoError(t, logging.Initialize("info"))
	t.Cleanup(func() { _ = logging.Initialize("info") })

	c := newContainer(t)
	require.NoError(t, c.Constant("a", struct{}{}, lifecycleTags("")))

	n := NewNotifier(c, DefaultConfig())
	require.NoError(t, n.Start(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Computed start order")
	assert.Contains(t, out, "<ungrouped>")
	assert.Contains(t, out, "Lifecycle start complete: 1 groups")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func TestNotifier_Spans(t *testing.T) {
	quietLogs(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := &recorder{}
	c := newContainer(t)
	require.NoError(t, c.Constant("a", &fullComponent{key: "a", rec: rec}, lifecycleTags("db")))
	require.NoError(t, c.Constant("b", &fullComponent{key: "b", rec: rec, fail: map[Event]error{
		EventPostStart: errors.New("not ready"),
	}}, lifecycleTags("server")))

	n := NewNotifier(c, Config{Order: []string{"db", "server"}}, WithTracer(tp.Tracer("test")))
	require.Error(t, n.Start(context.Background()))

	spans := sr.Ended()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{
		"lifecycle.preStart", "lifecycle.preStart",
		"lifecycle.start", "lifecycle.start",
		"lifecycle.postStart", "lifecycle.postStart",
		"lifecycle.start",
	}, names)

	root := spans[len(spans)-1]
	assert.Equal(t, codes.Error, root.Status().Code)
	assert.False(t, root.Parent().IsValid())
	for _, s := range spans[:len(spans)-1] {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
	}
	assert.Equal(t, codes.Error, spans[len(spans)-2].Status().Code)
}
