package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskcal/pkg/fake"
	"github.com/harrisonrobin/taskcal/pkg/marker"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func nine(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

type fixedColors string

func (c fixedColors) ColorID(string) string { return string(c) }

func newReconciler(cal *fake.Calendar, tasks *fake.Tasks, opts ...Option) *Reconciler {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(cal, tasks, opts...)
}

func TestReconcile_CreateScenario(t *testing.T) {
	task := model.Task{ID: "t1", Title: "Weekly MEETING Sync", Due: day(2024, 6, 10)}
	cal := fake.NewCalendar()
	tasks := fake.NewTasks(task)

	res, err := newReconciler(cal, tasks, WithColors(fixedColors("3"))).Reconcile(context.Background(), task, "meeting")
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "evt-1", res.EventID)
	assert.Equal(t, nine(2024, 6, 10), res.Start)
	assert.Equal(t, time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), res.End)
	assert.True(t, res.MarkerWritten)
	assert.False(t, res.Placeholder)
	assert.Equal(t, "3", cal.Creates[0].ColorID)

	id, ok := marker.Extract(tasks.Task("t1").Notes)
	require.True(t, ok)
	assert.Equal(t, "evt-1", id)
}

func TestReconcile_CreateKeepsExistingNotes(t *testing.T) {
	task := model.Task{ID: "t1", Title: "meeting", Notes: "agenda:\n- budget"}
	tasks := fake.NewTasks(task)

	_, err := newReconciler(fake.NewCalendar(), tasks).Reconcile(context.Background(), task, "meeting")
	require.NoError(t, err)

	assert.Equal(t, "agenda:\n- budget\n[CAL_EVENT:evt-1]", tasks.Task("t1").Notes)
}

func TestReconcile_CreateWithoutDueDateUsesNow(t *testing.T) {
	task := model.Task{ID: "t1", Title: "meeting"}
	cal := fake.NewCalendar()

	res, err := newReconciler(cal, fake.NewTasks(task)).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, fixedNow, res.Start)
	assert.True(t, cal.Creates[0].Undated)
}

func TestReconcile_SkipIsIdempotent(t *testing.T) {
	cal := fake.NewCalendar()
	cal.Put(model.Event{ID: "e1", URL: "https://cal/e1", Start: nine(2024, 5, 1), End: nine(2024, 5, 1).Add(time.Hour)})
	task := model.Task{ID: "t1", Title: "meeting", Notes: "x\n[CAL_EVENT:e1]", Due: day(2024, 5, 1)}
	tasks := fake.NewTasks(task)
	r := newReconciler(cal, tasks)

	first, err := r.Reconcile(context.Background(), task, "meeting")
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), tasks.Task("t1"), "meeting")
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, first.Action)
	assert.Equal(t, first, second)
	assert.Equal(t, "e1", first.EventID)
	assert.Equal(t, "https://cal/e1", first.EventURL)
	assert.Equal(t, nine(2024, 5, 1), first.Start)
	assert.Zero(t, cal.Mutations())
	assert.Empty(t, tasks.Updates)
}

func TestReconcile_SkipUndatedTask(t *testing.T) {
	cal := fake.NewCalendar()
	cal.Put(model.Event{ID: "e1", Start: fixedNow.Add(-48 * time.Hour), Undated: true})
	task := model.Task{ID: "t1", Title: "meeting", Notes: "[CAL_EVENT:e1]"}

	res, err := newReconciler(cal, fake.NewTasks(task)).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, res.Action)
	assert.Zero(t, cal.Mutations())
}

func TestReconcile_RecreateWhenEventMissing(t *testing.T) {
	task := model.Task{ID: "t1", Title: "meeting", Notes: "keep me\n[CAL_EVENT:gone]", Due: day(2024, 6, 3)}
	cal := fake.NewCalendar()
	tasks := fake.NewTasks(task)

	res, err := newReconciler(cal, tasks).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionRecreated, res.Action)
	assert.Equal(t, "evt-1", res.EventID)
	assert.Equal(t, "keep me\n[CAL_EVENT:evt-1]", tasks.Task("t1").Notes)
	assert.Equal(t, 1, strings.Count(tasks.Task("t1").Notes, "CAL_EVENT"))
}

func TestReconcile_UpdateReplacesEvent(t *testing.T) {
	cal := fake.NewCalendar()
	cal.Put(model.Event{ID: "e1", Start: nine(2024, 5, 1)})
	task := model.Task{ID: "t1", Title: "meeting", Notes: "[CAL_EVENT:e1]", Due: day(2024, 5, 8)}
	tasks := fake.NewTasks(task)

	res, err := newReconciler(cal, tasks).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, []string{"e1"}, cal.Deletes)
	_, stillThere := cal.Event("e1")
	assert.False(t, stillThere)

	created, ok := cal.Event(res.EventID)
	require.True(t, ok)
	assert.Equal(t, nine(2024, 5, 8), created.Start)

	id, ok := marker.Extract(tasks.Task("t1").Notes)
	require.True(t, ok)
	assert.Equal(t, res.EventID, id)
	assert.NotEqual(t, "e1", id)
	assert.Contains(t, res.Note, "replaced event e1")
}

func TestReconcile_UpdateFallbackThenRecreate(t *testing.T) {
	cal := fake.NewCalendar()
	cal.Put(model.Event{ID: "e1", Start: nine(2024, 5, 1)})
	task := model.Task{ID: "t1", Title: "meeting", Notes: "[CAL_EVENT:e1]", Due: day(2024, 5, 8)}
	tasks := fake.NewTasks(task)
	r := newReconciler(cal, tasks, WithFallback(true))

	cal.CreateErr = syncerr.UpstreamError("calendar.create", "calendar unavailable", errors.New("503"))
	res, err := r.Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, res.Action)
	assert.True(t, res.Placeholder)
	assert.Equal(t, []string{"e1"}, cal.Deletes)
	assert.Empty(t, tasks.Updates)
	assert.Equal(t, "[CAL_EVENT:e1]", tasks.Task("t1").Notes)

	cal.CreateErr = nil
	res, err = r.Reconcile(context.Background(), tasks.Task("t1"), "")
	require.NoError(t, err)

	assert.Equal(t, ActionRecreated, res.Action)
	assert.False(t, res.Placeholder)
	created, ok := cal.Event(res.EventID)
	require.True(t, ok)
	assert.Equal(t, nine(2024, 5, 8), created.Start)
	id, ok := marker.Extract(tasks.Task("t1").Notes)
	require.True(t, ok)
	assert.Equal(t, res.EventID, id)
}

func TestReconcile_UpdateWhenDueDateRemoved(t *testing.T) {
	cal := fake.NewCalendar()
	cal.Put(model.Event{ID: "e1", Start: nine(2024, 5, 1)})
	task := model.Task{ID: "t1", Title: "meeting", Notes: "[CAL_EVENT:e1]"}

	res, err := newReconciler(cal, fake.NewTasks(task)).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, res.Action)
	assert.True(t, cal.Creates[0].Undated)
}

func TestReconcile_DeleteFailureAbortsUpdate(t *testing.T) {
	cal := fake.NewCalendar()
	cal.Put(model.Event{ID: "e1", Start: nine(2024, 5, 1)})
	cal.DeleteErr["e1"] = syncerr.UpstreamError("calendar.delete", "calendar unavailable", errors.New("500"))
	task := model.Task{ID: "t1", Title: "meeting", Notes: "[CAL_EVENT:e1]", Due: day(2024, 5, 2)}
	tasks := fake.NewTasks(task)

	_, err := newReconciler(cal, tasks).Reconcile(context.Background(), task, "")

	require.Error(t, err)
	assert.True(t, syncerr.IsUpstream(err))
	assert.Empty(t, cal.Creates)
	assert.Empty(t, tasks.Updates)
}

func TestReconcile_LookupFailure(t *testing.T) {
	cal := fake.NewCalendar()
	cal.GetErr["e1"] = syncerr.UpstreamError("calendar.get", "calendar unavailable", nil)
	task := model.Task{ID: "t1", Notes: "[CAL_EVENT:e1]"}

	_, err := newReconciler(cal, fake.NewTasks(task)).Reconcile(context.Background(), task, "")

	require.Error(t, err)
	assert.True(t, syncerr.IsUpstream(err))
	assert.Empty(t, cal.Creates)
}

func TestReconcile_CreateFailureWithoutFallback(t *testing.T) {
	cal := fake.NewCalendar()
	cal.CreateErr = syncerr.ConfigError("calendar.create", "calendar not configured", nil)
	task := model.Task{ID: "t1", Title: "meeting"}
	tasks := fake.NewTasks(task)

	_, err := newReconciler(cal, tasks).Reconcile(context.Background(), task, "")

	require.Error(t, err)
	assert.True(t, syncerr.IsConfig(err))
	assert.Empty(t, tasks.Updates)
}

func TestReconcile_PlaceholderNeverWritesMarker(t *testing.T) {
	for _, createErr := range []error{
		syncerr.ConfigError("calendar.create", "calendar not configured", nil),
		syncerr.UpstreamError("calendar.create", "calendar unavailable", errors.New("503")),
	} {
		cal := fake.NewCalendar()
		cal.CreateErr = createErr
		task := model.Task{ID: "t1", Title: "meeting", Notes: "original", Due: day(2024, 6, 10)}
		tasks := fake.NewTasks(task)

		res, err := newReconciler(cal, tasks, WithFallback(true)).Reconcile(context.Background(), task, "")
		require.NoError(t, err)

		assert.Equal(t, ActionCreated, res.Action)
		assert.True(t, res.Placeholder)
		assert.True(t, model.IsPlaceholderID(res.EventID))
		assert.False(t, res.MarkerWritten)
		assert.Contains(t, res.Note, "placeholder")
		assert.Equal(t, nine(2024, 6, 10), res.Start)
		assert.Empty(t, tasks.Updates)
		assert.Equal(t, "original", tasks.Task("t1").Notes)
	}
}

func TestReconcile_FallbackIgnoresUnclassifiedErrors(t *testing.T) {
	cal := fake.NewCalendar()
	cal.CreateErr = errors.New("bug")
	task := model.Task{ID: "t1"}

	_, err := newReconciler(cal, fake.NewTasks(task), WithFallback(true)).Reconcile(context.Background(), task, "")

	assert.Error(t, err)
}

func TestReconcile_PlaceholderMarkerIsTreatedAsUnsynced(t *testing.T) {
	task := model.Task{ID: "t1", Title: "meeting", Notes: "n\n[CAL_EVENT:placeholder_01ABC]"}
	cal := fake.NewCalendar()
	tasks := fake.NewTasks(task)

	res, err := newReconciler(cal, tasks).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Empty(t, cal.Gets, "placeholder ids are never looked up")
	assert.Equal(t, "n\n[CAL_EVENT:evt-1]", tasks.Task("t1").Notes)
}

func TestReconcile_MarkerWriteFailureIsPartialSuccess(t *testing.T) {
	task := model.Task{ID: "t1", Title: "meeting"}
	cal := fake.NewCalendar()
	tasks := fake.NewTasks(task)
	tasks.UpdateErr["t1"] = syncerr.UpstreamError("tasks.update", "task source unavailable", nil)

	res, err := newReconciler(cal, tasks).Reconcile(context.Background(), task, "")
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "evt-1", res.EventID)
	assert.False(t, res.MarkerWritten)
	assert.Contains(t, res.Note, "marker write failed")
	assert.Equal(t, 1, cal.Len())
}

type recordingStore struct {
	marker.NotesStore
	inserts, replaces int
}

func (s *recordingStore) Insert(notes, id string) string {
	s.inserts++
	return s.NotesStore.Insert(notes, id)
}

func (s *recordingStore) Replace(notes, id string) string {
	s.replaces++
	return s.NotesStore.Replace(notes, id)
}

func TestReconcile_InsertVersusReplace(t *testing.T) {
	store := &recordingStore{}
	cal := fake.NewCalendar()
	fresh := model.Task{ID: "a", Title: "meeting"}
	stale := model.Task{ID: "b", Title: "meeting", Notes: "[CAL_EVENT:missing]"}
	r := newReconciler(cal, fake.NewTasks(fresh, stale), WithStore(store))

	_, err := r.Reconcile(context.Background(), fresh, "")
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), stale, "")
	require.NoError(t, err)

	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 1, store.replaces)
}

func TestErrorResult(t *testing.T) {
	err := syncerr.UpstreamError("calendar.get", "calendar unavailable", nil)
	res := ErrorResult(model.Task{ID: "t", Title: "x"}, err)

	assert.Equal(t, ActionError, res.Action)
	assert.Equal(t, "upstream_error", res.ErrorKind)
	assert.Equal(t, err.Error(), res.Error)
}

func TestResult_JSON(t *testing.T) {
	res := Result{Action: ActionRecreated, TaskID: "t", EventID: "e", Start: nine(2024, 1, 2)}

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"action":"recreated"`)
	assert.Contains(t, string(b), `"startTime":"2024-01-02T09:00:00Z"`)
	assert.NotContains(t, string(b), "endTime")

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ActionRecreated, back.Action)
}
