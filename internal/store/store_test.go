package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudtodo/internal/service"
	"cloudtodo/internal/store"
	"cloudtodo/internal/testutil"
)

type fixedUser string

func (u fixedUser) UserID() string { return string(u) }

func newStore(t *testing.T, uid string) (*store.Store, *testutil.FakeService) {
	t.Helper()
	svc := testutil.NewFakeService()
	return store.New(svc, fixedUser(uid)), svc
}

func TestAdd_BlankTextFails(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\t\n"} {
		if s.Add(ctx, text, "", "", "") {
			t.Errorf("Add(%q) should fail", text)
		}
	}
	if len(s.Tasks()) != 0 {
		t.Error("list must be unchanged")
	}
	if len(svc.Records("u1")) != 0 {
		t.Error("no remote write expected")
	}
}

func TestAdd_PrependsNewTask(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	svc.AddTask("u1", "Existing", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	task, err := s.AddTask(ctx, "  Write report  ", "2024-05-01", "2024-05-03", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Text != "Write report" {
		t.Errorf("expected trimmed text, got %q", task.Text)
	}
	if task.Completed {
		t.Error("new task must not be completed")
	}
	if task.Category != service.DefaultCategory {
		t.Errorf("expected default category, got %q", task.Category)
	}

	tasks := s.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != task.ID {
		t.Errorf("new task should be first, got %q", tasks[0].Text)
	}
	if tasks[0].StartDate != "2024-05-01" || tasks[0].DueDate != "2024-05-03" {
		t.Errorf("unexpected dates %q %q", tasks[0].StartDate, tasks[0].DueDate)
	}
}

func TestAdd_RemoteFailureLeavesList(t *testing.T) {
	s, svc := newStore(t, "u1")
	svc.CreateTaskErr = errors.New("unavailable")

	if s.Add(context.Background(), "Task", "", "", "") {
		t.Fatal("expected failure")
	}
	if len(s.Tasks()) != 0 {
		t.Error("list must be unchanged")
	}
}

func TestAdd_RequiresUser(t *testing.T) {
	s, _ := newStore(t, "")
	_, err := s.AddTask(context.Background(), "Task", "", "", "")
	if !errors.Is(err, service.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	id := svc.AddTask("u1", "Task", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if !s.ToggleComplete(ctx, id) {
		t.Fatal("toggle failed")
	}
	if !s.Tasks()[0].Completed {
		t.Error("expected completed")
	}
	if !svc.Records("u1")[0].Completed {
		t.Error("expected remote write")
	}

	if !s.ToggleComplete(ctx, id) {
		t.Fatal("second toggle failed")
	}
	if s.Tasks()[0].Completed {
		t.Error("expected active after second toggle")
	}
}

func TestToggle_UnknownID(t *testing.T) {
	s, _ := newStore(t, "u1")
	_, err := s.ToggleTask(context.Background(), "missing")
	if !service.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestToggle_RemoteFailureLeavesList(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	id := svc.AddTask("u1", "Task", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	svc.SetCompletedErr = testutil.ErrPermission

	if s.ToggleComplete(ctx, id) {
		t.Fatal("expected failure")
	}
	if s.Tasks()[0].Completed {
		t.Error("list must be unchanged")
	}
}

func TestRemove(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	keep := svc.AddTask("u1", "Keep", false)
	drop := svc.AddTask("u1", "Drop", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if !s.Remove(ctx, drop) {
		t.Fatal("remove failed")
	}
	tasks := s.Tasks()
	if len(tasks) != 1 || tasks[0].ID != keep {
		t.Errorf("unexpected list %+v", tasks)
	}
	if len(svc.Records("u1")) != 1 {
		t.Error("expected remote delete")
	}
}

func TestRemove_RemoteFailureLeavesList(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	id := svc.AddTask("u1", "Task", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	svc.DeleteTaskErr = errors.New("unavailable")

	if s.Remove(ctx, id) {
		t.Fatal("expected failure")
	}
	if len(s.Tasks()) != 1 {
		t.Error("list must be unchanged")
	}
}

func TestLoad_NewestFirst(t *testing.T) {
	s, svc := newStore(t, "u1")
	svc.AddTask("u1", "First", false)
	svc.AddTask("u1", "Second", false)

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	tasks := s.Tasks()
	if len(tasks) != 2 || tasks[0].Text != "Second" || tasks[1].Text != "First" {
		t.Errorf("unexpected order %+v", tasks)
	}
	if s.Loading() {
		t.Error("loading should be false after Load")
	}
}

func TestLoad_PermissionDenied(t *testing.T) {
	s, svc := newStore(t, "u1")
	svc.ListTasksErr = testutil.ErrPermission

	err := s.Load(context.Background())
	if !service.IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if s.ErrorMessage() != store.PermissionMessage {
		t.Errorf("unexpected message %q", s.ErrorMessage())
	}
	s.ClearError()
	if s.ErrorMessage() != "" {
		t.Error("expected message cleared")
	}
}

func TestLoad_UnknownFailure(t *testing.T) {
	s, svc := newStore(t, "u1")
	svc.ListTasksErr = errors.New("deadline exceeded")

	err := s.Load(context.Background())
	if service.KindOf(err) != service.KindUnknown {
		t.Fatalf("expected unknown kind, got %v", service.KindOf(err))
	}
	if !strings.HasPrefix(s.ErrorMessage(), "加載任務失敗: ") {
		t.Errorf("unexpected message %q", s.ErrorMessage())
	}
	if !strings.Contains(s.ErrorMessage(), "deadline exceeded") {
		t.Errorf("message should carry the cause, got %q", s.ErrorMessage())
	}
}

func TestLoad_NoUserClearsList(t *testing.T) {
	s, _ := newStore(t, "")
	if err := s.Load(context.Background()); !errors.Is(err, service.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
	if len(s.Tasks()) != 0 {
		t.Error("expected empty list")
	}
}

func TestLoad_MigratesLegacyTasks(t *testing.T) {
	s, svc := newStore(t, "u1")
	svc.AddLegacyTask("u1", "Old")

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	tasks := s.Tasks()
	if len(tasks) != 1 || tasks[0].Text != "Old" {
		t.Errorf("expected migrated task, got %+v", tasks)
	}
	if svc.LegacyCount("u1") != 0 {
		t.Error("legacy document should be gone")
	}
}

func TestLoad_MigrationFailureDoesNotFail(t *testing.T) {
	s, svc := newStore(t, "u1")
	svc.AddLegacyTask("u1", "Old")
	svc.CommitBatchErr = errors.New("unavailable")

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("migration failure must not fail load: %v", err)
	}
	if len(s.Tasks()) != 0 {
		t.Error("expected empty list")
	}
}

func TestLoad_WithoutMigration(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddLegacyTask("u1", "Old")
	s := store.New(svc, fixedUser("u1"), store.WithoutMigration())

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if svc.LegacyCount("u1") != 1 {
		t.Error("legacy document should be untouched")
	}
}

func TestSubscribe(t *testing.T) {
	s, _ := newStore(t, "u1")
	ctx := context.Background()

	var got [][]service.Task
	unsubscribe := s.Subscribe(func(tasks []service.Task) {
		got = append(got, tasks)
	})
	s.Add(ctx, "One", "", "", "")
	unsubscribe()
	s.Add(ctx, "Two", "", "", "")

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if len(got[0]) != 1 || got[0][0].Text != "One" {
		t.Errorf("unexpected snapshot %+v", got[0])
	}
}

func TestTasks_ReturnsCopy(t *testing.T) {
	s, _ := newStore(t, "u1")
	s.Add(context.Background(), "One", "", "", "")

	tasks := s.Tasks()
	tasks[0].Text = "mutated"
	if s.Tasks()[0].Text != "One" {
		t.Error("store state must not be shared with callers")
	}
}

// Toggles and a removal racing on the same list must each apply to the
// latest state: no update may resurrect a removed task or revert another
// task's toggle.
func TestConcurrentUpdates(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	a := svc.AddTask("u1", "A", false)
	b := svc.AddTask("u1", "B", false)
	c := svc.AddTask("u1", "C", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.ToggleComplete(ctx, a) }()
	go func() { defer wg.Done(); s.ToggleComplete(ctx, b) }()
	go func() { defer wg.Done(); s.Remove(ctx, c) }()
	wg.Wait()

	tasks := s.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %+v", tasks)
	}
	for _, task := range tasks {
		if task.ID == c {
			t.Error("removed task came back")
		}
		if !task.Completed {
			t.Errorf("toggle of %s was lost", task.Text)
		}
	}
}

func TestConcurrentTogglesSameTask(t *testing.T) {
	s, svc := newStore(t, "u1")
	ctx := context.Background()
	id := svc.AddTask("u1", "A", false)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); s.ToggleComplete(ctx, id) }()
	}
	wg.Wait()

	if s.Tasks()[0].Completed {
		t.Error("an even number of toggles should leave the task active")
	}
	if s.Tasks()[0].Completed != svc.Records("u1")[0].Completed {
		t.Error("local and remote state diverged")
	}
}

func TestFilterTasks(t *testing.T) {
	tasks := []service.Task{
		{ID: "1", Completed: false},
		{ID: "2", Completed: true},
		{ID: "3", Completed: false},
	}
	active := store.FilterTasks(tasks, store.FilterActive)
	completed := store.FilterTasks(tasks, store.FilterCompleted)
	all := store.FilterTasks(tasks, store.FilterAll)

	if len(active)+len(completed) != len(all) {
		t.Errorf("active and completed must partition all: %d + %d != %d", len(active), len(completed), len(all))
	}
	if len(active) != 2 || active[0].ID != "1" || active[1].ID != "3" {
		t.Errorf("unexpected active %+v", active)
	}
	if len(completed) != 1 || completed[0].ID != "2" {
		t.Errorf("unexpected completed %+v", completed)
	}
}

func TestFilter_Match(t *testing.T) {
	open := service.Task{ID: "1"}
	done := service.Task{ID: "2", Completed: true}
	tests := []struct {
		filter store.Filter
		open   bool
		done   bool
	}{
		{store.FilterAll, true, true},
		{store.FilterActive, true, false},
		{store.FilterCompleted, false, true},
		{store.Filter("bogus"), false, false},
		{store.Filter(""), false, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(open); got != tt.open {
			t.Errorf("%q.Match(open) = %v, want %v", tt.filter, got, tt.open)
		}
		if got := tt.filter.Match(done); got != tt.done {
			t.Errorf("%q.Match(done) = %v, want %v", tt.filter, got, tt.done)
		}
	}
}

func TestFilterTasks_UnknownFilterMatchesNothing(t *testing.T) {
	tasks := []service.Task{{ID: "1"}, {ID: "2", Completed: true}}
	if got := store.FilterTasks(tasks, store.Filter("bogus")); len(got) != 0 {
		t.Errorf("expected no tasks, got %+v", got)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    store.Filter
		wantErr bool
	}{
		{"", store.FilterAll, false},
		{"all", store.FilterAll, false},
		{"Active", store.FilterActive, false},
		{"completed", store.FilterCompleted, false},
		{"done", "", true},
	}
	for _, tt := range tests {
		got, err := store.ParseFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	today := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.Local)
	tasks := []service.Task{
		{ID: "1", Completed: true, DueDate: "2024-05-01"},
		{ID: "2", DueDate: "2024-05-09"},
		{ID: "3", DueDate: "2024-05-12"},
		{ID: "4", DueDate: "2024-06-30"},
	}
	got := store.Summarize(tasks, today)
	want := store.Stats{Total: 4, Completed: 1, Active: 3, Overdue: 1, Upcoming: 1, Percent: 25}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}

	if empty := store.Summarize(nil, today); empty.Percent != 0 {
		t.Errorf("expected 0%% for empty list, got %d", empty.Percent)
	}
}
