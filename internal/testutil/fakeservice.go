// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloudtodo/internal/service"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = service.Errorf(service.KindNotFound, "not found")

// ErrPermission is a permission denial suitable for error injection.
var ErrPermission = &service.Error{Kind: service.KindPermission, Message: "Missing or insufficient permissions."}

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu     sync.RWMutex
	tasks  map[string][]service.Record // userID -> records
	legacy []service.Record
	seq    int
	clock  time.Time

	// CommitCalls counts successful CommitBatch calls.
	CommitCalls int

	// Error injection for testing
	ListTasksErr       error
	CreateTaskErr      error
	SetCompletedErr    error
	DeleteTaskErr      error
	ListLegacyTasksErr error
	CommitBatchErr     error
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		tasks: make(map[string][]service.Record),
		clock: time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing creation time. Caller holds mu.
func (f *FakeService) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// nextID returns a new document id. Caller holds mu.
func (f *FakeService) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

// AddTask seeds a task for userID and returns its id.
func (f *FakeService) AddTask(userID, title string, completed bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	rec := service.Record{
		ID:        f.nextID("task"),
		Title:     title,
		Completed: completed,
		Category:  service.DefaultCategory,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.tasks[userID] = append(f.tasks[userID], rec)
	return rec.ID
}

// AddLegacyTask seeds a document in the legacy flat collection.
func (f *FakeService) AddLegacyTask(userID, title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	rec := service.Record{
		ID:        f.nextID("legacy"),
		Title:     title,
		UserID:    userID,
		Category:  "生活",
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.legacy = append(f.legacy, rec)
	return rec.ID
}

// Records returns a copy of the stored records for userID.
func (f *FakeService) Records(userID string) []service.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Record, len(f.tasks[userID]))
	copy(out, f.tasks[userID])
	return out
}

// LegacyCount returns the number of legacy documents for userID.
func (f *FakeService) LegacyCount(userID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, r := range f.legacy {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, userID string) ([]service.Task, error) {
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	recs := make([]service.Record, len(f.tasks[userID]))
	copy(recs, f.tasks[userID])
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	out := make([]service.Task, len(recs))
	for i, r := range recs {
		out[i] = r.ToTask()
	}
	return out, nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, userID string, task service.NewTask) (service.Task, error) {
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := service.RecordFrom(task)
	rec.ID = f.nextID("task")
	rec.CreatedAt = f.tick()
	rec.UpdatedAt = rec.CreatedAt
	f.tasks[userID] = append(f.tasks[userID], rec)
	return rec.ToTask(), nil
}

// SetCompleted implements service.Service.
func (f *FakeService) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	if f.SetCompletedErr != nil {
		return f.SetCompletedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, r := range f.tasks[userID] {
		if r.ID == taskID {
			f.tasks[userID][i].Completed = completed
			f.tasks[userID][i].UpdatedAt = f.tick()
			return nil
		}
	}
	return ErrNotFound
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	recs := f.tasks[userID]
	for i, r := range recs {
		if r.ID == taskID {
			f.tasks[userID] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ListLegacyTasks implements service.Service.
func (f *FakeService) ListLegacyTasks(ctx context.Context, userID string) ([]service.Record, error) {
	if f.ListLegacyTasksErr != nil {
		return nil, f.ListLegacyTasksErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []service.Record
	for _, r := range f.legacy {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// CommitBatch implements service.Service. Nothing is applied when
// CommitBatchErr is set or a delete addresses a missing document.
func (f *FakeService) CommitBatch(ctx context.Context, userID string, b service.Batch) error {
	if f.CommitBatchErr != nil {
		return f.CommitBatchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	remove := make(map[string]bool, len(b.LegacyDeletes))
	for _, id := range b.LegacyDeletes {
		remove[id] = true
	}
	kept := make([]service.Record, 0, len(f.legacy))
	for _, r := range f.legacy {
		if remove[r.ID] {
			delete(remove, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	if len(remove) > 0 {
		return ErrNotFound
	}

	for _, rec := range b.Creates {
		rec.ID = f.nextID("task")
		rec.UserID = ""
		f.tasks[userID] = append(f.tasks[userID], rec)
	}
	f.legacy = kept
	f.CommitCalls++
	return nil
}
