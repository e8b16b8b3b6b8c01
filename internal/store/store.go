// Package store keeps the signed-in user's task list in memory and in sync
// with the remote document store.
//
// Remote writes are confirmed before they are applied locally. Every local
// update is derived from the latest list at the time it is applied, never
// from a snapshot taken before the remote call, and operations on the same
// task id run one at a time.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"cloudtodo/internal/logging"
	"cloudtodo/internal/migrate"
	"cloudtodo/internal/service"
)

// PermissionMessage is shown when the remote service denies reading tasks.
const PermissionMessage = "權限錯誤：您沒有足夠的權限讀取任務。可能需要重新登錄或等待 Firestore 規則生效（大約 1 分鐘）。"

// Identity supplies the signed-in user. *auth.Session implements it.
type Identity interface {
	UserID() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithoutMigration disables the legacy migration Load runs when the
// user's collection is empty.
func WithoutMigration() Option {
	return func(s *Store) { s.migrate = false }
}

// Store is the in-memory task list of the signed-in user.
type Store struct {
	svc     service.Service
	id      Identity
	log     *logrus.Logger
	migrate bool
	ids     idLocks

	mu      sync.Mutex
	tasks   []service.Task
	loading bool
	errMsg  string

	subMu   sync.Mutex
	subs    map[int]func([]service.Task)
	nextSub int
}

// New returns an empty store bound to svc and the user reported by id.
func New(svc service.Service, id Identity, opts ...Option) *Store {
	s := &Store{
		svc:     svc,
		id:      id,
		log:     logging.Discard(),
		migrate: true,
		subs:    make(map[int]func([]service.Task)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tasks returns the current list, newest first. The slice is not shared
// with the store.
func (s *Store) Tasks() []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.tasks)
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ErrorMessage returns the message of the last failed Load, or "".
func (s *Store) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ClearError dismisses the last error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}

// Subscribe registers fn to receive the list after every change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func([]service.Task)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	snapshot := s.Tasks()
	s.subMu.Lock()
	fns := make([]func([]service.Task), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(clone(snapshot))
	}
}

// update applies fn to the latest list under the lock and notifies.
func (s *Store) update(fn func([]service.Task) []service.Task) {
	s.mu.Lock()
	s.tasks = fn(s.tasks)
	s.mu.Unlock()
	s.notify()
}

// Load replaces the list with the user's tasks, newest first.
// When the user has no tasks it first migrates legacy documents; a failed
// migration is logged and does not fail the load.
// Failures are classified as KindPermission or KindUnknown and recorded in
// ErrorMessage.
func (s *Store) Load(ctx context.Context) error {
	uid := s.id.UserID()
	if uid == "" {
		s.update(func([]service.Task) []service.Task { return nil })
		return service.ErrNotSignedIn
	}
	entry := s.log.WithField("user", uid)

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	tasks, err := s.svc.ListTasks(ctx, uid)
	if err == nil && len(tasks) == 0 && s.migrate {
		res, merr := migrate.Run(ctx, s.svc, uid, s.log)
		if merr != nil {
			entry.WithError(merr).Warn("task migration failed")
		} else if res.Migrated > 0 {
			tasks, err = s.svc.ListTasks(ctx, uid)
		}
	}
	if err != nil {
		entry.WithError(err).Error("failed to load tasks")
		classified := classifyLoad(err)
		s.mu.Lock()
		s.errMsg = loadMessage(classified)
		s.mu.Unlock()
		return classified
	}

	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.update(func([]service.Task) []service.Task { return tasks })
	entry.WithField("count", len(tasks)).Debug("tasks loaded")
	return nil
}

func classifyLoad(err error) error {
	if service.IsPermission(err) || strings.Contains(strings.ToLower(err.Error()), "permission") {
		return &service.Error{Kind: service.KindPermission, Message: PermissionMessage, Err: err}
	}
	return &service.Error{Kind: service.KindUnknown, Message: "加載任務失敗", Err: err}
}

func loadMessage(err error) string {
	if service.IsPermission(err) {
		return PermissionMessage
	}
	return err.Error()
}

// Add creates a task and reports whether it succeeded. It fails without
// touching the list when text is blank, no user is signed in, or the remote
// write fails.
func (s *Store) Add(ctx context.Context, text, startDate, dueDate, category string) bool {
	_, err := s.AddTask(ctx, text, startDate, dueDate, category)
	return err == nil
}

// AddTask is Add returning the created task or the failure.
func (s *Store) AddTask(ctx context.Context, text, startDate, dueDate, category string) (service.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return service.Task{}, service.Errorf(service.KindValidation, "task text required")
	}
	uid := s.id.UserID()
	if uid == "" {
		return service.Task{}, service.ErrNotSignedIn
	}
	if category == "" {
		category = service.DefaultCategory
	}

	task, err := s.svc.CreateTask(ctx, uid, service.NewTask{
		Text:      text,
		StartDate: startDate,
		DueDate:   dueDate,
		Category:  category,
	})
	if err != nil {
		s.log.WithError(err).WithField("user", uid).Error("failed to add task")
		return service.Task{}, fmt.Errorf("add task: %w", err)
	}

	s.update(func(cur []service.Task) []service.Task {
		next := make([]service.Task, 0, len(cur)+1)
		next = append(next, task)
		return append(next, cur...)
	})
	s.log.WithFields(logrus.Fields{"user": uid, "task": task.ID}).Info("task added")
	return task, nil
}

// ToggleComplete flips the completed flag of the task with id and reports
// whether it changed. It is a no-op when no user is signed in or id is not
// in the list.
func (s *Store) ToggleComplete(ctx context.Context, id string) bool {
	_, err := s.ToggleTask(ctx, id)
	return err == nil
}

// ToggleTask is ToggleComplete returning the updated task or the failure.
func (s *Store) ToggleTask(ctx context.Context, id string) (service.Task, error) {
	uid := s.id.UserID()
	if uid == "" {
		return service.Task{}, service.ErrNotSignedIn
	}
	unlock := s.ids.lock(id)
	defer unlock()

	cur, ok := s.find(id)
	if !ok {
		return service.Task{}, service.Errorf(service.KindNotFound, "task not found: %s", id)
	}
	next := !cur.Completed
	if err := s.svc.SetCompleted(ctx, uid, id, next); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user": uid, "task": id}).Error("failed to update task")
		return service.Task{}, fmt.Errorf("update task: %w", err)
	}

	var updated service.Task
	s.update(func(list []service.Task) []service.Task {
		out := clone(list)
		for i := range out {
			if out[i].ID == id {
				out[i].Completed = next
				updated = out[i]
			}
		}
		return out
	})
	return updated, nil
}

// Remove deletes the task with id remotely, then from the list, and reports
// whether it succeeded. It is a no-op when no user is signed in.
func (s *Store) Remove(ctx context.Context, id string) bool {
	return s.RemoveTask(ctx, id) == nil
}

// RemoveTask is Remove returning the failure.
func (s *Store) RemoveTask(ctx context.Context, id string) error {
	uid := s.id.UserID()
	if uid == "" {
		return service.ErrNotSignedIn
	}
	unlock := s.ids.lock(id)
	defer unlock()

	if err := s.svc.DeleteTask(ctx, uid, id); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user": uid, "task": id}).Error("failed to delete task")
		return fmt.Errorf("delete task: %w", err)
	}
	s.update(func(list []service.Task) []service.Task {
		out := make([]service.Task, 0, len(list))
		for _, t := range list {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	})
	s.log.WithFields(logrus.Fields{"user": uid, "task": id}).Info("task deleted")
	return nil
}

func (s *Store) find(id string) (service.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

func clone(tasks []service.Task) []service.Task {
	if tasks == nil {
		return nil
	}
	out := make([]service.Task, len(tasks))
	copy(out, tasks)
	return out
}
