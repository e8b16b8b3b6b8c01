// Package service defines the backend-agnostic interface for task operations.
package service

import "context"

// Service defines the interface for the remote document store.
// All Firestore and SQLite calls go through this interface.
// Commands and the task store never import a backend SDK directly.
type Service interface {
	// ListTasks returns all tasks under users/{userID}/tasks,
	// ordered newest-created first.
	ListTasks(ctx context.Context, userID string) ([]Task, error)

	// CreateTask stores a new task and returns it with the
	// server-assigned id and creation time.
	CreateTask(ctx context.Context, userID string, task NewTask) (Task, error)

	// SetCompleted updates the completed flag of one task.
	SetCompleted(ctx context.Context, userID, taskID string, completed bool) error

	// DeleteTask deletes one task.
	DeleteTask(ctx context.Context, userID, taskID string) error

	// ListLegacyTasks returns documents in the flat legacy tasks
	// collection whose userId field equals userID.
	ListLegacyTasks(ctx context.Context, userID string) ([]Record, error)

	// CommitBatch applies every write in b for userID, all or nothing.
	CommitBatch(ctx context.Context, userID string, b Batch) error
}
