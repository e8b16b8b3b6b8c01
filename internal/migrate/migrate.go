// Package migrate moves tasks from the legacy flat collection into the
// per-user collection.
package migrate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"cloudtodo/internal/logging"
	"cloudtodo/internal/service"
)

// Result reports what a run did.
type Result struct {
	Migrated int
}

// Run copies every legacy document tagged with userID into
// users/{userID}/tasks, without the userId field, and deletes the source,
// as one atomic batch. With no legacy documents it does nothing, so a second
// run after a successful one is a no-op.
func Run(ctx context.Context, svc service.Service, userID string, log *logrus.Logger) (Result, error) {
	if log == nil {
		log = logging.Discard()
	}
	if userID == "" {
		return Result{}, service.ErrNotSignedIn
	}
	entry := log.WithField("user", userID)

	legacy, err := svc.ListLegacyTasks(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("query legacy tasks: %w", err)
	}
	if len(legacy) == 0 {
		entry.Debug("no legacy tasks to migrate")
		return Result{}, nil
	}
	entry.WithField("count", len(legacy)).Info("migrating legacy tasks")

	batch := service.Batch{
		Creates:       make([]service.Record, 0, len(legacy)),
		LegacyDeletes: make([]string, 0, len(legacy)),
	}
	for _, rec := range legacy {
		batch.LegacyDeletes = append(batch.LegacyDeletes, rec.ID)
		rec.ID = ""
		rec.UserID = ""
		batch.Creates = append(batch.Creates, rec)
	}

	if err := svc.CommitBatch(ctx, userID, batch); err != nil {
		return Result{}, fmt.Errorf("commit migration: %w", err)
	}
	entry.WithField("count", len(legacy)).Info("legacy tasks migrated")
	return Result{Migrated: len(legacy)}, nil
}
