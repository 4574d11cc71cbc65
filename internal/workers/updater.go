// Package workers contains the queue-backed task handlers of the
// asynchronous pipeline. All handlers are idempotent: delivery is
// at-least-once, and a missing target is success, not failure.
package workers

import (
	"context"
	"encoding/json"

	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/queue"
)

// MetadataApplier applies a metadata snapshot to a chat.
type MetadataApplier interface {
	ApplyMetadata(ctx context.Context, job queue.MetadataSyncJob) error
}

// Updater consumes metadata-sync jobs from the update lane.
type Updater struct {
	identity MetadataApplier
	log      *logger.Logger
}

// NewUpdater creates an updater worker.
func NewUpdater(identity MetadataApplier, log *logger.Logger) *Updater {
	return &Updater{identity: identity, log: log}
}

// Handle processes a single metadata-sync message. Undecodable messages are
// acked and logged so a poison payload cannot wedge the lane; handler errors
// propagate to the queue's redelivery mechanism.
func (u *Updater) Handle(data []byte) error {
	var job queue.MetadataSyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		u.log.Error().Err(err).Msg("invalid metadata sync payload, skipping")
		return nil
	}

	u.log.Debug().
		Str("task", job.TaskID.String()).
		Int64("chat", job.ID).
		Msg("applying metadata snapshot")

	if err := u.identity.ApplyMetadata(context.Background(), job); err != nil {
		u.log.Error().Err(err).Str("task", job.TaskID.String()).Msg("metadata sync failed")
		return err
	}
	return nil
}
