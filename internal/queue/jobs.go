// Package queue defines the job payloads and lanes of the asynchronous
// worker pipeline. Delivery is at-least-once: every consumer must tolerate
// duplicates and missing targets.
package queue

import "github.com/google/uuid"

// Stream and subject names. Update and delete jobs get independent durable
// consumers so slow deletions never starve metadata updates.
const (
	StreamName = "CHATS"

	SubjectMetadataSync    = "chats.update"
	SubjectParticipantLink = "chats.participant"
	SubjectDeletion        = "chats.delete"

	ConsumerUpdater   = "chat_updater"
	ConsumerDestroyer = "chat_destroyer"
	ConsumerLinker    = "participant_linker"
)

// Subjects lists every subject bound to the stream.
var Subjects = []string{SubjectMetadataSync, SubjectParticipantLink, SubjectDeletion}

// MetadataSyncJob carries a metadata snapshot to apply to a chat out of band.
// Kind is the raw declared type from the message source; it is re-mapped on
// apply. ID is the internal chat id.
type MetadataSyncJob struct {
	TaskID uuid.UUID `json:"task_id"`

	ID        int64   `json:"id"`
	Title     *string `json:"title"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
	Kind      string  `json:"kind"`
}

// ParticipantLinkJob records that a user was seen in a chat, and optionally
// that another member left. Ids are external ids.
type ParticipantLinkJob struct {
	TaskID uuid.UUID `json:"task_id"`

	ChatID int64  `json:"chat_id"`
	UserID int64  `json:"user_id"`
	LeftID *int64 `json:"left_id,omitempty"`
}

// DeletionJob requests destruction of a chat by internal id.
type DeletionJob struct {
	TaskID uuid.UUID `json:"task_id"`

	ID int64 `json:"id"`
}
