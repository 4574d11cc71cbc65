package queue

import (
	"context"
	"fmt"

	"github.com/shizoid/shizoid/internal/nats"
)

// JetStreamPublisher publishes jobs to the chats stream.
type JetStreamPublisher struct {
	client *nats.Client
}

// NewPublisher creates a publisher over the given nats client.
func NewPublisher(client *nats.Client) *JetStreamPublisher {
	return &JetStreamPublisher{client: client}
}

// PublishMetadataSync enqueues a metadata snapshot on the update lane.
func (p *JetStreamPublisher) PublishMetadataSync(ctx context.Context, job MetadataSyncJob) error {
	if err := p.client.Publish(ctx, SubjectMetadataSync, job); err != nil {
		return fmt.Errorf("enqueue metadata sync: %w", err)
	}
	return nil
}

// PublishParticipantLink enqueues a participant link job.
func (p *JetStreamPublisher) PublishParticipantLink(ctx context.Context, job ParticipantLinkJob) error {
	if err := p.client.Publish(ctx, SubjectParticipantLink, job); err != nil {
		return fmt.Errorf("enqueue participant link: %w", err)
	}
	return nil
}

// PublishDeletion enqueues a chat deletion on the delete lane.
func (p *JetStreamPublisher) PublishDeletion(ctx context.Context, job DeletionJob) error {
	if err := p.client.Publish(ctx, SubjectDeletion, job); err != nil {
		return fmt.Errorf("enqueue deletion: %w", err)
	}
	return nil
}
