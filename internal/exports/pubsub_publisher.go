package exports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher announces finished export jobs on a Pub/Sub topic.
// Subscribers notify staff or kick off downstream delivery.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed completion publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("exports: pubsub topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishExportCompleted enqueues the completion message for the job.
func (p *PubSubPublisher) PublishExportCompleted(ctx context.Context, job Job) error {
	if p == nil || p.topic == nil {
		return errors.New("exports: publisher not initialised")
	}

	data, err := p.marshal(job)
	if err != nil {
		return fmt.Errorf("marshal export completion: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"jobId":  job.ID,
			"status": job.Status,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish export completion: %w", err)
	}
	return nil
}
