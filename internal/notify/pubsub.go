package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSubConfig identifies the topic run events are published to.
type PubSubConfig struct {
	ProjectID string
	TopicID   string
}

// PubSub publishes run notifications as JSON events on a Pub/Sub topic,
// for downstream automation that reacts to new reports.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub creates a Pub/Sub notifier, failing fast if the topic does not
// exist. Authentication uses Application Default Credentials.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project id and topic id are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", cfg.TopicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	return &PubSub{client: client, topic: topic}, nil
}

// Notify publishes one event and waits for the server acknowledgment so a
// delivery failure is visible to the caller.
func (p *PubSub) Notify(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"subject":   subject,
		"body":      body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close stops the topic publisher and the underlying client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
