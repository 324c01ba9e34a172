// Package pubsub publishes run summaries to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Publisher sends messages through a Pub/Sub client.
type Publisher struct {
	client *pubsub.Client
}

// New creates a Pub/Sub-backed publisher.
func New(client *pubsub.Client) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	return &Publisher{client: client}, nil
}

// Publish sends payload to the named topic and blocks until the server
// acknowledges it, returning the server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	result := p.client.Topic(topic).Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return id, nil
}
