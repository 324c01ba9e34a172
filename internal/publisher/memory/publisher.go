// Package memory implements an in-memory publisher for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Message is a published payload captured by the in-memory publisher.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher records published messages in order.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
	nextID   int
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a synthetic sequential ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.messages = append(p.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return fmt.Sprintf("mem-%d", p.nextID), nil
}

// Messages returns a snapshot of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
