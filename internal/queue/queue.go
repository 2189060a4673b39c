package queue

import (
	"context"

	"github.com/vmelnikov/notiflow/internal/domain"
)

// Publisher publishes messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg JobMessage) error
	PublishDeadLetter(ctx context.Context, queue string, msg DeadLetterMessage) error
	Close() error
}

// MessageHandler handles a consumed job message.
type MessageHandler func(ctx context.Context, msg JobMessage) error

// Consumer consumes job messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// Pinger reports broker reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PriorityValue maps domain priority to a broker message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityHigh:
		return 3
	case domain.PriorityNormal:
		return 2
	default:
		return 1
	}
}
