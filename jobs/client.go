package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/classboard/classboard/internal/access"
)

// Client publishes tasks to one queue.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient returns a Client for queue, or QueueDefault when queue is empty.
func NewClient(redisOpts asynq.RedisClientOpt, queue string) (*Client, error) {
	if queue == "" {
		queue = QueueDefault
	}
	return &Client{client: asynq.NewClient(redisOpts), queue: queue}, nil
}

// EnqueueAudit queues event for persistence by the worker.
func (c *Client) EnqueueAudit(ctx context.Context, event access.AuditEvent) error {
	task, err := NewAuditRecordTask(event)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(auditRecordRetries)); err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
