// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/lobby"
)

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Queue is a Redis list of JSON-encoded match results.
type Queue struct {
	rdb  *redis.Client
	name string
}

// NewQueue wraps the list called name.
func NewQueue(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

// Name is the Redis key of the list.
func (q *Queue) Name() string {
	return q.name
}

// Push appends result to the tail of the list.
func (q *Queue) Push(ctx context.Context, result lobby.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchResult: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop waits up to timeout for the head of the list. ok is false when the
// wait timed out.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (result lobby.MatchResult, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return result, false, nil
	}
	if err != nil {
		return result, false, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name, res[1] the payload
	if len(res) < 2 {
		return result, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &result); err != nil {
		return result, false, fmt.Errorf("invalid match record: %w", err)
	}
	return result, true, nil
}

// Publisher hands finished matches to a background worker that pushes them
// onto a Queue, so recording never blocks a lobby.
type Publisher struct {
	queue   *Queue
	logger  *logrus.Logger
	pending chan lobby.MatchResult
}

// NewPublisher buffers up to size unpublished results.
func NewPublisher(queue *Queue, logger *logrus.Logger, size int) *Publisher {
	if size < 1 {
		size = 1
	}
	return &Publisher{
		queue:   queue,
		logger:  logger,
		pending: make(chan lobby.MatchResult, size),
	}
}

// Record queues result for publishing. When the buffer is full the result is
// dropped and logged.
func (p *Publisher) Record(result lobby.MatchResult) {
	select {
	case p.pending <- result:
	default:
		p.logger.WithField("lobby", result.Code).Warn("publish buffer full, dropped match result")
	}
}

// drainTimeout bounds how long Run keeps publishing after ctx is cancelled.
const drainTimeout = 5 * time.Second

// Run publishes queued results until ctx is cancelled, then flushes whatever
// is still buffered before returning.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case result := <-p.pending:
			p.publish(ctx, result)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case result := <-p.pending:
			if ctx.Err() != nil {
				p.logger.Warnf("publish drain timed out, dropped %d match results", len(p.pending)+1)
				return
			}
			p.publish(ctx, result)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, result lobby.MatchResult) {
	pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.queue.Push(pushCtx, result); err != nil {
		p.logger.WithField("lobby", result.Code).Warnf("publish match result: %v", err)
		return
	}
	p.logger.WithField("lobby", result.Code).Debug("published match result")
}
