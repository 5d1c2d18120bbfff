// Package historian drains finished matches from the Redis queue into a
// durable store.
package historian

import (
	"context"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/cache"
	"github.com/jason-s-yu/pvprelay/internal/lobby"
)

// Store persists a batch of results.
type Store interface {
	RecordMatches(ctx context.Context, results []lobby.MatchResult) error
}

// Options tune batching. Zero values take the defaults.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	// RetryDelay is the wait after a failed flush before the batch is
	// written again.
	RetryDelay time.Duration
}

// shutdownTimeout bounds the final flush and requeue.
const shutdownTimeout = 10 * time.Second

// Service pops results off a queue, accumulates them in a batch and flushes
// the batch when it is full or has waited FlushDelay.
type Service struct {
	queue  *cache.Queue
	store  Store
	logger *logrus.Logger
	opts   Options

	batch   []lobby.MatchResult
	oldest  time.Time
	retryAt time.Time
}

func New(queue *cache.Queue, store Store, logger *logrus.Logger, opts Options) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Service{
		queue:  queue,
		store:  store,
		logger: logger,
		opts:   opts,
		batch:  make([]lobby.MatchResult, 0, opts.BatchSize),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
// A batch the store rejects is kept and retried after RetryDelay; popping
// pauses while a full batch is waiting. Anything still unwritten at shutdown
// goes back onto the queue.
func (s *Service) Run(ctx context.Context) {
	s.logger.WithField("queue", s.queue.Name()).Info("historian started")
	defer s.logger.Info("historian stopped")

	for {
		if ctx.Err() != nil {
			s.shutdown()
			return
		}

		if len(s.batch) >= s.opts.BatchSize && time.Now().Before(s.retryAt) {
			select {
			case <-ctx.Done():
			case <-time.After(time.Until(s.retryAt)):
			}
			continue
		}

		result, ok, err := s.queue.Pop(ctx, s.opts.PopTimeout)
		if err != nil && ctx.Err() == nil {
			s.logger.Errorf("pop match result: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.FlushDelay):
			}
		}
		if ok {
			if len(s.batch) == 0 {
				s.oldest = time.Now()
			}
			s.batch = append(s.batch, result)
		}

		if s.due() {
			s.flush(ctx)
		}
	}
}

func (s *Service) due() bool {
	if len(s.batch) == 0 || time.Now().Before(s.retryAt) {
		return false
	}
	return len(s.batch) >= s.opts.BatchSize || time.Since(s.oldest) >= s.opts.FlushDelay
}

func (s *Service) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	batch := slices.Clone(s.batch)

	if err := s.store.RecordMatches(ctx, batch); err != nil {
		s.retryAt = time.Now().Add(s.opts.RetryDelay)
		s.logger.Errorf("flush %d match results, retrying in %s: %v", len(batch), s.opts.RetryDelay, err)
		return err
	}
	s.batch = s.batch[:0]
	s.retryAt = time.Time{}
	s.logger.Infof("Flushed %d match results to DB.", len(batch))
	return nil
}

// shutdown makes a last flush attempt and pushes back whatever the store
// would not take.
func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.flush(ctx); err == nil {
		return
	}

	requeued := 0
	for _, result := range s.batch {
		if err := s.queue.Push(ctx, result); err != nil {
			s.logger.WithField("lobby", result.Code).Errorf("requeue match result: %v", err)
			continue
		}
		requeued++
	}
	s.batch = s.batch[:0]
	s.logger.Warnf("Requeued %d unflushed match results.", requeued)
}
