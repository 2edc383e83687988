package sink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"balanceScope/internal/model"
)

// Delivery sends flattened records to the downstream collector.
type Delivery interface {
	Send(ctx context.Context, records []model.OutputRecord) error
}

// Sink buffers output records and flushes them to the delivery collaborator
// when the buffer reaches maxSize or maxAge has elapsed since the last flush,
// whichever comes first. A failed flush keeps the buffer for the next
// trigger.
type Sink struct {
	delivery  Delivery
	maxSize   int
	maxAge    time.Duration
	logger    *zap.Logger
	buffer    []model.OutputRecord
	lastFlush time.Time
	now       func() time.Time
}

func New(delivery Delivery, maxSize int, maxAge time.Duration, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 500
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	s := &Sink{
		delivery: delivery,
		maxSize:  maxSize,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
	s.lastFlush = s.now()
	return s
}

// Add buffers records without flushing.
func (s *Sink) Add(records ...model.OutputRecord) {
	s.buffer = append(s.buffer, records...)
}

// Pending returns the number of buffered records.
func (s *Sink) Pending() int {
	return len(s.buffer)
}

// MaybeFlush flushes when a size or age trigger fires. Delivery failures are
// logged and retried on the next trigger, never surfaced to the batch.
func (s *Sink) MaybeFlush(ctx context.Context) {
	if len(s.buffer) == 0 {
		s.lastFlush = s.now()
		return
	}
	if len(s.buffer) < s.maxSize && s.now().Sub(s.lastFlush) < s.maxAge {
		return
	}
	if err := s.Flush(ctx); err != nil {
		s.logger.Error("sink flush failed, will retry", zap.Int("pending", len(s.buffer)), zap.Error(err))
	}
}

// Flush forces delivery of every buffered record. Called on shutdown so that
// buffered-but-unflushed records are not lost.
func (s *Sink) Flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		s.lastFlush = s.now()
		return nil
	}
	if err := s.delivery.Send(ctx, s.buffer); err != nil {
		return err
	}
	s.logger.Info("sink flushed", zap.Int("records", len(s.buffer)))
	s.buffer = s.buffer[:0]
	s.lastFlush = s.now()
	return nil
}
