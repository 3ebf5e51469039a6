package savesvc

import (
	"context"
	"fmt"
	"time"
)

// Flush synchronously writes all pending values to the store as one batch.
// On failure the batch stays queued for the next cycle and the error is returned.
func (s *Service) Flush(ctx context.Context) error {
	s.life.RLock()
	if !s.enabled || s.closed {
		s.life.RUnlock()
		return ErrOffline
	}
	s.calls.Add(1) // Close waits for it before the final flush
	s.life.RUnlock()
	defer s.calls.Done()

	return s.flush(ctx)
}

// flush runs one flush cycle: drain the queue, upsert the batch, requeue on failure.
// Lock order is flushMu, queue, deletes.
func (s *Service) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	// keys with a running delete are written once their row is gone
	records := s.queue.DrainExcept(s.deletes.running)
	if len(records) == 0 {
		s.queue.Complete(true)
		return nil
	}

	start := time.Now()
	err := s.store.UpsertBatch(ctx, records)
	requeued := s.queue.Complete(err == nil)

	s.metrics.observeFlush(start, len(records), requeued, err)
	s.recordFlush(start, err)

	if err != nil {
		Logger.Errorf("flush of %d records failed, %d requeued: %v", len(records), requeued, err)
		return fmt.Errorf("flush %d records: %w", len(records), err)
	}

	Logger.Debugf("flushed %d records in %s", len(records), time.Since(start))
	return nil
}

func (s *Service) recordFlush(at time.Time, err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.lastFlush = at
	s.lastFlushOk = err == nil
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

// flushLoop runs a flush cycle every interval until the service is closed
// WARNING: this method should never be called directly! It is started by NewSaveService.
func (s *Service) flushLoop(interval time.Duration) {
	defer s.flusher.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := s.flushContext()
			_ = s.flush(ctx) // failures are logged and retried next cycle
			cancel()
		}
	}
}

func (s *Service) flushContext() (context.Context, context.CancelFunc) {
	if s.conf.FlushTimeout > 0 {
		return context.WithTimeout(context.Background(), s.conf.FlushTimeout)
	}
	return context.WithCancel(context.Background())
}
