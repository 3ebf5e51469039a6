package savesvc

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"time"
)

// serviceMetrics holds the prometheus metrics of one service instance
type serviceMetrics struct {
	set *metrics.Set

	flushes        *metrics.Counter
	flushFailures  *metrics.Counter
	flushedRecords *metrics.Counter
	requeued       *metrics.Counter
	flushDuration  *metrics.Histogram
}

func newServiceMetrics(s *Service) *serviceMetrics {
	set := metrics.NewSet()
	m := &serviceMetrics{
		set:            set,
		flushes:        set.NewCounter("wbkv_flushes_total"),
		flushFailures:  set.NewCounter("wbkv_flush_failures_total"),
		flushedRecords: set.NewCounter("wbkv_flushed_records_total"),
		requeued:       set.NewCounter("wbkv_requeued_records_total"),
		flushDuration:  set.NewHistogram("wbkv_flush_duration_seconds"),
	}

	set.NewGauge("wbkv_queue_pending", func() float64 {
		return float64(s.queue.Len())
	})
	set.NewGauge("wbkv_cache_size", func() float64 {
		return float64(s.cache.Len())
	})
	set.NewGauge("wbkv_cache_hits", func() float64 {
		return float64(s.cache.Stats().Hits)
	})
	set.NewGauge("wbkv_cache_misses", func() float64 {
		return float64(s.cache.Stats().Misses)
	})
	set.NewGauge("wbkv_enabled", func() float64 {
		if s.Enabled() {
			return 1
		}
		return 0
	})

	return m
}

// observe counts the result of an operation
func (m *serviceMetrics) observe(op string, code RetCode) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`wbkv_operations_total{op=%q,code=%q}`, op, code.String())).Inc()
}

// observeFlush records one flush cycle
func (m *serviceMetrics) observeFlush(start time.Time, records, requeued int, err error) {
	m.flushes.Inc()
	m.flushDuration.UpdateDuration(start)
	if err != nil {
		m.flushFailures.Inc()
		m.requeued.Add(requeued)
		return
	}
	m.flushedRecords.Add(records)
}
