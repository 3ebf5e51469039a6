package savesvc

import (
	"context"
	"errors"
	"github.com/ValentinKolb/wbKV/lib/cache"
	"github.com/ValentinKolb/wbKV/lib/payload"
	"github.com/ValentinKolb/wbKV/lib/queue"
	"github.com/ValentinKolb/wbKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/pool"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"
)

var Logger = logger.GetLogger("savesvc")

// ErrOffline is returned by Flush if the service is disabled or closed
var ErrOffline = errors.New("save service is offline")

// Service is the write-behind save service. Create it with NewSaveService and release
// it with Close. All methods are safe for concurrent use.
type Service struct {
	conf Config

	store   store.IStore // nil if the service is offline
	cache   cache.ICache[string]
	queue   *queue.WriteBehind
	deletes *deleteTracker

	// async operations run on the pool, at most cap(slots) of them touch the store
	pool  *pool.Pool
	slots chan struct{}

	// lifecycle, held shared only while an operation is validated and submitted
	life    sync.RWMutex
	enabled bool // immutable after construction
	closed  bool
	calls   sync.WaitGroup // running Flush calls

	// flush cycles hold this exclusively, store deletes shared
	flushMu sync.RWMutex

	// flusher goroutine
	stop    chan struct{}
	flusher sync.WaitGroup

	metrics *serviceMetrics

	statsMu     sync.Mutex
	lastFlush   time.Time
	lastFlushOk bool
	lastErr     string
}

// Stats is a point in time summary of the service state
type Stats struct {
	Enabled        bool        `json:"enabled"`
	Closed         bool        `json:"closed"`
	Pending        int         `json:"pending"`
	InFlight       int         `json:"in_flight"`
	Cache          cache.Stats `json:"cache"`
	Flushes        uint64      `json:"flushes"`
	FlushFailures  uint64      `json:"flush_failures"`
	FlushedRecords uint64      `json:"flushed_records"`
	LastFlush      time.Time   `json:"last_flush,omitempty"`
	LastFlushOk    bool        `json:"last_flush_ok"`
	LastFlushError string      `json:"last_flush_error,omitempty"`
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewSaveService creates a new save service. It never fails: if the service is not
// enabled in the configuration or the store cannot be opened, the returned service is
// permanently offline and every operation returns RetCOffline.
func NewSaveService(conf Config, factory store.Factory) *Service {
	s := &Service{
		conf:    conf,
		queue:   queue.New(),
		deletes: newDeleteTracker(),
		stop:    make(chan struct{}),
	}

	if !conf.Enabled {
		Logger.Infof("save service is disabled")
		s.offline()
		return s
	}
	if factory == nil {
		Logger.Errorf("save service has no store, running offline")
		s.offline()
		return s
	}

	st, err := factory()
	if err != nil {
		Logger.Errorf("failed to open store, running offline: %v", err)
		s.offline()
		return s
	}

	workers := conf.Workers
	if workers <= 0 {
		workers = defaultWorkers()
	}

	s.store = st
	s.enabled = true
	s.cache = cache.NewLRU[string](&cache.Options{
		MaxSize: conf.CacheSize,
		TTL:     conf.CacheTTL,
		Clock:   conf.Clock,
	})
	s.pool = pool.New()
	s.slots = make(chan struct{}, workers)
	s.metrics = newServiceMetrics(s)

	if conf.FlushInterval > 0 {
		s.flusher.Add(1)
		go s.flushLoop(conf.FlushInterval)
	}

	Logger.Infof("save service started (cache size %d, ttl %s, flush interval %s, %d workers)",
		conf.CacheSize, conf.CacheTTL, conf.FlushInterval, workers)

	return s
}

// offline sets up the minimal state of a service that never accepts operations
func (s *Service) offline() {
	s.cache = cache.NewLRU[string](&cache.Options{MaxSize: 0})
	s.metrics = newServiceMetrics(s)
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Save stores the payload under the key. The payload is serialized immediately, the
// value is readable right away and persisted by the next flush cycle.
func (s *Service) Save(key string, p payload.Payload) (code RetCode) {
	defer func() { s.metrics.observe("save", code) }()

	s.life.RLock()
	defer s.life.RUnlock()

	if code, ok := s.precheckPayload(key, p); !ok {
		return code
	}

	data := p.Serialize()
	s.cache.Put(key, data)
	s.queue.Put(key, data)

	return RetCSuccess
}

// Load fills target with the value of the key. On RetCSuccess the target holds the value,
// on every other code the target is left untouched or partially decoded.
func (s *Service) Load(key string, target payload.Payload) *Pending {
	check := func() (RetCode, bool) { return s.precheckPayload(key, target) }
	return s.submit("load", check, func(ctx context.Context) RetCode {
		data, code := s.lookup(ctx, key)
		if code != RetCSuccess {
			return code
		}
		if err := target.Deserialize(data); err != nil {
			Logger.Errorf("failed to decode value of %q: %v", key, err)
			return RetCSQLError
		}
		return RetCSuccess
	})
}

// Exists checks whether a value for the key exists (cached, pending or stored)
func (s *Service) Exists(key string) *Pending {
	check := func() (RetCode, bool) { return s.precheck(key) }
	return s.submit("exists", check, func(ctx context.Context) RetCode {
		if _, ok := s.cache.Get(key); ok {
			return RetCExists
		}
		if _, ok := s.queue.Get(key); ok {
			return RetCExists
		}
		if s.deletes.running(key) {
			return RetCNotExists
		}

		found, err := s.store.Exists(ctx, key)
		if err != nil {
			Logger.Errorf("failed to check existence of %q: %v", key, err)
			return RetCSQLError
		}
		if found {
			return RetCExists
		}
		return RetCNotExists
	})
}

// Delete removes the value of the key from the cache, the pending writes and the store.
// The in-memory part happens before Delete returns, so a Save issued after Delete is
// never removed by it. Delete does not wait for the store or for running flushes.
func (s *Service) Delete(key string) *Pending {
	s.life.RLock()
	defer s.life.RUnlock()

	if code, ok := s.precheck(key); !ok {
		s.metrics.observe("delete", code)
		return completed(code)
	}

	// until end, flushes hold back new saves of the key and loads skip the store
	s.deletes.begin(key)
	s.cache.Invalidate(key)
	purged := s.queue.Remove(key)

	p := newPending()
	s.pool.Go(func() {
		defer s.deletes.end(key)
		s.acquire()
		defer s.release()

		// a flush that drained the key before Remove must commit first
		s.flushMu.RLock()
		existed, err := s.store.Delete(context.Background(), key)
		s.flushMu.RUnlock()

		code := RetCKeyNotFound
		switch {
		case err != nil:
			Logger.Errorf("failed to delete %q: %v", key, err)
			code = RetCSQLError
		case existed || purged:
			code = RetCSuccess
		}

		s.metrics.observe("delete", code)
		p.complete(code)
	})
	return p
}

// Enabled reports whether the service accepts operations
func (s *Service) Enabled() bool {
	s.life.RLock()
	defer s.life.RUnlock()
	return s.enabled && !s.closed
}

// Stats returns a summary of the current service state
func (s *Service) Stats() Stats {
	s.life.RLock()
	enabled, closed := s.enabled, s.closed
	s.life.RUnlock()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	return Stats{
		Enabled:        enabled,
		Closed:         closed,
		Pending:        s.queue.Len(),
		InFlight:       s.queue.InFlight(),
		Cache:          s.cache.Stats(),
		Flushes:        s.metrics.flushes.Get(),
		FlushFailures:  s.metrics.flushFailures.Get(),
		FlushedRecords: s.metrics.flushedRecords.Get(),
		LastFlush:      s.lastFlush,
		LastFlushOk:    s.lastFlushOk,
		LastFlushError: s.lastErr,
	}
}

// Metrics returns the prometheus metrics of this service
func (s *Service) Metrics() *metrics.Set {
	return s.metrics.set
}

// Close shuts the service down: new operations return RetCOffline, running operations
// are awaited, pending writes are flushed and the store is closed. Close is idempotent,
// the returned error is the error of the final flush or of closing the store.
func (s *Service) Close() error {
	s.life.Lock()
	if s.closed || !s.enabled {
		s.closed = true
		s.life.Unlock()
		s.cache.Close()
		return nil
	}
	s.closed = true
	s.life.Unlock()

	Logger.Infof("shutting down save service")

	// no new submissions are possible past this point
	close(s.stop)
	s.flusher.Wait()
	s.calls.Wait()
	s.pool.Wait()

	flushErr := s.flush(context.Background())
	if flushErr != nil {
		Logger.Errorf("final flush failed, %d pending writes are lost: %v", s.queue.Len(), flushErr)
	}

	s.cache.Close()
	closeErr := s.store.Close()
	if closeErr != nil {
		Logger.Errorf("failed to close store: %v", closeErr)
	}

	return errors.Join(flushErr, closeErr)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// submit validates the request with check and runs fn on the worker pool
func (s *Service) submit(op string, check func() (RetCode, bool), fn func(ctx context.Context) RetCode) *Pending {
	s.life.RLock()
	defer s.life.RUnlock()

	if code, ok := check(); !ok {
		s.metrics.observe(op, code)
		return completed(code)
	}

	p := newPending()
	s.pool.Go(func() {
		s.acquire()
		defer s.release()

		code := fn(context.Background())
		s.metrics.observe(op, code)
		p.complete(code)
	})
	return p
}

// acquire blocks until a worker slot is free, it is only called on pool goroutines
func (s *Service) acquire() {
	s.slots <- struct{}{}
}

func (s *Service) release() {
	<-s.slots
}

// precheck validates the lifecycle state and the key. The life lock must be held.
func (s *Service) precheck(key string) (RetCode, bool) {
	if !s.enabled || s.closed {
		return RetCOffline, false
	}
	if !ValidKey(key) {
		return RetCInvalidKey, false
	}
	return RetCSuccess, true
}

// precheckPayload is precheck plus a nil check of the payload
func (s *Service) precheckPayload(key string, p payload.Payload) (RetCode, bool) {
	if code, ok := s.precheck(key); !ok {
		return code, false
	}
	if isNil(p) {
		return RetCInvalidPayload, false
	}
	return RetCSuccess, true
}

// lookup finds the serialized value of a key in the cache, the pending writes or the store
func (s *Service) lookup(ctx context.Context, key string) (string, RetCode) {
	if data, ok := s.cache.Get(key); ok {
		return data, RetCSuccess
	}

	epoch := s.deletes.current()
	if data, ok := s.queue.Get(key); ok {
		s.fillCache(epoch, key, data)
		return data, RetCSuccess
	}
	if s.deletes.running(key) {
		return "", RetCKeyNotFound
	}

	data, found, err := s.store.Select(ctx, key)
	if err != nil {
		Logger.Errorf("failed to load %q: %v", key, err)
		return "", RetCSQLError
	}
	if !found {
		return "", RetCKeyNotFound
	}

	// a save that raced with the select wins
	if newer, ok := s.queue.Get(key); ok {
		data = newer
	}
	s.fillCache(epoch, key, data)
	return data, RetCSuccess
}

// fillCache caches a looked up value unless a delete started since epoch
func (s *Service) fillCache(epoch uint64, key, data string) {
	s.deletes.fill(epoch, key, func() { s.cache.Put(key, data) })
}

// isNil reports whether p is nil or a typed nil pointer
func isNil(p payload.Payload) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// ValidKey reports whether the key is usable (not empty and not only whitespace)
func ValidKey(key string) bool {
	return strings.TrimFunc(key, unicode.IsSpace) != ""
}
