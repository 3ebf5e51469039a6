package savesvc

import (
	"bytes"
	"context"
	"errors"
	"github.com/ValentinKolb/wbKV/lib/payload"
	"github.com/ValentinKolb/wbKV/lib/store"
	"github.com/ValentinKolb/wbKV/lib/store/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func testConfig() Config {
	return Config{
		Enabled:   true,
		CacheSize: 100,
		Workers:   4,
		// flushes are triggered manually
		FlushInterval: 0,
	}
}

func newTestService(t *testing.T, fs *fakeStore, mutate func(*Config)) *Service {
	t.Helper()
	conf := testConfig()
	if mutate != nil {
		mutate(&conf)
	}
	svc := NewSaveService(conf, fs.factory())
	require.True(t, svc.Enabled())
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func await(t *testing.T, p *Pending) RetCode {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := p.Await(ctx)
	require.NoError(t, err)
	return code
}

func load(t *testing.T, svc *Service, key string) (string, RetCode) {
	t.Helper()
	var out payload.Text
	code := await(t, svc.Load(key, &out))
	return string(out), code
}

// returnsPromptly fails the test if fn does not return within a second
func returnsPromptly(t *testing.T, name string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("%s did not return", name)
	}
}

// --------------------------------------------------------------------------
// Lifecycle and Validation
// --------------------------------------------------------------------------

func TestDisabledServiceIsOffline(t *testing.T) {
	fs := newFakeStore()
	svc := NewSaveService(Config{Enabled: false}, fs.factory())
	defer svc.Close()

	assert.False(t, svc.Enabled())
	assert.Equal(t, RetCOffline, svc.Save("a", payload.NewText("1")))
	_, code := load(t, svc, "a")
	assert.Equal(t, RetCOffline, code)
	assert.Equal(t, RetCOffline, await(t, svc.Exists("a")))
	assert.Equal(t, RetCOffline, await(t, svc.Delete("a")))
	assert.ErrorIs(t, svc.Flush(context.Background()), ErrOffline)

	_, ok := fs.row("a")
	assert.False(t, ok)
}

func TestStoreOpenFailureIsOffline(t *testing.T) {
	svc := NewSaveService(testConfig(), func() (store.IStore, error) {
		return nil, errors.New("disk on fire")
	})
	defer svc.Close()

	assert.False(t, svc.Enabled())
	assert.Equal(t, RetCOffline, svc.Save("a", payload.NewText("1")))
	assert.Equal(t, RetCOffline, await(t, svc.Exists("a")))
}

func TestNilFactoryIsOffline(t *testing.T) {
	svc := NewSaveService(testConfig(), nil)
	defer svc.Close()
	assert.False(t, svc.Enabled())
}

func TestInvalidKeys(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	for _, key := range []string{"", " ", "\t\n", "  "} {
		assert.Equal(t, RetCInvalidKey, svc.Save(key, payload.NewText("x")), "save %q", key)
		_, code := load(t, svc, key)
		assert.Equal(t, RetCInvalidKey, code, "load %q", key)
		assert.Equal(t, RetCInvalidKey, await(t, svc.Exists(key)), "exists %q", key)
		assert.Equal(t, RetCInvalidKey, await(t, svc.Delete(key)), "delete %q", key)
	}

	// no side effects
	require.NoError(t, svc.Flush(context.Background()))
	assert.Equal(t, 0, fs.batchCount())
	assert.Equal(t, int64(0), fs.selects.Load())
	assert.Equal(t, 0, svc.Stats().Pending)
}

func TestNilPayload(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)

	var typedNil *payload.Text
	assert.Equal(t, RetCInvalidPayload, svc.Save("a", nil))
	assert.Equal(t, RetCInvalidPayload, svc.Save("a", typedNil))
	assert.Equal(t, RetCInvalidPayload, await(t, svc.Load("a", nil)))
	assert.Equal(t, RetCInvalidPayload, await(t, svc.Load("a", typedNil)))

	// offline has precedence over payload validation
	require.NoError(t, svc.Close())
	assert.Equal(t, RetCOffline, svc.Save("a", nil))
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("a"))
	assert.True(t, ValidKey(" a "))
	assert.True(t, ValidKey("player:1"))
	assert.False(t, ValidKey(""))
	assert.False(t, ValidKey("   "))
	assert.False(t, ValidKey(" "))
}

func TestRetCodeNames(t *testing.T) {
	names := map[RetCode]string{
		RetCOffline:        "OFFLINE",
		RetCSuccess:        "SUCCESS",
		RetCSQLError:       "SQL_ERROR",
		RetCKeyNotFound:    "KEY_NOT_FOUND",
		RetCExists:         "EXISTS",
		RetCNotExists:      "NOT_EXISTS",
		RetCInvalidKey:     "INVALID_KEY",
		RetCInvalidPayload: "INVALID_PAYLOAD",
	}
	for code, name := range names {
		assert.Equal(t, name, code.String())
		parsed, ok := ParseRetCode(name)
		assert.True(t, ok)
		assert.Equal(t, code, parsed)
	}
	_, ok := ParseRetCode("nope")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", RetCode(99).String())
}

// --------------------------------------------------------------------------
// Save and Load
// --------------------------------------------------------------------------

func TestSaveLoadFromCache(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	assert.Equal(t, RetCSuccess, svc.Save("a", payload.NewText("hello")))

	data, code := load(t, svc, "a")
	assert.Equal(t, RetCSuccess, code)
	assert.Equal(t, "hello", data)
	assert.Equal(t, int64(0), fs.selects.Load(), "cache hit must not touch the store")

	_, ok := fs.row("a")
	assert.False(t, ok, "save must not write the store synchronously")
}

func TestSaveSnapshotsPayload(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)

	p := payload.NewJSON(map[string]int{"score": 1})
	svc.Save("a", p)
	p.Value["score"] = 2

	var out payload.JSON[map[string]int]
	require.Equal(t, RetCSuccess, await(t, svc.Load("a", &out)))
	assert.Equal(t, 1, out.Value["score"])
}

func TestLoadMissing(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)
	_, code := load(t, svc, "nope")
	assert.Equal(t, RetCKeyNotFound, code)
}

func TestLoadFromStorePopulatesCache(t *testing.T) {
	fs := newFakeStore()
	fs.put("a", "stored")
	svc := newTestService(t, fs, nil)

	data, code := load(t, svc, "a")
	require.Equal(t, RetCSuccess, code)
	assert.Equal(t, "stored", data)

	_, _ = load(t, svc, "a")
	assert.Equal(t, int64(1), fs.selects.Load(), "second load must be served from the cache")
}

func TestLoadStoreError(t *testing.T) {
	fs := newFakeStore()
	fs.failSelect.Store(true)
	svc := newTestService(t, fs, nil)

	_, code := load(t, svc, "a")
	assert.Equal(t, RetCSQLError, code)
}

func TestLoadDecodeError(t *testing.T) {
	fs := newFakeStore()
	fs.put("a", "not json")
	svc := newTestService(t, fs, nil)

	var out payload.JSON[map[string]int]
	assert.Equal(t, RetCSQLError, await(t, svc.Load("a", &out)))
}

func TestLoadEvictedButQueued(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, func(c *Config) { c.CacheSize = 1 })

	svc.Save("a", payload.NewText("1"))
	svc.Save("b", payload.NewText("2")) // evicts a

	data, code := load(t, svc, "a")
	require.Equal(t, RetCSuccess, code)
	assert.Equal(t, "1", data)
	assert.Equal(t, int64(0), fs.selects.Load())
}

func TestCacheDisabled(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, func(c *Config) { c.CacheSize = 0 })

	svc.Save("a", payload.NewText("1"))
	data, code := load(t, svc, "a")
	require.Equal(t, RetCSuccess, code, "pending writes must be readable without cache")
	assert.Equal(t, "1", data)

	require.NoError(t, svc.Flush(context.Background()))
	data, code = load(t, svc, "a")
	require.Equal(t, RetCSuccess, code)
	assert.Equal(t, "1", data)
	assert.Equal(t, int64(1), fs.selects.Load())
}

func TestCacheExpiry(t *testing.T) {
	fs := newFakeStore()
	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	svc := newTestService(t, fs, func(c *Config) {
		c.CacheTTL = time.Minute
		c.Clock = clock
	})

	svc.Save("a", payload.NewText("1"))
	require.NoError(t, svc.Flush(context.Background()))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	data, code := load(t, svc, "a")
	require.Equal(t, RetCSuccess, code)
	assert.Equal(t, "1", data)
	assert.Equal(t, int64(1), fs.selects.Load(), "expired entry must be reloaded from the store")
}

// --------------------------------------------------------------------------
// Flush
// --------------------------------------------------------------------------

func TestFlushPersists(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	svc.Save("a", payload.NewText("1"))
	svc.Save("b", payload.NewText("2"))
	require.NoError(t, svc.Flush(context.Background()))

	data, ok := fs.row("a")
	assert.True(t, ok)
	assert.Equal(t, "1", data)
	assert.Equal(t, 0, svc.Stats().Pending)

	// nothing pending, no batch is written
	require.NoError(t, svc.Flush(context.Background()))
	assert.Equal(t, 1, fs.batchCount())
}

func TestFlushCoalesces(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	for i := 1; i <= 3; i++ {
		svc.Save("a", payload.NewText(strconv.Itoa(i)))
	}
	require.NoError(t, svc.Flush(context.Background()))

	assert.Equal(t, []store.Record{{Key: "a", Data: "3"}}, fs.lastBatch())
}

func TestFlushFailureRequeues(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	fs.failUpsert.Store(true)
	svc.Save("a", payload.NewText("1"))

	err := svc.Flush(context.Background())
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, svc.Stats().Pending)
	assert.Equal(t, uint64(1), svc.Stats().FlushFailures)
	assert.False(t, svc.Stats().LastFlushOk)

	// still readable while queued
	assert.Equal(t, RetCExists, await(t, svc.Exists("a")))

	fs.failUpsert.Store(false)
	require.NoError(t, svc.Flush(context.Background()))

	data, ok := fs.row("a")
	assert.True(t, ok)
	assert.Equal(t, "1", data)
	assert.True(t, svc.Stats().LastFlushOk)
}

func TestFlushRetryDoesNotOverrideNewerSave(t *testing.T) {
	fs := newFakeStore()
	fs.entered = make(chan struct{}, 10)
	fs.release = make(chan struct{})
	svc := newTestService(t, fs, nil)

	fs.failUpsert.Store(true)
	svc.Save("a", payload.NewText("old"))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Flush(context.Background()) }()
	<-fs.entered

	// saved again while the failing batch is in flight
	svc.Save("a", payload.NewText("new"))
	data, code := load(t, svc, "a")
	require.Equal(t, RetCSuccess, code)
	assert.Equal(t, "new", data)

	close(fs.release)
	require.Error(t, <-errCh)

	fs.failUpsert.Store(false)
	require.NoError(t, svc.Flush(context.Background()))

	data, _ = fs.row("a")
	assert.Equal(t, "new", data)
}

func TestPeriodicFlush(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, func(c *Config) { c.FlushInterval = 10 * time.Millisecond })

	svc.Save("a", payload.NewText("1"))

	require.Eventually(t, func() bool {
		_, ok := fs.row("a")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

// --------------------------------------------------------------------------
// Delete and Exists
// --------------------------------------------------------------------------

func TestDeleteUnflushed(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	svc.Save("a", payload.NewText("1"))
	assert.Equal(t, RetCSuccess, await(t, svc.Delete("a")))

	require.NoError(t, svc.Flush(context.Background()))
	_, ok := fs.row("a")
	assert.False(t, ok, "deleted value must not be resurrected by the flush")

	_, code := load(t, svc, "a")
	assert.Equal(t, RetCKeyNotFound, code)
	assert.Equal(t, RetCNotExists, await(t, svc.Exists("a")))
}

func TestDeleteStored(t *testing.T) {
	fs := newFakeStore()
	fs.put("a", "1")
	svc := newTestService(t, fs, nil)

	// cache the value first
	_, code := load(t, svc, "a")
	require.Equal(t, RetCSuccess, code)

	assert.Equal(t, RetCSuccess, await(t, svc.Delete("a")))
	_, ok := fs.row("a")
	assert.False(t, ok)

	_, code = load(t, svc, "a")
	assert.Equal(t, RetCKeyNotFound, code)
}

func TestDeleteMissing(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)
	assert.Equal(t, RetCKeyNotFound, await(t, svc.Delete("nope")))
}

func TestDeleteStoreError(t *testing.T) {
	fs := newFakeStore()
	fs.failDelete.Store(true)
	svc := newTestService(t, fs, nil)
	assert.Equal(t, RetCSQLError, await(t, svc.Delete("a")))
}

func TestSaveAfterDeleteWins(t *testing.T) {
	fs := newFakeStore()
	fs.put("a", "old")
	svc := newTestService(t, fs, nil)

	p := svc.Delete("a")
	svc.Save("a", payload.NewText("new"))
	assert.Equal(t, RetCSuccess, await(t, p))

	require.NoError(t, svc.Flush(context.Background()))
	data, ok := fs.row("a")
	require.True(t, ok)
	assert.Equal(t, "new", data)
}

func TestExists(t *testing.T) {
	fs := newFakeStore()
	fs.put("stored", "1")
	svc := newTestService(t, fs, nil)

	svc.Save("cached", payload.NewText("1"))

	assert.Equal(t, RetCExists, await(t, svc.Exists("cached")))
	assert.Equal(t, RetCExists, await(t, svc.Exists("stored")))
	assert.Equal(t, RetCNotExists, await(t, svc.Exists("missing")))

	fs.failExists.Store(true)
	assert.Equal(t, RetCSQLError, await(t, svc.Exists("missing")))
	assert.Equal(t, RetCExists, await(t, svc.Exists("cached")), "memory hits never reach the store")
}

func TestDeleteDoesNotWaitForFlush(t *testing.T) {
	fs := newFakeStore()
	fs.entered = make(chan struct{}, 10)
	fs.release = make(chan struct{})
	svc := newTestService(t, fs, nil)

	svc.Save("b", payload.NewText("1"))
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Flush(context.Background()) }()
	<-fs.entered

	// b is part of the batch that is being written
	var p, l *Pending
	returnsPromptly(t, "delete", func() { p = svc.Delete("b") })
	returnsPromptly(t, "load", func() { l = svc.Load("b", new(payload.Text)) })
	returnsPromptly(t, "save", func() { svc.Save("c", payload.NewText("2")) })
	assert.Equal(t, RetCKeyNotFound, await(t, l), "load must not see the value being deleted")

	select {
	case <-p.Done():
		t.Fatal("delete finished before the running flush committed")
	case <-time.After(20 * time.Millisecond):
	}

	close(fs.release)
	require.NoError(t, <-errCh)
	assert.Equal(t, RetCSuccess, await(t, p))

	_, ok := fs.row("b")
	assert.False(t, ok, "delete must remove the row written by the running flush")
}

func TestOperationsDoNotBlockOnBusyWorkers(t *testing.T) {
	fs := newFakeStore()
	fs.selectRead = make(chan struct{}, 10)
	fs.afterSelect = make(chan struct{})
	fs.put("x", "1")
	fs.put("z", "1")
	svc := newTestService(t, fs, func(c *Config) { c.Workers = 1 })

	// occupies the only worker
	first := svc.Load("x", new(payload.Text))
	<-fs.selectRead

	var ops []*Pending
	returnsPromptly(t, "exists", func() { ops = append(ops, svc.Exists("y")) })
	returnsPromptly(t, "delete", func() { ops = append(ops, svc.Delete("z")) })
	returnsPromptly(t, "load", func() { ops = append(ops, svc.Load("w", new(payload.Text))) })
	returnsPromptly(t, "save", func() { svc.Save("v", payload.NewText("1")) })

	close(fs.afterSelect)
	assert.Equal(t, RetCSuccess, await(t, first))
	assert.Equal(t, RetCNotExists, await(t, ops[0]))
	assert.Equal(t, RetCSuccess, await(t, ops[1]))
	assert.Equal(t, RetCKeyNotFound, await(t, ops[2]))
}

func TestFlushHoldsBackSaveUntilDeleteFinished(t *testing.T) {
	fs := newFakeStore()
	fs.selectRead = make(chan struct{}, 10)
	fs.afterSelect = make(chan struct{})
	fs.put("a", "old")
	fs.put("x", "1")
	svc := newTestService(t, fs, func(c *Config) { c.Workers = 1 })

	// the delete worker waits behind this load
	first := svc.Load("x", new(payload.Text))
	<-fs.selectRead
	p := svc.Delete("a")
	svc.Save("a", payload.NewText("new"))
	svc.Save("b", payload.NewText("1"))

	require.NoError(t, svc.Flush(context.Background()))
	data, _ := fs.row("a")
	assert.Equal(t, "old", data, "the row is only replaced after the delete")
	_, ok := fs.row("b")
	assert.True(t, ok, "other keys are flushed")
	assert.Equal(t, 1, svc.Stats().Pending)

	close(fs.afterSelect)
	assert.Equal(t, RetCSuccess, await(t, first))
	assert.Equal(t, RetCSuccess, await(t, p))

	require.NoError(t, svc.Flush(context.Background()))
	data, ok = fs.row("a")
	require.True(t, ok)
	assert.Equal(t, "new", data)
}

func TestLoadDoesNotCacheValueReadBeforeDelete(t *testing.T) {
	fs := newFakeStore()
	fs.put("a", "old")
	fs.selectRead = make(chan struct{}, 10)
	fs.afterSelect = make(chan struct{})
	svc := newTestService(t, fs, nil)

	var out payload.Text
	l := svc.Load("a", &out)
	<-fs.selectRead

	assert.Equal(t, RetCSuccess, await(t, svc.Delete("a")))
	close(fs.afterSelect)

	// the load read the row before it was deleted
	require.Equal(t, RetCSuccess, await(t, l))
	assert.Equal(t, "old", string(out))

	_, code := load(t, svc, "a")
	assert.Equal(t, RetCKeyNotFound, code, "the deleted value must not be served from the cache")
}

// --------------------------------------------------------------------------
// Pending
// --------------------------------------------------------------------------

func TestAwaitContextCanceled(t *testing.T) {
	fs := newFakeStore()
	fs.selectGate = make(chan struct{})
	svc := newTestService(t, fs, nil)

	p := svc.Load("a", new(payload.Text))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-p.Done():
		t.Fatal("operation should still be running")
	default:
	}

	close(fs.selectGate)
	assert.Equal(t, RetCKeyNotFound, await(t, p))
	assert.Equal(t, RetCKeyNotFound, p.Code())
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

func TestCloseFlushesAndGoesOffline(t *testing.T) {
	fs := newFakeStore()
	svc := NewSaveService(testConfig(), fs.factory())

	svc.Save("a", payload.NewText("1"))
	require.NoError(t, svc.Close())

	data, ok := fs.row("a")
	assert.True(t, ok, "close must flush pending writes")
	assert.Equal(t, "1", data)
	assert.True(t, fs.closed.Load())

	assert.False(t, svc.Enabled())
	assert.Equal(t, RetCOffline, svc.Save("b", payload.NewText("2")))
	assert.Equal(t, RetCOffline, await(t, svc.Exists("a")))
	assert.ErrorIs(t, svc.Flush(context.Background()), ErrOffline)
	assert.True(t, svc.Stats().Closed)

	assert.NoError(t, svc.Close(), "close must be idempotent")
}

func TestCloseReportsFailedFinalFlush(t *testing.T) {
	fs := newFakeStore()
	fs.failUpsert.Store(true)
	svc := NewSaveService(testConfig(), fs.factory())

	svc.Save("a", payload.NewText("1"))
	assert.ErrorIs(t, svc.Close(), errInjected)
}

func TestCloseWaitsForRunningOperations(t *testing.T) {
	fs := newFakeStore()
	fs.selectGate = make(chan struct{})
	svc := NewSaveService(testConfig(), fs.factory())

	p := svc.Load("a", new(payload.Text))

	closed := make(chan error, 1)
	go func() { closed <- svc.Close() }()

	select {
	case <-closed:
		t.Fatal("close returned before the running load finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(fs.selectGate)
	require.NoError(t, <-closed)
	assert.Equal(t, RetCKeyNotFound, p.Code())
}

func TestSaveDoesNotBlockWhileClosing(t *testing.T) {
	fs := newFakeStore()
	fs.entered = make(chan struct{}, 10)
	fs.release = make(chan struct{})
	svc := NewSaveService(testConfig(), fs.factory())

	svc.Save("a", payload.NewText("1"))
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Flush(context.Background()) }()
	<-fs.entered

	// close waits for the running flush
	closed := make(chan error, 1)
	go func() { closed <- svc.Close() }()
	require.Eventually(t, func() bool { return !svc.Enabled() }, time.Second, time.Millisecond)

	returnsPromptly(t, "save", func() {
		assert.Equal(t, RetCOffline, svc.Save("b", payload.NewText("2")))
	})
	returnsPromptly(t, "load", func() {
		assert.Equal(t, RetCOffline, await(t, svc.Load("a", new(payload.Text))))
	})
	returnsPromptly(t, "stats", func() { svc.Stats() })

	select {
	case <-closed:
		t.Fatal("close returned before the running flush finished")
	default:
	}

	close(fs.release)
	require.NoError(t, <-errCh)
	require.NoError(t, <-closed)

	data, ok := fs.row("a")
	assert.True(t, ok)
	assert.Equal(t, "1", data)
}

// --------------------------------------------------------------------------
// End to end with the sql store
// --------------------------------------------------------------------------

func TestEndToEndWithSQLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wbkv.db")
	factory := sqlstore.NewFactory(sqlstore.Options{Path: path})

	svc := NewSaveService(testConfig(), factory)
	require.True(t, svc.Enabled())

	const (
		writers = 8
		keys    = 50
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				key := "k" + strconv.Itoa(i)
				svc.Save(key, payload.NewText("w"+strconv.Itoa(w)))
				if i%10 == 0 {
					_ = svc.Flush(context.Background())
				}
			}
		}(w)
	}
	wg.Wait()

	// only this goroutine writes from now on, so the last value is deterministic
	for i := 0; i < keys; i++ {
		svc.Save("k"+strconv.Itoa(i), payload.NewText("final"+strconv.Itoa(i)))
	}
	svc.Save("gone", payload.NewText("x"))
	require.Equal(t, RetCSuccess, await(t, svc.Delete("gone")))
	require.NoError(t, svc.Close())

	// reopen, everything must come from the store now
	svc2 := NewSaveService(testConfig(), factory)
	defer svc2.Close()
	require.True(t, svc2.Enabled())

	for i := 0; i < keys; i++ {
		data, code := load(t, svc2, "k"+strconv.Itoa(i))
		require.Equal(t, RetCSuccess, code)
		assert.Equal(t, "final"+strconv.Itoa(i), data)
	}
	assert.Equal(t, RetCNotExists, await(t, svc2.Exists("gone")))
}

// --------------------------------------------------------------------------
// Stats and Metrics
// --------------------------------------------------------------------------

func TestStatsAndMetrics(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, nil)

	svc.Save("a", payload.NewText("1"))
	svc.Save("b", payload.NewText("2"))
	assert.Equal(t, 2, svc.Stats().Pending)

	require.NoError(t, svc.Flush(context.Background()))
	_, _ = load(t, svc, "a")

	stats := svc.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, uint64(1), stats.Flushes)
	assert.Equal(t, uint64(2), stats.FlushedRecords)
	assert.Equal(t, 2, stats.Cache.Size)
	assert.Equal(t, uint64(1), stats.Cache.Hits)
	assert.False(t, stats.LastFlush.IsZero())

	var buf bytes.Buffer
	svc.Metrics().WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, "wbkv_flushes_total 1")
	assert.Contains(t, out, "wbkv_flushed_records_total 2")
	assert.Contains(t, out, `wbkv_operations_total{op="save",code="SUCCESS"} 2`)
	assert.Contains(t, out, "wbkv_queue_pending 0")
}
