package savesvc

import (
	"context"
	"errors"
	"github.com/ValentinKolb/wbKV/lib/store"
	"sync"
	"sync/atomic"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory store.IStore with failure injection
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]string

	failUpsert atomic.Bool
	failSelect atomic.Bool
	failDelete atomic.Bool
	failExists atomic.Bool

	// if set, UpsertBatch signals entered and waits for release before it fails or commits
	entered chan struct{}
	release chan struct{}

	// if set, Select blocks until it is closed
	selectGate chan struct{}

	// if set, Select reads the row, signals selectRead and waits for afterSelect
	selectRead  chan struct{}
	afterSelect chan struct{}

	upserts atomic.Int64 // number of UpsertBatch calls with records
	selects atomic.Int64
	batches [][]store.Record
	closed  atomic.Bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]string)}
}

func (f *fakeStore) factory() store.Factory {
	return func() (store.IStore, error) { return f, nil }
}

func (f *fakeStore) UpsertBatch(_ context.Context, records []store.Record) error {
	if f.closed.Load() {
		return store.NewError(store.RetCClosed, "closed")
	}
	if len(records) == 0 {
		return nil
	}
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.upserts.Add(1)
	if f.failUpsert.Load() {
		return errInjected
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]store.Record, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	for _, r := range records {
		f.rows[r.Key] = r.Data
	}
	return nil
}

func (f *fakeStore) Select(_ context.Context, key string) (string, bool, error) {
	if f.selectGate != nil {
		<-f.selectGate
	}
	f.selects.Add(1)
	if f.failSelect.Load() {
		return "", false, errInjected
	}
	f.mu.Lock()
	data, ok := f.rows[key]
	f.mu.Unlock()

	if f.afterSelect != nil {
		f.selectRead <- struct{}{}
		<-f.afterSelect
	}
	return data, ok, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) (bool, error) {
	if f.failDelete.Load() {
		return false, errInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[key]
	delete(f.rows, key)
	return ok, nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if f.failExists.Load() {
		return false, errInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[key]
	return ok, nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *fakeStore) Close() error {
	f.closed.Store(true)
	return nil
}

// row returns the stored value of a key
func (f *fakeStore) row(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.rows[key]
	return data, ok
}

func (f *fakeStore) put(key, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = data
}

func (f *fakeStore) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeStore) lastBatch() []store.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}
