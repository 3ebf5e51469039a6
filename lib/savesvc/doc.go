/*
Package savesvc implements the write-behind save service.

The service persists opaque payloads by string key. Writes go to an in-memory cache
and a coalescing write-behind queue and return immediately, a background flusher
periodically writes the queued values to the durable store as one batch. Reads are
served from the cache, then from the queue of pending writes, then from the store.

Usage:

	svc := savesvc.NewSaveService(conf, sqlstore.NewFactory(sqlstore.Options{Path: "wbkv.db"}))
	defer svc.Close()

	svc.Save("player:1", payload.NewText("hello"))

	var out payload.Text
	code, err := svc.Load("player:1", &out).Await(ctx)

Result Codes:

Every operation reports its outcome as a RetCode instead of an error. An operation
on a disabled or closed service returns RetCOffline, a blank key returns RetCInvalidKey
and has no side effects. Store failures are logged and reported as RetCSQLError.

Consistency:

  - A Save is visible to Load and Exists of the same process immediately (read your
    writes), even if the value was evicted from the cache but not yet flushed.
  - Repeated saves of one key before a flush coalesce, the store receives the last one.
  - A failed flush is retried in the next cycle, values saved again in the meantime are
    not overwritten by the stale retry.
  - A Delete removes the cached value, the pending write and the stored row.
  - The cache is not strongly consistent with the store: concurrent Load and Save of the
    same key may leave an older value cached until it expires.

Concurrency Model:

Save runs synchronously on the caller goroutine. Load, Delete and Exists return a
Pending handle right away and run on the pool, at most Workers of them at a time.
Flush cycles are serialized and exclude store deletes, so a delete never interleaves
with a batch containing its key. Saves of a key whose delete is still running wait
for the next cycle.

Shutdown:

Close marks the service offline, stops the flusher, waits for running operations,
performs a final flush and closes the store. Values saved after the last successful
flush are lost only if that final flush fails.
*/
package savesvc
