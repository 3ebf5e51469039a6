package diag

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/payload"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/lib/store/sqlstore"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var Logger = logger.GetLogger("cmd")

const (
	// DefaultStressCount is used if no or an invalid count is given to the stress check
	DefaultStressCount = 100
	// MaxStressCount is the upper bound of stress iterations
	MaxStressCount = 10000
	// fullStressCount is the iteration count of the stress check in a full run
	fullStressCount = 50

	defaultTimeout = 5 * time.Second
	stressTimeout  = time.Second
)

// Diagnostics runs self checks against a locally opened save service and writes a
// human readable report to out. Every check returns whether it passed.
type Diagnostics struct {
	conf    common.ServerConfig
	svc     *savesvc.Service
	out     io.Writer
	timeout time.Duration // per awaited operation
}

// NewDiagnostics creates a diagnostics runner for the service
func NewDiagnostics(conf common.ServerConfig, svc *savesvc.Service, out io.Writer) *Diagnostics {
	return &Diagnostics{conf: conf, svc: svc, out: out, timeout: defaultTimeout}
}

// ParseCount parses the iteration count of the stress check. Invalid input yields
// DefaultStressCount, valid counts are clamped to [1, MaxStressCount].
func ParseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultStressCount
	}
	return max(1, min(MaxStressCount, n))
}

// --------------------------------------------------------------------------
// Output helpers
// --------------------------------------------------------------------------

func (d *Diagnostics) header(title string) {
	fmt.Fprintf(d.out, "=== %s ===\n", title)
}

func (d *Diagnostics) info(format string, args ...any) {
	fmt.Fprintf(d.out, "       "+format+"\n", args...)
}

func (d *Diagnostics) ok(format string, args ...any) {
	fmt.Fprintf(d.out, "[OK]   "+format+"\n", args...)
}

func (d *Diagnostics) warn(format string, args ...any) {
	fmt.Fprintf(d.out, "[WARN] "+format+"\n", args...)
}

func (d *Diagnostics) fail(format string, args ...any) {
	fmt.Fprintf(d.out, "[FAIL] "+format+"\n", args...)
}

// result prints the outcome of a single operation and reports whether it matched
func (d *Diagnostics) result(op string, got, want savesvc.RetCode) bool {
	if got == want {
		d.ok("%s: %s", op, got)
		return true
	}
	d.fail("%s: %s (expected %s)", op, got, want)
	return false
}

// await waits for a pending operation with the given timeout
func (d *Diagnostics) await(p *savesvc.Pending, timeout time.Duration) (savesvc.RetCode, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Await(ctx)
}

// requireEnabled prints a failure if the service is offline
func (d *Diagnostics) requireEnabled() bool {
	if !d.svc.Enabled() {
		d.fail("save service is offline")
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Checks
// --------------------------------------------------------------------------

// Status checks whether the service is enabled
func (d *Diagnostics) Status() bool {
	d.header("Save Service Status")

	if !d.svc.Enabled() {
		d.fail("save service is offline, check the enabled flag and the store settings")
		return false
	}
	stats := d.svc.Stats()
	d.ok("save service is enabled and operational")
	d.info("pending writes: %d, in flight: %d, cached values: %d", stats.Pending, stats.InFlight, stats.Cache.Size)
	return true
}

// Config prints the configuration and validates the cache and flush settings
func (d *Diagnostics) Config() bool {
	d.header("Configuration Check")

	raw, err := yaml.Marshal(d.conf)
	if err != nil {
		d.fail("unable to encode configuration: %v", err)
		return false
	}
	for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
		d.info("%s", line)
	}

	valid := true
	if d.conf.FlushIntervalSecond <= 0 {
		d.fail("invalid flush interval: %d (pending writes are only stored by manual flushes)", d.conf.FlushIntervalSecond)
		valid = false
	}
	if d.conf.CacheTTLSecond <= 0 {
		d.fail("invalid cache ttl: %d", d.conf.CacheTTLSecond)
		valid = false
	}
	if d.conf.CacheSize <= 0 {
		d.fail("invalid cache size: %d", d.conf.CacheSize)
		valid = false
	}
	if d.conf.Workers <= 0 {
		d.warn("workers: %d, the default pool size is used", d.conf.Workers)
	}

	if valid {
		d.ok("configuration is valid")
	}
	return valid
}

// Database checks the database file and the table layout with a separate connection
func (d *Diagnostics) Database() bool {
	d.header("Database Connectivity Check")

	path := d.conf.StorePath
	if path == ":memory:" {
		d.warn("in-memory database, the data of the service is not visible to other connections")
		return true
	}

	if fi, err := os.Stat(path); err != nil {
		d.warn("database file %s does not exist", path)
	} else {
		d.ok("database file %s exists", path)
		d.info("database size: %d bytes", fi.Size())
	}

	st, err := sqlstore.Open(d.conf.ToStoreOptions())
	if err != nil {
		d.fail("database connection failed: %v", err)
		return false
	}
	defer st.Close()
	d.ok("database connection successful (driver %s)", st.Driver())

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	columns, err := st.Columns(ctx)
	if err != nil {
		d.fail("unable to read the table structure: %v", err)
		return false
	}
	if len(columns) == 0 {
		d.fail("table '%s' does not exist", sqlstore.TableName)
		return false
	}
	d.ok("table '%s' exists", sqlstore.TableName)
	d.info("table structure:")
	for _, c := range columns {
		pk := ""
		if c.PrimaryKey {
			pk = ", primary key"
		}
		d.info("  %s (%s%s)", c.Name, c.Type, pk)
	}

	n, err := st.Count(ctx)
	if err != nil {
		d.fail("unable to count records: %v", err)
		return false
	}
	d.info("records in database: %d", n)
	return true
}

// Serialization checks that payloads survive the text round trip
func (d *Diagnostics) Serialization() bool {
	d.header("Serialization Test")

	passed := true

	original := newDiagObject("test_data", 42)
	serialized := original.Serialize()
	d.info("serialized: %s", serialized)

	var restored diagObject
	if err := restored.Deserialize(serialized); err != nil || restored != *original {
		d.fail("serialization mismatch: original=%s restored=%s (%v)", serialized, restored.Serialize(), err)
		passed = false
	} else {
		d.ok("diagnostic object round trip")
	}

	// the text is split at the last two separators, data may contain them
	piped := newDiagObject("a|b|c", 7)
	var restoredPiped diagObject
	if err := restoredPiped.Deserialize(piped.Serialize()); err != nil || restoredPiped != *piped {
		d.fail("data containing the separator was not restored: %s", restoredPiped.Serialize())
		passed = false
	} else {
		d.ok("separator in data")
	}

	empty := newDiagObject("stale", 1)
	if err := empty.Deserialize(""); err != nil || *empty != (diagObject{}) {
		d.fail("empty string handling: %v", err)
		passed = false
	} else {
		d.ok("empty string handling")
	}

	type sample struct {
		Name  string
		Count int
	}
	want := sample{Name: "diagnostic", Count: 3}
	adapters := []struct {
		name string
		in   payload.Payload
		out  payload.Payload
		get  func(payload.Payload) sample
	}{
		{"json", payload.NewJSON(want), &payload.JSON[sample]{}, func(p payload.Payload) sample { return p.(*payload.JSON[sample]).Value }},
		{"gob", payload.NewGob(want), &payload.Gob[sample]{}, func(p payload.Payload) sample { return p.(*payload.Gob[sample]).Value }},
	}
	for _, a := range adapters {
		if err := a.out.Deserialize(a.in.Serialize()); err != nil || a.get(a.out) != want {
			d.fail("%s payload round trip: %v", a.name, err)
			passed = false
			continue
		}
		d.ok("%s payload round trip", a.name)
	}

	if passed {
		d.ok("serialization working correctly")
	}
	return passed
}

// Operations runs save, exists, load and delete on a fresh key
func (d *Diagnostics) Operations() bool {
	d.header("Operations Test")
	if !d.requireEnabled() {
		return false
	}

	key := "diagnostic_test_" + uuid.NewString()
	obj := newDiagObject("diagnostic_data", 123)

	if !d.result("save", d.svc.Save(key, obj), savesvc.RetCSuccess) {
		return false
	}

	existsCode, err := d.await(d.svc.Exists(key), d.timeout)
	if err != nil {
		d.fail("exists: %v", err)
		return false
	}
	passed := d.result("exists", existsCode, savesvc.RetCExists)

	var loaded diagObject
	loadCode, err := d.await(d.svc.Load(key, &loaded), d.timeout)
	if err != nil {
		d.fail("load: %v", err)
		return false
	}
	if d.result("load", loadCode, savesvc.RetCSuccess) {
		if loaded != *obj {
			d.fail("data integrity: loaded %s, saved %s", loaded.Serialize(), obj.Serialize())
			passed = false
		} else {
			d.ok("data integrity")
		}
	} else {
		passed = false
	}

	deleteCode, err := d.await(d.svc.Delete(key), d.timeout)
	if err != nil {
		d.fail("delete: %v", err)
		return false
	}
	passed = d.result("delete", deleteCode, savesvc.RetCSuccess) && passed

	verifyCode, err := d.await(d.svc.Exists(key), d.timeout)
	if err != nil {
		d.fail("delete verification: %v", err)
		return false
	}
	passed = d.result("delete verification", verifyCode, savesvc.RetCNotExists) && passed

	if passed {
		d.ok("all operations completed successfully")
	} else {
		d.fail("some operations failed")
	}
	return passed
}

// Cache checks that a freshly saved value is served from the cache
func (d *Diagnostics) Cache() bool {
	d.header("Cache Test")
	if !d.requireEnabled() {
		return false
	}

	key := "cache_test_" + uuid.NewString()
	obj := newDiagObject("cache_data", 456)

	if !d.result("cache population", d.svc.Save(key, obj), savesvc.RetCSuccess) {
		return false
	}
	defer func() {
		if _, err := d.await(d.svc.Delete(key), d.timeout); err != nil {
			d.warn("cleanup of %s: %v", key, err)
		}
	}()

	before := d.svc.Stats().Cache
	var loaded diagObject
	start := time.Now()
	code, err := d.await(d.svc.Load(key, &loaded), d.timeout)
	elapsed := time.Since(start)
	if err != nil {
		d.fail("cache load: %v", err)
		return false
	}
	if !d.result("cache load", code, savesvc.RetCSuccess) {
		return false
	}
	d.info("load time: %s", elapsed)

	passed := true
	if loaded != *obj {
		d.fail("cache data integrity: loaded %s, saved %s", loaded.Serialize(), obj.Serialize())
		passed = false
	} else {
		d.ok("cache data integrity")
	}

	after := d.svc.Stats().Cache
	switch {
	case d.conf.CacheSize <= 0:
		d.warn("cache is disabled, the value was served from the write behind queue")
	case after.Hits > before.Hits:
		d.ok("value was served from the cache (hits %d -> %d)", before.Hits, after.Hits)
	default:
		d.warn("value was not served from the cache")
	}

	if passed {
		d.ok("cache test completed")
	}
	return passed
}

// Stress runs n save/load/delete cycles and reports the latency distribution. It
// passes if more than 90% of the cycles succeed.
func (d *Diagnostics) Stress(n int) bool {
	n = max(1, min(MaxStressCount, n))
	d.header(fmt.Sprintf("Stress Test (n=%d)", n))
	if !d.requireEnabled() {
		return false
	}

	timer := gometrics.NewTimer()
	defer timer.Stop()

	failures := 0
	prefix := "stress_test_" + uuid.NewString()
	start := time.Now()

	for i := 0; i < n; i++ {
		if err := d.stressCycle(timer, fmt.Sprintf("%s_%d", prefix, i), i); err != nil {
			failures++
			if failures <= 5 {
				Logger.Warningf("stress iteration %d failed: %v", i, err)
			}
		}
		if n >= 100 && (i+1)%(n/10) == 0 {
			d.info("progress: %d/%d", i+1, n)
		}
	}
	total := time.Since(start)

	successes := n - failures
	rate := float64(successes) / float64(n) * 100

	d.info("results:")
	d.info("success:  %d/%d (%.1f%%)", successes, n, rate)
	d.info("failures: %d", failures)
	if timer.Count() > 0 {
		ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
		d.info("latency:  mean %s, p50 %s, p95 %s, p99 %s, max %s",
			time.Duration(timer.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]), time.Duration(timer.Max()))
	}
	d.info("total test time: %s", total)

	switch {
	case successes == 0:
		d.fail("0%% success rate indicates a fundamental service failure")
	case rate < 50:
		d.fail("low success rate indicates service issues")
	case rate <= 90:
		d.warn("moderate success rate, investigate further")
	default:
		d.ok("good success rate")
	}
	return rate > 90
}

// stressCycle saves, loads, verifies and deletes a single key
func (d *Diagnostics) stressCycle(timer gometrics.Timer, key string, i int) error {
	obj := newDiagObject(fmt.Sprintf("stress_data_%d", i), i)
	start := time.Now()

	if code := d.svc.Save(key, obj); code != savesvc.RetCSuccess {
		return fmt.Errorf("save: %s", code)
	}

	var loaded diagObject
	code, err := d.await(d.svc.Load(key, &loaded), stressTimeout)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if code != savesvc.RetCSuccess {
		return fmt.Errorf("load: %s", code)
	}
	if loaded != *obj {
		return fmt.Errorf("load: integrity mismatch")
	}

	code, err = d.await(d.svc.Delete(key), stressTimeout)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if code != savesvc.RetCSuccess {
		return fmt.Errorf("delete: %s", code)
	}

	timer.UpdateSince(start)
	return nil
}

// Full runs every check with a smaller stress test and reports whether all passed
func (d *Diagnostics) Full() bool {
	d.header("Full Save Service Diagnostic")

	checks := []func() bool{
		d.Status,
		d.Config,
		d.Database,
		d.Serialization,
		d.Operations,
		d.Cache,
		func() bool { return d.Stress(fullStressCount) },
	}

	passed := true
	for _, check := range checks {
		fmt.Fprintln(d.out)
		passed = check() && passed
	}

	fmt.Fprintln(d.out)
	d.header("Diagnostic Complete")
	return passed
}
