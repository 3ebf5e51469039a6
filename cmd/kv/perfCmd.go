package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/wbKV/cmd/util"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for wbKV servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. save,load)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the save-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is a single perf test. seed runs before the timer starts,
// op is executed once per iteration with the iteration counter.
type benchmark struct {
	name string
	seed bool
	op   func(ctx context.Context, key string, i int) error
}

func benchmarks() []benchmark {
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)

	expect := func(code savesvc.RetCode, err error, ok ...savesvc.RetCode) error {
		if err != nil {
			return err
		}
		for _, c := range ok {
			if c == code {
				return nil
			}
		}
		return fmt.Errorf("unexpected result %s", code)
	}

	return []benchmark{
		{name: "save", op: func(ctx context.Context, key string, _ int) error {
			code, err := rpcClient.Save(ctx, key, "test")
			return expect(code, err, savesvc.RetCSuccess)
		}},
		{name: "save-large", op: func(ctx context.Context, key string, _ int) error {
			code, err := rpcClient.Save(ctx, key, largeValue)
			return expect(code, err, savesvc.RetCSuccess)
		}},
		{name: "load", seed: true, op: func(ctx context.Context, key string, _ int) error {
			_, code, err := rpcClient.Load(ctx, key)
			return expect(code, err, savesvc.RetCSuccess)
		}},
		{name: "exists", seed: true, op: func(ctx context.Context, key string, _ int) error {
			code, err := rpcClient.Exists(ctx, key)
			return expect(code, err, savesvc.RetCExists)
		}},
		{name: "exists-not", op: func(ctx context.Context, key string, _ int) error {
			code, err := rpcClient.Exists(ctx, key+"-missing")
			return expect(code, err, savesvc.RetCNotExists)
		}},
		{name: "delete", seed: true, op: func(ctx context.Context, key string, _ int) error {
			code, err := rpcClient.Delete(ctx, key)
			return expect(code, err, savesvc.RetCSuccess, savesvc.RetCKeyNotFound)
		}},
		{name: "mixed", seed: true, op: func(ctx context.Context, key string, i int) error {
			switch i % 4 {
			case 0:
				code, err := rpcClient.Save(ctx, key, "test")
				return expect(code, err, savesvc.RetCSuccess)
			case 1:
				_, code, err := rpcClient.Load(ctx, key)
				return expect(code, err, savesvc.RetCSuccess, savesvc.RetCKeyNotFound)
			case 2:
				code, err := rpcClient.Delete(ctx, key)
				return expect(code, err, savesvc.RetCSuccess, savesvc.RetCKeyNotFound)
			default:
				code, err := rpcClient.Exists(ctx, key)
				return expect(code, err, savesvc.RetCExists, savesvc.RetCNotExists)
			}
		}},
	}
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for wbKV servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()
	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks() {
		result := runBenchmark(ctx, bm)
		results[bm.name] = result
		printResult(bm.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

func runBenchmark(ctx context.Context, bm benchmark) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(bm.name) {
			return
		}

		getKey, iter := getKeys(bm.name)

		if bm.seed {
			iter(func(k string) {
				if _, err := rpcClient.Save(ctx, k, "test"); err != nil {
					log.Printf("(%s) - error saving key: %v\n", bm.name, err)
				}
			})
		}

		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := rpcClient.Delete(ctx, k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", bm.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if err := bm.op(ctx, getKey(counter), counter); err != nil {
					log.Printf("(%s) - %v\n", bm.name, err)
				}
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// opsPerSecond returns the ns/op and ops/sec of a result, zero for skipped tests
func opsPerSecond(result testing.BenchmarkResult) (float64, float64) {
	if result.NsPerOp() == 0 {
		return 0, 0
	}
	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	return nsPerOp, 1.0 / (nsPerOp / 1e9)
}

func printResult(test string, result testing.BenchmarkResult) {
	nsPerOp, opsPerSec := opsPerSecond(result)
	if nsPerOp == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file, one row per test sorted by name
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	for _, test := range tests {
		nsPerOp, opsPerSec := opsPerSecond(results[test])
		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatBool(nsPerOp == 0),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
