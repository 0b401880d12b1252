package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/tally/cmd/util"
	"github.com/ValentinKolb/tally/lib/common"
	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the configured backend",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfOps              = 10_000
	perfLargeValueSizeKB = 64
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfResult is the outcome of a single performance test
type perfResult struct {
	timer   metrics.Timer
	elapsed time.Duration
	errors  int64
	skipped bool
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Tests to skip (comma separated - e.g. set,get)"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10_000, util.WrapString("Number of operations per test"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines issuing operations"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfOps = viper.GetInt("ops")
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	// keys of different runs never collide
	perfKeyPrefix = fmt.Sprintf("__perf-%s", uuid.NewString())

	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := common.GetLogger(common.LogCLI)

	fmt.Println("Performance testing tool for tally backends")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(kvConfig.String())
	fmt.Printf("Threads: %d, Ops per test: %d, Key prefix: %s\n", perfNumThreads, perfOps, perfKeyPrefix)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	results := make(map[string]perfResult)
	testOrder := []string{"set", "set-large", "get", "has", "has-not", "delete", "mixed"}

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	rand.Read(largeValue)

	for _, test := range testOrder {
		if shouldSkip(test) {
			results[test] = perfResult{skipped: true}
			printResult(test, results[test])
			continue
		}

		getKey, iter := getKeys(test)
		prefill := func(value []byte) {
			iter(func(k string) {
				if err := kvStore.Set(ctx, k, value); err != nil {
					log.Errorf("(%s) - error setting key: %v", test, err)
				}
			})
		}

		var op func(i int) error
		switch test {
		case "set":
			op = func(i int) error { return kvStore.Set(ctx, getKey(i), []byte("test")) }
		case "set-large":
			op = func(i int) error { return kvStore.Set(ctx, getKey(i), largeValue) }
		case "get":
			prefill([]byte("test"))
			op = func(i int) error { _, _, err := kvStore.Get(ctx, getKey(i)); return err }
		case "has":
			prefill([]byte("test"))
			op = func(i int) error { _, err := kvStore.Has(ctx, getKey(i)); return err }
		case "has-not":
			op = func(i int) error {
				_, err := kvStore.Has(ctx, fmt.Sprintf("%s/has-not-%d", perfKeyPrefix, i%100))
				return err
			}
		case "delete":
			prefill([]byte("test"))
			op = func(i int) error { return kvStore.Delete(ctx, getKey(i)) }
		case "mixed":
			prefill([]byte("test"))
			op = func(i int) error {
				key := getKey(i)
				var err error
				switch i % 4 {
				case 0:
					err = kvStore.Set(ctx, key, []byte("test"))
				case 1:
					_, _, err = kvStore.Get(ctx, key)
				case 2:
					err = kvStore.Delete(ctx, key)
				case 3:
					_, err = kvStore.Has(ctx, key)
				}
				return err
			}
		}

		result := runTest(ctx, metrics.GetOrRegisterTimer(test, registry), op)

		// cleanup
		iter(func(k string) {
			if err := kvStore.Delete(ctx, k); err != nil {
				log.Errorf("(%s) - error deleting key: %v", test, err)
			}
		})

		results[test] = result
		printResult(test, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, testOrder, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runTest executes perfOps calls of op spread over perfNumThreads goroutines
func runTest(ctx context.Context, timer metrics.Timer, op func(i int) error) perfResult {
	var (
		next   atomic.Int64
		errors atomic.Int64
		wg     sync.WaitGroup
	)

	start := time.Now()
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= perfOps || ctx.Err() != nil {
					return
				}
				var err error
				timer.Time(func() { err = op(i) })
				if err != nil {
					if errors.Add(1) == 1 {
						common.GetLogger(common.LogCLI).Errorf("operation failed: %v", err)
					}
				}
			}
		}()
	}
	wg.Wait()

	return perfResult{
		timer:   timer.Snapshot(),
		elapsed: time.Since(start),
		errors:  errors.Load(),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s/%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// opsPerSec returns the throughput of a result
func opsPerSec(result perfResult) float64 {
	if result.elapsed <= 0 {
		return 0
	}
	return float64(result.timer.Count()) / result.elapsed.Seconds()
}

// printResult prints the result of a performance test in a formatted way
func printResult(test string, result perfResult) {
	if result.skipped || result.timer.Count() == 0 {
		fmt.Printf("%-12sskipped\n", test)
		return
	}

	p := result.timer.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-12s%8d ops   mean %-10s p50 %-10s p99 %-10s %10.0f ops/sec",
		test,
		result.timer.Count(),
		time.Duration(result.timer.Mean()),
		time.Duration(p[0]),
		time.Duration(p[1]),
		opsPerSec(result),
	)
	if result.errors > 0 {
		fmt.Printf("   (%d errors)", result.errors)
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Ops", "Errors", "MeanNs", "P50Ns", "P99Ns", "OpsPerSec", "Skipped",
		"Backend", "Codec", "Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range order {
		result := results[test]
		row := []string{test, "0", "0", "0", "0", "0", "0", "true"}
		if !result.skipped {
			p := result.timer.Percentiles([]float64{0.5, 0.99})
			row = []string{
				test,
				strconv.FormatInt(result.timer.Count(), 10),
				strconv.FormatInt(result.errors, 10),
				fmt.Sprintf("%.0f", result.timer.Mean()),
				fmt.Sprintf("%.0f", p[0]),
				fmt.Sprintf("%.0f", p[1]),
				fmt.Sprintf("%.0f", opsPerSec(result)),
				"false",
			}
		}
		row = append(row,
			string(kvConfig.Backend),
			string(kvConfig.Codec),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return writer.Error()
}
