package msg

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/rws/cmd/util"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Round-trip benchmark against an rws peer",
		Long:    "Sends requests from parallel workers and prints latency percentiles and throughput. The peer has to answer the subject (rws serve answers Ping).",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfRequests = 10000
	perfParallel = 10
	perfSubject  = "Ping"
	perfData     = "{}"
)

func init() {
	key := "requests"
	perfTestCmd.Flags().Int(key, perfRequests, util.WrapString("Total number of requests"))
	key = "parallel"
	perfTestCmd.Flags().Int(key, perfParallel, util.WrapString("Number of concurrent workers"))
	key = "subject"
	perfTestCmd.Flags().String(key, perfSubject, util.WrapString("Subject of the requests"))
	key = "data"
	perfTestCmd.Flags().String(key, perfData, util.WrapString("JSON data of the requests"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfRequests = viper.GetInt("requests")
	perfParallel = viper.GetInt("parallel")
	perfSubject = viper.GetString("subject")
	perfData = viper.GetString("data")

	if perfRequests <= 0 || perfParallel <= 0 {
		return fmt.Errorf("requests and parallel must be positive")
	}
	return nil
}

// perfResult holds the measurements of one benchmark run
type perfResult struct {
	timer    gometrics.Timer
	failures gometrics.Counter
	elapsed  time.Duration
}

func runPerf(_ *cobra.Command, _ []string) error {
	data, err := util.ParseData(perfData)
	if err != nil {
		return err
	}

	fmt.Println("Round-trip benchmark for rws peers")
	fmt.Println()
	fmt.Println("Configuration:")
	config := util.GetClientConfig()
	fmt.Println(config.String())
	fmt.Printf("Requests: %d, Workers: %d, Subject: %s\n", perfRequests, perfParallel, perfSubject)
	fmt.Println()

	ctx, cancel := signalContext()
	defer cancel()
	if err := waitConnected(ctx, config.DialTimeout()); err != nil {
		return err
	}

	fmt.Println("starting tests...")

	result := perfResult{
		timer:    gometrics.NewTimer(),
		failures: gometrics.NewCounter(),
	}

	jobs := make(chan struct{}, perfRequests)
	for i := 0; i < perfRequests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(perfParallel)
	for w := 0; w < perfParallel; w++ {
		go func() {
			defer wg.Done()
			for range jobs {
				if ctx.Err() != nil {
					return
				}
				begin := time.Now()
				call, err := rpcClient.Send(perfSubject, data)
				if err == nil {
					_, err = call.Wait(ctx)
				}
				if err != nil {
					result.failures.Inc(1)
					continue
				}
				result.timer.UpdateSince(begin)
			}
		}()
	}
	wg.Wait()
	result.elapsed = time.Since(start)

	printResult(perfSubject, result)
	return nil
}

func printResult(test string, result perfResult) {
	snap := result.timer.Snapshot()
	ps := snap.Percentiles([]float64{0.5, 0.95, 0.99})

	opsPerSec := 0.0
	if result.elapsed > 0 {
		opsPerSec = float64(snap.Count()) / result.elapsed.Seconds()
	}

	fmt.Println()
	fmt.Printf("%-20s\t%d ok\t%d failed\t%.2f ops/sec\n", test, snap.Count(), result.failures.Count(), opsPerSec)
	fmt.Printf("%-20s\tmin %s\tmean %s\tmax %s\n", "latency",
		time.Duration(snap.Min()), time.Duration(int64(snap.Mean())), time.Duration(snap.Max()))
	fmt.Printf("%-20s\tp50 %s\tp95 %s\tp99 %s\n", "percentiles",
		time.Duration(int64(ps[0])), time.Duration(int64(ps[1])), time.Duration(int64(ps[2])))
}
