// Command memoauth-benchgate fails when `go test -bench` output regresses
// against a stored baseline.
//
//	go test -run '^$' -bench 'Authenticate|Reissue|MetricsInc' -count 5 . > new.txt
//	memoauth-benchgate -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// trackedMetrics lists the hot paths gated per release.
var trackedMetrics = map[string][]string{
	"BenchmarkAuthenticate":       {"ns/op", "allocs/op"},
	"BenchmarkReissue":            {"ns/op"},
	"BenchmarkMetricsInc/enabled": {"ns/op"},
}

// samples maps benchmark name to unit to every observed value.
type samples map[string]map[string][]float64

type row struct {
	benchmark string
	unit      string
	baseline  float64
	candidate float64
	delta     float64
}

func main() {
	var (
		baselinePath  = flag.String("baseline", "", "path to baseline benchmark output")
		candidatePath = flag.String("candidate", "", "path to candidate benchmark output")
		threshold     = flag.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	)
	flag.Parse()

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if *threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(*candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(baseline, candidate, trackedMetrics, *threshold)
	fmt.Println("benchmark unit baseline candidate delta")
	for _, r := range rows {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.unit, r.baseline, r.candidate, r.delta*100)
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

// compare reports one row per tracked metric, sorted by benchmark then unit.
// A metric is a failure when samples are missing or its median grew by more
// than threshold.
func compare(baseline, candidate samples, tracked map[string][]string, threshold float64) ([]row, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []row
		failures []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}
			baseMedian, candMedian := median(base), median(cand)
			if baseMedian <= 0 {
				// 0 allocs/op baselines must stay at zero.
				if candMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s rose from 0 to %.3f", name, unit, candMedian))
				}
				rows = append(rows, row{benchmark: name, unit: unit, candidate: candMedian})
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			rows = append(rows, row{benchmark: name, unit: unit, baseline: baseMedian, candidate: candMedian, delta: delta})
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}
	return rows, failures
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse reads `go test -bench` output. Lines look like
//
//	BenchmarkAuthenticate-8   50000   23456 ns/op   1024 B/op   12 allocs/op
func parse(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := trimProcs(fields[0])
		units, ok := out[name]
		if !ok {
			units = map[string][]float64{}
			out[name] = units
		}
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			units[fields[i+1]] = append(units[fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

// trimProcs drops the -GOMAXPROCS suffix the test runner appends.
func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
