package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/wippyai/js-sandbox/sandbox"
)

const fibScript = `
function fibonacci(n) {
	if (n <= 1) return n;
	return fibonacci(n - 1) + fibonacci(n - 2);
}
fibonacci(30);
`

var (
	runEval    string
	runRepeat  int
	runMetrics bool
)

var runCmd = &cobra.Command{
	Use:   "run [script.js]",
	Short: "Compile a script once and execute it",
	Long: `run calls Init with the script and then Exec --repeat times, printing the
result and the execution time of every run. Without a script it runs
fibonacci(30).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().StringVarP(&runEval, "eval", "e", "", "script source to run instead of a file")
	runCmd.Flags().IntVarP(&runRepeat, "repeat", "n", 1, "number of Exec calls after Init")
	runCmd.Flags().BoolVar(&runMetrics, "metrics", false, "print call metrics after the runs")
}

func runScript(cmd *cobra.Command, args []string) error {
	source, label, err := scriptSource(runEval, args)
	if err != nil {
		return err
	}
	if runRepeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", runRepeat)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	reg := prometheus.NewRegistry()
	metrics, err := sandbox.NewMetrics(reg)
	if err != nil {
		return err
	}

	h, err := newHost(ctx, cfg, os.Stdout, os.Stderr, sandbox.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer h.Close(ctx)

	sb, err := h.open(ctx)
	if err != nil {
		return err
	}
	defer sb.Close(ctx)

	start := time.Now()
	if err := sb.Init(ctx, source); err != nil {
		return err
	}
	fmt.Fprintf(out, "Init: %v\n", time.Since(start))

	runs := make([]time.Duration, 0, runRepeat)
	for i := 0; i < runRepeat; i++ {
		start := time.Now()
		n, err := sb.Exec(ctx)
		elapsed := time.Since(start)
		if err != nil {
			return err
		}
		runs = append(runs, elapsed)
		fmt.Fprintf(out, "%s = %d\n", label, n)
		fmt.Fprintf(out, "Execution time: %v\n", elapsed)
	}
	if len(runs) > 1 {
		printTimings(out, runs)
	}

	if runMetrics {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		printMetrics(out, families)
	}
	return nil
}

func scriptSource(eval string, args []string) (source, label string, err error) {
	switch {
	case eval != "" && len(args) > 0:
		return "", "", fmt.Errorf("use either --eval or a script file, not both")
	case eval != "":
		return eval, "result", nil
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), "result", nil
	default:
		return fibScript, "fib(30)", nil
	}
}

func printTimings(w io.Writer, runs []time.Duration) {
	sorted := append([]time.Duration(nil), runs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	fmt.Fprintf(w, "runs: %d  min: %v  median: %v  max: %v  mean: %v\n",
		len(sorted), sorted[0], sorted[len(sorted)/2], sorted[len(sorted)-1], total/time.Duration(len(sorted)))
}

func printMetrics(w io.Writer, families []*dto.MetricFamily) {
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				fmt.Fprintf(w, "%s %v\n", name, m.GetCounter().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s count=%d sum=%.6fs\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
