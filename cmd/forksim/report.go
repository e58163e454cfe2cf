package main

import (
	"fmt"
	"io"

	"github.com/sarchlab/forksim/timing/core"
	"github.com/sarchlab/forksim/trace"
)

func printStats(w io.Writer, stats core.Stats, simTime float64) {
	fmt.Fprintf(w, "  Cycles:           %d\n", stats.Cycles)
	fmt.Fprintf(w, "  Sim time:         %.3f us\n", simTime*1e6)
	fmt.Fprintf(w, "  Forks:            %d\n", stats.Forks)
	fmt.Fprintf(w, "  Commits:          %d\n", stats.Commits)
	fmt.Fprintf(w, "  Squashes:         %d (exceptions %d)\n", stats.Squashes, stats.SpecExceptions)
	fmt.Fprintf(w, "  Commit rate:      %.1f%%\n", stats.CommitRate())
	fmt.Fprintf(w, "  Violations:       %d\n", stats.Violations)
	fmt.Fprintf(w, "  Copy aborts:      %d\n", stats.CopyAborts)
	fmt.Fprintf(w, "  Split dispatches: %d\n", stats.SplitDispatches)
	fmt.Fprintf(w, "  Dropped blocks:   %d\n", stats.DroppedBlocks)
	fmt.Fprintf(w, "  Serial blocks:    %d\n", stats.SerialBlocks)
	fmt.Fprintf(w, "  Declined forks:   %d predictor, %d no idle core\n",
		stats.PredictorDeclines, stats.NoIdleCoreDeclines)
	fmt.Fprintf(w, "  No trigger:       %d\n", stats.NoTriggerBlocks)
	fmt.Fprintf(w, "  Busy blocks:      %d\n", stats.BusyBlocks)
}

// printResults writes one summary per result and returns how many failed.
func printResults(w io.Writer, results []*trace.Result, events bool) int {
	failed := 0
	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
			failed++
		}

		fmt.Fprintf(w, "%s %s\n", status, r.Name)
		printStats(w, r.Stats, r.SimTime)

		if events {
			fmt.Fprintln(w, "  Events:")
			for _, e := range r.Events {
				fmt.Fprintf(w, "    %s\n", e)
			}
		}

		for _, f := range r.Failures {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	fmt.Fprintf(w, "\n%d scenarios, %d failed\n", len(results), failed)
	return failed
}
