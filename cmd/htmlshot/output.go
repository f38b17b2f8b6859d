package main

import (
	"fmt"
	"time"

	"github.com/entrhq/htmlshot/pkg/batch"
)

// printResults writes one line per result and a summary line to stdout.
func (a *app) printResults(results []batch.Result) {
	st := a.styles
	var total time.Duration
	for _, r := range results {
		total += r.Duration
		name := r.Job.Rel
		if r.Job.Path == "-" {
			name = "stdin"
		}
		if r.Err != nil {
			fmt.Fprintf(a.stdout, "%s %s %s\n", st.err.Render("✗"), name, st.err.Render(r.Err.Error()))
			continue
		}
		fmt.Fprintf(a.stdout, "%s %s -> %s %s\n",
			st.ok.Render("✓"), name, st.path.Render(r.Output),
			st.muted.Render(fmt.Sprintf("(%s)", r.Duration.Round(time.Millisecond))))
	}

	if len(results) < 2 {
		return
	}
	failed := batch.Failed(results)
	summary := fmt.Sprintf("%d captured, %d failed", len(results)-failed, failed)
	if failed > 0 {
		fmt.Fprintln(a.stdout, st.err.Render(summary))
		return
	}
	fmt.Fprintln(a.stdout, st.header.Render(summary))
}
