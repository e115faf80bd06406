package resultproc

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/workload-harness/internal/execution"
	"github.com/yungbote/workload-harness/internal/result"
)

func init() {
	Register("csv", func(params map[string]any) (execution.ResultProcessor, error) {
		_ = params
		return &csvExport{}, nil
	})
}

// csvExport writes one row per metric of every iteration into results.csv
// at the run root; an iteration with no metrics gets a single row with empty
// metric columns.
type csvExport struct{}

func (p *csvExport) Name() string { return "csv" }

func (p *csvExport) Validate() error { return nil }

func (p *csvExport) Initialize(ctx *execution.Context) error { return nil }

func (p *csvExport) AddResult(res *result.IterationResult, ctx *execution.Context) error {
	return nil
}

func (p *csvExport) ProcessRunResult(res *result.RunResult, ctx *execution.Context) error {
	path := filepath.Join(ctx.RunOutputDirectory, "results.csv")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "workload", "iteration", "status", "metric", "value", "units"}); err != nil {
		return err
	}
	for _, ir := range res.IterationResults {
		base := []string{ir.SpecID, ir.Workload, fmt.Sprint(ir.Iteration), string(ir.Status)}
		if len(ir.Metrics) == 0 {
			if err := w.Write(append(base, "", "", "")); err != nil {
				return err
			}
			continue
		}
		for _, m := range ir.Metrics {
			row := append(append([]string{}, base...), m.Name, fmt.Sprint(m.Value), m.Units)
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return ctx.AddArtifact("results_csv", path, result.ArtifactExport, true, "Per-iteration metrics in CSV form.")
}

func (p *csvExport) Finalize(ctx *execution.Context) error { return nil }
