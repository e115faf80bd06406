package resultproc

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/workload-harness/internal/execution"
	"github.com/yungbote/workload-harness/internal/result"
)

func init() {
	Register("yaml", func(params map[string]any) (execution.ResultProcessor, error) {
		_ = params
		return &yamlDump{}, nil
	})
}

// yamlDump serializes the whole run result into run_result.yaml at the run
// root.
type yamlDump struct{}

func (p *yamlDump) Name() string { return "yaml" }

func (p *yamlDump) Validate() error { return nil }

func (p *yamlDump) Initialize(ctx *execution.Context) error { return nil }

func (p *yamlDump) AddResult(res *result.IterationResult, ctx *execution.Context) error {
	return nil
}

func (p *yamlDump) ProcessRunResult(res *result.RunResult, ctx *execution.Context) error {
	doc := map[string]any{
		"run": map[string]any{
			"uuid":              res.Info.UUID.String(),
			"name":              res.Info.RunName,
			"start_time":        res.Info.StartTime.Format(time.RFC3339),
			"end_time":          res.Info.EndTime.Format(time.RFC3339),
			"duration_seconds":  res.Info.Duration.Seconds(),
			"device_properties": res.Info.DeviceProperties,
		},
		"non_iteration_errors": res.NonIterationErrors,
		"iterations":           iterationDocs(res),
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	path := filepath.Join(ctx.RunOutputDirectory, "run_result.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return err
	}
	return ctx.AddArtifact("run_result", path, result.ArtifactExport, true, "Full run result.")
}

func (p *yamlDump) Finalize(ctx *execution.Context) error { return nil }

func iterationDocs(res *result.RunResult) []map[string]any {
	out := make([]map[string]any, 0, len(res.IterationResults))
	for _, ir := range res.IterationResults {
		events := make([]string, 0, len(ir.Events))
		for _, ev := range ir.Events {
			events = append(events, ev.Message)
		}
		out = append(out, map[string]any{
			"id":        ir.SpecID,
			"workload":  ir.Workload,
			"iteration": ir.Iteration,
			"retry":     ir.Retry,
			"status":    string(ir.Status),
			"events":    events,
			"metrics":   ir.Metrics,
		})
	}
	return out
}
