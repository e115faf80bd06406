package resultproc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/device/local"
	"github.com/yungbote/workload-harness/internal/execution"
	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

func newTestContext(t *testing.T) *execution.Context {
	t.Helper()
	cfg := &config.Config{RunName: "test", OutputDirectory: t.TempDir()}
	log := logger.Nop()
	c := execution.NewContext(context.Background(), local.New(nil, log), cfg, signals.NewBus(), log)
	require.NoError(t, c.Initialize())
	return c
}

func sampleRunResult(c *execution.Context) *result.RunResult {
	ir := result.NewIterationResult("s1", "s1", "idle")
	ir.Iteration = 1
	ir.Status = result.StatusOK
	ir.AddMetric(result.Metric{Name: "execution_time", Value: 1.5, Units: "seconds"})
	c.RunResult.IterationResults = append(c.RunResult.IterationResults, ir)

	failed := result.NewIterationResult("s2", "s2", "idle")
	failed.Iteration = 1
	failed.Status = result.StatusFailed
	failed.AddEvent("device fell over")
	c.RunResult.IterationResults = append(c.RunResult.IterationResults, failed)
	return c.RunResult
}

func TestCSVExport(t *testing.T) {
	c := newTestContext(t)
	res := sampleRunResult(c)

	p, err := New("csv", nil)
	require.NoError(t, err)
	require.NoError(t, p.ProcessRunResult(res, c))

	path := filepath.Join(c.RunOutputDirectory, "results.csv")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3, "header plus one metric row plus one metricless row")
	require.Equal(t, "id,workload,iteration,status,metric,value,units", lines[0])
	require.Contains(t, lines[1], "execution_time")
	require.Contains(t, lines[2], "FAILED")

	require.NotNil(t, c.GetArtifact("results_csv"))
}

func TestYAMLDump(t *testing.T) {
	c := newTestContext(t)
	res := sampleRunResult(c)

	p, err := New("yaml", nil)
	require.NoError(t, err)
	require.NoError(t, p.ProcessRunResult(res, c))

	raw, err := os.ReadFile(filepath.Join(c.RunOutputDirectory, "run_result.yaml"))
	require.NoError(t, err)
	body := string(raw)
	require.Contains(t, body, "uuid:")
	require.Contains(t, body, "device fell over")
	require.Contains(t, body, "FAILED")

	require.NotNil(t, c.GetArtifact("run_result"))
}

func TestUnknownProcessor(t *testing.T) {
	_, err := New("parquet", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown result processor")
}
