package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/workload-harness/internal/platform/logger"
	"github.com/yungbote/workload-harness/internal/result"
	"github.com/yungbote/workload-harness/internal/signals"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	cfg := testConfig(t)
	c := NewContext(context.Background(), newStubDevice(), cfg, signals.NewBus(), logger.Nop())
	require.NoError(t, c.Initialize())
	return c
}

func TestContextInitialize(t *testing.T) {
	c := newTestContext(t)

	require.DirExists(t, c.RunOutputDirectory)
	require.DirExists(t, c.HostWorkingDirectory)
	require.Equal(t, c.RunOutputDirectory, c.OutputDirectory)
	require.NotNil(t, c.RunInfo)
	require.NotNil(t, c.RunResult)
	require.NotZero(t, c.RunInfo.UUID)

	// The run log is pre-registered as a mandatory run artifact.
	a := c.GetArtifact("runlog")
	require.NotNil(t, a)
	require.True(t, a.Mandatory)
	require.Equal(t, result.ScopeRun, a.Scope)
}

func TestNextJobCreatesIterationDirectoryAndCounters(t *testing.T) {
	c := newTestContext(t)
	w := newStubWorkload("wk")
	spec := testSpec("s1", 2, w)

	j1 := NewJob(spec)
	require.NoError(t, c.NextJob(j1))
	require.Equal(t, 1, c.CurrentIteration())
	require.Equal(t, j1, c.CurrentJob())
	require.Equal(t, filepath.Join(c.RunOutputDirectory, "s1_s1_1"), c.OutputDirectory)
	require.DirExists(t, c.OutputDirectory)
	require.Equal(t, 1, j1.Result.Iteration)
	c.EndJob()
	require.Nil(t, c.CurrentJob())
	require.Equal(t, c.RunOutputDirectory, c.OutputDirectory)

	j2 := NewJob(spec)
	require.NoError(t, c.NextJob(j2))
	require.Equal(t, 2, c.CurrentIteration())
	c.EndJob()

	require.Equal(t, 2, c.JobIterationCounts["s1"])
}

func TestEndJobSetsAbortedOnAbortedResult(t *testing.T) {
	c := newTestContext(t)
	j := NewJob(testSpec("s1", 1, newStubWorkload("wk")))
	require.NoError(t, c.NextJob(j))
	j.Result.Status = result.StatusAborted
	c.EndJob()
	require.True(t, c.Aborted)
}

func TestNextJobWhileAbortedSkipsDirectoryCreation(t *testing.T) {
	c := newTestContext(t)
	c.Aborted = true
	j := NewJob(testSpec("s1", 1, newStubWorkload("wk")))
	require.NoError(t, c.NextJob(j))
	require.Equal(t, c.RunOutputDirectory, c.OutputDirectory)
	require.NoDirExists(t, filepath.Join(c.RunOutputDirectory, "s1_s1_1"))
}

func TestMetricRouting(t *testing.T) {
	c := newTestContext(t)
	j := NewJob(testSpec("s1", 1, newStubWorkload("wk")))
	require.NoError(t, c.NextJob(j))
	c.AddMetric(result.Metric{Name: "fps", Value: 60})
	c.EndJob()
	c.AddMetric(result.Metric{Name: "total_energy", Value: 12.5})

	require.Len(t, j.Result.Metrics, 1)
	require.Equal(t, "fps", j.Result.Metrics[0].Name)
	require.Len(t, c.RunResult.Metrics, 1)
	require.Equal(t, "total_energy", c.RunResult.Metrics[0].Name)
}

func TestArtifactRoutingAndValidation(t *testing.T) {
	c := newTestContext(t)
	j := NewJob(testSpec("s1", 1, newStubWorkload("wk")))
	require.NoError(t, c.NextJob(j))

	// A relative artifact name must exist under the iteration directory.
	require.Error(t, c.AddArtifact("trace", "trace.bin", result.ArtifactData, false, ""))

	path := filepath.Join(c.OutputDirectory, "trace.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, c.AddArtifact("trace", "trace.bin", result.ArtifactData, false, ""))

	a := c.GetArtifact("trace")
	require.NotNil(t, a)
	require.Equal(t, result.ScopeIteration, a.Scope)
	require.Equal(t, path, a.Path)
	require.Len(t, j.Result.Artifacts, 1)

	c.EndJob()

	// With no active job the artifact routes to the run.
	runPath := filepath.Join(c.RunOutputDirectory, "summary.txt")
	require.NoError(t, os.WriteFile(runPath, []byte("x"), 0o644))
	require.NoError(t, c.AddArtifact("summary", "summary.txt", result.ArtifactExport, false, ""))
	require.Equal(t, result.ScopeRun, c.GetArtifact("summary").Scope)
}

func TestGetArtifactPrefersIterationScope(t *testing.T) {
	c := newTestContext(t)
	w := newStubWorkload("wk")
	w.artifacts = []*result.Artifact{{Name: "runlog", Path: "wk.log", Kind: result.ArtifactLog, Scope: result.ScopeIteration}}
	j := NewJob(testSpec("s1", 1, w))
	require.NoError(t, c.NextJob(j))

	a := c.GetArtifact("runlog")
	require.NotNil(t, a)
	require.Equal(t, result.ScopeIteration, a.Scope, "iteration artifacts shadow run artifacts")
}
