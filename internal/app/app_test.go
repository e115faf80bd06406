package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/platform/logger"
)

func TestBuildSpecsInheritsInstrumentation(t *testing.T) {
	cfg := &config.Config{
		Instrumentation: map[string]map[string]any{
			"execution_time": {},
		},
		Workloads: []config.WorkloadEntry{
			{ID: "1", Label: "a", Workload: "idle", Iterations: 2},
			{ID: "2", Label: "b", Workload: "idle", Iterations: 1, Instrumentation: []string{}},
		},
	}
	specs, err := buildSpecs(cfg)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	require.Equal(t, []string{"execution_time"}, specs[0].Instrumentation)
	require.Empty(t, specs[1].Instrumentation, "an explicit empty set is respected")
	require.True(t, specs[0].Enabled)
}

func TestBuildSpecsUnknownWorkload(t *testing.T) {
	cfg := &config.Config{
		Workloads: []config.WorkloadEntry{{Workload: "warp_drive"}},
	}
	_, err := buildSpecs(cfg)
	require.Error(t, err)
}

func TestBuildDevice(t *testing.T) {
	log := logger.Nop()

	dev, err := buildDevice(&config.Config{}, log)
	require.NoError(t, err)
	require.Equal(t, "local", dev.Name())

	_, err = buildDevice(&config.Config{Device: "quantum"}, log)
	require.Error(t, err)
}

func TestBuildProcessorsAndInstruments(t *testing.T) {
	cfg := &config.Config{
		Instrumentation:  map[string]map[string]any{"execution_time": {}},
		ResultProcessors: map[string]map[string]any{"csv": {}, "yaml": {}},
	}
	insts, err := buildInstruments(cfg)
	require.NoError(t, err)
	require.Len(t, insts, 1)

	procs, err := buildProcessors(cfg)
	require.NoError(t, err)
	require.Len(t, procs, 2)

	cfg.ResultProcessors["parquet"] = map[string]any{}
	_, err = buildProcessors(cfg)
	require.Error(t, err)
}
