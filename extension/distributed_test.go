package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pm/config"
)

func setupDistributed(t *testing.T, mutate func(*config.Config)) *Distributed {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	d := NewDistributed()
	require.NoError(t, d.Setup(context.Background(), cfg, zap.NewNop().Sugar()))
	return d
}

func TestBuildArgvLocal(t *testing.T) {
	d := setupDistributed(t, nil)

	argv, err := d.BuildArgv(Job{Name: "bcbio-J.Doe_13_01", Command: []string{"bcbio_nextgen.py", "config.yaml"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bcbio_nextgen.py", "config.yaml"}, argv)
}

func TestBuildArgvSbatch(t *testing.T) {
	d := setupDistributed(t, func(cfg *config.Config) {
		cfg.Distributed.Enabled = true
		cfg.Distributed.Account = "a2010002"
		cfg.Distributed.Partition = "node"
		cfg.Distributed.Time = "12:00:00"
		cfg.Distributed.Extra = []string{"--qos=short"}
	})

	argv, err := d.BuildArgv(Job{Name: "bcbio-run", Command: []string{"bcbio_nextgen.py", "run info.yaml"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"sbatch",
		"--job-name", "bcbio-run",
		"--partition", "node",
		"--time", "12:00:00",
		"--output", "bcbio-run-%j.out",
		"--account", "a2010002",
		"--qos=short",
		"--wrap", "bcbio_nextgen.py 'run info.yaml'",
	}, argv)
}

func TestBuildArgvJobOverrides(t *testing.T) {
	d := setupDistributed(t, func(cfg *config.Config) {
		cfg.Distributed.Enabled = true
		cfg.Distributed.Partition = "core"
		cfg.Distributed.Time = "04:00:00"
	})

	argv, err := d.BuildArgv(Job{
		Name:      "j",
		Command:   []string{"true"},
		Partition: "node",
		Time:      "00:10:00",
	})
	require.NoError(t, err)
	assert.Contains(t, argv, "node")
	assert.Contains(t, argv, "00:10:00")
	assert.NotContains(t, argv, "core")
}

func TestBuildArgvEmptyCommand(t *testing.T) {
	d := setupDistributed(t, nil)
	_, err := d.BuildArgv(Job{Name: "empty"})
	assert.Error(t, err)
}

func TestSubmitUsesRunner(t *testing.T) {
	d := setupDistributed(t, nil)

	var gotArgv []string
	var gotDir string
	d.SetRunner(func(_ context.Context, workDir string, argv []string) error {
		gotDir = workDir
		gotArgv = argv
		return nil
	})

	err := d.Submit(context.Background(), Job{Name: "j", WorkDir: "/tmp/work", Command: []string{"true"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, gotArgv)
	assert.Equal(t, "/tmp/work", gotDir)
}

func TestSubmitDryRun(t *testing.T) {
	d := setupDistributed(t, nil)
	d.SetDryRun(true)
	d.SetRunner(func(context.Context, string, []string) error {
		t.Fatal("dry run must not execute")
		return nil
	})

	assert.NoError(t, d.Submit(context.Background(), Job{Name: "j", Command: []string{"true"}}))
}

func TestSubmitBeforeSetup(t *testing.T) {
	d := NewDistributed()
	assert.Error(t, d.Submit(context.Background(), Job{Name: "j", Command: []string{"true"}}))
}

func TestShellJoin(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"plain", []string{"ls", "-l"}, "ls -l"},
		{"spaces quoted", []string{"echo", "hello world"}, "echo 'hello world'"},
		{"empty quoted", []string{"cmd", ""}, "cmd ''"},
		{"path safe", []string{"/usr/bin/env", "a=b"}, "/usr/bin/env a=b"},
		{"single quote escaped", []string{"echo", "it's"}, `echo 'it'\''s'`},
		{"only quote", []string{"echo", "'"}, `echo ''\'''`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shellJoin(tt.argv))
		})
	}
}
