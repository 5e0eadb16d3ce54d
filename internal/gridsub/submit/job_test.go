package submit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsub/gridsub/internal/gridsub/mirror"
	"github.com/gridsub/gridsub/internal/gridsub/store"
	"github.com/gridsub/gridsub/pkg/errors"
	"github.com/gridsub/gridsub/pkg/logger"
)

type fakeRunner struct {
	commands []store.Command
	runErr   error
	output   []byte
	outErr   error
}

func (f *fakeRunner) Run(ctx context.Context, cmd store.Command) error {
	f.commands = append(f.commands, cmd)
	return f.runErr
}

func (f *fakeRunner) Output(ctx context.Context, cmd store.Command) ([]byte, error) {
	f.commands = append(f.commands, cmd)
	return f.output, f.outErr
}

func testLogger() *logger.Logger {
	log := logger.New()
	log.SetLevel(logger.ERROR)
	return log
}

// newTestGroup builds a group rooted in a temp dir with its staging root in
// the store, backed by a recording runner.
func newTestGroup(t *testing.T, mutate func(*GroupConfig)) (*Group, *fakeRunner) {
	t.Helper()

	dir := t.TempDir()
	exe := filepath.Join(dir, "run_analysis.sh")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755))

	cfg := DefaultGroupConfig()
	cfg.Exe = exe
	cfg.Filename = filepath.Join(dir, "jobs.condor")
	cfg.OutDir = filepath.Join(dir, "logs")
	cfg.ErrDir = filepath.Join(dir, "logs")
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.StoreDir = "/hdfs/user/tester/analysis"
	cfg.WorkerScript = "/usr/local/bin/grid_worker.py"
	if mutate != nil {
		mutate(&cfg)
	}

	runner := &fakeRunner{}
	resolver := mirror.NewResolver("/hdfs")
	copier := store.NewCopier(resolver, "hadoop", runner, testLogger())

	g, err := NewGroup(context.Background(), cfg, resolver, copier, testLogger())
	require.NoError(t, err)
	return g, runner
}

func TestNewJobDefaults(t *testing.T) {
	j := NewJob("clean_run1", []string{"--input", "data.txt"})
	assert.Equal(t, "clean_run1", j.Name)
	assert.Equal(t, 1, j.Quantity)
	assert.Nil(t, j.Group())
}

func TestAttachResolvesMirrors(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	j := NewJob("run1", nil)
	j.InputFiles = []string{"/data/in.txt"}
	j.OutputFiles = []string{"out.txt"}
	require.NoError(t, g.Add(j))

	assert.Equal(t, g, j.Group())
	assert.Equal(t, "/hdfs/user/tester/analysis/run1", j.StagingDir)

	// input file plus the shared executable
	require.Len(t, j.InputMirrors(), 2)
	in := j.InputMirrors()[0]
	assert.Equal(t, "/data/in.txt", in.Original)
	assert.Equal(t, "/hdfs/user/tester/analysis/run1/in.txt", in.Staged)
	assert.Equal(t, "in.txt", in.Working)

	// shared exe mirrors into the group store dir, not the job's
	exeMirror := j.InputMirrors()[1]
	assert.Equal(t, g.Config().Exe, exeMirror.Original)
	assert.Equal(t, "/hdfs/user/tester/analysis/run_analysis.sh", exeMirror.Staged)

	require.Len(t, j.OutputMirrors(), 1)
	out := j.OutputMirrors()[0]
	assert.Equal(t, "out.txt", out.Original)
	assert.Equal(t, "/hdfs/user/tester/analysis/run1/out.txt", out.Staged)
	assert.Equal(t, "out.txt", out.Working)
}

func TestAttachValidation(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	t.Run("nil group", func(t *testing.T) {
		err := NewJob("a", nil).Attach(nil)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("empty name", func(t *testing.T) {
		err := g.Add(NewJob("", nil))
		assert.ErrorIs(t, err, errors.ErrBadFilename)
	})

	t.Run("bad quantity", func(t *testing.T) {
		j := NewJob("q", nil)
		j.Quantity = 0
		err := g.Add(j)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("double attach", func(t *testing.T) {
		j := NewJob("twice", nil)
		require.NoError(t, g.Add(j))
		err := j.Attach(g)
		assert.ErrorIs(t, err, errors.ErrAlreadyAttached)
	})
}

func TestAttachDuplicateNameLeavesGroupIntact(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	require.NoError(t, g.Add(NewJob("run1", []string{"--first"})))

	err := g.Add(NewJob("run1", []string{"--second"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateJob)

	require.Equal(t, 1, g.Len())
	kept, ok := g.Job("run1")
	require.True(t, ok)
	assert.Equal(t, []string{"--first"}, kept.Args)
}

func TestArgumentStringUnattached(t *testing.T) {
	_, err := NewJob("loner", nil).ArgumentString()
	assert.ErrorIs(t, err, errors.ErrNoGroup)
}

func TestArgumentStringRewritesFileReferences(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	j := NewJob("run1", []string{"--input", "/data/in.txt", "--output", "out.txt"})
	j.InputFiles = []string{"/data/in.txt"}
	j.OutputFiles = []string{"out.txt"}
	require.NoError(t, g.Add(j))

	got, err := j.ArgumentString()
	require.NoError(t, err)

	want := "--copyToLocal /hdfs/user/tester/analysis/run1/in.txt in.txt " +
		"--copyToLocal /hdfs/user/tester/analysis/run_analysis.sh run_analysis.sh " +
		"--copyFromLocal out.txt /hdfs/user/tester/analysis/run1/out.txt " +
		"--exe run_analysis.sh " +
		"--args --input in.txt --output out.txt"
	assert.Equal(t, want, got)
}

func TestArgumentStringExactTokenMatch(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	// a path embedded in a larger token must survive untouched
	j := NewJob("run1", []string{"--list", "/data/in.txt,/data/other.txt", "/data/in.txt"})
	j.InputFiles = []string{"/data/in.txt"}
	require.NoError(t, g.Add(j))

	got, err := j.ArgumentString()
	require.NoError(t, err)
	assert.Contains(t, got, "--args --list /data/in.txt,/data/other.txt in.txt")
}

func TestArgumentStringSetupScript(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.SetupScript = "/etc/grid/setup_env.sh"
	})

	j := NewJob("run1", nil)
	require.NoError(t, g.Add(j))

	got, err := j.ArgumentString()
	require.NoError(t, err)
	assert.True(t, len(got) > 0)
	assert.Contains(t, got, "--setup setup_env.sh")
	// setup option leads the string
	assert.Equal(t, "--setup", got[:7])
}

func TestArgumentStringNoTransferReadsStoreInPlace(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.TransferInputs = false
		cfg.CopyExe = false
	})

	j := NewJob("run1", []string{"/hdfs/data/big.root"})
	j.InputFiles = []string{"/hdfs/data/big.root"}
	require.NoError(t, g.Add(j))

	got, err := j.ArgumentString()
	require.NoError(t, err)
	// store-resident input is read in place, so no sandbox copy
	assert.NotContains(t, got, "--copyToLocal")
	assert.Contains(t, got, "--args /hdfs/data/big.root")
}

func TestArgumentStringStoreResidentInputStagedEqualsOriginal(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.CopyExe = false
	})

	j := NewJob("run1", []string{"/hdfs/data/big.root"})
	j.InputFiles = []string{"/hdfs/data/big.root"}
	require.NoError(t, g.Add(j))

	m := j.InputMirrors()[0]
	assert.Equal(t, m.Original, m.Staged)
	assert.False(t, m.NeedsStaging())

	got, err := j.ArgumentString()
	require.NoError(t, err)
	assert.Contains(t, got, "--copyToLocal /hdfs/data/big.root big.root")
	assert.Contains(t, got, "--args big.root")
}

func TestStageFilesSkipsSharedAndResident(t *testing.T) {
	g, runner := newTestGroup(t, nil)

	j := NewJob("run1", nil)
	j.InputFiles = []string{"/hdfs/data/already.root"}
	require.NoError(t, g.Add(j))

	before := len(runner.commands)
	require.NoError(t, j.StageFiles(context.Background(), storeCopier(g, runner)))
	// only store-resident input and shared exe: nothing to stage, no mkdir
	assert.Len(t, runner.commands, before)
}

func TestStageFilesCopiesPrivateInputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(input, []byte("x\n"), 0644))

	g, runner := newTestGroup(t, nil)

	j := NewJob("run1", nil)
	j.InputFiles = []string{input}
	require.NoError(t, g.Add(j))

	before := len(runner.commands)
	require.NoError(t, j.StageFiles(context.Background(), storeCopier(g, runner)))

	cmds := runner.commands[before:]
	require.Len(t, cmds, 2)
	assert.Equal(t, []string{"fs", "-mkdir", "-p", "/user/tester/analysis/run1"}, cmds[0].Args)
	assert.Equal(t, []string{"fs", "-copyFromLocal", "-f", input, "/user/tester/analysis/run1/in.txt"}, cmds[1].Args)
}

func storeCopier(g *Group, runner *fakeRunner) *store.Copier {
	return store.NewCopier(g.resolver, "hadoop", runner, testLogger())
}
