package submit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsub/gridsub/internal/gridsub/mirror"
	"github.com/gridsub/gridsub/internal/gridsub/store"
	"github.com/gridsub/gridsub/pkg/errors"
)

func TestNewGroupValidation(t *testing.T) {
	runner := &fakeRunner{}
	resolver := mirror.NewResolver("/hdfs")
	copier := store.NewCopier(resolver, "hadoop", runner, testLogger())

	base := func() GroupConfig {
		cfg := DefaultGroupConfig()
		cfg.Exe = "/bin/echo"
		cfg.StoreDir = "/hdfs/user/tester/x"
		cfg.WorkerScript = "/usr/local/bin/grid_worker.py"
		cfg.OutDir = ""
		cfg.ErrDir = ""
		cfg.LogDir = ""
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*GroupConfig)
	}{
		{"missing exe", func(cfg *GroupConfig) { cfg.Exe = "" }},
		{"missing store dir", func(cfg *GroupConfig) { cfg.StoreDir = "" }},
		{"missing worker script", func(cfg *GroupConfig) { cfg.WorkerScript = "" }},
		{"empty filename", func(cfg *GroupConfig) { cfg.Filename = "" }},
		{"dot filename", func(cfg *GroupConfig) { cfg.Filename = "." }},
		{"empty out file", func(cfg *GroupConfig) { cfg.OutFile = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			_, err := NewGroup(context.Background(), cfg, resolver, copier, testLogger())
			require.Error(t, err)
			assert.True(t, errors.IsGroupError(err))
		})
	}

	t.Run("valid", func(t *testing.T) {
		g, err := NewGroup(context.Background(), base(), resolver, copier, testLogger())
		require.NoError(t, err)
		assert.Equal(t, 0, g.Len())
	})
}

func TestNewGroupCreatesDirectories(t *testing.T) {
	g, runner := newTestGroup(t, nil)

	// local log dir exists on disk
	info, err := os.Stat(g.Config().OutDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// staging root goes through the store tooling
	require.NotEmpty(t, runner.commands)
	assert.Equal(t, []string{"fs", "-mkdir", "-p", "/user/tester/analysis"}, runner.commands[0].Args)
}

func TestNewGroupResolvesCommonInputs(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.CommonInputFiles = []string{"/data/shared.db"}
	})

	require.Len(t, g.CommonMirrors(), 1)
	m := g.CommonMirrors()[0]
	assert.Equal(t, "/data/shared.db", m.Original)
	assert.Equal(t, "/hdfs/user/tester/analysis/shared.db", m.Staged)
}

func TestRenderEmptyGroup(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	_, err := g.Render(false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEmptyGroup)
}

func TestRenderPerJobMode(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.CPUs = 2
		cfg.Memory = "2GB"
		cfg.Disk = "500MB"
	})

	j1 := NewJob("run1", []string{"--seed", "1"})
	require.NoError(t, g.Add(j1))
	j2 := NewJob("run2", []string{"--seed", "2"})
	j2.Quantity = 5
	require.NoError(t, g.Add(j2))

	out, err := g.Render(false)
	require.NoError(t, err)

	assert.Contains(t, out, "executable = /usr/local/bin/grid_worker.py")
	assert.Contains(t, out, "request_cpus = 2")
	assert.Contains(t, out, "request_memory = 2GB")
	assert.Contains(t, out, "request_disk = 500MB")

	assert.Contains(t, out, "# run1\n")
	assert.Contains(t, out, "# run2\n")
	assert.Contains(t, out, "queue 1\n")
	assert.Contains(t, out, "queue 5\n")

	// jobs render in attachment order
	assert.Less(t, strings.Index(out, "# run1"), strings.Index(out, "# run2"))

	// no unreplaced tokens survive
	assert.NotContains(t, out, "{")
	assert.NotContains(t, out, "}")
}

func TestRenderDagMode(t *testing.T) {
	g, _ := newTestGroup(t, nil)
	require.NoError(t, g.Add(NewJob("run1", []string{"--seed", "1"})))

	out, err := g.Render(true)
	require.NoError(t, err)

	assert.Contains(t, out, "arguments=$(jobOpts)\nqueue\n")
	// per-job sections only appear outside workflow mode
	assert.NotContains(t, out, "# run1")
	assert.NotContains(t, out, "queue 1")
}

func TestRenderDagModeAccountingGroup(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.AccountingGroup = "group_physics.hep"
	})
	require.NoError(t, g.Add(NewJob("run1", nil)))

	dag, err := g.Render(true)
	require.NoError(t, err)
	assert.Contains(t, dag, "accounting_group = group_physics.hep")
	assert.Contains(t, dag, "accounting_group_user = $ENV(LOGNAME)")

	plain, err := g.Render(false)
	require.NoError(t, err)
	assert.NotContains(t, plain, "accounting_group")
}

func TestRenderCertificateOption(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.Certificate = true
	})
	require.NoError(t, g.Add(NewJob("run1", nil)))

	out, err := g.Render(false)
	require.NoError(t, err)
	assert.Contains(t, out, "use_x509userproxy = True")
}

func TestRenderOtherArgsSorted(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.OtherArgs = map[string]string{
			"priority":    "10",
			"getenv":      "True",
			"nice_user":   "True",
			"+JobFlavour": "longlunch",
		}
	})
	require.NoError(t, g.Add(NewJob("run1", nil)))

	out, err := g.Render(false)
	require.NoError(t, err)

	idx := func(s string) int { return strings.Index(out, s) }
	assert.Less(t, idx("+JobFlavour = longlunch"), idx("getenv = True"))
	assert.Less(t, idx("getenv = True"), idx("nice_user = True"))
	assert.Less(t, idx("nice_user = True"), idx("priority = 10"))
}

func TestRenderIdempotent(t *testing.T) {
	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.OtherArgs = map[string]string{"getenv": "True", "priority": "10"}
	})
	j := NewJob("run1", []string{"--input", "/data/in.txt"})
	j.InputFiles = []string{"/data/in.txt"}
	require.NoError(t, g.Add(j))

	first, err := g.Render(false)
	require.NoError(t, err)
	second, err := g.Render(false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstDag, err := g.Render(true)
	require.NoError(t, err)
	secondDag, err := g.Render(true)
	require.NoError(t, err)
	assert.Equal(t, firstDag, secondDag)
}

func TestRenderCustomTemplate(t *testing.T) {
	dir := t.TempDir()
	templ := filepath.Join(dir, "custom.condor")
	require.NoError(t, os.WriteFile(templ,
		[]byte("executable = {EXE_WRAPPER}\nrank = Memory\n{UNKNOWN}\n"), 0644))

	g, _ := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.TemplateFile = templ
	})
	require.NoError(t, g.Add(NewJob("run1", nil)))

	out, err := g.Render(false)
	require.NoError(t, err)
	assert.Contains(t, out, "executable = /usr/local/bin/grid_worker.py")
	assert.Contains(t, out, "rank = Memory")
	assert.NotContains(t, out, "{UNKNOWN}")
}

func TestWriteRendersAtomically(t *testing.T) {
	g, _ := newTestGroup(t, nil)

	// rendering fails on an empty group, so nothing lands on disk
	require.Error(t, g.Write(false))
	_, err := os.Stat(g.Filename())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, g.Add(NewJob("run1", nil)))
	require.NoError(t, g.Write(false))

	data, err := os.ReadFile(g.Filename())
	require.NoError(t, err)
	rendered, err := g.Render(false)
	require.NoError(t, err)
	assert.Equal(t, rendered, string(data))
}

func TestGroupStageFilesSharedExeOnce(t *testing.T) {
	g, runner := newTestGroup(t, nil)

	require.NoError(t, g.Add(NewJob("run1", nil)))
	require.NoError(t, g.Add(NewJob("run2", nil)))

	before := len(runner.commands)
	require.NoError(t, g.StageFiles(context.Background(), storeCopier(g, runner)))

	var exeCopies int
	for _, cmd := range runner.commands[before:] {
		for _, arg := range cmd.Args {
			if arg == g.Config().Exe {
				exeCopies++
			}
		}
	}
	assert.Equal(t, 1, exeCopies)
}

func TestSubmitRunsScheduler(t *testing.T) {
	g, runner := newTestGroup(t, nil)
	require.NoError(t, g.Add(NewJob("run1", nil)))

	copier := storeCopier(g, runner)
	require.NoError(t, g.Submit(context.Background(), copier, runner, "condor_submit", false))

	last := runner.commands[len(runner.commands)-1]
	assert.Equal(t, "condor_submit", last.Name)
	assert.Equal(t, []string{g.Filename()}, last.Args)

	// descriptor written before handing off
	_, err := os.Stat(g.Filename())
	assert.NoError(t, err)
}

func TestSubmitForce(t *testing.T) {
	g, runner := newTestGroup(t, nil)
	require.NoError(t, g.Add(NewJob("run1", nil)))

	copier := storeCopier(g, runner)
	require.NoError(t, g.Submit(context.Background(), copier, runner, "condor_submit", true))

	last := runner.commands[len(runner.commands)-1]
	assert.Equal(t, []string{"-f", g.Filename()}, last.Args)
}

func TestSubmitCertificateCheck(t *testing.T) {
	g, runner := newTestGroup(t, func(cfg *GroupConfig) {
		cfg.Certificate = true
	})
	require.NoError(t, g.Add(NewJob("run1", nil)))

	// expired proxy aborts before anything is written or staged
	runner.output = []byte("subject : /DC=ch/CN=tester\ntimeleft : 0:00:00\n")
	before := len(runner.commands)

	err := g.Submit(context.Background(), storeCopier(g, runner), runner, "condor_submit", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBadCertificate)
	require.Len(t, runner.commands, before+1)
	assert.Equal(t, "voms-proxy-info", runner.commands[before].Name)
}
