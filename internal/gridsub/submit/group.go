package submit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gridsub/gridsub/internal/gridsub/mirror"
	"github.com/gridsub/gridsub/internal/gridsub/store"
	"github.com/gridsub/gridsub/pkg/errors"
	"github.com/gridsub/gridsub/pkg/logger"
)

// GroupConfig holds the settings shared by every job in a group.
type GroupConfig struct {
	// Name identifies the group in logs and errors
	Name string

	// Exe is the executable every job in the group runs
	Exe string
	// CopyExe stages the executable into the store; disable for builtins
	CopyExe bool
	// SetupScript, when set, runs on the worker before the executable
	SetupScript string

	// Filename is where the submit descriptor is written
	Filename string

	// Log locations; the *File parts may use scheduler substitution macros
	OutDir, OutFile string
	ErrDir, ErrFile string
	LogDir, LogFile string

	// Resource request per job
	CPUs   int
	Memory string
	Disk   string

	// Certificate requires a valid grid certificate at submission time
	Certificate bool

	// TransferInputs pulls store-resident inputs into the sandbox before
	// running; when false they are read from the store in place
	TransferInputs bool

	// ShareExeSetup stages one copy of the executable and setup script in
	// the group store directory instead of one per job
	ShareExeSetup bool

	// CommonInputFiles are staged once at group level and visible to all
	// jobs
	CommonInputFiles []string

	// StoreDir is the group's staging root inside the distributed store
	StoreDir string

	// WorkerScript is the wrapper the scheduler actually executes
	WorkerScript string

	// AccountingGroup, when set, is emitted in workflow mode along with
	// the scheduler's accounting-user macro
	AccountingGroup string

	// TemplateFile optionally overrides the built-in submit template
	TemplateFile string

	// OtherArgs are free-form key=value descriptor options, rendered in
	// sorted key order
	OtherArgs map[string]string
}

// DefaultGroupConfig returns the settings most submissions start from.
func DefaultGroupConfig() GroupConfig {
	return GroupConfig{
		CopyExe:        true,
		Filename:       "jobs.condor",
		OutDir:         "logs",
		OutFile:        "$(cluster).$(process).out",
		ErrDir:         "logs",
		ErrFile:        "$(cluster).$(process).err",
		LogDir:         "logs",
		LogFile:        "$(cluster).$(process).log",
		CPUs:           1,
		Memory:         "100MB",
		Disk:           "100MB",
		TransferInputs: true,
		ShareExeSetup:  true,
	}
}

// Group owns a set of jobs sharing one submit descriptor, resource request,
// log locations, and staging root.
type Group struct {
	cfg      GroupConfig
	resolver *mirror.Resolver
	log      *logger.Logger

	names  []string
	byName map[string]*Job

	commonMirrors []mirror.Mirror
}

// NewGroup validates the configuration, creates the log and staging
// directories, and resolves mirrors for the group's common input files.
// Directory creation goes through the copier so store-resident staging
// roots are created with the store's own tooling.
func NewGroup(ctx context.Context, cfg GroupConfig, resolver *mirror.Resolver, copier *store.Copier, log *logger.Logger) (*Group, error) {
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(cfg.Filename), filepath.Ext(cfg.Filename))
	}
	if cfg.Exe == "" {
		return nil, errors.WrapGroupError(cfg.Name, "new", errors.NewConfigError("group", "exe", fmt.Errorf("must not be empty")))
	}
	if cfg.StoreDir == "" {
		return nil, errors.WrapGroupError(cfg.Name, "new", errors.ErrMissingStore)
	}
	if cfg.WorkerScript == "" {
		return nil, errors.WrapGroupError(cfg.Name, "new", errors.NewConfigError("group", "worker_script", fmt.Errorf("must not be empty")))
	}
	for _, f := range []string{cfg.Filename, cfg.OutFile, cfg.ErrFile, cfg.LogFile} {
		if f == "" || f == "." {
			return nil, errors.WrapGroupError(cfg.Name, "new", errors.NewBadFilenameError("group", f))
		}
	}
	if cfg.CPUs < 1 {
		cfg.CPUs = 1
	}

	g := &Group{
		cfg:      cfg,
		resolver: resolver,
		log:      log.WithField("group", cfg.Name),
		byName:   make(map[string]*Job),
	}

	for _, dir := range []string{cfg.OutDir, cfg.ErrDir, cfg.LogDir, cfg.StoreDir} {
		if dir == "" {
			continue
		}
		if err := copier.MkdirAll(ctx, dir); err != nil {
			return nil, errors.WrapGroupError(cfg.Name, "new", err)
		}
	}

	for _, f := range cfg.CommonInputFiles {
		g.commonMirrors = append(g.commonMirrors, resolver.ResolveInput(f, cfg.StoreDir))
	}

	return g, nil
}

// Config returns the group's configuration.
func (g *Group) Config() GroupConfig {
	return g.cfg
}

// Name returns the group identifier.
func (g *Group) Name() string {
	return g.cfg.Name
}

// Filename returns the submit descriptor path.
func (g *Group) Filename() string {
	return g.cfg.Filename
}

// CommonMirrors returns the group-level shared input mirrors.
func (g *Group) CommonMirrors() []mirror.Mirror {
	return g.commonMirrors
}

// Add attaches a job to the group.
func (g *Group) Add(job *Job) error {
	return job.Attach(g)
}

// Jobs returns the attached jobs in insertion order.
func (g *Group) Jobs() []*Job {
	jobs := make([]*Job, 0, len(g.names))
	for _, name := range g.names {
		jobs = append(jobs, g.byName[name])
	}
	return jobs
}

// Len returns the number of attached jobs.
func (g *Group) Len() int {
	return len(g.names)
}

// Job returns the attached job with the given name, if any.
func (g *Group) Job(name string) (*Job, bool) {
	j, ok := g.byName[name]
	return j, ok
}

// Render produces the submit descriptor text. In workflow mode the real
// argument strings live in the workflow descriptor, so the output carries a
// single variable placeholder and one queue directive; otherwise every job
// is listed with its rendered arguments and repetition count. Rendering the
// same unmutated group twice yields byte-identical text.
func (g *Group) Render(dagMode bool) (string, error) {
	if len(g.names) == 0 {
		return "", errors.WrapGroupError(g.cfg.Name, "render", errors.ErrEmptyGroup)
	}

	template := defaultTemplate
	if g.cfg.TemplateFile != "" {
		data, err := os.ReadFile(g.cfg.TemplateFile)
		if err != nil {
			return "", errors.WrapGroupError(g.cfg.Name, "render", err)
		}
		template = string(data)
	}

	otherArgs := make(map[string]string, len(g.cfg.OtherArgs)+3)
	for k, v := range g.cfg.OtherArgs {
		otherArgs[k] = v
	}
	if dagMode && g.cfg.AccountingGroup != "" {
		otherArgs["accounting_group"] = g.cfg.AccountingGroup
		otherArgs["accounting_group_user"] = "$ENV(LOGNAME)"
	}
	if g.cfg.Certificate {
		otherArgs["use_x509userproxy"] = "True"
	}

	var otherLines []string
	keys := make([]string, 0, len(otherArgs))
	for k := range otherArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		otherLines = append(otherLines, fmt.Sprintf("%s = %s", k, otherArgs[k]))
	}

	replacements := map[string]string{
		"EXE_WRAPPER": g.cfg.WorkerScript,
		"STDOUT":      filepath.Join(g.cfg.OutDir, g.cfg.OutFile),
		"STDERR":      filepath.Join(g.cfg.ErrDir, g.cfg.ErrFile),
		"STDLOG":      filepath.Join(g.cfg.LogDir, g.cfg.LogFile),
		"CPUS":        fmt.Sprintf("%d", g.cfg.CPUs),
		"MEMORY":      g.cfg.Memory,
		"DISK":        g.cfg.Disk,
		"OTHER_ARGS":  strings.Join(otherLines, "\n"),
	}
	for token, replacement := range replacements {
		if replacement != "" {
			template = strings.ReplaceAll(template, "{"+token+"}", replacement)
		}
	}

	var sb strings.Builder
	sb.WriteString(template)

	if dagMode {
		// real arguments arrive through the workflow descriptor's VARS
		sb.WriteString(fmt.Sprintf("arguments=$(%s)\n", JobVarName))
		sb.WriteString("queue\n")
	} else {
		for _, name := range g.names {
			job := g.byName[name]
			argStr, err := job.ArgumentString()
			if err != nil {
				return "", errors.WrapGroupError(g.cfg.Name, "render", err)
			}
			sb.WriteString(fmt.Sprintf("\n# %s\n", name))
			sb.WriteString(fmt.Sprintf("arguments=\"%s\"\n", argStr))
			sb.WriteString(fmt.Sprintf("\nqueue %d\n", job.Quantity))
		}
	}

	return stripLeftoverTokens(sb.String(), g.log), nil
}

// Write renders the descriptor and writes it in one step; nothing is
// written when rendering fails.
func (g *Group) Write(dagMode bool) error {
	contents, err := g.Render(dagMode)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(g.cfg.Filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapGroupError(g.cfg.Name, "write", err)
		}
	}

	g.log.Info("writing submit descriptor", "file", g.cfg.Filename)
	if err := os.WriteFile(g.cfg.Filename, []byte(contents), 0644); err != nil {
		return errors.WrapGroupError(g.cfg.Name, "write", err)
	}
	return nil
}

// StageFiles copies everything the group's jobs need into the store: one
// shared copy of the executable and setup script when ShareExeSetup is on,
// then the group-level common inputs, then each job's private files.
func (g *Group) StageFiles(ctx context.Context, copier *store.Copier) error {
	if g.cfg.ShareExeSetup {
		if g.cfg.CopyExe {
			if err := copier.Copy(ctx, g.cfg.Exe, g.cfg.StoreDir); err != nil {
				return errors.WrapGroupError(g.cfg.Name, "stage", err)
			}
		}
		if g.cfg.SetupScript != "" {
			if err := copier.Copy(ctx, g.cfg.SetupScript, g.cfg.StoreDir); err != nil {
				return errors.WrapGroupError(g.cfg.Name, "stage", err)
			}
		}
	}

	for _, m := range g.commonMirrors {
		if !m.NeedsStaging() {
			continue
		}
		if err := copier.Copy(ctx, m.Original, m.Staged); err != nil {
			return errors.WrapGroupError(g.cfg.Name, "stage", err)
		}
	}

	for _, name := range g.names {
		if err := g.byName[name].StageFiles(ctx, copier); err != nil {
			return err
		}
	}
	return nil
}

// Submit writes the descriptor, stages files, and hands the descriptor to
// the external scheduler command. A non-zero exit aborts the submission.
func (g *Group) Submit(ctx context.Context, copier *store.Copier, runner store.Runner, submitCmd string, force bool) error {
	if g.cfg.Certificate {
		if err := store.CheckCertificate(ctx, runner); err != nil {
			return errors.WrapGroupError(g.cfg.Name, "submit", err)
		}
	}

	if err := g.Write(false); err != nil {
		return err
	}
	if err := g.StageFiles(ctx, copier); err != nil {
		return err
	}

	args := []string{g.cfg.Filename}
	if force {
		args = append([]string{"-f"}, args...)
	}

	g.log.Info("submitting group", "file", g.cfg.Filename, "jobs", len(g.names))
	if err := runner.Run(ctx, store.Command{Name: submitCmd, Args: args}); err != nil {
		return errors.WrapGroupError(g.cfg.Name, "submit", err)
	}
	return nil
}
