// Package submit models units of batch work and the job groups that share
// one submit descriptor, and renders that descriptor for the external
// scheduler.
package submit

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gridsub/gridsub/internal/gridsub/mirror"
	"github.com/gridsub/gridsub/internal/gridsub/store"
	"github.com/gridsub/gridsub/pkg/errors"
)

// JobVarName is the per-node variable carrying a job's argument string in
// workflow mode. It appears both in the workflow descriptor's VARS lines
// and in the submit descriptor's arguments placeholder.
const JobVarName = "jobOpts"

// Job is one unit of work: executable arguments, declared input and output
// file references, and a repetition count. A Job is created standalone and
// becomes fully resolved only once attached to exactly one Group.
type Job struct {
	// Name must be unique within the owning Group and within any workflow
	// graph the job joins
	Name string

	// Args are the user's arguments for the wrapped executable
	Args []string

	// InputFiles are transferred to the worker before the executable runs
	InputFiles []string

	// OutputFiles are published to the store after the executable finishes
	OutputFiles []string

	// Quantity is how many instances of this job to queue
	Quantity int

	// StagingDir overrides the job's private staging directory in the
	// store; defaults to <group store dir>/<job name>
	StagingDir string

	owner         *Group
	inputMirrors  []mirror.Mirror
	outputMirrors []mirror.Mirror
}

// NewJob creates an unattached job with a single repetition.
func NewJob(name string, args []string) *Job {
	return &Job{
		Name:     name,
		Args:     append([]string(nil), args...),
		Quantity: 1,
	}
}

// Group returns the owning group, or nil while unattached.
func (j *Job) Group() *Group {
	return j.owner
}

// InputMirrors returns the resolved input mirrors, in creation order.
func (j *Job) InputMirrors() []mirror.Mirror {
	return j.inputMirrors
}

// OutputMirrors returns the resolved output mirrors, in creation order.
func (j *Job) OutputMirrors() []mirror.Mirror {
	return j.outputMirrors
}

// Attach registers the job with a group and resolves its file mirrors.
// Attachment is one-time and irreversible: a second call fails regardless
// of the target group. When the group copies its executable (and setup
// script, if any), those become part of this job's effective inputs; with
// a shared executable they stage under the group store directory instead
// of this job's private one.
func (j *Job) Attach(g *Group) error {
	if g == nil {
		return errors.WrapJobError(j.Name, "attach", fmt.Errorf("%w: group must not be nil", errors.ErrInvalidConfig))
	}
	if j.owner != nil {
		return errors.WrapJobError(j.Name, "attach", errors.ErrAlreadyAttached)
	}
	if j.Name == "" {
		return errors.WrapJobError(j.Name, "attach", errors.NewBadFilenameError("job", j.Name))
	}
	if j.Quantity < 1 {
		return errors.WrapJobError(j.Name, "attach",
			fmt.Errorf("%w: quantity must be >= 1, got %d", errors.ErrInvalidConfig, j.Quantity))
	}
	if _, exists := g.byName[j.Name]; exists {
		return errors.NewDuplicateJobError(j.Name, "attach")
	}

	g.byName[j.Name] = j
	g.names = append(g.names, j.Name)
	j.owner = g

	if j.StagingDir == "" {
		j.StagingDir = path.Join(g.cfg.StoreDir, j.Name)
	}

	inputs := append([]string(nil), j.InputFiles...)
	if g.cfg.CopyExe {
		inputs = append(inputs, g.cfg.Exe)
	}
	if g.cfg.SetupScript != "" {
		inputs = append(inputs, g.cfg.SetupScript)
	}

	for _, f := range inputs {
		dir := j.StagingDir
		if g.cfg.ShareExeSetup && (f == g.cfg.Exe || f == g.cfg.SetupScript) {
			dir = g.cfg.StoreDir
		}
		j.inputMirrors = append(j.inputMirrors, g.resolver.ResolveInput(f, dir))
	}
	for _, f := range j.OutputFiles {
		j.outputMirrors = append(j.outputMirrors, g.resolver.ResolveOutput(f, j.StagingDir))
	}

	g.log.Debug("job attached", "job", j.Name, "staging_dir", j.StagingDir,
		"inputs", len(j.inputMirrors), "outputs", len(j.outputMirrors))
	return nil
}

// ArgumentString renders the exact token sequence embedded in the submit
// descriptor for this job: the worker wrapper's setup/copy options plus the
// user arguments rewritten into whichever namespace the worker will read
// each file from. Output is deterministic: token replacement is exact-match,
// mirror by mirror in creation order.
func (j *Job) ArgumentString() (string, error) {
	if j.owner == nil {
		return "", errors.WrapJobError(j.Name, "arguments", errors.ErrNoGroup)
	}
	g := j.owner

	var jobArgs []string
	if g.cfg.SetupScript != "" {
		jobArgs = append(jobArgs, "--setup", path.Base(g.cfg.SetupScript))
	}

	newArgs := append([]string(nil), j.Args...)
	mirrors := append(append([]mirror.Mirror(nil), j.inputMirrors...), g.commonMirrors...)

	if g.cfg.TransferInputs {
		// worker pulls every input into the sandbox, so arguments point
		// at the working copies
		for _, m := range mirrors {
			replaceExact(newArgs, m.Original, m.Working)
			jobArgs = append(jobArgs, "--copyToLocal", m.Staged, m.Working)
		}
	} else {
		// store-resident inputs are read in place; everything else still
		// has to land in the sandbox
		for _, m := range mirrors {
			replaceExact(newArgs, m.Original, m.Staged)
			if !g.resolver.InStore(m.Original) {
				jobArgs = append(jobArgs, "--copyToLocal", m.Staged, m.Working)
			}
		}
	}

	for _, m := range j.outputMirrors {
		for i, arg := range newArgs {
			if arg == m.Original || arg == m.Staged {
				newArgs[i] = m.Working
			}
		}
		jobArgs = append(jobArgs, "--copyFromLocal", m.Working, m.Staged)
	}

	jobArgs = append(jobArgs, "--exe", path.Base(g.cfg.Exe))

	// the worker treats --args as greedy, so it must come last
	if len(newArgs) > 0 {
		jobArgs = append(jobArgs, "--args")
		jobArgs = append(jobArgs, newArgs...)
	}

	return strings.Join(jobArgs, " "), nil
}

func replaceExact(args []string, from, to string) {
	for i, arg := range args {
		if arg == from {
			args[i] = to
		}
	}
}

// StageFiles copies this job's inputs into its staging directory. Mirrors
// already resident in the store are skipped, as are shared executable and
// setup mirrors, which the group stages once for everyone. The staging
// directory is only created when at least one file needs it.
func (j *Job) StageFiles(ctx context.Context, copier *store.Copier) error {
	if j.owner == nil {
		return errors.WrapJobError(j.Name, "stage", errors.ErrNoGroup)
	}
	g := j.owner

	var toStage []mirror.Mirror
	for _, m := range j.inputMirrors {
		if !m.NeedsStaging() {
			continue
		}
		if g.cfg.ShareExeSetup && (m.Original == g.cfg.Exe || m.Original == g.cfg.SetupScript) {
			continue
		}
		toStage = append(toStage, m)
	}

	if len(toStage) == 0 {
		return nil
	}

	if err := copier.MkdirAll(ctx, j.StagingDir); err != nil {
		return errors.WrapJobError(j.Name, "stage", err)
	}
	for _, m := range toStage {
		if err := copier.Copy(ctx, m.Original, m.Staged); err != nil {
			return errors.WrapJobError(j.Name, "stage", err)
		}
	}
	return nil
}
