package store

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"strings"

	"github.com/gridsub/gridsub/pkg/errors"
	"github.com/gridsub/gridsub/pkg/logger"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	// ExtraEnv entries ("KEY=value") are appended to the inherited
	// environment
	ExtraEnv []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external commands. The production implementation shells
// out; tests substitute a fake to avoid requiring the scheduler or store
// binaries on the test host.
type Runner interface {
	// Run executes the command, streaming its output to the process
	// stdout/stderr. A non-zero exit is returned as a CommandError.
	Run(ctx context.Context, cmd Command) error

	// Output executes the command and captures stdout. A non-zero exit is
	// returned as a CommandError carrying stderr in its message.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	log *logger.Logger
}

func NewExecRunner(log *logger.Logger) *ExecRunner {
	return &ExecRunner{log: log.WithField("component", "runner")}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if len(cmd.ExtraEnv) > 0 {
		c.Env = append(os.Environ(), cmd.ExtraEnv...)
	}

	r.log.Debug("running command", "cmd", cmd.String())
	if err := c.Run(); err != nil {
		return wrapExecError(cmd, err)
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if len(cmd.ExtraEnv) > 0 {
		c.Env = append(os.Environ(), cmd.ExtraEnv...)
	}

	r.log.Debug("running command", "cmd", cmd.String())
	out, err := c.Output()
	if err != nil {
		return nil, wrapExecError(cmd, err)
	}
	return out, nil
}

func wrapExecError(cmd Command, err error) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return errors.WrapCommandError(cmd.String(), exitCode, errors.JoinErrors(errors.ErrCommandFailed, err))
}
