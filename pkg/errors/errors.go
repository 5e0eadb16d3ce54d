// Package errors provides standardized error handling for the gridsub
// system: sentinel errors for classification and wrapper types that carry
// the failing job, group, node, or command.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrBadFilename    = errors.New("bad filename")
	ErrMissingStore   = errors.New("staging store not specified")
	ErrEmptyGroup     = errors.New("no jobs added to group")
	ErrBadCertificate = errors.New("grid certificate not usable")

	// Structural errors
	ErrAlreadyAttached   = errors.New("job already attached to a group")
	ErrNoGroup           = errors.New("job is not attached to a group")
	ErrDuplicateJob      = errors.New("job name already exists")
	ErrMissingDependency = errors.New("required job not present in graph")
	ErrCyclicDependency  = errors.New("cyclic job dependency")

	// External-process errors
	ErrCommandFailed = errors.New("external command failed")

	// Status-snapshot parse errors
	ErrUnknownBlockType  = errors.New("unrecognized block type")
	ErrMissingField      = errors.New("required field missing from block")
	ErrMalformedSnapshot = errors.New("malformed status snapshot")
)

// JobError represents an error related to a specific job
type JobError struct {
	Job       string
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: operation %s: %v", e.Job, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// GroupError represents an error related to a job group
type GroupError struct {
	Group     string
	Operation string
	Err       error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("group %s: operation %s: %v", e.Group, e.Operation, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// GraphError represents an error related to a workflow graph node
type GraphError struct {
	Node      string
	Operation string
	Err       error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph node %s: operation %s: %v", e.Node, e.Operation, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Component string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s.%s: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Component, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents a non-zero exit from an external command
type CommandError struct {
	Cmd      string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: exit code %d: %v", e.Cmd, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ParseError represents a failure to interpret a status snapshot
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors
func WrapJobError(job, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{Job: job, Operation: operation, Err: err}
}

func WrapGroupError(group, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &GroupError{Group: group, Operation: operation, Err: err}
}

func WrapGraphError(node, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &GraphError{Node: node, Operation: operation, Err: err}
}

func WrapConfigError(component, field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Component: component, Field: field, Err: err}
}

func WrapCommandError(cmd string, exitCode int, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Cmd: cmd, ExitCode: exitCode, Err: err}
}

func WrapParseError(file string, line int, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{File: file, Line: line, Err: err}
}

// Error classification functions
func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

func IsGroupError(err error) bool {
	var ge *GroupError
	return errors.As(err, &ge)
}

func IsGraphError(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge)
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Specific error type checks
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrAlreadyAttached) ||
		errors.Is(err, ErrNoGroup) ||
		errors.Is(err, ErrDuplicateJob) ||
		errors.Is(err, ErrMissingDependency) ||
		errors.Is(err, ErrCyclicDependency)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrBadFilename) ||
		errors.Is(err, ErrMissingStore) ||
		errors.Is(err, ErrEmptyGroup)
}

// Error extraction helpers
func GetJob(err error) (string, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je.Job, true
	}
	return "", false
}

func GetNode(err error) (string, bool) {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Node, true
	}
	return "", false
}

func GetExitCode(err error) (int, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ExitCode, true
	}
	return 0, false
}

// Convenience functions for common error patterns
func NewDuplicateJobError(job, operation string) error {
	return WrapJobError(job, operation, ErrDuplicateJob)
}

func NewConfigError(component, field string, err error) error {
	return WrapConfigError(component, field, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
}

func NewBadFilenameError(component, filename string) error {
	return WrapConfigError(component, "", fmt.Errorf("%w: %q", ErrBadFilename, filename))
}

// JoinErrors combines multiple errors into a single error
// Similar to errors.Join in Go 1.20+
func JoinErrors(errs ...error) error {
	var validErrs []error
	for _, err := range errs {
		if err != nil {
			validErrs = append(validErrs, err)
		}
	}

	if len(validErrs) == 0 {
		return nil
	}
	if len(validErrs) == 1 {
		return validErrs[0]
	}

	// Create a multi-error type
	return &multiError{errors: validErrs}
}

// multiError represents multiple errors
type multiError struct {
	errors []error
}

func (e *multiError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}
	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msg := e.errors[0].Error()
	for _, err := range e.errors[1:] {
		msg += "; " + err.Error()
	}
	return msg
}

func (e *multiError) Unwrap() []error {
	return e.errors
}

// Is implements error comparison for multiError
func (e *multiError) Is(target error) bool {
	for _, err := range e.errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As implements error conversion for multiError
func (e *multiError) As(target interface{}) bool {
	for _, err := range e.errors {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
