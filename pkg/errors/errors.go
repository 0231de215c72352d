// Package errors defines the typed error taxonomy shared across the
// recipe loader, template engine, graph builder, freshness engine, and
// execution driver.
package errors

import "fmt"

// Location pinpoints the file and, where available, YAML line that a
// diagnostic should point a user at.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures schema or cross-field validation issues
// raised while normalising a recipe. Kind names one of the §7
// Validation error kinds (UnknownTopLevelKey, InvalidTaskName,
// InvalidArgSpec, RunnerDefinitionInvalid, SchemaViolation).
type ValidationError struct {
	Kind    string
	Field   string
	Message string
	Loc     Location
	Err     error
}

// NewValidationError constructs a ValidationError of the given kind.
func NewValidationError(kind, field, message string, loc Location, err error) error {
	return &ValidationError{Kind: kind, Field: field, Message: message, Loc: loc, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	loc := e.Loc.String()
	switch {
	case e.Field != "" && loc != "":
		return fmt.Sprintf("%s: %s: %s (%s)", e.Kind, e.Field, e.Message, loc)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ResolutionError covers variable, template, and reference resolution
// failures: VariableNotSet, VariableReadFailed, VariableEvalFailed,
// UndefinedVariable, UndefinedEnv, UndefinedArg,
// UndefinedDependencyOutput, UndefinedSelfRef, SelfRefIndexOutOfRange.
type ResolutionError struct {
	Kind    string
	Task    string
	Name    string
	Message string
	Loc     Location
	Err     error
}

// NewResolutionError constructs a ResolutionError of the given kind.
func NewResolutionError(kind, task, name, message string, loc Location, err error) error {
	return &ResolutionError{Kind: kind, Task: task, Name: name, Message: message, Loc: loc, Err: err}
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return ""
	}
	base := e.Kind
	if e.Task != "" {
		base = fmt.Sprintf("%s: task %q", base, e.Task)
	}
	if e.Name != "" {
		base = fmt.Sprintf("%s: %q", base, e.Name)
	}
	if e.Message != "" {
		base = fmt.Sprintf("%s: %s", base, e.Message)
	}
	if loc := e.Loc.String(); loc != "" {
		base = fmt.Sprintf("%s (%s)", base, loc)
	}
	return base
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// GraphError covers graph-construction failures: UnknownTask,
// UnknownArgument, MissingArgument, ArgumentTypeMismatch,
// ArgumentOutOfRange, ArgumentNotInChoices, DependencyCycle, ImportCycle.
type GraphError struct {
	Kind    string
	Task    string
	Message string
	Ring    []string
	Err     error
}

// NewGraphError constructs a GraphError of the given kind.
func NewGraphError(kind, task, message string, err error) error {
	return &GraphError{Kind: kind, Task: task, Message: message, Err: err}
}

// NewCycleError constructs a DependencyCycle/ImportCycle error carrying
// the full ring of names, per spec.md §4.3 step 5.
func NewCycleError(kind string, ring []string) error {
	return &GraphError{Kind: kind, Message: "cycle detected", Ring: ring}
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Ring) > 0 {
		return fmt.Sprintf("%s: %s", e.Kind, joinRing(e.Ring))
	}
	if e.Task != "" {
		return fmt.Sprintf("%s: task %q: %s", e.Kind, e.Task, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GraphError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func joinRing(ring []string) string {
	out := ""
	for i, name := range ring {
		if i > 0 {
			out += " -> "
		}
		out += name
	}
	return out
}

// ExecutionError represents a runtime failure raised by the execution
// driver: RunnerBuildFailed, ProcessSpawnFailed, TaskFailed,
// RecursionDetected, NestedContainerSwitch, ReservedVolumePath.
type ExecutionError struct {
	Kind     string
	TaskName string
	ExitCode int
	Chain    []string
	Err      error
}

// NewExecutionError constructs a generic TaskFailed ExecutionError.
func NewExecutionError(taskName string, err error) error {
	return &ExecutionError{Kind: "TaskFailed", TaskName: taskName, Err: err}
}

// NewTaskFailedError records the exit code of a failed task.
func NewTaskFailedError(taskName string, exitCode int, err error) error {
	return &ExecutionError{Kind: "TaskFailed", TaskName: taskName, ExitCode: exitCode, Err: err}
}

// NewRecursionDetectedError reports the full call chain that looped,
// per spec.md §4.5 step 4.
func NewRecursionDetectedError(chain []string) error {
	return &ExecutionError{Kind: "RecursionDetected", Chain: chain}
}

// NewNestedContainerSwitchError reports an illegal container-to-
// different-container nest, per spec.md §4.5 step 5.
func NewNestedContainerSwitchError(taskName string, err error) error {
	return &ExecutionError{Kind: "NestedContainerSwitch", TaskName: taskName, Err: err}
}

// NewRunnerBuildFailedError reports a failed container image build.
func NewRunnerBuildFailedError(runnerName string, err error) error {
	return &ExecutionError{Kind: "RunnerBuildFailed", TaskName: runnerName, Err: err}
}

// NewReservedVolumePathError reports a user volume mount that targets
// the reserved state-file mount point.
func NewReservedVolumePathError(taskName string, err error) error {
	return &ExecutionError{Kind: "ReservedVolumePath", TaskName: taskName, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case "RecursionDetected":
		return fmt.Sprintf("RecursionDetected: %s", joinRing(e.Chain))
	case "TaskFailed":
		if e.ExitCode != 0 {
			return fmt.Sprintf("task %q failed with exit code %d: %v", e.TaskName, e.ExitCode, e.Err)
		}
		if e.TaskName != "" {
			return fmt.Sprintf("execution error on task %s: %v", e.TaskName, e.Err)
		}
		return fmt.Sprintf("execution error: %v", e.Err)
	default:
		return fmt.Sprintf("%s: task %q: %v", e.Kind, e.TaskName, e.Err)
	}
}

func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StateError represents a corrupt or unwritable state file:
// StateFileCorrupt, StateFileWriteFailed.
type StateError struct {
	Kind string
	Path string
	Err  error
}

// NewStateError constructs a StateError of the given kind.
func NewStateError(kind, path string, err error) error {
	return &StateError{Kind: kind, Path: path, Err: err}
}

func (e *StateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *StateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PluginError indicates a failed runner lookup. Task Tree has no
// user-loadable plugin system (see spec.md Non-goals); this type is
// kept, in the teacher's naming, for the one place a "plugin" concept
// survives: resolving a task's named Runner.
type PluginError struct {
	Plugin  string
	Message string
	Err     error
}

// NewPluginError constructs a PluginError for the given runner name.
func NewPluginError(plugin string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &PluginError{Plugin: plugin, Message: message, Err: err}
}

func (e *PluginError) Error() string {
	if e == nil {
		return ""
	}
	if e.Plugin != "" {
		return fmt.Sprintf("plugin error [%s]: %s", e.Plugin, e.Message)
	}
	return fmt.Sprintf("plugin error: %s", e.Message)
}

func (e *PluginError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
