package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

// Build conditions. Every error that leaves a task or the runner carries exactly
// one of these, attached with Condition.
var (
	// ErrInvalidConfiguration is returned when task settings are malformed or missing.
	ErrInvalidConfiguration = zerr.New("invalid configuration")

	// ErrMissingInput is returned when a referenced file or resource is absent.
	ErrMissingInput = zerr.New("missing input")

	// ErrTaskFailure is returned when a task or one of its dependencies failed.
	ErrTaskFailure = zerr.New("task failure")

	// ErrBuildInvariant is returned when a programming contract is violated.
	ErrBuildInvariant = zerr.New("build invariant violated")
)

var (
	// ErrEmptyDomain is returned when registering a task domain with an empty name.
	ErrEmptyDomain = zerr.New("task domain must not be empty")

	// ErrRegistrySealed is returned when mutating a sealed task registry.
	ErrRegistrySealed = zerr.New("task registry is sealed")

	// ErrRegistryNotSealed is returned when creating tasks from an unsealed registry.
	ErrRegistryNotSealed = zerr.New("task registry is not sealed")

	// ErrDomainAlreadyRegistered is returned when a task domain is registered twice.
	ErrDomainAlreadyRegistered = zerr.New("task domain already registered")

	// ErrUnknownDomain is returned when no constructor is registered for a task domain.
	ErrUnknownDomain = zerr.New("unknown task domain")

	// ErrNilTask is returned when a task constructor produces no task.
	ErrNilTask = zerr.New("task constructor returned no task")

	// ErrTaskAlreadyDone is returned when running a task that has already completed.
	ErrTaskAlreadyDone = zerr.New("task already done")

	// ErrTaskNotConfigured is returned when running a task before configuring it.
	ErrTaskNotConfigured = zerr.New("task is not configured")

	// ErrInvalidHash is returned when a task is driven with an empty or mismatched hash.
	ErrInvalidHash = zerr.New("invalid task hash")

	// ErrDoubleSchedule is returned when a task is dispatched while already running.
	ErrDoubleSchedule = zerr.New("task scheduled while running")

	// ErrDependencyNotComplete is returned when a task is dispatched before its dependencies completed.
	ErrDependencyNotComplete = zerr.New("dependency is not complete")

	// ErrDependencyFailed is returned when a dependency of a task failed.
	ErrDependencyFailed = zerr.New("dependency failed")

	// ErrDependencyCycle is returned when parked tasks can never be released.
	ErrDependencyCycle = zerr.New("dependency cycle")

	// ErrTaskCancelled is returned when a task is cancelled before completing.
	ErrTaskCancelled = zerr.New("task cancelled")

	// ErrRunnerStarted is returned when a runner is run twice.
	ErrRunnerStarted = zerr.New("runner already started")

	// ErrRunnerStopping is returned when enqueueing into a runner that is shutting down.
	ErrRunnerStopping = zerr.New("runner is shutting down")

	// ErrTaskNotFound is returned when a task key is absent from the task table.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrTargetNotTerminal is returned when a build target did not reach a terminal state.
	ErrTargetNotTerminal = zerr.New("target did not reach a terminal state")

	// ErrNoTargetsSpecified is returned when a build is requested without targets.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrInvalidTaskID is returned when a task id cannot be parsed.
	ErrInvalidTaskID = zerr.New("invalid task id, expected format: domain:id")

	// ErrInvalidParam is returned when a key=value parameter cannot be parsed.
	ErrInvalidParam = zerr.New("invalid parameter, expected format: key=value")

	// ErrInvalidConfigValue is returned when a config value has the wrong type.
	ErrInvalidConfigValue = zerr.New("invalid config value")

	// ErrMissingConfigValue is returned when a required config value is absent.
	ErrMissingConfigValue = zerr.New("missing config value")

	// ErrArtifactExists is returned when declaring or linking onto an existing artifact.
	ErrArtifactExists = zerr.New("artifact already exists")

	// ErrArtifactNotFound is returned when an artifact is not present in the cache.
	ErrArtifactNotFound = zerr.New("artifact not found")

	// ErrArtifactNotDeclared is returned when storing into an undeclared artifact.
	ErrArtifactNotDeclared = zerr.New("artifact not declared")

	// ErrContentAlreadyStored is returned when storing content into a write-once artifact twice.
	ErrContentAlreadyStored = zerr.New("artifact content already stored")

	// ErrLinkCycle is returned when following links loops.
	ErrLinkCycle = zerr.New("artifact link cycle")

	// ErrTraceNotFound is returned when a trace is not present in the cache.
	ErrTraceNotFound = zerr.New("trace not found")

	// ErrDiagnosticsNotFound is returned when no diagnostics are stored for a trace.
	ErrDiagnosticsNotFound = zerr.New("diagnostics not found")

	// ErrCacheCreateFailed is returned when the cache directory cannot be created.
	ErrCacheCreateFailed = zerr.New("failed to create cache directory")

	// ErrCacheReadFailed is returned when a cache entry cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache entry")

	// ErrCacheWriteFailed is returned when a cache entry cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrCacheMarshalFailed is returned when a cache entry cannot be encoded.
	ErrCacheMarshalFailed = zerr.New("failed to marshal cache entry")

	// ErrCacheUnmarshalFailed is returned when a cache entry cannot be decoded.
	ErrCacheUnmarshalFailed = zerr.New("failed to unmarshal cache entry")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidCacheMode is returned when the configured cache mode is unknown.
	ErrInvalidCacheMode = zerr.New("invalid cache mode, expected 'memory' or 'persistent'")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathOutsideRoot is returned when a module location escapes the source base.
	ErrPathOutsideRoot = zerr.New("path is outside source base")

	// ErrSyntax is returned by the toolchain when a module does not parse.
	ErrSyntax = zerr.New("syntax error")

	// ErrUnresolvedImport is returned when an imported module has no object artifact.
	ErrUnresolvedImport = zerr.New("unresolved import")

	// ErrInstallFailed is returned when a target artifact cannot be installed.
	ErrInstallFailed = zerr.New("failed to install artifact")

	// ErrBuildExecutionFailed is returned when one or more build targets failed.
	ErrBuildExecutionFailed = zerr.New("build execution failed")
)

var conditions = []error{
	ErrInvalidConfiguration,
	ErrMissingInput,
	ErrTaskFailure,
	ErrBuildInvariant,
}

// Condition attaches a build condition to err. A nil err yields the bare condition.
func Condition(cond, err error) error {
	if err == nil {
		return cond
	}
	if errors.Is(err, cond) {
		return err
	}
	return errors.Join(cond, err)
}

// ConditionOf reports the outermost build condition carried by err, or nil if it
// carries none.
func ConditionOf(err error) error {
	queue := []error{err}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e == nil {
			continue
		}
		for _, cond := range conditions {
			if e == cond {
				return cond
			}
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			queue = append(queue, u.Unwrap()...)
		case interface{ Unwrap() error }:
			queue = append(queue, u.Unwrap())
		}
	}
	return nil
}

// Detail attaches metadata to err. The result still matches err with errors.Is,
// which zerr.With alone does not guarantee for sentinels.
func Detail(sentinel error, key string, value any) error {
	return zerr.With(zerr.Wrap(sentinel, ""), key, value)
}
