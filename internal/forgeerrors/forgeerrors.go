// Package forgeerrors provides a structured error type for classifying
// build failures by kind, so the CLI can report which pipeline stage broke
// and what the caller can do about it.
package forgeerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a build failure. Every failure is terminal for the
// current run; none are retried automatically.
type Kind string

const (
	KindRevisionNotFound  Kind = "revision_not_found"
	KindSourceFetchFailed Kind = "source_fetch_failed"
	KindUnknownModule     Kind = "unknown_module"
	KindToolchainMissing  Kind = "toolchain_missing"
	KindCompilationFailed Kind = "compilation_failed"
	KindTimeout           Kind = "timeout"
	KindArtifactMissing   Kind = "artifact_missing"
	KindPackagingFailed   Kind = "packaging_failed"
	KindInternal          Kind = "internal"
)

// ContextFields carries structured context for a ForgeError.
type ContextFields map[string]any

// ForgeError is a structured error with kind, cause, and context.
type ForgeError struct {
	Kind    Kind          `json:"kind"`
	Message string        `json:"message"`
	Cause   error         `json:"cause,omitempty"`
	Context ContextFields `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context field to the error.
func (e *ForgeError) WithContext(key string, value any) *ForgeError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new ForgeError.
func New(kind Kind, message string) *ForgeError {
	return &ForgeError{Kind: kind, Message: message}
}

// Wrap creates a new ForgeError that wraps an existing error.
func Wrap(err error, kind Kind, message string) *ForgeError {
	return &ForgeError{Kind: kind, Message: message, Cause: err}
}

// IsKind checks whether any error in the chain is a ForgeError of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// GetKind extracts the kind from an error chain, or KindInternal if none.
func GetKind(err error) Kind {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// RevisionNotFound reports a version-or-ref string that does not exist in
// the repository.
func RevisionNotFound(revision, repository string) *ForgeError {
	return New(KindRevisionNotFound, fmt.Sprintf("revision %q not found in %s", revision, repository)).
		WithContext("revision", revision).
		WithContext("repository", repository)
}

// SourceFetchFailed reports a clone or network failure with its cause.
func SourceFetchFailed(err error, repository string) *ForgeError {
	return Wrap(err, KindSourceFetchFailed, fmt.Sprintf("fetching source from %s failed", repository)).
		WithContext("repository", repository)
}

// UnknownModules reports every requested module that the source tree does
// not declare, so the caller can correct them in one pass.
func UnknownModules(names []string) *ForgeError {
	return New(KindUnknownModule, fmt.Sprintf("unknown module(s): %s", strings.Join(names, ", "))).
		WithContext("modules", names)
}

// ToolchainMissing reports that the required cross-compilation target is not
// installed.
func ToolchainMissing(target string, diagnostics string) *ForgeError {
	return New(KindToolchainMissing, fmt.Sprintf("toolchain target %q is not installed", target)).
		WithContext("target", target).
		WithContext("diagnostics", diagnostics)
}

// CompilationFailed surfaces the toolchain's diagnostic output verbatim.
func CompilationFailed(err error, diagnostics string) *ForgeError {
	return Wrap(err, KindCompilationFailed, "compilation failed").
		WithContext("diagnostics", diagnostics)
}

// Timeout reports that the toolchain invocation exceeded its ceiling.
func Timeout(err error, ceiling string) *ForgeError {
	return Wrap(err, KindTimeout, fmt.Sprintf("toolchain invocation exceeded %s", ceiling)).
		WithContext("ceiling", ceiling)
}

// ArtifactMissing names the first expected build output that failed its
// presence check.
func ArtifactMissing(path string, reason string) *ForgeError {
	return New(KindArtifactMissing, fmt.Sprintf("artifact %s: %s", path, reason)).
		WithContext("path", path)
}

// PackagingFailed reports an archive write failure with its cause.
func PackagingFailed(err error, outputPath string) *ForgeError {
	return Wrap(err, KindPackagingFailed, fmt.Sprintf("writing archive %s failed", outputPath)).
		WithContext("output", outputPath)
}
