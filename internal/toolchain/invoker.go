// Package toolchain drives the external cargo toolchain to cross-compile a
// resolved source tree into a Ferron server binary.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ferronweb/ferron-forge/internal/artifact"
	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
	"github.com/ferronweb/ferron-forge/internal/logfields"
	"github.com/ferronweb/ferron-forge/internal/modules"
	"github.com/ferronweb/ferron-forge/internal/source"
)

// Invoker runs cargo builds. The zero value uses `cargo` from PATH with no
// timeout ceiling.
type Invoker struct {
	// CargoPath overrides the cargo executable, mainly for tests.
	CargoPath string
	// Timeout bounds a single invocation; zero means no ceiling.
	Timeout time.Duration
	// Output receives the toolchain's streamed output as it is produced.
	// Defaults to stderr.
	Output io.Writer
}

// NewInvoker creates an invoker with the given timeout ceiling.
func NewInvoker(timeout time.Duration) *Invoker {
	return &Invoker{Timeout: timeout}
}

// Compile cross-compiles the source tree with the feature configuration,
// directing build output to outputDir. This is a blocking, potentially
// minutes-long operation; cancellation of ctx kills the toolchain process.
func (inv *Invoker) Compile(ctx context.Context, src *source.ResolvedSource, cfg *modules.BuildConfiguration, outputDir string) (*artifact.BuildArtifact, error) {
	cargo := inv.CargoPath
	if cargo == "" {
		cargo = "cargo"
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	args := buildArgs(cfg, outputDir)
	slog.Info("Invoking toolchain",
		logfields.Path(src.LocalPath),
		logfields.Target(cfg.TargetTriple),
		slog.String("args", strings.Join(args, " ")))

	stream := inv.Output
	if stream == nil {
		stream = os.Stderr
	}

	// Diagnostics are captured verbatim for error reporting while still
	// streaming to the user as the build runs.
	var diagnostics bytes.Buffer
	cmd := exec.CommandContext(ctx, cargo, args...)
	cmd.Dir = src.LocalPath
	cmd.Stdout = stream
	cmd.Stderr = io.MultiWriter(stream, &diagnostics)

	runErr := cmd.Run()
	if runErr != nil {
		return nil, inv.classifyFailure(ctx, runErr, cfg.TargetTriple, diagnostics.String())
	}

	binaryPath, err := locateBinary(outputDir, cfg.TargetTriple)
	if err != nil {
		return nil, err
	}

	aux, err := collectAuxiliary(src.LocalPath)
	if err != nil {
		return nil, forgeerrors.CompilationFailed(err, "")
	}

	return &artifact.BuildArtifact{
		BinaryPath:   binaryPath,
		Auxiliary:    aux,
		TargetTriple: cfg.TargetTriple,
		Revision:     src.Revision,
		Modules:      cfg.Modules,
	}, nil
}

// buildArgs translates a BuildConfiguration into the cargo command line.
func buildArgs(cfg *modules.BuildConfiguration, outputDir string) []string {
	args := []string{"build", "--release", "--target-dir", outputDir}

	if !cfg.DefaultSelection {
		args = append(args, "--no-default-features")
		if len(cfg.FeatureFlags) > 0 {
			args = append(args, "--features", strings.Join(cfg.FeatureFlags, ","))
		}
	}

	if cfg.TargetTriple != "" {
		args = append(args, "--target", cfg.TargetTriple)
	}

	return args
}

// classifyFailure separates the three distinct toolchain failure modes.
func (inv *Invoker) classifyFailure(ctx context.Context, runErr error, target, diagnostics string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return forgeerrors.Timeout(runErr, inv.Timeout.String())
	}
	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) {
		return forgeerrors.ToolchainMissing(target, "cargo executable not found")
	}
	if isMissingTargetDiagnostic(diagnostics) {
		return forgeerrors.ToolchainMissing(target, diagnostics)
	}
	return forgeerrors.CompilationFailed(fmt.Errorf("cargo: %w", runErr), diagnostics)
}

// isMissingTargetDiagnostic matches rustc/cargo output produced when the
// requested cross-compilation target is not installed.
func isMissingTargetDiagnostic(diagnostics string) bool {
	l := strings.ToLower(diagnostics)
	markers := []string{
		"target may not be installed",
		"consider downloading the target",
		"rustup target add",
		"can't find crate for `std`",
		"error[e0463]",
	}
	for _, marker := range markers {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}
