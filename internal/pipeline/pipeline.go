// Package pipeline orchestrates a build run: resolve the source, select
// modules, compile, collect artifacts, package. Stages run strictly in
// sequence; any failure ends the run, and the per-invocation workspace is
// removed on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ferronweb/ferron-forge/internal/archive"
	"github.com/ferronweb/ferron-forge/internal/artifact"
	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
	"github.com/ferronweb/ferron-forge/internal/logfields"
	"github.com/ferronweb/ferron-forge/internal/manifest"
	"github.com/ferronweb/ferron-forge/internal/modules"
	"github.com/ferronweb/ferron-forge/internal/source"
	"github.com/ferronweb/ferron-forge/internal/workspace"
)

// StageName identifies a pipeline stage for reporting and timing.
type StageName string

const (
	StageResolving  StageName = "resolving"
	StageSelecting  StageName = "selecting"
	StageCompiling  StageName = "compiling"
	StageCollecting StageName = "collecting"
	StagePackaging  StageName = "packaging"
)

// BuildRequest carries the caller's input for one build invocation. It is
// created once and immutable thereafter.
type BuildRequest struct {
	VersionOrRef  string
	Modules       []string
	TargetTriple  string
	RepositoryURL string
	OutputPath    string
}

// BuildResult summarizes a completed run.
type BuildResult struct {
	OutputPath string
	Revision   string
	Modules    []string
	Duration   time.Duration
	Timings    map[StageName]time.Duration
}

// StageError reports which stage a run failed in, wrapping the cause.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// SourceResolver obtains a working tree for a (repository, ref) pair.
type SourceResolver interface {
	Resolve(ctx context.Context, repoURL, ref, destDir string) (*source.ResolvedSource, error)
}

// Compiler turns a resolved tree and a build configuration into artifacts.
type Compiler interface {
	Compile(ctx context.Context, src *source.ResolvedSource, cfg *modules.BuildConfiguration, outputDir string) (*artifact.BuildArtifact, error)
}

// Pipeline runs builds. Collaborators are injected so tests can substitute
// the external git and cargo integrations.
type Pipeline struct {
	resolver      SourceResolver
	compiler      Compiler
	workspaceBase string
}

// New creates a pipeline with the given collaborators.
func New(resolver SourceResolver, compiler Compiler) *Pipeline {
	return &Pipeline{resolver: resolver, compiler: compiler}
}

// WithWorkspaceBase overrides the directory temporary workspaces are
// created under (defaults to the system temp directory).
func (p *Pipeline) WithWorkspaceBase(dir string) *Pipeline {
	p.workspaceBase = dir
	return p
}

// state threads the data produced by one stage into the next.
type state struct {
	request BuildRequest

	workspace *workspace.Manager
	source    *source.ResolvedSource
	config    *modules.BuildConfiguration
	artifact  *artifact.BuildArtifact
}

// Run executes the full pipeline for one request. The workspace created
// while resolving is removed unconditionally before Run returns; a cleanup
// failure is logged but never masks the build error.
func (p *Pipeline) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	st := &state{
		request:   req,
		workspace: workspace.NewManager(p.workspaceBase),
	}
	defer func() {
		if err := st.workspace.Cleanup(); err != nil {
			slog.Warn("Failed to clean up workspace", logfields.Error(err))
		}
	}()

	stages := []struct {
		name StageName
		fn   func(ctx context.Context, st *state) error
	}{
		{StageResolving, p.stageResolve},
		{StageSelecting, p.stageSelect},
		{StageCompiling, p.stageCompile},
		{StageCollecting, p.stageCollect},
		{StagePackaging, p.stagePackage},
	}

	timings := make(map[StageName]time.Duration, len(stages))
	for _, stage := range stages {
		select {
		case <-ctx.Done():
			return nil, &StageError{Stage: stage.name, Err: ctx.Err()}
		default:
		}

		t0 := time.Now()
		err := stage.fn(ctx, st)
		timings[stage.name] = time.Since(t0)
		slog.Debug("Stage finished",
			logfields.Stage(string(stage.name)),
			logfields.DurationMS(float64(timings[stage.name].Milliseconds())),
			logfields.Error(err))
		if err != nil {
			return nil, &StageError{Stage: stage.name, Err: err}
		}
	}

	return &BuildResult{
		OutputPath: req.OutputPath,
		Revision:   st.source.Revision,
		Modules:    st.config.Modules,
		Duration:   time.Since(start),
		Timings:    timings,
	}, nil
}

func (p *Pipeline) stageResolve(ctx context.Context, st *state) error {
	if err := st.workspace.Create(); err != nil {
		return forgeerrors.SourceFetchFailed(err, st.request.RepositoryURL)
	}

	srcDir, err := st.workspace.CreateSubdir("src")
	if err != nil {
		return forgeerrors.SourceFetchFailed(err, st.request.RepositoryURL)
	}

	src, err := p.resolver.Resolve(ctx, st.request.RepositoryURL, st.request.VersionOrRef, srcDir)
	if err != nil {
		return err
	}
	st.source = src
	return nil
}

func (p *Pipeline) stageSelect(_ context.Context, st *state) error {
	cfg, err := modules.Select(
		st.request.Modules,
		st.source.AvailableModules(),
		st.source.DefaultModules(),
		st.request.TargetTriple,
	)
	if err != nil {
		return err
	}
	st.config = cfg

	slog.Info("Modules selected",
		logfields.Modules(len(cfg.Modules)),
		slog.Bool("default_selection", cfg.DefaultSelection))
	return nil
}

func (p *Pipeline) stageCompile(ctx context.Context, st *state) error {
	outputDir, err := st.workspace.CreateSubdir("target")
	if err != nil {
		return forgeerrors.CompilationFailed(err, "")
	}

	a, err := p.compiler.Compile(ctx, st.source, st.config, outputDir)
	if err != nil {
		return err
	}
	st.artifact = a
	return nil
}

func (p *Pipeline) stageCollect(_ context.Context, st *state) error {
	a, err := artifact.Collect(st.artifact)
	if err != nil {
		return err
	}
	st.artifact = a
	return nil
}

func (p *Pipeline) stagePackage(_ context.Context, st *state) error {
	m := manifest.New(
		st.request.VersionOrRef,
		st.artifact.TargetTriple,
		st.artifact.Modules,
		time.Now(),
	)
	return archive.Package(st.artifact, m, st.request.OutputPath)
}
