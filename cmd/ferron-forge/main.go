package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/ferronweb/ferron-forge/internal/forgeerrors"
	"github.com/ferronweb/ferron-forge/internal/foundation"
	"github.com/ferronweb/ferron-forge/internal/logfields"
	"github.com/ferronweb/ferron-forge/internal/pipeline"
	"github.com/ferronweb/ferron-forge/internal/source"
	"github.com/ferronweb/ferron-forge/internal/toolchain"
	"github.com/ferronweb/ferron-forge/internal/version"
)

var CLI struct {
	FerronVersion string           `short:"v" default:"main" help:"The Ferron version or Git reference name to compile."`
	Modules       []string         `short:"m" help:"Modules to enable (repeatable). Defaults to the source tree's declared default set."`
	Target        string           `short:"t" help:"Target triple for cross-compilation. Defaults to a host build."`
	Repository    string           `short:"r" env:"FORGE_REPOSITORY" default:"https://github.com/ferronweb/ferron.git" help:"Git repository URL containing Ferron's source code."`
	Output        string           `short:"o" env:"FORGE_OUTPUT" default:"ferron-custom.zip" help:"Path to the output ZIP archive."`
	Timeout       time.Duration    `default:"0" help:"Ceiling for the toolchain invocation (0 disables)."`
	Verbose       bool             `help:"Enable verbose logging."`
	Version       kong.VersionFlag `help:"Print the ferron-forge version and exit."`
}

func main() {
	// A .env next to the binary may carry FORGE_* defaults; absence is fine.
	_ = godotenv.Load()

	kong.Parse(&CLI,
		kong.Name("ferron-forge"),
		kong.Description("A compilation tool for easy compiling of Ferron web server."),
		kong.Vars{"version": version.Version})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := pipeline.BuildRequest{
		VersionOrRef:  CLI.FerronVersion,
		Modules:       CLI.Modules,
		TargetTriple:  CLI.Target,
		RepositoryURL: CLI.Repository,
		OutputPath:    CLI.Output,
	}

	runBuild(ctx, req).Match(
		func(res *pipeline.BuildResult) {
			slog.Info("Built Ferron successfully",
				logfields.Target(req.TargetTriple),
				logfields.Revision(res.Revision),
				logfields.Path(res.OutputPath),
				logfields.DurationMS(float64(res.Duration.Milliseconds())))
		},
		func(err error) {
			var se *pipeline.StageError
			if errors.As(err, &se) {
				slog.Error("Build failed",
					logfields.Stage(string(se.Stage)),
					slog.String("kind", string(forgeerrors.GetKind(err))),
					logfields.Error(se.Err))
			} else {
				slog.Error("Build failed", logfields.Error(err))
			}
			os.Exit(1)
		},
	)
}

// runBuild wires the real git and cargo collaborators into the pipeline.
func runBuild(ctx context.Context, req pipeline.BuildRequest) foundation.Result[*pipeline.BuildResult, error] {
	slog.Info("Starting Ferron build",
		logfields.Revision(req.VersionOrRef),
		logfields.Repository(req.RepositoryURL),
		logfields.Target(req.TargetTriple),
		logfields.Modules(len(req.Modules)))

	p := pipeline.New(
		source.NewResolver(CLI.Verbose),
		toolchain.NewInvoker(CLI.Timeout),
	)

	return foundation.FromTuple(p.Run(ctx, req))
}
