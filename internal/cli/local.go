package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/orchestrator"
	"github.com/shaiso/Shipyard/internal/secrets"
	"github.com/shaiso/Shipyard/internal/stages"
	"github.com/shaiso/Shipyard/internal/telemetry"
)

// PipelineFactory создаёт стадии для локального запуска.
type PipelineFactory func(logger *slog.Logger) (stages.Pipeline, error)

// LivePipeline — стадии, подключённые к docker, kubernetes и git из окружения.
func LivePipeline(logger *slog.Logger) (stages.Pipeline, error) {
	deps, err := stages.LiveDeps(logger)
	if err != nil {
		return stages.Pipeline{}, err
	}
	return stages.Default(deps), nil
}

// NewRunCmd создаёт команду локального запуска pipeline.
func NewRunCmd(outputFn func() *Output, pipelineFn PipelineFactory) *cobra.Command {
	var (
		build        int64
		revision     string
		workspace    string
		pipelinesDir string
		postTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run PIPELINE",
		Short: "Run a pipeline locally",
		Long: `Run a pipeline in this process: validate, checkout, build, push, deploy, verify.

PIPELINE is either a path to a YAML file or a pipeline name in --pipelines-dir.
The build number comes from --build or BUILD_NUMBER.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := telemetry.SetupLoggerTo(out.Messages())

			opts := []config.Option{config.WithBuildNumber(build)}
			if revision != "" {
				opts = append(opts, config.WithRevision(revision))
			}
			if workspace != "" {
				opts = append(opts, config.WithWorkspace(workspace))
			}

			env, err := loadPipeline(args[0], config.Dir(pipelinesDir), opts...)
			if err != nil {
				return err
			}

			pipeline, err := pipelineFn(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, err := secrets.ManagerFromEnv(ctx, logger)
			if err != nil {
				return err
			}

			orch := orchestrator.New(orchestrator.Config{
				Pipeline:    pipeline,
				Secrets:     mgr,
				PostTimeout: postTimeout,
				Logger:      logger,
			})

			run, err := orch.Run(ctx, env)
			printRun(out, run)
			if err != nil {
				return err
			}
			if run.Outcome != domain.OutcomeSuccess {
				return fmt.Errorf("%w: %s", ErrRunFailed, run.Error)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&build, "build", 0, "Build number (BUILD_NUMBER if not specified)")
	cmd.Flags().StringVar(&revision, "revision", "", "Branch, tag or commit to build")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Working directory for the checkout")
	cmd.Flags().StringVar(&pipelinesDir, "pipelines-dir", string(config.DirFromEnv()), "Directory with pipeline files")
	cmd.Flags().DurationVar(&postTimeout, "post-timeout", 0, "Time limit for post stages (default 5m)")

	return cmd
}

// loadPipeline загружает pipeline по пути к файлу или по имени в каталоге.
func loadPipeline(arg string, dir config.Dir, opts ...config.Option) (config.Environment, error) {
	ext := filepath.Ext(arg)
	if ext == ".yaml" || ext == ".yml" || strings.ContainsRune(arg, os.PathSeparator) {
		return config.Load(arg, opts...)
	}
	return dir.Load(arg, opts...)
}

// printRun выводит результаты стадий и итог run.
func printRun(out *Output, run *domain.PipelineRun) {
	if run == nil {
		return
	}

	var rows [][]string
	for _, s := range run.Stages {
		rows = append(rows, stageRow("main", string(s.Stage), string(s.Status), string(s.Reason), s.Duration.Milliseconds(), s.Error))
	}
	for _, s := range run.Post {
		rows = append(rows, stageRow("post", string(s.Stage), string(s.Status), string(s.Reason), s.Duration.Milliseconds(), s.Error))
	}
	out.Print(stageHeaders, rows, run)

	if res, ok := run.StageResult(domain.StageReportAccess); ok && res.Output != "" {
		out.Success(res.Output)
	}
	if run.Outcome == domain.OutcomeFailure {
		if res, ok := run.StageResult(domain.StageCollectDiagnostics); ok && res.Output != "" {
			printStageOutput(out.Messages(), "post", string(res.Stage), res.Output)
		}
	}
	out.Success(fmt.Sprintf("%s #%d: %s in %s", run.Pipeline, run.BuildNumber, run.Outcome, run.Duration().Round(time.Millisecond)))
}
