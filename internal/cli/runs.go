package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewRunsCmd создаёт группу команд для управления runs через API.
func NewRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage pipeline runs on the server",
	}

	cmd.AddCommand(
		newRunsListCmd(clientFn, outputFn),
		newRunsStartCmd(clientFn, outputFn),
		newRunsShowCmd(clientFn, outputFn),
		newRunsStagesCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "PIPELINE", "BUILD", "STATUS", "OUTCOME", "TRIGGER", "CREATED"}

func runRow(r RunResponse) []string {
	return []string{r.ID, r.Pipeline, strconv.FormatInt(r.BuildNumber, 10), r.Status, r.Outcome, r.Trigger, r.CreatedAt}
}

func newRunsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Pipeline: pipeline,
				Status:   status,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Filter by pipeline name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunsStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var revision string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "start PIPELINE",
		Short: "Request a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.StartRun(CreateRunRequest{
				Pipeline:       args[0],
				Revision:       revision,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run requested: %s (build %d)", run.ID, run.BuildNumber))
			out.Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&revision, "revision", "", "Branch, tag or commit (pipeline default if not specified)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Return the existing run if one was created with this key")

	return cmd
}

func newRunsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PIPELINE", "BUILD", "REVISION", "STATUS", "OUTCOME", "DURATION", "ERROR"},
				[][]string{{
					run.ID,
					run.Pipeline,
					strconv.FormatInt(run.BuildNumber, 10),
					run.Revision,
					run.Status,
					run.Outcome,
					formatMS(run.DurationMS),
					run.Error,
				}},
				run,
			)
			return nil
		},
	}
}

func newRunsStagesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showOutput bool

	cmd := &cobra.Command{
		Use:   "stages RUN_ID",
		Short: "List stage results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stages, err := client.ListStages(args[0])
			if err != nil {
				return err
			}

			var rows [][]string
			for _, s := range stages.Stages {
				rows = append(rows, stageRow("main", s.Stage, s.Status, s.Reason, s.DurationMS, s.Error))
			}
			for _, s := range stages.Post {
				rows = append(rows, stageRow("post", s.Stage, s.Status, s.Reason, s.DurationMS, s.Error))
			}

			out.Print(stageHeaders, rows, stages)

			if showOutput && !out.jsonMode {
				for _, s := range stages.Stages {
					printStageOutput(out.w, "main", s.Stage, s.Output)
				}
				for _, s := range stages.Post {
					printStageOutput(out.w, "post", s.Stage, s.Output)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showOutput, "output", false, "Print captured stage output")
	return cmd
}

// printStageOutput выводит захваченный вывод стадии под заголовком.
func printStageOutput(w io.Writer, phase, stage, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n==> %s/%s\n%s\n", phase, stage, strings.TrimRight(text, "\n"))
}

var stageHeaders = []string{"PHASE", "STAGE", "STATUS", "REASON", "DURATION", "ERROR"}

func stageRow(phase, stage, status, reason string, durationMS int64, errText string) []string {
	return []string{phase, stage, status, reason, formatMS(durationMS), errText}
}

func formatMS(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
