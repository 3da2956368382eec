package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/paydash/cmd/paydash/cli"
	"github.com/odyssey-erp/paydash/internal/app"
	"github.com/odyssey-erp/paydash/jobs"
)

func runImport(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := newFlagSet("import")
	file := fs.String("file", "", "path to the .xlsx workbook")
	replace := fs.Bool("replace", false, "delete existing rows before inserting")
	jsonOut := fs.Bool("json", false, "print the summary as JSON")
	_ = fs.Parse(args)

	d, err := newDeps(ctx, cfg, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		return cli.ExitFailure
	}
	defer d.Close(logger)

	return cli.ImportCommand(ctx, d.importer, cli.ImportOptions{
		File:       *file,
		Replace:    *replace,
		JSONOutput: *jsonOut,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "jobs: expected trigger, stats or scheduled")
		return 1
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	jobsCLI := cli.NewJobsCLI(client, inspector)

	switch args[0] {
	case "trigger":
		fs := newFlagSet("jobs trigger")
		file := fs.String("file", "", "workbook to queue for ledger:import")
		mode := fs.String("mode", jobs.ModeAppend, "append or replace")
		reason := fs.String("reason", "manual", "reason recorded on analytics:warmup")
		jsonOut := fs.Bool("json", false, "print the task as JSON")
		_ = fs.Parse(args[1:])
		if fs.NArg() != 1 {
			fmt.Fprintf(os.Stderr, "jobs trigger: expected one job name (%s or %s)\n", jobs.TaskLedgerImport, jobs.TaskAnalyticsWarmup)
			return 1
		}
		return jobsCLI.TriggerCommand(ctx, cli.TriggerOptions{
			TriggerParams: cli.TriggerParams{Name: fs.Arg(0), File: *file, Mode: *mode, Reason: *reason},
			JSONOutput:    *jsonOut,
		})
	case "stats":
		fs := newFlagSet("jobs stats")
		jsonOut := fs.Bool("json", false, "print the counters as JSON")
		_ = fs.Parse(args[1:])
		return jobsCLI.StatsCommand(ctx, cli.StatsOptions{JSONOutput: *jsonOut})
	case "scheduled":
		fs := newFlagSet("jobs scheduled")
		size := fs.Int("size", 10, "number of tasks to list")
		_ = fs.Parse(args[1:])
		return jobsCLI.ScheduledCommand(ctx, *size, cli.StatsOptions{})
	default:
		fmt.Fprintf(os.Stderr, "jobs: unknown subcommand %s\n", args[0])
		return 1
	}
}
