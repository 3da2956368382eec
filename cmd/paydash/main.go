package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/paydash/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	switch args[0] {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		if err := migrate(ctx, cfg); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema ready")
	case "import":
		os.Exit(runImport(ctx, cfg, logger, args[1:]))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args[1:]))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("paydash: purchase and payment ledger dashboard")
	fmt.Println("\nUsage:")
	fmt.Println("  paydash [command] [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  serve             Run the HTTP server (default)")
	fmt.Println("  migrate           Create the ledger table if missing")
	fmt.Println("  import            Load a workbook into the ledger")
	fmt.Println("  jobs trigger      Enqueue ledger:import or analytics:warmup")
	fmt.Println("  jobs stats        Show default queue counters")
	fmt.Println("  jobs scheduled    List scheduled tasks")
	fmt.Println("\nRun 'paydash <command> -h' for more information on a command.")
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}
