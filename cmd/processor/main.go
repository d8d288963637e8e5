// Command processor cleans contact export CSV files from the command line.
//
// Every *.csv file directly inside -in is cleaned and written next to its
// input with the configured output extension. Use -file to clean one file.
// A file that fails is logged and skipped; the exit code is non-zero only
// when the tool cannot start or the input directory cannot be read.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contactcli/internal/app"
	"contactcli/internal/config"
	"contactcli/internal/infrastructure"
	"contactcli/internal/services"
	"contactcli/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	infrastructure.CloseLogFile()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("processor", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inDir := flags.String("in", "in", "input directory containing contact export CSV files")
	file := flags.String("file", "", "clean a single CSV file instead of a directory")
	format := flags.String("format", "", "output format: xlsx or csv (overrides config)")
	configPath := flags.String("config", "", "path to a YAML config file")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	if *format != "" {
		f := strings.ToLower(*format)
		if f != "xlsx" && f != "csv" {
			fmt.Fprintf(stderr, "unsupported output format %q\n", *format)
			return 1
		}
		cfg.Processing.OutputFormat = f
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	svc := services.NewContactService(services.ContactServiceConfig{
		Pipeline: app.NewPipeline(cfg.Processing),
		Logger:   logger,
	})
	sink := infrastructure.MultiSink(
		infrastructure.NewWriterSink(stderr, slog.LevelInfo),
		infrastructure.NewSlogSink(logger, slog.String("component", "processor")),
	)

	if *file != "" {
		outcome := svc.ProcessFile(ctx, *file, sink)
		if outcome.Success {
			fmt.Fprintln(stdout, outcome.Output)
		}
		return 0
	}

	report, err := svc.ProcessFolder(ctx, *inDir, sink)
	if err != nil {
		if report == nil {
			logger.Error("cannot read input directory", slog.String("dir", *inDir), slog.String("error", err.Error()))
			fmt.Fprintf(stderr, "cannot read input directory %s: %v\n", *inDir, err)
			return 1
		}
		logger.Warn("batch interrupted", slog.String("error", err.Error()))
	}
	for _, o := range report.Files {
		if o.Success {
			fmt.Fprintln(stdout, o.Output)
		}
	}
	return 0
}
