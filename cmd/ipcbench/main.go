package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/bench"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/analyzer"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/tracing"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file")
	messages := flag.Int("messages", 0, "Messages per transport (overrides config)")
	payload := flag.Int("payload", -1, "Payload size in bytes (overrides config)")
	batch := flag.Int("batch", 0, "Batch size (overrides config)")
	rps := flag.Int("rate", -1, "Messages per second, 0 for unpaced (overrides config)")
	transports := flag.String("transports", "", "Comma separated transports (overrides config)")
	report := flag.Bool("report", false, "Print the text analyzer report after the JSON")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *messages > 0 {
		cfg.Bench.Messages = *messages
	}
	if *payload >= 0 {
		cfg.Bench.PayloadSize = *payload
	}
	if *batch > 0 {
		cfg.Bench.BatchSize = *batch
	}
	if *rps >= 0 {
		cfg.Bench.RatePerSecond = *rps
	}
	if *transports != "" {
		cfg.Bench.Transports = strings.Split(*transports, ",")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Logger())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *report); err != nil {
		logger.Error("Benchmark failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger, printReport bool) error {
	opts, err := bench.OptionsFromConfig(cfg.Bench)
	if err != nil {
		return err
	}

	svc, err := ipc.New(cfg.IPC, logger)
	if err != nil {
		return err
	}

	tracer := tracing.New("ipcbench", logger.Logger, 0)
	defer tracer.Close()

	perf := analyzer.New(cfg.Analyzer.MaxSamples)
	runner, err := bench.NewRunner(svc, perf, logger, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := runner.WithTracer(tracer).Run(ctx)
	if result != nil {
		data, err := result.JSON()
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Println(string(data))
		if printReport {
			fmt.Println(perf.Report())
		}
	}
	return runErr
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
