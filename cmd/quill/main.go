package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quill-labs/quill/internal/agent"
	"github.com/quill-labs/quill/internal/config"
	"github.com/quill-labs/quill/internal/console"
	"github.com/quill-labs/quill/internal/llm"
	"github.com/quill-labs/quill/internal/tools"
	"github.com/quill-labs/quill/pkg/ledger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to config file")
	message := flag.String("m", "", "Run a single prompt non-interactively and exit")
	yes := flag.Bool("yes", false, "Auto-approve dangerous tools in non-interactive mode")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("quill %s (%s)\n", version, commit)
		os.Exit(0)
	}

	// Load config
	cp := *configPath
	if cp == "" {
		cp = os.Getenv("QUILL_CONFIG_PATH")
	}

	cfg, err := config.LoadConfig(cp)
	if err != nil {
		fatal("failed to load config", "path", cp, "error", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Logger: diagnostics go to stderr so the conversation owns stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal("invalid config", "error", err)
	}

	provider := buildProvider(cfg)

	// Open ledger
	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		fatal("failed to open ledger", "path", cfg.LedgerPath, "error", err)
	}
	defer l.Close()

	if err := l.StartSession(uuid.New().String()); err != nil {
		fatal("failed to start session", "error", err)
	}

	slog.Info("quill starting",
		"version", version,
		"provider", provider.Name(),
		"model", cfg.Model,
	)

	registry := tools.NewRegistry(tools.Defaults()...)

	opts := agent.Options{
		Provider:     provider,
		Registry:     registry,
		Gate:         agent.NewGate(l),
		Recorder:     l,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxOutput,
		Temperature:  cfg.Temperature,
		MaxTurns:     cfg.MaxTurns,
		Prices:       agent.Prices{InputPerMTok: cfg.Prices.InputPerMTok, OutputPerMTok: cfg.Prices.OutputPerMTok},
		SystemPrompt: cfg.SystemPrompt,
	}

	if *message != "" {
		os.Exit(runOnce(opts, *message, *yes))
	}

	// Interactive: SIGTERM ends the process, SIGINT is the console's
	// per-turn cancel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	ui := console.New(cfg.HistoryPath)
	defer ui.Close()

	opts.Interactor = ui
	a := agent.New(opts)

	ui.Banner(version, provider.Name(), cfg.Model)
	if err := ui.Run(ctx, a, l); err != nil && ctx.Err() == nil {
		fatal("console error", "error", err)
	}
}

// runOnce executes a single prompt without the REPL and prints the
// final text. Dangerous tools are denied unless -yes is set.
func runOnce(opts agent.Options, prompt string, autoApprove bool) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	opts.Interactor = agent.Headless{Allow: autoApprove}
	a := agent.New(opts)

	res, err := a.Run(ctx, prompt)
	if err != nil {
		slog.Error("turn failed", "error", err)
		return 1
	}
	if res.Reason == agent.StopSafetyLimit {
		slog.Warn("stopped at safety limit", "turns", res.Turns)
		return 1
	}
	fmt.Println(res.Text)
	return 0
}

func buildProvider(cfg *config.Config) llm.Provider {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return llm.NewOpenAI("openai", cfg.BaseURL, cfg.APIKey, cfg.Model)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
