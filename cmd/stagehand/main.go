package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/basket/stagehand/internal/config"
	otelPkg "github.com/basket/stagehand/internal/otel"
	"github.com/basket/stagehand/internal/telemetry"
	"github.com/basket/stagehand/internal/wizard"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.2-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

  %s                          Run the setup wizard
  %s -answers answers.yaml    Preload per-screen answers (answered screens are skipped)
  %s -ascii                   Force plain rendering (serial consoles)

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  STAGEHAND_HOME          Data directory (default: ~/.stagehand)
`)
}

func main() {
	home := flag.String("home", "", "data directory (default: $STAGEHAND_HOME or ~/.stagehand)")
	answersPath := flag.String("answers", "", "answers file; answered screens apply themselves and are skipped")
	ascii := flag.Bool("ascii", false, "force plain ASCII rendering")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if *version {
		fmt.Println("stagehand", Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *home, *answersPath, *ascii, *logLevel); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "stagehand:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, home, answersPath string, ascii bool, logLevel string) error {
	homeDir, err := resolveHome(home)
	if err != nil {
		return err
	}

	cfg, err := config.Load(filepath.Join(homeDir, "config.yaml"))
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Basic mode for dumb terminals: serial consoles and redirected output
	// get the same treatment as an explicit -ascii.
	interactive := isatty.IsTerminal(os.Stdout.Fd())
	if ascii || !interactive {
		cfg.ASCII = true
	}

	// Quiet logs (file-only) while the TUI owns the terminal.
	logger, logCloser, err := telemetry.NewLogger(homeDir, cfg.LogLevel, interactive)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	otelProvider, err := otelPkg.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer otelProvider.Shutdown(context.Background())

	metrics, err := otelPkg.NewMetrics(otelProvider.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var answers config.Answers
	if answersPath != "" {
		answers, err = config.LoadAnswers(answersPath)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		logger.Info("answers loaded", "path", answersPath, "stages", len(answers))
	}

	watcher := config.NewWatcher(homeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	}

	logger.Info("stagehand starting", "version", Version, "home", homeDir, "ascii", cfg.ASCII)

	vals, err := wizard.Run(ctx, wizard.Config{
		Answers:       answers,
		Logger:        logger,
		Tracer:        otelProvider.Tracer,
		Metrics:       metrics,
		Indication:    cfg.Progress(),
		DefaultMirror: cfg.DefaultMirror,
		ASCII:         cfg.ASCII,
		Reload:        watcher.Events(),
	})
	if err != nil {
		return err
	}

	logger.Info("wizard finished", "hostname", vals.Hostname, "mirror", vals.Mirror)
	return writeResult(homeDir, vals)
}

func resolveHome(flagHome string) (string, error) {
	if flagHome != "" {
		return flagHome, nil
	}
	if env := os.Getenv("STAGEHAND_HOME"); env != "" {
		return env, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(userHome, ".stagehand"), nil
}

// writeResult persists what the flow collected next to the config. The
// passphrase deliberately stays out of the file.
func writeResult(homeDir string, vals *wizard.Values) error {
	out := fmt.Sprintf("locale: %s\nhostname: %s\nmirror: %s\n", vals.Locale, vals.Hostname, vals.Mirror)
	if vals.Proxy != "" {
		out += fmt.Sprintf("proxy: %s\n", vals.Proxy)
	}
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(homeDir, "result.yaml"), []byte(out), 0o644)
}
