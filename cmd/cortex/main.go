package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/kernel"
	"github.com/tailored-agentic-units/cortex/observability"
	"github.com/tailored-agentic-units/cortex/server"
)

const tracerShutdownTimeout = 5 * time.Second

var (
	configFile    = flag.String("config", "", "Path to config file, JSON or YAML (optional)")
	prompt        = flag.String("prompt", "", "Prompt to send as one chat turn")
	systemPrompt  = flag.String("system-prompt", "", "System prompt (overrides config)")
	stateDir      = flag.String("state-dir", "", "Checkpoint directory (overrides config)")
	sessionRoot   = flag.String("session-root", "", "Directory holding persistent sessions (overrides config)")
	sessionID     = flag.String("session", "", "Persistent session id under the session root")
	listSessions  = flag.Bool("list-sessions", false, "List sessions under the session root and exit")
	deleteSession = flag.String("delete-session", "", "Delete the named session and exit")
	serveAddr     = flag.String("serve", "", "Serve the RPC API on this address, e.g. :8080")
	otlpEndpoint  = flag.String("otlp-endpoint", "", "Export traces to this OTLP/HTTP collector (host:port)")
	otlpInsecure  = flag.Bool("otlp-insecure", false, "Use plain HTTP for the OTLP exporter")
	logFormat     = flag.String("log-format", "text", "Log format: text or json")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging to stderr")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := kernel.DefaultConfig()
	if *configFile != "" {
		loaded, err := kernel.LoadConfig(*configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	applyFlags(&cfg)

	switch {
	case *listSessions:
		return printSessions(cfg.Session.Root)
	case *deleteSession != "":
		if err := kernel.DeleteSession(cfg.Session.Root, *deleteSession); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", *deleteSession)
		return nil
	case *prompt == "" && cfg.Server.Addr == "":
		fmt.Fprintln(os.Stderr, "Usage: cortex [-config <file>] (-prompt <text> | -serve <addr> | -list-sessions | -delete-session <id>)")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := newLogger(*logFormat, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled() {
		tp, err := observability.InitTracer(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("flush traces", "error", err)
			}
		}()
	}

	metrics := observability.NewMetricsObserver("cortex")
	observer := observability.NewMultiObserver(
		observability.NewSlogObserver(logger),
		metrics,
		observability.TraceObserver{},
	)

	if *prompt != "" {
		if err := runPrompt(ctx, &cfg, *sessionID, *prompt, observer); err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		return nil
	}

	runtime, err := kernel.New(&cfg, kernel.WithObserver(observer))
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Error("close runtime", "error", err)
		}
	}()

	srv := server.New(runtime, server.WithObserver(observer), server.WithMetrics(metrics))
	logger.Info("serving", "addr", cfg.Server.Addr, "tracing", cfg.Tracing.Enabled())
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func applyFlags(cfg *kernel.Config) {
	if *systemPrompt != "" {
		cfg.SystemPrompt = *systemPrompt
	}
	if *stateDir != "" {
		cfg.State.Directory = *stateDir
	}
	if *sessionRoot != "" {
		cfg.Session.Root = *sessionRoot
	}
	if *serveAddr != "" {
		cfg.Server.Addr = *serveAddr
	}
	if *otlpEndpoint != "" {
		cfg.Tracing.Endpoint = *otlpEndpoint
	}
	if *otlpInsecure {
		cfg.Tracing.Insecure = true
	}
}

func printSessions(root string) error {
	ids, err := kernel.ListSessions(root)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// runPrompt runs one chat turn, inside a persistent session when id is set.
func runPrompt(ctx context.Context, cfg *kernel.Config, id, prompt string, observer observability.Observer) (err error) {
	ctx, span := otel.Tracer("cortex").Start(ctx, "cortex.prompt")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if id != "" {
		if cfg.Session.Root == "" {
			return errors.New("-session requires -session-root or session.root in the config")
		}
		s, err := kernel.OpenSession(cfg.Session.Root, id,
			kernel.WithSessionConfig(cfg),
			kernel.WithKernelOptions(kernel.WithObserver(observer)),
		)
		if err != nil {
			return err
		}
		defer s.Close()

		reply, err := s.Chat(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	runtime, err := kernel.New(cfg, kernel.WithObserver(observer))
	if err != nil {
		return err
	}
	defer runtime.Close()

	reply, err := runtime.Chat(ctx, protocol.UserMessage(prompt))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func newLogger(format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
