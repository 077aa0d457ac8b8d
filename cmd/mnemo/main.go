// Command mnemo wires the long-term memory subsystem's core packages
// together into a runnable process: load config, stand up the
// GraphAdapter/CompletionGateway capabilities, and drive one turn of the
// Resonance Pipeline + ConsolidationEngine against a memory directory.
//
// This binary is the demo/wiring entry point the expanded spec calls
// for — the surrounding agent runtime (prompt assembly, tool dispatch,
// streaming transport, channel adapters) stays out of scope, per
// spec.md §1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/bus"
	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/config"
	"github.com/basket/mnemo/internal/cron"
	"github.com/basket/mnemo/internal/graphmem"
	otelx "github.com/basket/mnemo/internal/otelx"
	"github.com/basket/mnemo/internal/pending"
	"github.com/basket/mnemo/internal/persistence"
	"github.com/basket/mnemo/internal/resonance"
	"github.com/basket/mnemo/internal/story"
	"github.com/basket/mnemo/internal/telemetry"
)

const identityScope = "global-user-memory"

func main() {
	homeDir := flag.String("home", defaultHomeDir(), "mnemo home directory (holds logs/, config.yaml, the memory directory)")
	memDir := flag.String("memory-dir", "", "per-identity memory directory (STORY.md + pending log); defaults to <home>/memory-store")
	prompt := flag.String("prompt", "", "user prompt to run one Resonance Pipeline turn against; empty runs consolidation only")
	assistantReply := flag.String("assistant-reply", "", "assistant reply text to ingest as an episode alongside the prompt")
	provider := flag.String("provider", "", "completion provider override: anthropic, openai, google (default from config/env)")
	debug := flag.Bool("debug", false, "verbose logging to stderr")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, runOptions{
		homeDir:        *homeDir,
		memDir:         *memDir,
		prompt:         *prompt,
		assistantReply: *assistantReply,
		provider:       *provider,
		debug:          *debug,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "mnemo:", err)
		os.Exit(1)
	}
}

type runOptions struct {
	homeDir        string
	memDir         string
	prompt         string
	assistantReply string
	provider       string
	debug          bool
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mnemo"
	}
	return filepath.Join(home, ".mnemo")
}

func run(ctx context.Context, opts runOptions) error {
	if err := os.MkdirAll(opts.homeDir, 0o755); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	memDir := opts.memDir
	if memDir == "" {
		memDir = filepath.Join(opts.homeDir, "memory-store")
	}

	cfg, err := config.Load(filepath.Join(opts.homeDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.debug {
		cfg.Debug = true
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	logger, logCloser, err := telemetry.NewLogger(opts.homeDir, level, false)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := audit.Init(opts.homeDir); err != nil {
		return fmt.Errorf("init audit: %w", err)
	}
	defer audit.Close()

	store, err := persistence.Open(filepath.Join(opts.homeDir, "mnemo.db"))
	if err != nil {
		return fmt.Errorf("open persistence store: %w", err)
	}
	defer store.Close()
	audit.SetDB(store.DB())

	otelProvider, err := otelx.Init(ctx, otelx.Config{Enabled: false})
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer otelProvider.Shutdown(ctx)

	eventBus := bus.NewWithLogger(logger)

	gw := buildCompletionGateway(ctx, cfg, opts.provider, store)

	adapter := buildGraphAdapter(cfg)

	pendingLog, err := pending.New(memDir)
	if err != nil {
		return fmt.Errorf("init pending log: %w", err)
	}

	storyEngine := story.NewEngine(gw, adapter, story.Config{
		TokenThreshold:       cfg.Narrative.Threshold,
		StoryFilename:        cfg.Narrative.StoryFilename,
		AutoBootstrapHistory: cfg.Narrative.AutoBootstrapHistory,
		Model:                "gemini-2.0-flash",
	})

	identityBundle := story.Identity{Soul: defaultSoul(), Story: ""}
	if doc, err := story.Load(storyEngine.StoryPath(memDir)); err == nil {
		identityBundle.Story = doc.Body
	}

	scheduler := cron.NewScheduler(cron.Config{
		Logger: logger,
		Sync: func(ctx context.Context) (int, error) {
			sessionsDir := filepath.Join(opts.homeDir, "sessions")
			if err := storyEngine.SyncGlobalNarrative(ctx, memDir, sessionsDir, "", identityBundle); err != nil {
				return 0, err
			}
			return 1, nil
		},
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	pipeline := resonance.New(adapter, gw, resonance.Config{
		Model:          "gemini-2.0-flash",
		RewriteEnabled: cfg.Narrative.Enabled && !config.SkipResonance(),
	}, eventBus)
	pipeline.SetTracer(otelProvider.Tracer)

	if cfg.Narrative.Enabled && identityBundle.Story != "" {
		fmt.Println(identityBundle.Story)
	}

	if cfg.Narrative.Enabled && !config.SkipResonance() && opts.prompt != "" {
		block := pipeline.Run(ctx, resonance.Input{
			Scope:         identityScope,
			SessionID:     "cli",
			CurrentPrompt: opts.prompt,
			Identity:      resonance.Identity{Soul: identityBundle.Soul, Story: identityBundle.Story},
			Now:           time.Now().UTC(),
		})
		if block != "" {
			fmt.Println(block)
		}
	}

	if opts.prompt != "" {
		if err := pendingLog.Track(opts.prompt); err != nil {
			slog.Warn("track prompt failed", "error", err)
		}
		if err := adapter.AddEpisode(ctx, identityScope, graphmem.Episode{
			Role: "human", Body: opts.prompt, Timestamp: time.Now().UTC(),
		}); err != nil {
			slog.Warn("ingest prompt episode failed", "error", err)
		}
	}
	if opts.assistantReply != "" {
		if err := pendingLog.Track(opts.assistantReply); err != nil {
			slog.Warn("track reply failed", "error", err)
		}
		if err := adapter.AddEpisode(ctx, identityScope, graphmem.Episode{
			Role: "assistant", Body: opts.assistantReply, Timestamp: time.Now().UTC(),
		}); err != nil {
			slog.Warn("ingest reply episode failed", "error", err)
		}
	}

	if cfg.Narrative.Enabled {
		if err := storyEngine.CheckAndConsolidate(ctx, identityScope, memDir, pendingLog, identityBundle); err != nil {
			slog.Warn("consolidation check failed", "error", err)
		}
	}

	return nil
}

func buildCompletionGateway(ctx context.Context, cfg config.Config, providerOverride string, store *persistence.Store) completion.Gateway {
	provider := providerOverride
	if provider == "" {
		provider = "google"
	}
	primary := completion.NewGenkitGateway(ctx, completion.GenkitGatewayConfig{Provider: provider})

	fg := completion.NewFailoverGateway(provider, primary, nil, nil, 0, 0)
	fg.SetKVStore(store)
	fg.LoadBreakerState(ctx)
	return fg
}

func buildGraphAdapter(cfg config.Config) graphmem.Adapter {
	if cfg.Graphiti.BaseURL == "" {
		return graphmem.NewMemoryAdapter()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Graphiti.BaseURL})
	return graphmem.NewRedisAdapter(client)
}

func defaultSoul() string {
	return "I am a long-running conversational agent, narrating my own continuity across sessions."
}
