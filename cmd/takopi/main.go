package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/takopi-bot/takopi/internal/config"
	"github.com/takopi-bot/takopi/internal/daily"
	"github.com/takopi-bot/takopi/internal/engine"
	"github.com/takopi-bot/takopi/internal/engine/claude"
	"github.com/takopi-bot/takopi/internal/engine/codex"
	"github.com/takopi-bot/takopi/internal/engine/mock"
	"github.com/takopi-bot/takopi/internal/engine/opencode"
	"github.com/takopi-bot/takopi/internal/engine/pi"
	"github.com/takopi-bot/takopi/internal/handler"
	"github.com/takopi-bot/takopi/internal/lockfile"
	"github.com/takopi-bot/takopi/internal/router"
	"github.com/takopi-bot/takopi/internal/scheduler"
	"github.com/takopi-bot/takopi/internal/store"
	"github.com/takopi-bot/takopi/internal/telemetry"
	"github.com/takopi-bot/takopi/internal/transport"
	"github.com/takopi-bot/takopi/internal/transport/console"
	"github.com/takopi-bot/takopi/internal/transport/telegram"
)

func main() {
	_ = config.LoadDotEnv(".env")

	configPath := flag.String("config", "config.toml", "path to config.toml")
	transportID := flag.String("transport", "", "transport backend: telegram or console (overrides config and TRANSPORT)")
	metricsAddr := flag.String("metrics-addr", "", "host:port for the /metrics endpoint (overrides config and METRICS_ADDR)")
	flag.Parse()

	// Flags take precedence over config.toml and the environment; they are
	// applied through the env overrides that config.Load reads last.
	if *transportID != "" {
		_ = os.Setenv("TRANSPORT", *transportID)
	}
	if *metricsAddr != "" {
		_ = os.Setenv("METRICS_ADDR", *metricsAddr)
	}

	cfgStore, err := config.NewStore(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg := cfgStore.Get()

	registry := buildRegistry(cfg)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// group supervises the bridge's top-level goroutine tree (metrics
	// server, console transport, poll loop) so a single error or
	// cancellation tears the whole tree down cleanly instead of leaking
	// goroutines logging into the void.
	group, gctx := errgroup.WithContext(ctx)

	if cfg.TracingEnabled || cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Init(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatalf("telemetry: %v", err)
		}
		defer shutdown(context.Background())
	}

	if cfg.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
		group.Go(func() error {
			<-gctx.Done()
			return metricsSrv.Close()
		})
		group.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
	}

	var lockHandle *lockfile.Handle
	if cfg.Transport == "telegram" {
		h, err := lockfile.Acquire(cfg.LockDir, cfg.TelegramToken)
		if err != nil {
			logFatalRedacted(cfg.TelegramToken, "lockfile", err)
		}
		lockHandle = h
		fp := lockfile.Fingerprint(cfg.TelegramToken)
		_ = st.RecordLockEvent(ctx, fp, os.Getpid(), "acquire")
		telemetry.LockAcquired.Set(1)
		defer func() {
			_ = st.RecordLockEvent(context.Background(), fp, os.Getpid(), "release")
			telemetry.LockAcquired.Set(0)
			lockHandle.Release()
		}()
	}

	var tp transport.Transport
	switch cfg.Transport {
	case "console":
		tp = console.New(cfg.ConsoleAddr)
	case "telegram":
		tg, err := telegram.New(cfg.TelegramToken, cfg.Allowlist, cfg.LogUnknown)
		if err != nil {
			logFatalRedacted(cfg.TelegramToken, "telegram", err)
		}
		tp = tg
	default:
		log.Fatalf("main: unknown transport %q", cfg.Transport)
	}

	rtr := router.New(registry, cfg.DefaultEngine)
	sched := scheduler.New(ctx)
	defer sched.Shutdown()

	h := handler.New(rtr, tp, sched, st, handler.Options{
		Budget:         cfg.EditBudget,
		EditsPerSecond: cfg.EditsPerSecond,
	})

	dailySched := daily.New(h, st)
	h.SetDailyScheduler(dailySched)
	if err := dailySched.LoadConfigPrompts(cfg.Daily); err != nil {
		log.Printf("daily: %v", err)
	}
	if err := dailySched.LoadStoredPrompts(ctx); err != nil {
		log.Printf("daily: %v", err)
	}
	dailySched.Start()
	defer dailySched.Stop()

	if consoleSrv, ok := tp.(*console.Transport); ok {
		group.Go(func() error {
			if err := consoleSrv.ListenAndServe(gctx); err != nil {
				return fmt.Errorf("console: %w", err)
			}
			return nil
		})
	}

	inbound, err := tp.Poll(gctx)
	if err != nil {
		log.Fatalf("main: poll: %v", err)
	}

	log.Printf("takopi: running transport=%s default_engine=%s engines=%d", cfg.Transport, cfg.DefaultEngine, registry.Len())

	group.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case in, ok := <-inbound:
				if !ok {
					return nil
				}
				h.HandleInbound(gctx, in)
			}
		}
	})

	if err := group.Wait(); err != nil {
		log.Printf("main: shutting down after error: %v", err)
	}
}

// metricsMux serves the Prometheus scrape endpoint.
func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	return mux
}

// buildRegistry registers every engine named in cfg.Engines with its
// configured cmd/args override, plus the mock engine so console smoke
// runs never require an external binary.
func buildRegistry(cfg config.Config) *engine.Registry {
	registry := engine.NewRegistry()

	registry.Register(codex.New(engineCmd(cfg, "codex"), cfg.WorkDir, engineArgs(cfg, "codex")))
	registry.Register(claude.New(engineCmd(cfg, "claude"), cfg.WorkDir, engineArgs(cfg, "claude")))
	registry.Register(opencode.New(engineCmd(cfg, "opencode"), cfg.WorkDir, engineArgs(cfg, "opencode")))
	registry.Register(pi.New(engineCmd(cfg, "pi"), cfg.WorkDir, engineArgs(cfg, "pi")))
	registry.Register(mock.New(nil))

	return registry
}

func engineCmd(cfg config.Config, id string) string {
	if ec, ok := cfg.Engines[id]; ok && ec.Cmd != "" {
		return ec.Cmd
	}
	return id
}

func engineArgs(cfg config.Config, id string) []string {
	if ec, ok := cfg.Engines[id]; ok {
		return ec.Args
	}
	return nil
}

// logFatalRedacted exits after logging err with the bot token scrubbed
// out of the error text.
func logFatalRedacted(token, label string, err error) {
	msg := err.Error()
	if token != "" {
		msg = strings.ReplaceAll(msg, token, "<redacted>")
	}
	log.Fatalf("%s: %s", label, msg)
}
