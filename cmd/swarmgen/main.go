package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/herbert256/swarmgen/internal/catalog"
	"github.com/herbert256/swarmgen/internal/config"
	"github.com/herbert256/swarmgen/internal/invoke"
	"github.com/herbert256/swarmgen/internal/natsbus"
	"github.com/herbert256/swarmgen/internal/registry"
	"github.com/herbert256/swarmgen/internal/report"
	"github.com/herbert256/swarmgen/internal/scheduler"
	"github.com/herbert256/swarmgen/internal/store"
	"github.com/herbert256/swarmgen/internal/telegram"
	"github.com/herbert256/swarmgen/internal/vault"
	"github.com/herbert256/swarmgen/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("swarmgen %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: swarmgen <command>\n\nCommands:\n  serve      Start the report generation service\n  backup     Archive the data directories\n  restore    Restore from a backup archive\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting swarmgen", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("nats client: %w", err)
	}
	defer events.Close()

	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	} else {
		slog.Warn("vault passphrase not set, runtime provider keys disabled")
	}

	reg := registry.New(db, v, cfg)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync registry: %w", err)
	}

	cat := catalog.New(cfg.Providers)
	cost := report.NewCalculator(cfg.Pricing)

	orch := report.NewOrchestrator(db, reg, cat, invoke.NewHTTPInvoker(), cost, events, cfg.Dispatch.Timeout)

	if cfg.Telegram.Token != "" {
		notifier, err := telegram.NewNotifier(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
		orch.OnCompleted(notifier.NotifyCompleted)
		slog.Info("telegram notifications enabled", "chat", cfg.Telegram.ChatID)
	}

	sched := scheduler.New(db, orch, reg, events, cfg.Scheduler)
	go sched.Start(ctx)

	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, orch, reg, cat, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
