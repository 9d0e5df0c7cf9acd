package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/moverbot/internal/api"
	"github.com/kjannette/moverbot/internal/bot"
	"github.com/kjannette/moverbot/internal/config"
	"github.com/kjannette/moverbot/internal/logx"
)

const banner = `
╔══════════════════════════════════════╗
║     MoverBot Crypto Alerts v0.3      ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	if err := logx.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "[LOG] Init failed: %v\n", err)
		os.Exit(1)
	}
	defer logx.Sync()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracker, notifiers and scheduled tasks
	fmt.Printf("\n[BOT] Opening %s snapshot store ...\n", cfg.SnapshotBackend)
	botService, err := bot.NewService(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[BOT] Init failed: %v\n", err)
		os.Exit(1)
	}
	botService.Start(ctx)

	// 2. API server
	var srv *api.Server
	if cfg.APIEnabled {
		srv = api.NewServer(botService.Tracker(), botService.Scheduler(), api.Options{
			Port:       cfg.APIPort,
			APIKey:     cfg.APIKey,
			CORSOrigin: cfg.CORSAllowOrigin,
			TopN:       cfg.MoversTopN,
		})
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
				stop()
			}
		}()
	} else {
		fmt.Println("[API] Skipped - API_ENABLED=false")
	}

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
		}
		fmt.Println("[API] Server closed")
	}

	botService.Stop()
	fmt.Println("Shutdown complete")
}
