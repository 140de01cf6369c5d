// Entry point for the duescan HTTP service — chi router, Basic Auth,
// background scan scheduler, optional MCP over stdio.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/duescan/duescan/browse"
	"github.com/duescan/duescan/dbopen"
	"github.com/duescan/duescan/notify"
	"github.com/duescan/duescan/store"
	"github.com/duescan/duescan/tracker"
)

func main() {
	configPath := env("DUESCAN_CONFIG", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := tracker.Load(configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Browser.
	browser := browse.NewManager(browse.Config{
		RemoteURL: env("BROWSER_URL", ""),
		Headful:   env("HEADFUL", "") == "1",
		Logger:    logger,
	})
	if err := browser.Start(); err != nil {
		slog.Error("browser start", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	// Notifications are optional — without Telegram credentials the
	// scheduler still scans, it just skips the deadline sweep.
	var notifier notify.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	svc := tracker.New(store.NewStore(db), browser, notifier, cfg, logger)

	// Optional MCP over stdio.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "duescan",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if sErr := mcpSrv.Run(ctx, &mcp.StdioTransport{}); sErr != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", sErr)
			}
		}()
	}

	// Start scheduler.
	go tracker.NewScheduler(svc).Run(ctx)

	handler, err := tracker.NewRouter(svc, cfg)
	if err != nil {
		slog.Error("router", "error", err)
		os.Exit(1)
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
