package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/tab_relay/internal/api"
	"github.com/dgnsrekt/tab_relay/internal/browser"
	"github.com/dgnsrekt/tab_relay/internal/cdp"
	"github.com/dgnsrekt/tab_relay/internal/command"
	"github.com/dgnsrekt/tab_relay/internal/config"
	"github.com/dgnsrekt/tab_relay/internal/favicon"
	"github.com/dgnsrekt/tab_relay/internal/hub"
	"github.com/dgnsrekt/tab_relay/internal/netutil"
	"github.com/dgnsrekt/tab_relay/internal/titles"
	"github.com/dgnsrekt/tab_relay/internal/tracker"
	"github.com/dgnsrekt/tab_relay/internal/types"
	"github.com/dgnsrekt/tab_relay/internal/window"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tab_server config loaded",
		"command_addr", cfg.CommandAddr(),
		"bind_addr", cfg.BindAddr(),
		"personal_debug_port", cfg.Personal.DebugPort,
		"work_debug_port", cfg.Work.DebugPort,
		"priority_domains", cfg.PriorityDomains,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	cleaner, err := titles.Load(cfg.TitleRulesFile)
	if err != nil {
		slog.Error("failed to load title rules", "file", cfg.TitleRulesFile, "error", err)
		os.Exit(1)
	}
	fetcher := favicon.NewFetcher()

	launcher, err := browser.NewLauncher(cfg.BrowserPath)
	if err != nil {
		slog.Error("failed to resolve browser binary", "error", err)
		os.Exit(1)
	}
	slog.Info("browser binary resolved", "path", launcher.Path())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := hub.NewBroker()
	adapters := make(map[types.Profile]*cdp.Adapter)
	hubControls := make(map[types.Profile]hub.BrowserControl)
	cmdControls := make(map[types.Profile]command.Browser)
	specs := make(map[types.Profile]browser.LaunchSpec)
	windowTitles := make(map[types.Profile]string)

	for _, pc := range cfg.Profiles() {
		endpoint := cdp.NewEndpoint(cfg.DebugURL(pc.Name))
		hubControls[pc.Name] = endpoint
		cmdControls[pc.Name] = endpoint
		specs[pc.Name] = browser.LaunchSpec{
			Host:        "127.0.0.1",
			DebugPort:   pc.DebugPort,
			UserDataDir: pc.UserDataDir,
		}
		windowTitles[pc.Name] = pc.WindowTitle

		tr := tracker.New(pc.Name, cleaner.Clean, fetcher.Get, broker)
		adapters[pc.Name] = cdp.NewAdapter(pc.Name, endpoint, tr)
	}

	for _, adapter := range adapters {
		go adapter.Run(ctx)
	}

	focuser := window.NewFocuser(windowTitles)
	h := hub.New(hub.Options{
		Broker:       broker,
		Controls:     hubControls,
		Clean:        cleaner.Clean,
		Favicon:      fetcher.Get,
		FocusWindow:  focuser.Focus,
		AdapterState: func(p types.Profile) string { return adapters[p].State() },
		Priority:     cfg.PriorityDomains,
	})

	focusSvc := command.NewService(cmdControls, specs, launcher, focuser.Focus, cfg.PriorityDomains)
	cmdSrv := command.NewServer(cfg.CommandAddr(), focusSvc)
	go func() {
		if err := cmdSrv.Run(ctx); err != nil {
			slog.Error("control channel failed", "addr", cfg.CommandAddr(), "error", err)
			os.Exit(1)
		}
	}()

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr(), nil, false)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr(), "error", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(h, h.Handler())}
	go func() {
		slog.Info("tab_server listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("tab_server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("tab_server shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
