package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/adapter/bark"
	aihttp "github.com/quietloop/ai-intervention-agent/internal/adapter/http"
	"github.com/quietloop/ai-intervention-agent/internal/adapter/mcp"
	"github.com/quietloop/ai-intervention-agent/internal/adapter/sound"
	"github.com/quietloop/ai-intervention-agent/internal/adapter/sysnotify"
	"github.com/quietloop/ai-intervention-agent/internal/adapter/webtoast"
	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/logger"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
	"github.com/quietloop/ai-intervention-agent/internal/queue"
	"github.com/quietloop/ai-intervention-agent/internal/service"
)

var nonSlugChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// projectSlug returns cfg.Project if set, otherwise derives one from the
// current working directory's name so task IDs and notification titles
// identify which workspace's agent is asking, without requiring the user to
// set anything explicitly.
func projectSlug(cfg config.Config) string {
	if cfg.Project != "" {
		return cfg.Project
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "agent"
	}
	slug := nonSlugChars.ReplaceAllString(filepath.Base(cwd), "-")
	if slug == "" {
		return "agent"
	}
	return slug
}

func main() {
	host := flag.String("host", "", "override the bind address (network_security.bind_interface)")
	port := flag.String("port", "", "override the bind port (web_ui.port)")
	timeout := flag.Int("timeout", 0, "override feedback.timeout in seconds")
	verbose := flag.Bool("verbose", false, "raise the log level to debug")
	configPath := flag.String("config", "", "explicit path to config.jsonc, bypassing discovery")
	mcpAddr := flag.String("mcp-addr", ":7890", "bind address for the MCP tool server")
	flag.Parse()

	if err := run(*host, *port, *timeout, *verbose, *configPath, *mcpAddr); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(host, port string, timeoutOverride int, verbose bool, configPath, mcpAddr string) error {
	store, err := config.Open(configPath, slog.Default())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer store.Close()

	if timeoutOverride > 0 {
		store.OverrideFeedbackTimeout(timeoutOverride)
	}

	loggingCfg := store.Snapshot().Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	log, closer := logger.New(loggingCfg)
	defer closer.Close()
	slog.SetDefault(log)

	sec := store.Snapshot().NetworkSecurity
	bindHost := sec.BindInterface
	if host != "" {
		bindHost = host
	}
	bindPort := store.Snapshot().WebUI.Port
	if port != "" {
		p, err := config.ClampPort(port)
		if err != nil {
			return fmt.Errorf("--port: %w", err)
		}
		bindPort = p
	}
	addr := fmt.Sprintf("%s:%d", bindHost, bindPort)

	q := queue.New(projectSlug(*store.Snapshot()), store.Snapshot().Queue.MaxTasks, time.Duration(store.Snapshot().Queue.EvictionGraceSeconds)*time.Second)
	defer q.Close()

	liveNotification := func() config.Notification { return store.Snapshot().Notification }
	notifiers := []notifier.Notifier{
		sysnotify.New(liveNotification),
		webtoast.New(liveNotification),
		sound.New(liveNotification),
		bark.New(liveNotification),
	}
	notifSvc := service.NewNotificationService(store, notifiers, log)

	feedback := service.NewFeedbackService(store, q, notifSvc, log)
	defer feedback.Shutdown()

	httpSrv := aihttp.NewServer(store, feedback, log)
	mcpSrv := mcp.NewServer(mcp.ServerConfig{Addr: mcpAddr, Name: "ai-intervention-agent", Version: "1.0.0"}, mcp.ServerDeps{Feedback: feedback})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		httpErrCh <- httpSrv.Start(addr)
	}()

	if err := mcpSrv.Start(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	log.Info("mcp server listening", "addr", mcpAddr)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-httpErrCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", "error", err)
	}
	if err := mcpSrv.Stop(shutdownCtx); err != nil {
		log.Warn("mcp shutdown error", "error", err)
	}
	return nil
}
