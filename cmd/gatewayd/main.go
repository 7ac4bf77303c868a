package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/config"
	"github.com/agentsdashboard/runtime-gateway/internal/container"
	"github.com/agentsdashboard/runtime-gateway/internal/events"
	"github.com/agentsdashboard/runtime-gateway/internal/executor"
	"github.com/agentsdashboard/runtime-gateway/internal/gateway"
	"github.com/agentsdashboard/runtime-gateway/internal/git"
	"github.com/agentsdashboard/runtime-gateway/internal/gitworkspace"
	"github.com/agentsdashboard/runtime-gateway/internal/harness"
	"github.com/agentsdashboard/runtime-gateway/internal/queue"
	"github.com/agentsdashboard/runtime-gateway/internal/redact"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		claudeCmd  string
		codexCmd   string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "gatewayd",
		Short:         "Task runtime gateway daemon",
		Long:          `gatewayd admits dispatch requests, runs AI coding harnesses as child processes, and streams structured events back to a control plane.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			harnessCtx := config.HarnessResolutionContext{
				CLIClaudeCommand: claudeCmd,
				CLICodexCommand:  codexCmd,
			}
			claude := config.ResolveClaudeCommand(harnessCtx, cfg)
			codex := config.ResolveCodexCommand(harnessCtx, cfg)

			return run(cmd.Context(), cfg, claude.Command, codex.Command)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to gatewayd config file (YAML)")
	cmd.PersistentFlags().StringVar(&claudeCmd, "claude-cmd", "", "override the Claude CLI command")
	cmd.PersistentFlags().StringVar(&codexCmd, "codex-cmd", "", "override the Codex CLI command")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	return cmd
}

// run wires every gateway component together and blocks until the process
// receives SIGINT/SIGTERM, then drains in-flight runs before returning.
func run(ctx context.Context, cfg *config.Config, claudeCmd, codexCmd string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := container.NewManager()
	if err != nil {
		return fmt.Errorf("container manager: %w", err)
	}

	redactor := redact.WithEnv(redact.CommonPatterns(), envMap())
	registry := harness.NewRegistry(claudeCmd, codexCmd, redactor)
	workspaces := gitworkspace.New(cfg.Workspace.WorkspacesRoot, git.DefaultRunner())
	exec := executor.New(workspaces, registry, redactor, cfg.Workspace.ArtifactsRoot)

	q := queue.New(cfg.Server.MaxSlots)
	bus := events.NewBus(256)
	bus.On(events.LogHandler(events.LogConfig{}))

	proc := gateway.NewProcessor(q, exec, bus)

	pinger := gateway.NewDockerPinger(mgr)
	pingTimeout, err := time.ParseDuration(cfg.Heartbeat.PingTimeout)
	if err != nil {
		return fmt.Errorf("heartbeat.ping_timeout: %w", err)
	}
	stalenessThreshold, err := time.ParseDuration(cfg.Heartbeat.StalenessThreshold)
	if err != nil {
		return fmt.Errorf("heartbeat.staleness_threshold: %w", err)
	}
	healthInterval, err := time.ParseDuration(cfg.Reconciler.Interval)
	if err != nil {
		return fmt.Errorf("reconciler.interval: %w", err)
	}
	health := gateway.NewHealth(pinger, healthInterval, pingTimeout, stalenessThreshold)

	reconcilerInterval, err := time.ParseDuration(cfg.Reconciler.Interval)
	if err != nil {
		return fmt.Errorf("reconciler.interval: %w", err)
	}
	reconciler := gateway.NewReconciler(q, mgr, bus, reconcilerInterval)

	warmup, err := time.ParseDuration(cfg.Heartbeat.WarmupInterval)
	if err != nil {
		return fmt.Errorf("heartbeat.warmup_interval: %w", err)
	}
	heartbeatInterval, err := time.ParseDuration(cfg.Heartbeat.Interval)
	if err != nil {
		return fmt.Errorf("heartbeat.interval: %w", err)
	}
	heartbeat := gateway.NewHeartbeat(q, health, bus, warmup, heartbeatInterval)

	go health.Run(ctx)
	go reconciler.Run(ctx)
	go heartbeat.Run(ctx)
	go proc.Run(ctx)

	log.Printf("gatewayd: ready (max_slots=%d, queue_capacity=%d)", cfg.Server.MaxSlots, cfg.Queue.Capacity)

	<-ctx.Done()
	log.Println("gatewayd: shutting down")

	shutdownTimeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	proc.Shutdown(shutdownCtx, shutdownTimeout)

	return nil
}

func envMap() map[string]string {
	out := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
