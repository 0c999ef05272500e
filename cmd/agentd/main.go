// Command agentd runs the autonomous agent: it launches the MCP tool
// server subprocess, performs the handshake, and drives the reasoning
// loop until the goal is achieved or the process is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mcpagent/pkg/agent"
	"mcpagent/pkg/config"
	"mcpagent/pkg/control"
	"mcpagent/pkg/history"
	"mcpagent/pkg/llm"
	"mcpagent/pkg/logging"
	"mcpagent/pkg/mcp"
	"mcpagent/pkg/prompt"
)

func main() {
	configPath := flag.String("config", "agent.toml", "config file path")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(*configPath, *debug); err != nil {
		slog.Error("agent failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	closer, err := logging.Setup(level, cfg.Log.File)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mcp.Start(mcp.Options{
		Command:       cfg.MCP.Command,
		AwaitTimeout:  cfg.MCP.AwaitTimeout(),
		ShutdownGrace: cfg.MCP.ShutdownGrace(),
	})
	if err != nil {
		return err
	}
	// The subprocess must be torn down on every exit path, including
	// unrecoverable loop errors below.
	defer client.Shutdown()

	tools, err := client.Handshake(cfg.MCP.HandshakeTimeout())
	if err != nil {
		return err
	}

	hints := cfg.Budget.ToolHints
	if len(tools) > 0 {
		hints += "\nDiscovered tools: " + strings.Join(tools, ", ")
	}

	signals := &control.Signals{
		GoalPath:       cfg.Signals.GoalFile,
		PausePath:      cfg.Signals.PauseFile,
		CorrectionPath: cfg.Signals.CorrectionFile,
	}

	a := agent.New(agent.Config{
		Signals: signals,
		Store:   history.NewStore(cfg.Signals.HistoryFile),
		Builder: &prompt.Builder{ToolHints: hints, TokenCeiling: cfg.Budget.TokenCeiling},
		Tools:   client,
		Backend: llm.NewClient(llm.Options{
			URL:         cfg.Backend.URL,
			Model:       cfg.Backend.Model,
			MaxAttempts: cfg.Backend.MaxAttempts,
			RetryDelay:  cfg.Backend.RetryDelay(),
			Timeout:     cfg.Backend.Timeout(),
		}),
	})

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("agent interrupted, shutting down")
			return nil
		}
		return err
	}
	return nil
}
