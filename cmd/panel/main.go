// Command panel serves the web control panel: a small HTTP API for
// starting and stopping the agent, steering it through the signal
// files, and inspecting its history and log.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"mcpagent/pkg/config"
	"mcpagent/pkg/control"
	"mcpagent/pkg/history"
	"mcpagent/pkg/logging"
	"mcpagent/pkg/web"
)

func main() {
	configPath := flag.String("config", "agent.toml", "config file path")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		slog.Error("panel failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The panel logs to stderr only. The agent log file belongs to the
	// agent process; the /log endpoint reads and resets it.
	closer, err := logging.Setup(cfg.Log.Level, "")
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	agentCommand := cfg.Panel.AgentCommand
	if len(agentCommand) == 0 {
		agentCommand = []string{"./agentd", "-config", configPath}
	}

	srv := web.NewServer(web.Options{
		Signals: &control.Signals{
			GoalPath:       cfg.Signals.GoalFile,
			PausePath:      cfg.Signals.PauseFile,
			CorrectionPath: cfg.Signals.CorrectionFile,
		},
		Store:        history.NewStore(cfg.Signals.HistoryFile),
		AgentCommand: agentCommand,
		PIDFile:      cfg.Panel.PIDFile,
		LogFile:      cfg.Log.File,
		StopGrace:    cfg.MCP.ShutdownGrace(),
	})

	listenAddr := cfg.Panel.Addr
	if addr != "" {
		listenAddr = addr
	}
	slog.Info("[Panel] listening", "addr", listenAddr)
	return http.ListenAndServe(listenAddr, srv.Handler())
}
