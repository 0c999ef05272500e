// Package web is the control panel: a small JSON API that starts and
// stops the agent process and writes the control signals the agent polls.
package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mcpagent/pkg/control"
	"mcpagent/pkg/history"
)

const defaultStopGrace = 5 * time.Second

// Options configures a Server.
type Options struct {
	Signals      *control.Signals
	Store        *history.Store
	AgentCommand []string // command used to launch the agent
	PIDFile      string
	LogFile      string        // cleared on start, served by /log
	StopGrace    time.Duration // wait after SIGTERM before SIGKILL
}

// Server manages one agent process and its signal files.
type Server struct {
	mu sync.Mutex

	signals      *control.Signals
	store        *history.Store
	agentCommand []string
	pidFile      string
	logFile      string
	stopGrace    time.Duration
}

// NewServer creates a panel server.
func NewServer(opts Options) *Server {
	grace := opts.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	return &Server{
		signals:      opts.Signals,
		store:        opts.Store,
		agentCommand: opts.AgentCommand,
		pidFile:      opts.PIDFile,
		logFile:      opts.LogFile,
		stopGrace:    grace,
	}
}

// Handler returns the panel's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /update_goal", s.handleUpdateGoal)
	mux.HandleFunc("POST /submit_correction", s.handleCorrection)
	mux.HandleFunc("GET /log", s.handleLog)
	mux.HandleFunc("GET /history", s.handleHistory)
	return mux
}

type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, statusMessage{Status: "error", Message: message})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"is_running": s.agentRunning()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agentRunning() {
		writeError(w, http.StatusBadRequest, "Agent is already running.")
		return
	}

	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Goal) == "" {
		writeError(w, http.StatusBadRequest, "Goal cannot be empty.")
		return
	}

	// Fresh run, fresh log; history and signal files survive restarts.
	if s.logFile != "" {
		_ = os.Remove(s.logFile)
	}
	if err := s.signals.WriteGoal(req.Goal); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to prepare environment: %v", err))
		return
	}
	_ = os.Remove(s.pidFile)

	if len(s.agentCommand) == 0 {
		writeError(w, http.StatusInternalServerError, "No agent command configured.")
		return
	}
	cmd := exec.Command(s.agentCommand[0], s.agentCommand[1:]...)
	if err := cmd.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to start agent: %v", err))
		return
	}
	// Reap the child when it exits so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()

	if err := os.WriteFile(s.pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write PID file: %v", err))
		return
	}

	runID := uuid.NewString()
	slog.Info("[Panel] agent started", "pid", cmd.Process.Pid, "runID", runID, "goal", req.Goal)
	writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Agent started.", RunID: runID})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid, ok := s.agentPID()
	if !ok || !processAlive(pid) {
		writeError(w, http.StatusBadRequest, "Agent is not running.")
		return
	}

	s.terminate(pid)
	_ = os.Remove(s.pidFile)

	slog.Info("[Panel] agent stopped", "pid", pid)
	writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Agent stopped."})
}

// terminate asks pid to exit, waits the grace period, then kills it.
func (s *Server) terminate(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(s.stopGrace)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	slog.Warn("[Panel] agent did not exit in time, killing", "pid", pid)
	_ = proc.Kill()
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Pause *bool `json:"pause"`
	}{}
	_ = json.NewDecoder(r.Body).Decode(&req)
	pause := req.Pause == nil || *req.Pause

	changed, err := s.signals.SetPaused(pause)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !changed {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_change"})
		return
	}
	if pause {
		writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Agent paused."})
	} else {
		writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Agent resumed."})
	}
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Goal) == "" {
		writeError(w, http.StatusBadRequest, "Goal cannot be empty.")
		return
	}
	if err := s.signals.WriteGoal(req.Goal); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Goal updated."})
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Correction string `json:"correction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Correction) == "" {
		writeError(w, http.StatusBadRequest, "Correction cannot be empty.")
		return
	}
	if err := s.signals.WriteCorrection(req.Correction); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusMessage{Status: "success", Message: "Correction submitted."})
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	data, err := os.ReadFile(s.logFile)
	if err != nil {
		// No log yet reads as empty, matching a run that has not started.
		return
	}
	_, _ = w.Write(data)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	items, err := s.store.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []history.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// agentPID reads the pid file.
func (s *Server) agentPID() (int, bool) {
	data, err := os.ReadFile(s.pidFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// agentRunning reports whether the recorded agent process is alive. A
// stale pid file reads as not running.
func (s *Server) agentRunning() bool {
	pid, ok := s.agentPID()
	return ok && processAlive(pid)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
