// Package process tracks the background gateway through a state file holding
// its PID and listen address.
package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

const StateFilename = "gateway.json"

const (
	startupTimeout = 10 * time.Second
	stopTimeout    = 5 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// State describes the running gateway.
type State struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// HealthURL is the liveness endpoint of the gateway at Addr.
func (s State) HealthURL() string {
	return "http://" + s.Addr + "/health"
}

type Manager struct {
	stateFile string
	client    *http.Client
	mu        sync.RWMutex
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		stateFile: filepath.Join(baseDir, StateFilename),
		client:    &http.Client{Timeout: time.Second},
	}
}

// Register records the current process as the gateway listening on addr.
func (m *Manager) Register(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.stateFile), 0o750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.Marshal(State{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal gateway state: %w", err)
	}

	return os.WriteFile(m.stateFile, data, 0o600)
}

// Read returns the recorded state. ok is false when there is no usable file.
func (m *Manager) Read() (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.stateFile)
	if err != nil {
		return State{}, false
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil || st.PID <= 0 {
		return State{}, false
	}

	return st, true
}

// IsRunning reports whether the recorded process is alive. A stale state
// file is removed.
func (m *Manager) IsRunning() bool {
	st, ok := m.Read()
	if !ok {
		return false
	}

	if err := syscall.Kill(st.PID, 0); err != nil {
		m.Cleanup()
		return false
	}

	return true
}

// Ready reports whether the gateway answers its health check.
func (m *Manager) Ready(ctx context.Context) bool {
	st, ok := m.Read()
	if !ok || st.Addr == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.HealthURL(), nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Stop sends SIGTERM and waits for the process to exit.
func (m *Manager) Stop() error {
	st, ok := m.Read()
	if !ok {
		return nil
	}

	if err := syscall.Kill(st.PID, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process %d: %w", st.PID, err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) && m.IsRunning() {
		time.Sleep(pollInterval)
	}

	m.Cleanup()

	return nil
}

func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.stateFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove state file: %v\n", err)
	}
}

// WaitReady polls until the gateway answers its health check or timeout
// elapses.
func (m *Manager) WaitReady(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if m.Ready(ctx) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// EnsureRunning launches "<self> start" in the background when no gateway is
// running and waits until it is ready. It reports whether it started one.
func (m *Manager) EnsureRunning(ctx context.Context, args ...string) (bool, error) {
	if m.IsRunning() {
		return false, nil
	}

	cmd := exec.Command(os.Args[0], append([]string{"start"}, args...)...)
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("failed to start gateway: %w", err)
	}

	// reap the child when it exits; the gateway outlives this call
	go func() { _ = cmd.Wait() }()

	if !m.WaitReady(ctx, startupTimeout) {
		return false, errors.New("gateway startup timeout")
	}

	return true, nil
}
