package process

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RegisterAndRead(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nested"))

	_, ok := m.Read()
	assert.False(t, ok)
	assert.False(t, m.IsRunning())

	require.NoError(t, m.Register("127.0.0.1:6970"))

	st, ok := m.Read()
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, "127.0.0.1:6970", st.Addr)
	assert.Equal(t, "http://127.0.0.1:6970/health", st.HealthURL())
	assert.WithinDuration(t, time.Now(), st.StartedAt, time.Minute)
	assert.True(t, m.IsRunning())

	m.Cleanup()
	assert.NoFileExists(t, m.stateFile)
}

func TestManager_InvalidStateFile(t *testing.T) {
	m := NewManager(t.TempDir())

	require.NoError(t, os.WriteFile(m.stateFile, []byte("12345"), 0o600))

	_, ok := m.Read()
	assert.False(t, ok)
	assert.False(t, m.IsRunning())
	assert.NoError(t, m.Stop())
}

func TestManager_WaitReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	m := NewManager(t.TempDir())
	require.NoError(t, m.Register(strings.TrimPrefix(srv.URL, "http://")))

	assert.True(t, m.Ready(context.Background()))
	assert.True(t, m.WaitReady(context.Background(), time.Second))
}

func TestManager_WaitReadyTimesOut(t *testing.T) {
	m := NewManager(t.TempDir())

	start := time.Now()
	assert.False(t, m.WaitReady(context.Background(), 250*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestManager_EnsureRunningWhenAlive(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Register("127.0.0.1:1"))

	started, err := m.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
}
