package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// healthEndpoint answers every request with status and counts the hits.
func healthEndpoint(t *testing.T, status int) (string, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &hits
}

func sleepServer(t *testing.T, port int, healthURL string) ServerConfig {
	t.Helper()

	bin, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}
	return ServerConfig{
		BinPath:      bin,
		Args:         []string{"30"},
		Port:         port,
		HealthURL:    healthURL,
		ReadyTimeout: 3 * time.Second,
	}
}

func newTestManager(t *testing.T) *ServerManager {
	sm := NewServerManager()
	t.Cleanup(sm.StopAll)
	return sm
}

func TestServerConfig_Key(t *testing.T) {
	assert.Equal(t, "kokoro-8880", ServerConfig{Name: "kokoro", BinPath: "/opt/kokoro/serve", Port: 8880}.Key())
	assert.Equal(t, "/opt/kokoro/serve-8880", ServerConfig{BinPath: "/opt/kokoro/serve", Port: 8880}.Key())
}

func TestServerManager_StartDoesNotWaitOnOtherServers(t *testing.T) {
	sm := newTestManager(t)

	stuckURL, stuckHits := healthEndpoint(t, http.StatusServiceUnavailable)
	stuck := sleepServer(t, 9001, stuckURL)
	okURL, _ := healthEndpoint(t, http.StatusOK)
	ready := sleepServer(t, 9002, okURL)

	stuckErr := make(chan error, 1)
	go func() { stuckErr <- sm.StartServer(context.Background(), stuck) }()
	require.Eventually(t, func() bool { return stuckHits.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, sm.StartServer(ctx, ready))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, sm.Running(ready.Key()))
	assert.False(t, sm.Running(stuck.Key()))

	sm.StopAll()
	select {
	case err := <-stuckErr:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pending start was not abandoned by StopAll")
	}
	assert.False(t, sm.Running(stuck.Key()))
}

func TestServerManager_CallerContextBoundsWait(t *testing.T) {
	sm := newTestManager(t)

	url, _ := healthEndpoint(t, http.StatusServiceUnavailable)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := sm.StartServer(ctx, sleepServer(t, 9003, url))
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestServerManager_SharedKeyStartsOnce(t *testing.T) {
	sm := newTestManager(t)

	url, hits := healthEndpoint(t, http.StatusOK)
	voice := sleepServer(t, 8880, url)
	other := voice
	other.Args = []string{"60"}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		cfg := voice
		if i%2 == 1 {
			cfg = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sm.StartServer(context.Background(), cfg)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load(), "one launch polls the health URL once")

	sm.mu.Lock()
	assert.Len(t, sm.servers, 1)
	sm.mu.Unlock()
}

func TestServerManager_RetainKeepsUnchangedServers(t *testing.T) {
	sm := newTestManager(t)

	url, hits := healthEndpoint(t, http.StatusOK)
	kept := sleepServer(t, 8880, url)
	dropped := sleepServer(t, 8881, url)

	require.NoError(t, sm.StartServer(context.Background(), kept))
	require.NoError(t, sm.StartServer(context.Background(), dropped))

	sm.mu.Lock()
	pid := sm.servers[kept.Key()].cmd.Process.Pid
	sm.mu.Unlock()

	sm.Retain([]ServerConfig{kept, kept})

	assert.True(t, sm.Running(kept.Key()))
	assert.False(t, sm.Running(dropped.Key()))

	// A reload declaring the same server reuses the running process.
	require.NoError(t, sm.StartServer(context.Background(), kept))
	assert.Equal(t, int32(2), hits.Load())
	sm.mu.Lock()
	assert.Equal(t, pid, sm.servers[kept.Key()].cmd.Process.Pid)
	sm.mu.Unlock()
}

func TestServerManager_Stop(t *testing.T) {
	sm := newTestManager(t)

	url, _ := healthEndpoint(t, http.StatusOK)
	a := sleepServer(t, 8880, url)
	b := sleepServer(t, 8881, url)

	require.NoError(t, sm.StartServer(context.Background(), a))
	require.NoError(t, sm.StartServer(context.Background(), b))

	require.NoError(t, sm.StopServer(a.Key()))
	assert.False(t, sm.Running(a.Key()))
	assert.Error(t, sm.StopServer(a.Key()))

	sm.StopAll()
	assert.False(t, sm.Running(b.Key()))

	require.NoError(t, sm.StartServer(context.Background(), a), "manager is usable after StopAll")
	assert.True(t, sm.Running(a.Key()))
}

func TestServerManager_MissingBinary(t *testing.T) {
	sm := newTestManager(t)

	err := sm.StartServer(context.Background(), ServerConfig{BinPath: "/nonexistent/kokoro", Port: 8880})
	assert.ErrorIs(t, err, ErrBinaryNotFound)
	assert.False(t, sm.Running(ServerConfig{BinPath: "/nonexistent/kokoro", Port: 8880}.Key()))
}
