package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/0x8000-0000/ftagsd/internal/errors"
)

// testSocketPath creates a unique socket path that's short enough for Unix sockets.
func testSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("ftagsd-client-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

func TestNewClient(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg)

	assert.NotNil(t, client)
	assert.Equal(t, cfg.SocketPath, client.socketPath)
	assert.Equal(t, cfg.Timeout, client.timeout)
}

func TestClient_IsRunning_NoSocket(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(tmpDir, "nonexistent.sock"),
		Timeout:    5 * time.Second,
	}

	client := NewClient(cfg)
	assert.False(t, client.IsRunning(), "Should return false when socket doesn't exist")
}

func TestClient_IsRunning_WithSocket(t *testing.T) {
	socketPath := testSocketPath(t)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	cfg := Config{
		SocketPath: socketPath,
		Timeout:    5 * time.Second,
	}

	client := NewClient(cfg)
	assert.True(t, client.IsRunning(), "Should return true when socket is listening")
}

// startClientTestServer runs a real Server backed by handler and
// returns a Config pointing at it, so client tests exercise the
// genuine wire protocol rather than a hand-rolled fake.
func startClientTestServer(t *testing.T, handler RequestHandler) Config {
	t.Helper()
	socketPath := testSocketPath(t)

	srv, err := NewServer(socketPath)
	require.NoError(t, err)
	srv.SetHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	return Config{SocketPath: socketPath, Timeout: 5 * time.Second}
}

func TestClient_Ping(t *testing.T) {
	cfg := startClientTestServer(t, nil)
	client := NewClient(cfg)

	require.NoError(t, client.Ping(context.Background()))
}

func TestClient_Query_Found(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	cs, found, err := client.Query(context.Background(), "myproject", QuerySymbol, "", "add", "", 0, 0)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotNil(t, cs)
}

func TestClient_Query_NoResults(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	cs, found, err := client.Query(context.Background(), "myproject", QuerySymbol, "", "nope", "", 0, 0)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cs)
}

func TestClient_Query_UnknownProject(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	_, _, err := client.Query(context.Background(), "nosuchproject", QuerySymbol, "", "add", "", 0, 0)
	require.Error(t, err)
}

func TestClient_DumpTranslationUnit(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	cs, err := client.DumpTranslationUnit(context.Background(), "myproject", "/src/myproject/main.c")
	require.NoError(t, err)
	assert.NotNil(t, cs)
}

func TestClient_QueryStatistics(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	remarks, err := client.QueryStatistics(context.Background(), "myproject", "summary")
	require.NoError(t, err)
	assert.NotEmpty(t, remarks)
}

func TestClient_AnalyzeData(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	remarks, err := client.AnalyzeData(context.Background(), "myproject", "summary")
	require.NoError(t, err)
	assert.NotEmpty(t, remarks)
}

func TestClient_SaveAndLoadDatabase(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	require.NoError(t, client.SaveDatabase(context.Background(), "myproject", "/tmp/ftagsd-test"))
	require.NoError(t, client.LoadDatabase(context.Background(), "myproject", "/tmp/ftagsd-test"))
}

func TestClient_UpdateTranslationUnit(t *testing.T) {
	cfg := startClientTestServer(t, newStubHandler(t))
	client := NewClient(cfg)

	err := client.UpdateTranslationUnit(context.Background(), "myproject", "/src/myproject", "other.c", []byte{1, 2, 3})
	require.NoError(t, err)
}

func TestClient_ShutDown(t *testing.T) {
	cfg := startClientTestServer(t, nil)
	client := NewClient(cfg)

	require.NoError(t, client.ShutDown(context.Background()))
}

func TestClient_Connect_Timeout(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "nonexistent.sock")

	cfg := Config{
		SocketPath: socketPath,
		Timeout:    100 * time.Millisecond,
	}

	client := NewClient(cfg)

	_, err := client.Connect()
	require.Error(t, err)
}

func TestClient_RoundTrip_OpensBreakerAfterRepeatedFailures(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "nonexistent.sock")

	cfg := Config{
		SocketPath: socketPath,
		Timeout:    50 * time.Millisecond,
	}
	client := NewClient(cfg)

	// Each Ping fails (no listener) and, via connect's retry wrapper,
	// counts as one circuit-breaker failure. maxFailures is 3.
	for i := 0; i < 3; i++ {
		err := client.Ping(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, cerrors.ErrCircuitOpen, "failures before the breaker trips report the real dial error")
	}

	assert.Equal(t, cerrors.StateOpen, client.breaker.State())

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrCircuitOpen, "once open, roundTrip should fail fast via the breaker's fallback")
}

func TestClient_RoundTrip_RecoversAfterDaemonComesUp(t *testing.T) {
	cfg := startClientTestServer(t, nil)
	client := NewClient(cfg)
	client.breaker.RecordFailure()
	client.breaker.RecordFailure()

	require.NoError(t, client.Ping(context.Background()), "a live daemon should still succeed with a partially-tripped breaker")
	assert.Equal(t, cerrors.StateClosed, client.breaker.State())
}
