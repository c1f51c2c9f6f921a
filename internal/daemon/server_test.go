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

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/tags"
)

// serverTestSocketPath creates a unique socket path for server tests.
func serverTestSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("ftagsd-server-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

// stubHandler is a minimal RequestHandler backed by one in-memory
// ProjectDB, for exercising the server's dispatch logic without a real
// daemon lifecycle.
type stubHandler struct {
	db *tags.ProjectDB
}

func newStubHandler(t *testing.T) *stubHandler {
	t.Helper()
	db := tags.NewProjectDB("myproject", "/src/myproject")

	symKey, err := db.Symbols.AddKey("add")
	require.NoError(t, err)
	fileKey, err := db.FileNames.AddKey("/src/myproject/main.c")
	require.NoError(t, err)

	_, err = db.AddTranslationUnit("/src/myproject/main.c", []tags.Record{
		{SymbolNameKey: symKey, Location: tags.NewLocation(fileKey, 1, 1)},
	})
	require.NoError(t, err)
	return &stubHandler{db: db}
}

func (s *stubHandler) Query(projectName string, qt QueryType, qualifier, symbolName, fileName string, line, column uint32) (*tags.CursorSet, bool, error) {
	if projectName != "myproject" {
		return nil, false, ferrors.UnknownProjectError(projectName)
	}
	records := s.db.FindSymbol(symbolName)
	if len(records) == 0 {
		return nil, false, nil
	}
	cs, err := tags.BuildCursorSet(s.db, records)
	if err != nil {
		return nil, false, err
	}
	return cs, true, nil
}

func (s *stubHandler) DumpTranslationUnit(projectName, fileName string) (*tags.CursorSet, error) {
	records, err := s.db.DumpTranslationUnit(fileName)
	if err != nil {
		return nil, err
	}
	return tags.BuildCursorSet(s.db, records)
}

func (s *stubHandler) UpdateTranslationUnit(projectName, directoryName, fileName string, payload []byte) error {
	return nil
}

func (s *stubHandler) QueryStatistics(projectName, group string) ([]string, error) {
	return []string{fmt.Sprintf("%d records", s.db.Spans.GetRecordCount())}, nil
}

func (s *stubHandler) SaveDatabase(projectName, directoryName string) error { return nil }
func (s *stubHandler) LoadDatabase(projectName, directoryName string) error { return nil }
func (s *stubHandler) AnalyzeData(projectName, group string) ([]string, error) {
	return []string{"analysis complete"}, nil
}

func startTestServer(t *testing.T, handler RequestHandler) string {
	t.Helper()
	socketPath := serverTestSocketPath(t)

	srv, err := NewServer(socketPath)
	require.NoError(t, err)
	srv.SetHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = srv.ListenAndServe(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	return socketPath
}

func TestNewServer(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	srv, err := NewServer(socketPath)
	require.NoError(t, err)
	assert.NotNil(t, srv)
	assert.Equal(t, socketPath, srv.socketPath)
}

func TestServer_ListenAndServe_StopsOnContextCancel(t *testing.T) {
	socketPath := serverTestSocketPath(t)

	srv, err := NewServer(socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be cleaned up")
}

func TestServer_HandlePing(t *testing.T) {
	socketPath := startTestServer(t, nil)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendCommand(conn, Command{Kind: CmdPing}))

	reply, err := ReceiveReply(conn)
	require.NoError(t, err)
	assert.Equal(t, ReplyPong, reply.Kind)
}

func TestServer_HandleShutDown(t *testing.T) {
	socketPath := startTestServer(t, nil)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendCommand(conn, Command{Kind: CmdShutDown}))

	reply, err := ReceiveReply(conn)
	require.NoError(t, err)
	assert.Equal(t, ReplyStatus, reply.Kind)
}

func TestServer_NoHandlerConfiguredReturnsError(t *testing.T) {
	socketPath := startTestServer(t, nil)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendCommand(conn, Command{Kind: CmdQueryStatistics, ProjectName: "myproject"}))

	reply, err := ReceiveReply(conn)
	require.NoError(t, err)
	assert.Equal(t, ReplyError, reply.Kind)
}

func TestServer_HandleQueryUnknownProject(t *testing.T) {
	socketPath := startTestServer(t, newStubHandler(t))

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendCommand(conn, Command{
		Kind: CmdQuery, ProjectName: "nosuchproject", QueryType: QuerySymbol, SymbolName: "add",
	}))

	reply, err := ReceiveReply(conn)
	require.NoError(t, err)
	assert.Equal(t, ReplyUnknownProject, reply.Kind)
}

func TestServer_HandleQueryNoResults(t *testing.T) {
	socketPath := startTestServer(t, newStubHandler(t))

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendCommand(conn, Command{
		Kind: CmdQuery, ProjectName: "myproject", QueryType: QuerySymbol, SymbolName: "nope",
	}))

	reply, err := ReceiveReply(conn)
	require.NoError(t, err)
	assert.Equal(t, ReplyQueryNoResults, reply.Kind)
}

func TestServer_ConcurrentConnections(t *testing.T) {
	socketPath := startTestServer(t, newStubHandler(t))

	const numClients = 5
	done := make(chan bool, numClients)

	for i := 0; i < numClients; i++ {
		go func(id int) {
			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				done <- false
				return
			}
			defer conn.Close()

			if err := SendCommand(conn, Command{Kind: CmdPing}); err != nil {
				done <- false
				return
			}
			reply, err := ReceiveReply(conn)
			done <- err == nil && reply.Kind == ReplyPong
		}(i)
	}

	successCount := 0
	for i := 0; i < numClients; i++ {
		if <-done {
			successCount++
		}
	}

	assert.Equal(t, numClients, successCount, "all clients should succeed")
}
