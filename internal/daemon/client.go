package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	cerrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/tags"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// Client talks the §6.2 binary command protocol to a running daemon,
// one connection per round trip. Connect attempts are retried with
// backoff and guarded by a circuit breaker so a daemon that is down or
// restarting doesn't turn every caller into a dial-timeout stall.
type Client struct {
	socketPath string
	timeout    time.Duration

	breaker     *cerrors.CircuitBreaker
	retryConfig cerrors.RetryConfig
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
		breaker: cerrors.NewCircuitBreaker("daemon-client:"+cfg.SocketPath,
			cerrors.WithMaxFailures(3),
			cerrors.WithResetTimeout(5*time.Second),
		),
		retryConfig: cerrors.RetryConfig{
			MaxRetries:   2,
			InitialDelay: 25 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

// Connect establishes a connection to the daemon, bypassing the retry
// and circuit-breaker wrapping used by roundTrip. Used by IsRunning,
// which wants a single direct probe rather than a masked breaker state.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// connect retries transient dial failures with backoff, then trips the
// breaker once failures pile up so a daemon that's down or restarting
// doesn't force every caller through a full DialTimeout each time.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	return cerrors.CircuitExecuteWithResult(c.breaker,
		func() (net.Conn, error) {
			return cerrors.RetryWithResult(ctx, c.retryConfig, c.Connect)
		},
		func() (net.Conn, error) {
			return nil, fmt.Errorf("daemon at %s unreachable: %w", c.socketPath, cerrors.ErrCircuitOpen)
		},
	)
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (c *Client) roundTrip(ctx context.Context, cmd Command) (Reply, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Reply{}, fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := SendCommand(conn, cmd); err != nil {
		return Reply{}, fmt.Errorf("failed to send command: %w", err)
	}

	reply, err := ReceiveReply(conn)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to receive reply: %w", err)
	}
	if reply.Kind == ReplyError {
		return reply, fmt.Errorf("daemon error: %s", reply.Message)
	}
	return reply, nil
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdPing})
	if err != nil {
		return err
	}
	if reply.Kind != ReplyPong {
		return fmt.Errorf("unexpected reply to PING: %s", reply.Kind)
	}
	return nil
}

// Query runs one of the QueryType queries against projectName, decoding
// the resulting CursorSet. found is false on QUERY_NO_RESULTS.
func (c *Client) Query(ctx context.Context, projectName string, qt QueryType, qualifier, symbolName, fileName string, line, column uint32) (*tags.CursorSet, bool, error) {
	reply, err := c.roundTrip(ctx, Command{
		Kind:           CmdQuery,
		ProjectName:    projectName,
		QueryType:      qt,
		QueryQualifier: qualifier,
		SymbolName:     symbolName,
		FileName:       fileName,
		Line:           line,
		Column:         column,
	})
	if err != nil {
		return nil, false, err
	}
	switch reply.Kind {
	case ReplyQueryNoResults:
		return nil, false, nil
	case ReplyUnknownProject:
		return nil, false, fmt.Errorf("unknown project: %s", projectName)
	case ReplyQueryResults:
		cs, err := tags.DeserializeCursorSet(wire.NewBufferReader(reply.CursorSet))
		if err != nil {
			return nil, false, err
		}
		return cs, true, nil
	default:
		return nil, false, fmt.Errorf("unexpected reply to QUERY: %s", reply.Kind)
	}
}

// DumpTranslationUnit retrieves every record belonging to fileName's
// translation unit within projectName.
func (c *Client) DumpTranslationUnit(ctx context.Context, projectName, fileName string) (*tags.CursorSet, error) {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdDumpTranslationUnit, ProjectName: projectName, FileName: fileName})
	if err != nil {
		return nil, err
	}
	if reply.Kind == ReplyUnknownProject {
		return nil, fmt.Errorf("unknown project: %s", projectName)
	}
	if reply.Kind != ReplyQueryResults {
		return nil, fmt.Errorf("unexpected reply to DUMP_TRANSLATION_UNIT: %s", reply.Kind)
	}
	return tags.DeserializeCursorSet(wire.NewBufferReader(reply.CursorSet))
}

// UpdateTranslationUnit pushes a serialized sub-project for the daemon
// to merge in via ProjectDB.UpdateFrom.
func (c *Client) UpdateTranslationUnit(ctx context.Context, projectName, directoryName, fileName string, payload []byte) error {
	reply, err := c.roundTrip(ctx, Command{
		Kind:          CmdUpdateTranslationUnit,
		ProjectName:   projectName,
		DirectoryName: directoryName,
		FileName:      fileName,
		Payload:       payload,
	})
	if err != nil {
		return err
	}
	if reply.Kind != ReplyTranslationUnitUpdated {
		return fmt.Errorf("unexpected reply to UPDATE_TRANSLATION_UNIT: %s", reply.Kind)
	}
	return nil
}

// QueryStatistics retrieves a string list of statistics remarks for group.
func (c *Client) QueryStatistics(ctx context.Context, projectName, group string) ([]string, error) {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdQueryStatistics, ProjectName: projectName, Group: group})
	if err != nil {
		return nil, err
	}
	if reply.Kind != ReplyStatisticsRemarks {
		return nil, fmt.Errorf("unexpected reply to QUERY_STATISTICS: %s", reply.Kind)
	}
	return reply.Remarks, nil
}

// AnalyzeData runs offline analysis over projectName and returns its
// remarks.
func (c *Client) AnalyzeData(ctx context.Context, projectName, group string) ([]string, error) {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdAnalyzeData, ProjectName: projectName, Group: group})
	if err != nil {
		return nil, err
	}
	if reply.Kind != ReplyStatisticsRemarks {
		return nil, fmt.Errorf("unexpected reply to ANALYZE_DATA: %s", reply.Kind)
	}
	return reply.Remarks, nil
}

// SaveDatabase persists projectName's database to disk under
// directoryName.
func (c *Client) SaveDatabase(ctx context.Context, projectName, directoryName string) error {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdSaveDatabase, ProjectName: projectName, DirectoryName: directoryName})
	if err != nil {
		return err
	}
	if reply.Kind != ReplyStatus {
		return fmt.Errorf("unexpected reply to SAVE_DATABASE: %s", reply.Kind)
	}
	return nil
}

// LoadDatabase loads projectName's database from disk under
// directoryName.
func (c *Client) LoadDatabase(ctx context.Context, projectName, directoryName string) error {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdLoadDatabase, ProjectName: projectName, DirectoryName: directoryName})
	if err != nil {
		return err
	}
	if reply.Kind != ReplyStatus {
		return fmt.Errorf("unexpected reply to LOAD_DATABASE: %s", reply.Kind)
	}
	return nil
}

// ShutDown asks the daemon to acknowledge and exit.
func (c *Client) ShutDown(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, Command{Kind: CmdShutDown})
	if err != nil {
		return err
	}
	if reply.Kind != ReplyStatus {
		return fmt.Errorf("unexpected reply to SHUT_DOWN: %s", reply.Kind)
	}
	return nil
}
