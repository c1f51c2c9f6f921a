package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	ferrors "github.com/0x8000-0000/ftagsd/internal/errors"
	"github.com/0x8000-0000/ftagsd/internal/tags"
	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// RequestHandler implements the §6.2 command set against a running set
// of tags.ProjectDB instances. The server never touches a ProjectDB
// directly — every operation routes through the handler, which owns the
// project-wide write lock §5 requires around merge/update.
type RequestHandler interface {
	Query(projectName string, qt QueryType, qualifier, symbolName, fileName string, line, column uint32) (*tags.CursorSet, bool, error)
	DumpTranslationUnit(projectName, fileName string) (*tags.CursorSet, error)
	UpdateTranslationUnit(projectName, directoryName, fileName string, payload []byte) error
	QueryStatistics(projectName, group string) ([]string, error)
	SaveDatabase(projectName, directoryName string) error
	LoadDatabase(projectName, directoryName string) error
	AnalyzeData(projectName, group string) ([]string, error)
}

// Server listens on a Unix socket and handles the binary command
// protocol, one connection per request-reply exchange, matching the
// teacher's accept-loop shape in spirit (single listener, one goroutine
// per connection) with a different wire format on the inside.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	return &Server{socketPath: socketPath}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until context is
// cancelled or a SHUT_DOWN command is received.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return ferrors.IOError("failed to listen on "+s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection processes exactly one command from conn and writes
// back exactly one reply.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		slog.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	cmd, err := ReceiveCommand(conn)
	if err != nil {
		_ = SendReply(conn, ErrorReply("failed to decode command: "+err.Error()))
		return
	}

	reply := s.dispatch(cmd)
	_ = SendReply(conn, reply)

	if cmd.Kind == CmdShutDown {
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
	}
}

// dispatch routes a Command to the handler and turns any error into a
// structured reply — the RPC layer never propagates a panic/error from
// internal/tags or internal/dbfile back as a crash, matching §7's
// propagation policy.
func (s *Server) dispatch(cmd Command) Reply {
	if cmd.Kind == CmdPing {
		return Reply{Kind: ReplyPong}
	}
	if cmd.Kind == CmdShutDown {
		return StatusReply("shutting down")
	}

	if s.handler == nil {
		return ErrorReply("no request handler configured")
	}

	switch cmd.Kind {
	case CmdQuery:
		cursorSet, found, err := s.handler.Query(cmd.ProjectName, cmd.QueryType, cmd.QueryQualifier, cmd.SymbolName, cmd.FileName, cmd.Line, cmd.Column)
		if err != nil {
			return replyForError(err)
		}
		if !found {
			return Reply{Kind: ReplyQueryNoResults}
		}
		return cursorSetReply(cursorSet)

	case CmdDumpTranslationUnit:
		cursorSet, err := s.handler.DumpTranslationUnit(cmd.ProjectName, cmd.FileName)
		if err != nil {
			return replyForError(err)
		}
		return cursorSetReply(cursorSet)

	case CmdUpdateTranslationUnit:
		if err := s.handler.UpdateTranslationUnit(cmd.ProjectName, cmd.DirectoryName, cmd.FileName, cmd.Payload); err != nil {
			return replyForError(err)
		}
		return Reply{Kind: ReplyTranslationUnitUpdated}

	case CmdQueryStatistics:
		remarks, err := s.handler.QueryStatistics(cmd.ProjectName, cmd.Group)
		if err != nil {
			return replyForError(err)
		}
		return Reply{Kind: ReplyStatisticsRemarks, Remarks: remarks}

	case CmdSaveDatabase:
		if err := s.handler.SaveDatabase(cmd.ProjectName, cmd.DirectoryName); err != nil {
			return replyForError(err)
		}
		return StatusReply("database saved")

	case CmdLoadDatabase:
		if err := s.handler.LoadDatabase(cmd.ProjectName, cmd.DirectoryName); err != nil {
			return replyForError(err)
		}
		return StatusReply("database loaded")

	case CmdAnalyzeData:
		remarks, err := s.handler.AnalyzeData(cmd.ProjectName, cmd.Group)
		if err != nil {
			return replyForError(err)
		}
		return Reply{Kind: ReplyStatisticsRemarks, Remarks: remarks}

	default:
		return ErrorReply("unrecognized command kind")
	}
}

func cursorSetReply(cs *tags.CursorSet) Reply {
	body := wire.NewBufferWriter()
	if err := cs.Serialize(body.Writer); err != nil {
		return ErrorReply("failed to serialize cursor set: " + err.Error())
	}
	return Reply{Kind: ReplyQueryResults, CursorSet: body.Bytes()}
}

// replyForError maps the structured error taxonomy (§7) to the wire
// reply kinds the command set distinguishes; everything else becomes a
// generic ERROR status remark.
func replyForError(err error) Reply {
	var tagsErr *ferrors.TagsError
	if errors.As(err, &tagsErr) && tagsErr.Code == ferrors.ErrCodeUnknownProject {
		return Reply{Kind: ReplyUnknownProject, Message: tagsErr.Error()}
	}
	return ErrorReply(err.Error())
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
