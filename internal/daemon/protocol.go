package daemon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/0x8000-0000/ftagsd/internal/wire"
)

// CommandKind identifies one of the length-prefixed binary commands a
// client can send the server.
type CommandKind uint8

const (
	CmdPing CommandKind = iota
	CmdQuery
	CmdDumpTranslationUnit
	CmdUpdateTranslationUnit
	CmdQueryStatistics
	CmdSaveDatabase
	CmdLoadDatabase
	CmdShutDown
	CmdAnalyzeData
)

func (k CommandKind) String() string {
	switch k {
	case CmdPing:
		return "PING"
	case CmdQuery:
		return "QUERY"
	case CmdDumpTranslationUnit:
		return "DUMP_TRANSLATION_UNIT"
	case CmdUpdateTranslationUnit:
		return "UPDATE_TRANSLATION_UNIT"
	case CmdQueryStatistics:
		return "QUERY_STATISTICS"
	case CmdSaveDatabase:
		return "SAVE_DATABASE"
	case CmdLoadDatabase:
		return "LOAD_DATABASE"
	case CmdShutDown:
		return "SHUT_DOWN"
	case CmdAnalyzeData:
		return "ANALYZE_DATA"
	default:
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
}

// ReplyKind identifies the kind of reply a server sends back.
type ReplyKind uint8

const (
	ReplyPong ReplyKind = iota
	ReplyQueryResults
	ReplyQueryNoResults
	ReplyUnknownProject
	ReplyTranslationUnitUpdated
	ReplyStatisticsRemarks
	ReplyStatus
	ReplyError
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyPong:
		return "PONG"
	case ReplyQueryResults:
		return "QUERY_RESULTS"
	case ReplyQueryNoResults:
		return "QUERY_NO_RESULTS"
	case ReplyUnknownProject:
		return "UNKNOWN_PROJECT"
	case ReplyTranslationUnitUpdated:
		return "TRANSLATION_UNIT_UPDATED"
	case ReplyStatisticsRemarks:
		return "STATISTICS_REMARKS"
	case ReplyStatus:
		return "STATUS"
	case ReplyError:
		return "ERROR"
	default:
		return fmt.Sprintf("ReplyKind(%d)", uint8(k))
	}
}

// QueryType selects which ProjectDB query a QUERY command runs.
type QueryType uint8

const (
	QuerySymbol QueryType = iota
	QueryIdentify
	QueryIdentifyExtended
	QueryDefinition
	QueryDeclaration
	QueryReference
)

func (q QueryType) String() string {
	switch q {
	case QuerySymbol:
		return "SYMBOL"
	case QueryIdentify:
		return "IDENTIFY"
	case QueryIdentifyExtended:
		return "IDENTIFY_EXTENDED"
	case QueryDefinition:
		return "DEFINITION"
	case QueryDeclaration:
		return "DECLARATION"
	case QueryReference:
		return "REFERENCE"
	default:
		return fmt.Sprintf("QueryType(%d)", uint8(q))
	}
}

// Command is one request sent over the wire. Only the fields relevant
// to Kind are populated; the rest are zero-valued.
type Command struct {
	Kind CommandKind

	ProjectName   string
	DirectoryName string
	FileName      string

	QueryType      QueryType
	QueryQualifier string
	SymbolName     string
	Line           uint32
	Column         uint32

	Group string

	// Payload carries a serialized sub-project for
	// UPDATE_TRANSLATION_UNIT.
	Payload []byte
}

// commandTag and replyTag are the object tags every Command/Reply frame is wrapped in,
// matching the rest of internal/wire's header-tagged convention.
const (
	commandTag     = "ftags::Command"
	commandVersion = 1
	replyTag       = "ftags::Reply"
	replyVersion   = 1
)

// WriteTo serializes cmd into w, framed with a wire Header like every
// other object in this codebase.
func (cmd Command) WriteTo(w *wire.BufferWriter) error {
	body := wire.NewBufferWriter()
	if err := body.WriteUint8(uint8(cmd.Kind)); err != nil {
		return err
	}
	if err := body.WriteString(cmd.ProjectName); err != nil {
		return err
	}
	if err := body.WriteString(cmd.DirectoryName); err != nil {
		return err
	}
	if err := body.WriteString(cmd.FileName); err != nil {
		return err
	}
	if err := body.WriteUint8(uint8(cmd.QueryType)); err != nil {
		return err
	}
	if err := body.WriteString(cmd.QueryQualifier); err != nil {
		return err
	}
	if err := body.WriteString(cmd.SymbolName); err != nil {
		return err
	}
	if err := body.WriteUint32(cmd.Line); err != nil {
		return err
	}
	if err := body.WriteUint32(cmd.Column); err != nil {
		return err
	}
	if err := body.WriteString(cmd.Group); err != nil {
		return err
	}
	if err := body.WriteByteVector(cmd.Payload); err != nil {
		return err
	}

	bytes := body.Bytes()
	if err := w.WriteHeader(commandTag, commandVersion, uint64(len(bytes))); err != nil {
		return err
	}
	return w.WriteBytes(bytes)
}

// ReadCommand reads back a Command written by WriteTo.
func ReadCommand(r *wire.Reader) (Command, error) {
	var cmd Command

	if _, err := r.ReadHeader(commandTag); err != nil {
		return cmd, err
	}

	kind, err := r.ReadUint8()
	if err != nil {
		return cmd, err
	}
	cmd.Kind = CommandKind(kind)

	if cmd.ProjectName, err = r.ReadString(); err != nil {
		return cmd, err
	}
	if cmd.DirectoryName, err = r.ReadString(); err != nil {
		return cmd, err
	}
	if cmd.FileName, err = r.ReadString(); err != nil {
		return cmd, err
	}
	qt, err := r.ReadUint8()
	if err != nil {
		return cmd, err
	}
	cmd.QueryType = QueryType(qt)
	if cmd.QueryQualifier, err = r.ReadString(); err != nil {
		return cmd, err
	}
	if cmd.SymbolName, err = r.ReadString(); err != nil {
		return cmd, err
	}
	if cmd.Line, err = r.ReadUint32(); err != nil {
		return cmd, err
	}
	if cmd.Column, err = r.ReadUint32(); err != nil {
		return cmd, err
	}
	if cmd.Group, err = r.ReadString(); err != nil {
		return cmd, err
	}
	if cmd.Payload, err = r.ReadByteVector(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// Reply is one response sent back over the wire.
type Reply struct {
	Kind ReplyKind

	// CursorSet carries a serialized tags.CursorSet for
	// QUERY_RESULTS/DUMP_TRANSLATION_UNIT replies.
	CursorSet []byte

	// Remarks carries STATISTICS_REMARKS' string list.
	Remarks []string

	// Message carries a human-readable status string for STATUS/ERROR
	// replies.
	Message string
}

// WriteTo serializes r into w.
func (r Reply) WriteTo(w *wire.BufferWriter) error {
	body := wire.NewBufferWriter()
	if err := body.WriteUint8(uint8(r.Kind)); err != nil {
		return err
	}
	if err := body.WriteByteVector(r.CursorSet); err != nil {
		return err
	}
	if err := body.WriteUint64(uint64(len(r.Remarks))); err != nil {
		return err
	}
	for _, remark := range r.Remarks {
		if err := body.WriteString(remark); err != nil {
			return err
		}
	}
	if err := body.WriteString(r.Message); err != nil {
		return err
	}

	bytes := body.Bytes()
	if err := w.WriteHeader(replyTag, replyVersion, uint64(len(bytes))); err != nil {
		return err
	}
	return w.WriteBytes(bytes)
}

// ReadReply reads back a Reply written by WriteTo.
func ReadReply(r *wire.Reader) (Reply, error) {
	var reply Reply

	if _, err := r.ReadHeader(replyTag); err != nil {
		return reply, err
	}

	kind, err := r.ReadUint8()
	if err != nil {
		return reply, err
	}
	reply.Kind = ReplyKind(kind)

	if reply.CursorSet, err = r.ReadByteVector(); err != nil {
		return reply, err
	}

	count, err := r.ReadUint64()
	if err != nil {
		return reply, err
	}
	reply.Remarks = make([]string, count)
	for i := range reply.Remarks {
		if reply.Remarks[i], err = r.ReadString(); err != nil {
			return reply, err
		}
	}

	if reply.Message, err = r.ReadString(); err != nil {
		return reply, err
	}
	return reply, nil
}

// StatusReply builds a plain STATUS reply carrying message.
func StatusReply(message string) Reply {
	return Reply{Kind: ReplyStatus, Message: message}
}

// ErrorReply builds an ERROR reply carrying message.
func ErrorReply(message string) Reply {
	return Reply{Kind: ReplyError, Message: message}
}

// readFrame reads one wire.Header-framed message off r: the fixed-size
// header (which carries the body length), then exactly that many body
// bytes, returning the two concatenated so ReadCommand/ReadReply can
// parse it with the same wire.Reader they'd use for a file. Unlike a
// file or in-memory buffer, a socket has no a-priori length, so the
// header's Size field is what tells us how much more to read.
func readFrame(r io.Reader) ([]byte, error) {
	headerBuf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, err
	}
	var h wire.Header
	if err := binary.Read(bytes.NewReader(headerBuf), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	body := make([]byte, h.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return append(headerBuf, body...), nil
}

// SendCommand writes cmd to w as one framed message.
func SendCommand(w io.Writer, cmd Command) error {
	buf := wire.NewBufferWriter()
	if err := cmd.WriteTo(buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReceiveCommand reads one framed Command off r.
func ReceiveCommand(r io.Reader) (Command, error) {
	frame, err := readFrame(r)
	if err != nil {
		return Command{}, err
	}
	return ReadCommand(wire.NewBufferReader(frame))
}

// SendReply writes reply to w as one framed message.
func SendReply(w io.Writer, reply Reply) error {
	buf := wire.NewBufferWriter()
	if err := reply.WriteTo(buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReceiveReply reads one framed Reply off r.
func ReceiveReply(r io.Reader) (Reply, error) {
	frame, err := readFrame(r)
	if err != nil {
		return Reply{}, err
	}
	return ReadReply(wire.NewBufferReader(frame))
}
