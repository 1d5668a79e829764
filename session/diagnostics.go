package session

import (
	"github.com/rs/zerolog"
)

// Warning classifies a non-fatal condition reported to Diagnostics.
type Warning int

const (
	// WarnUnexpectedReply: Reply was called on a message that does not expect one.
	WarnUnexpectedReply Warning = iota + 1
	// WarnUnexpectedReturn: a handler returned a value for a one-way message.
	WarnUnexpectedReturn
	// WarnDuplicateReply: Reply was called more than once for one exchange.
	WarnDuplicateReply
	// WarnReplyEncode: a reply value could not be encoded and was dropped.
	WarnReplyEncode
	// WarnSendFailed: a one-way message could not be handed to the peer.
	WarnSendFailed
	// WarnInterrupted: the transport reported the peer went away.
	WarnInterrupted
	// WarnHandlerPanic: the message handler panicked.
	WarnHandlerPanic
)

var warningNames = map[Warning]string{
	WarnUnexpectedReply:  "unexpected_reply",
	WarnUnexpectedReturn: "unexpected_return",
	WarnDuplicateReply:   "duplicate_reply",
	WarnReplyEncode:      "reply_encode",
	WarnSendFailed:       "send_failed",
	WarnInterrupted:      "interrupted",
	WarnHandlerPanic:     "handler_panic",
}

var warningMessages = map[Warning]string{
	WarnUnexpectedReply:  "dropping unexpected reply",
	WarnUnexpectedReturn: "returning non-nil from a message that does not expect a reply",
	WarnDuplicateReply:   "dropping duplicate reply",
	WarnReplyEncode:      "failed to encode reply",
	WarnSendFailed:       "dropping message that could not be sent",
	WarnInterrupted:      "connection interrupted",
	WarnHandlerPanic:     "message handler panicked",
}

func (w Warning) String() string {
	if name, ok := warningNames[w]; ok {
		return name
	}
	return "unknown"
}

// Message is the human readable description logged for w.
func (w Warning) Message() string {
	if msg, ok := warningMessages[w]; ok {
		return msg
	}
	return "unknown warning"
}

// Event is one diagnostic emitted by a session.
type Event struct {
	Kind    Warning
	Session string
	Serial  uint32
	Err     error
}

// Diagnostics receives non-fatal events. Implementations must be safe for
// concurrent use; events arrive from the executor, transport and handler goroutines.
type Diagnostics interface {
	Warn(ev Event)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(ev Event)

func (f DiagnosticsFunc) Warn(ev Event) { f(ev) }

// LogDiagnostics writes events as zerolog warnings.
type LogDiagnostics struct {
	Logger zerolog.Logger
}

func (d LogDiagnostics) Warn(ev Event) {
	e := d.Logger.Warn().
		Str("session", ev.Session).
		Uint32("serial", ev.Serial).
		Str("kind", ev.Kind.String())
	if ev.Err != nil {
		e = e.Err(ev.Err)
	}
	e.Msg(ev.Kind.Message())
}

// reporter stamps events with the identity of the session they belong to.
// It does not reference the session itself.
type reporter struct {
	sink    Diagnostics
	session string
	serial  uint32
}

func (r reporter) warn(kind Warning, err error) {
	r.sink.Warn(Event{Kind: kind, Session: r.session, Serial: r.serial, Err: err})
}
