package session

import (
	"sync/atomic"

	"connsession-go/codec"
)

const (
	exchangeReceived int32 = iota
	exchangeReplied
	exchangeDropped
)

// ReceivedMessage is one inbound delivery handed to a Handler.
//
// The payload is never mutated; Decode may be called any number of times.
// Reply may be called later from another goroutine, but only once.
type ReceivedMessage struct {
	data         []byte
	codec        codec.Codec
	report       reporter
	reply        ReplyFunc
	expectsReply bool
	isSync       bool

	state atomic.Int32
}

func newReceivedMessage(data []byte, c codec.Codec, report reporter, reply ReplyFunc, expectsReply, isSync bool) *ReceivedMessage {
	return &ReceivedMessage{
		data:         data,
		codec:        c,
		report:       report,
		reply:        reply,
		expectsReply: expectsReply,
		isSync:       isSync,
	}
}

// ExpectsReply reports whether the sender is waiting for a reply.
func (m *ReceivedMessage) ExpectsReply() bool {
	return m.expectsReply
}

// IsSync reports whether the transport is blocked until Reply is called.
func (m *ReceivedMessage) IsSync() bool {
	return m.isSync
}

// Data returns a copy of the raw payload.
func (m *ReceivedMessage) Data() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

func (m *ReceivedMessage) Decode(v any) error {
	if err := m.codec.Decode(m.data, v); err != nil {
		return decodeFailure(err)
	}
	return nil
}

// Reply encodes v and sends it to the waiting peer. A reply to a one-way
// message, a second call, or a value that cannot be encoded is reported to
// Diagnostics and dropped.
func (m *ReceivedMessage) Reply(v any) {
	if !m.expectsReply {
		m.state.CompareAndSwap(exchangeReceived, exchangeDropped)
		m.report.warn(WarnUnexpectedReply, nil)
		return
	}
	if !m.state.CompareAndSwap(exchangeReceived, exchangeReplied) {
		m.report.warn(WarnDuplicateReply, nil)
		return
	}

	data, err := m.codec.Encode(v)
	if err != nil {
		m.state.Store(exchangeDropped)
		m.report.warn(WarnReplyEncode, encodeFailure(err))
		return
	}
	m.reply(data)
}

// Replied reports whether a reply was handed to the transport.
func (m *ReceivedMessage) Replied() bool {
	return m.state.Load() == exchangeReplied
}

// Decode decodes the payload of msg as a T.
func Decode[T any](msg *ReceivedMessage) (T, error) {
	var v T
	err := msg.Decode(&v)
	return v, err
}
