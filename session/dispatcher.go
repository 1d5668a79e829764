package session

import (
	"fmt"
	"sync/atomic"

	"connsession-go/codec"
)

// Handler processes an inbound message. Two-way messages are answered with
// msg.Reply; the return value is only checked for one-way messages, where a
// non-nil value is reported as WarnUnexpectedReturn.
type Handler func(msg *ReceivedMessage) any

func noopHandler(*ReceivedMessage) any { return nil }

// dispatcher adapts transport deliveries to the Handler contract. It is the
// Receiver exported on the session's transport.
type dispatcher struct {
	handler atomic.Pointer[Handler]
	codec   codec.Codec
	report  reporter
}

func newDispatcher(c codec.Codec, report reporter) *dispatcher {
	d := &dispatcher{codec: c, report: report}
	d.setHandler(nil)
	return d
}

func (d *dispatcher) setHandler(h Handler) {
	if h == nil {
		h = noopHandler
	}
	d.handler.Store(&h)
}

func (d *dispatcher) ProcessMessage(data []byte) {
	msg := newReceivedMessage(data, d.codec, d.report, nil, false, false)

	if value := d.invoke(msg); value != nil {
		d.report.warn(WarnUnexpectedReturn, nil)
	}
}

func (d *dispatcher) ProcessMessageWithReply(data []byte, reply ReplyFunc) {
	d.invoke(newReceivedMessage(data, d.codec, d.report, reply, true, false))
}

func (d *dispatcher) ProcessSyncMessage(data []byte, reply ReplyFunc) {
	d.invoke(newReceivedMessage(data, d.codec, d.report, reply, true, true))
}

// invoke runs the handler current at the time of the call.
func (d *dispatcher) invoke(msg *ReceivedMessage) (value any) {
	h := *d.handler.Load()

	defer func() {
		if r := recover(); r != nil {
			d.report.warn(WarnHandlerPanic, fmt.Errorf("%v", r))
			value = nil
		}
	}()
	return h(msg)
}
