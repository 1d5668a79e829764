package session

// ReplyFunc carries encoded reply bytes back to the peer that sent a two-way message.
type ReplyFunc func(data []byte)

// Receiver is installed on a Transport to accept inbound deliveries.
type Receiver interface {
	// ProcessMessage delivers a one-way message.
	ProcessMessage(data []byte)
	// ProcessMessageWithReply delivers a two-way message answered through reply.
	ProcessMessageWithReply(data []byte, reply ReplyFunc)
	// ProcessSyncMessage is ProcessMessageWithReply for transports that block
	// the delivering goroutine until reply is called.
	ProcessSyncMessage(data []byte, reply ReplyFunc)
}

// Peer is the reply-capable proxy to the far side of a Transport.
type Peer interface {
	ProcessMessage(data []byte) error
	// ProcessMessageWithReply sends data and later calls done with the reply
	// bytes, or with an error if the connection fails first.
	ProcessMessageWithReply(data []byte, done func(reply []byte, err error)) error
}

// CancelablePeer is a Peer that can forget a two-way send whose caller
// stopped waiting for the reply.
type CancelablePeer interface {
	Peer
	// ProcessCancelableMessageWithReply is ProcessMessageWithReply that also
	// returns cancel. Once cancel returns, done is not called any more.
	// cancel may be called after done ran.
	ProcessCancelableMessageWithReply(data []byte, done func(reply []byte, err error)) (cancel func(), err error)
}

// Transport is the raw connection driven by a Session. A Session requires a
// fresh Transport: nothing exported on it yet.
type Transport interface {
	// Configured reports whether a Receiver has already been exported.
	Configured() bool
	Export(r Receiver) error
	// Remote returns the peer proxy. Errors mean the peer is unreachable or
	// speaks another protocol.
	Remote() (Peer, error)
	// SetInterruptionHandler registers the callback invoked when the peer goes
	// away without a local Invalidate.
	SetInterruptionHandler(fn func(err error))
	Activate() error
	Invalidate() error
}
