package gonet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"connsession-go/session"
)

var (
	// ErrConnClosed matches session.ErrConnectionClosed with errors.Is.
	ErrConnClosed = fmt.Errorf("gonet: %w", session.ErrConnectionClosed)
	ErrNotActive  = errors.New("gonet: connection not activated")
)

// pendingWrite is a frame waiting for the write loop.
type pendingWrite struct {
	frame frame
	err   error

	// Future, closed once the frame was flushed or failed.
	completed chan struct{}
}

// Connection carries session traffic over a net.Conn. It implements
// session.Transport.
//
// Outbound frames are written by a single write loop in the order they are
// handed over. Inbound one-way messages and requests are dispatched in arrival
// order on a goroutine separate from the read loop, so a handler may wait for
// replies on the same connection.
type Connection struct {
	conn net.Conn
	opts connOptions
	log  zerolog.Logger

	mu          sync.Mutex
	receiver    session.Receiver
	interrupt   func(error)
	activated   bool
	invalidated bool
	terminated  bool
	calls       map[uint32]func([]byte, error)

	ids atomix.Uint32

	requests chan *pendingWrite
	closed   chan struct{}

	helloOnce     sync.Once
	hello         chan struct{}
	remoteService string

	inboxMu sync.Mutex
	inbox   *queue.Queue
	wake    chan struct{}
}

func NewConnection(conn net.Conn, opts ...ConnOption) *Connection {
	o := defaultConnOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Connection{
		conn: conn,
		opts: o,
		log: o.logger.With().
			Str("component", "gonet").
			Str("remote", conn.RemoteAddr().String()).
			Logger(),

		calls:    make(map[uint32]func([]byte, error)),
		requests: make(chan *pendingWrite),
		closed:   make(chan struct{}),
		hello:    make(chan struct{}),
		inbox:    queue.New(),
		wake:     make(chan struct{}, 1),
	}
}

func (c *Connection) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiver != nil
}

func (c *Connection) Export(r session.Receiver) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiver != nil {
		return session.ErrAlreadyConfigured
	}
	c.receiver = r
	return nil
}

func (c *Connection) SetInterruptionHandler(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupt = fn
}

// Activate starts the connection loops. The write loop announces the local
// service before any other frame.
func (c *Connection) Activate() error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return ErrConnClosed
	}
	if c.activated {
		c.mu.Unlock()
		return nil
	}
	c.activated = true
	c.mu.Unlock()

	go c.run()
	return nil
}

// Invalidate closes the connection without reporting an interruption.
func (c *Connection) Invalidate() error {
	c.mu.Lock()
	c.invalidated = true
	c.mu.Unlock()

	return c.terminate(nil)
}

// Done is closed when the connection has ended.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// Remote waits for the peer's hello and returns a proxy if it announced the
// same service.
func (c *Connection) Remote() (session.Peer, error) {
	if !c.isActive() {
		return nil, ErrNotActive
	}

	timer := time.NewTimer(c.opts.handshakeTimeout)
	defer timer.Stop()

	select {
	case <-c.hello:
	case <-c.closed:
		return nil, ErrConnClosed
	case <-timer.C:
		return nil, fmt.Errorf("%w: no hello from peer after %s", session.ErrServiceMismatch, c.opts.handshakeTimeout)
	}

	if c.remoteService != c.opts.service {
		return nil, fmt.Errorf("%w: peer speaks %q, want %q", session.ErrServiceMismatch, c.remoteService, c.opts.service)
	}
	return peer{c: c}, nil
}

func (c *Connection) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activated
}

func (c *Connection) run() {
	var g errgroup.Group
	g.Go(func() error { return c.exit("read", c.readLoop()) })
	g.Go(func() error { return c.exit("write", c.writeLoop()) })
	g.Go(func() error { return c.exit("dispatch", c.dispatchLoop()) })

	if err := g.Wait(); err != nil {
		c.log.Debug().Err(err).Msg("connection loops finished")
	}
}

func (c *Connection) exit(loop string, err error) error {
	if err != nil {
		err = fmt.Errorf("%s loop: %w", loop, err)
	}
	_ = c.terminate(err)
	return err
}

// terminate closes the connection once, fails outstanding calls and reports
// an interruption unless the close was requested locally.
func (c *Connection) terminate(cause error) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return nil
	}
	c.terminated = true
	calls := c.calls
	c.calls = make(map[uint32]func([]byte, error))
	interrupt := c.interrupt
	invalidated := c.invalidated
	close(c.closed)
	c.mu.Unlock()

	err := c.conn.Close()

	closedErr := ErrConnClosed
	if cause != nil {
		closedErr = fmt.Errorf("%w: %w", ErrConnClosed, cause)
	}
	for _, done := range calls {
		done(nil, closedErr)
	}
	if !invalidated && interrupt != nil {
		c.log.Debug().Err(cause).Msg("connection interrupted")
		interrupt(closedErr)
	}
	return err
}

func (c *Connection) write(f frame) error {
	req := &pendingWrite{frame: f, completed: make(chan struct{})}
	select {
	case c.requests <- req:
	case <-c.closed:
		return ErrConnClosed
	}

	<-req.completed
	return req.err
}

func (c *Connection) writeLoop() error {
	w := bufio.NewWriter(c.conn)
	err := writeFrame(w, frame{kind: kindHello, payload: []byte(c.opts.service)})
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}

	for {
		select {
		case req := <-c.requests:
			err := writeFrame(w, req.frame)
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				req.err = fmt.Errorf("sending error: %w", err)
				close(req.completed)
				return err
			}
			close(req.completed)

		case <-c.closed:
			return nil
		}
	}
}

func (c *Connection) readLoop() error {
	r := bufio.NewReader(c.conn)
	for {
		f, err := readFrame(r, c.opts.maxFrameSize)
		if err != nil {
			if c.isClosed() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("receiving error: %w", err)
		}

		switch f.kind {
		case kindHello:
			c.helloOnce.Do(func() {
				c.remoteService = string(f.payload)
				close(c.hello)
			})
		case kindReply:
			c.mu.Lock()
			done, ok := c.calls[f.id]
			delete(c.calls, f.id)
			c.mu.Unlock()
			if !ok {
				c.log.Debug().Uint32("id", f.id).Msg("dropping reply without a pending call")
				continue
			}
			done(f.payload, nil)
		default:
			c.push(f)
		}
	}
}

func (c *Connection) push(f frame) {
	c.inboxMu.Lock()
	c.inbox.Add(f)
	c.inboxMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Connection) dispatchLoop() error {
	for {
		c.inboxMu.Lock()
		for c.inbox.Length() > 0 {
			f := c.inbox.Remove().(frame)
			c.inboxMu.Unlock()
			if c.isClosed() {
				return nil
			}
			c.dispatch(f)
			c.inboxMu.Lock()
		}
		c.inboxMu.Unlock()

		select {
		case <-c.wake:
		case <-c.closed:
			return nil
		}
	}
}

func (c *Connection) dispatch(f frame) {
	c.mu.Lock()
	r := c.receiver
	c.mu.Unlock()
	if r == nil {
		c.log.Warn().Str("kind", f.kind.String()).Msg("dropping message, nothing exported")
		return
	}

	switch f.kind {
	case kindMessage:
		r.ProcessMessage(f.payload)
	case kindRequest:
		r.ProcessMessageWithReply(f.payload, c.replySink(f.id))
	}
}

// replySink writes at most one reply frame for request id. A reply over the
// frame limit is dropped; the requester never sees it.
func (c *Connection) replySink(id uint32) session.ReplyFunc {
	var once sync.Once
	return func(data []byte) {
		once.Do(func() {
			if err := c.checkSize(data); err != nil {
				c.log.Warn().Err(err).Uint32("id", id).Msg("dropping reply")
				return
			}
			if err := c.write(frame{kind: kindReply, id: id, payload: data}); err != nil {
				c.log.Debug().Err(err).Uint32("id", id).Msg("reply not delivered")
			}
		})
	}
}

// checkSize rejects payloads the peer would refuse to read. Sending one
// would make the peer close the connection.
func (c *Connection) checkSize(payload []byte) error {
	if limit := c.opts.maxFrameSize; limit > 0 && len(payload) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(payload), limit)
	}
	return nil
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// peer is the session.Peer view of a Connection.
type peer struct {
	c *Connection
}

func (p peer) ProcessMessage(data []byte) error {
	if err := p.c.checkSize(data); err != nil {
		return err
	}
	return p.c.write(frame{kind: kindMessage, payload: data})
}

func (p peer) ProcessMessageWithReply(data []byte, done func([]byte, error)) error {
	_, err := p.ProcessCancelableMessageWithReply(data, done)
	return err
}

func (p peer) ProcessCancelableMessageWithReply(data []byte, done func([]byte, error)) (func(), error) {
	c := p.c
	if err := c.checkSize(data); err != nil {
		return nil, err
	}
	id := c.ids.Add(1)

	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return nil, ErrConnClosed
	}
	c.calls[id] = done
	c.mu.Unlock()

	if err := c.write(frame{kind: kindRequest, id: id, payload: data}); err != nil {
		c.forget(id)
		return nil, err
	}
	return func() { c.forget(id) }, nil
}

func (c *Connection) forget(id uint32) {
	c.mu.Lock()
	delete(c.calls, id)
	c.mu.Unlock()
}

// Pending returns the number of requests waiting for a reply frame.
func (c *Connection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
