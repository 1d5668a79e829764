package session

import (
	"errors"
	"sync"
)

var errFakeSend = errors.New("fake: send failed")

// recorder collects diagnostics for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Warn(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind Warning) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// fakeRequest is a two-way send held by fakeTransport until the test answers it.
type fakeRequest struct {
	data []byte
	done func([]byte, error)
}

// fakeTransport records what the session hands to it.
type fakeTransport struct {
	mu sync.Mutex

	receiver    Receiver
	interrupt   func(error)
	activated   bool
	invalidated int

	preconfigured bool
	cancelable    bool
	remoteErr     error
	sendErr       error
	activateErr   error

	sent      [][]byte
	requests  []*fakeRequest
	cancelled int
}

func (t *fakeTransport) Configured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preconfigured || t.receiver != nil
}

func (t *fakeTransport) Export(r Receiver) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = r
	return nil
}

func (t *fakeTransport) Remote() (Peer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remoteErr != nil {
		return nil, t.remoteErr
	}
	if t.cancelable {
		return cancelablePeer{fakePeer{t: t}}, nil
	}
	return fakePeer{t: t}, nil
}

func (t *fakeTransport) SetInterruptionHandler(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupt = fn
}

func (t *fakeTransport) Activate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.activateErr != nil {
		return t.activateErr
	}
	t.activated = true
	return nil
}

func (t *fakeTransport) Invalidate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidated++
	return nil
}

func (t *fakeTransport) sentMessages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *fakeTransport) cancelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *fakeTransport) heldRequests() []*fakeRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*fakeRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

func (t *fakeTransport) deliver(data []byte) {
	t.mu.Lock()
	r := t.receiver
	t.mu.Unlock()
	r.ProcessMessage(data)
}

func (t *fakeTransport) deliverWithReply(data []byte, reply ReplyFunc) {
	t.mu.Lock()
	r := t.receiver
	t.mu.Unlock()
	r.ProcessMessageWithReply(data, reply)
}

type fakePeer struct {
	t *fakeTransport
}

func (p fakePeer) ProcessMessage(data []byte) error {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	if p.t.sendErr != nil {
		return p.t.sendErr
	}
	p.t.sent = append(p.t.sent, data)
	return nil
}

func (p fakePeer) ProcessMessageWithReply(data []byte, done func([]byte, error)) error {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	if p.t.sendErr != nil {
		return p.t.sendErr
	}
	p.t.sent = append(p.t.sent, data)
	p.t.requests = append(p.t.requests, &fakeRequest{data: data, done: done})
	return nil
}

type cancelablePeer struct {
	fakePeer
}

func (p cancelablePeer) ProcessCancelableMessageWithReply(data []byte, done func([]byte, error)) (func(), error) {
	if err := p.ProcessMessageWithReply(data, done); err != nil {
		return nil, err
	}
	return func() {
		p.t.mu.Lock()
		defer p.t.mu.Unlock()
		p.t.cancelled++
	}, nil
}

// pipeEnd is one side of an in-memory connection pair. Deliveries to the
// other side run on their own goroutines, like a real transport.
type pipeEnd struct {
	mu        sync.Mutex
	service   string
	receiver  Receiver
	interrupt func(error)
	closed    bool
	nextCall  int
	calls     map[int]func([]byte, error)
	other     *pipeEnd
}

func newPipe(serviceA, serviceB string) (*pipeEnd, *pipeEnd) {
	a := &pipeEnd{service: serviceA, calls: make(map[int]func([]byte, error))}
	b := &pipeEnd{service: serviceB, calls: make(map[int]func([]byte, error))}
	a.other, b.other = b, a
	return a, b
}

func (e *pipeEnd) Configured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.receiver != nil
}

func (e *pipeEnd) Export(r Receiver) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receiver = r
	return nil
}

func (e *pipeEnd) Remote() (Peer, error) {
	if e.other.service != e.service {
		return nil, ErrServiceMismatch
	}
	return pipePeer{e: e}, nil
}

func (e *pipeEnd) SetInterruptionHandler(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interrupt = fn
}

func (e *pipeEnd) Activate() error { return nil }

func (e *pipeEnd) Invalidate() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	calls := e.calls
	e.calls = make(map[int]func([]byte, error))
	e.mu.Unlock()

	for _, done := range calls {
		done(nil, ErrConnectionClosed)
	}
	e.other.peerGone()
	return nil
}

func (e *pipeEnd) peerGone() {
	e.mu.Lock()
	fn := e.interrupt
	closed := e.closed
	e.mu.Unlock()
	if fn != nil && !closed {
		go fn(nil)
	}
}

func (e *pipeEnd) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || e.other.closed
}

func (e *pipeEnd) inbound() Receiver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.receiver
}

type pipePeer struct {
	e *pipeEnd
}

func (p pipePeer) ProcessMessage(data []byte) error {
	if p.e.isClosed() {
		return ErrConnectionClosed
	}
	r := p.e.other.inbound()
	go r.ProcessMessage(data)
	return nil
}

func (p pipePeer) ProcessMessageWithReply(data []byte, done func([]byte, error)) error {
	if p.e.isClosed() {
		return ErrConnectionClosed
	}
	p.e.mu.Lock()
	p.e.nextCall++
	id := p.e.nextCall
	p.e.calls[id] = done
	p.e.mu.Unlock()

	r := p.e.other.inbound()
	go r.ProcessMessageWithReply(data, func(reply []byte) {
		p.e.mu.Lock()
		fn, ok := p.e.calls[id]
		delete(p.e.calls, id)
		p.e.mu.Unlock()
		if ok {
			fn(reply, nil)
		}
	})
	return nil
}
