package session

import (
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"connsession-go/codec"
)

type state int

const (
	stateCreated state = iota
	stateActivated
	stateCancelled
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateActivated:
		return "activated"
	default:
		return "cancelled"
	}
}

var serials atomix.Uint32

// record correlates one outstanding two-way send with its completion.
type record struct {
	id   uint64
	once sync.Once
	done func(reply []byte, err error)

	// cancel drops the transport's reply callback. Guarded by Session.mu.
	cancel func()
}

func (r *record) finish(reply []byte, err error) {
	r.once.Do(func() { r.done(reply, err) })
}

// Session multiplexes request/reply exchanges over one Transport, which it
// owns exclusively from New until Cancel.
type Session struct {
	id     string
	serial uint32

	transport  Transport
	codec      codec.Codec
	report     reporter
	queue      *serialQueue
	dispatcher *dispatcher

	mu      sync.Mutex
	state   state
	err     error
	nextID  uint64
	pending map[uint64]*record
	done    chan struct{}
}

type Option func(*options)

type options struct {
	codec       codec.Codec
	diagnostics Diagnostics
}

func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

func WithDiagnostics(d Diagnostics) Option {
	return func(o *options) { o.diagnostics = d }
}

// WithLogger reports diagnostics as warnings on logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.diagnostics = LogDiagnostics{Logger: logger} }
}

// New wraps t in a Session. The session is inert until Activate.
func New(t Transport, opts ...Option) *Session {
	o := options{codec: codec.JSON}
	for _, opt := range opts {
		opt(&o)
	}
	if o.diagnostics == nil {
		o.diagnostics = LogDiagnostics{Logger: log.Logger.With().Str("component", "session").Logger()}
	}

	s := &Session{
		id:        uuid.NewString(),
		serial:    serials.Add(1),
		transport: t,
		codec:     o.codec,
		queue:     newSerialQueue(),
		pending:   make(map[uint64]*record),
		done:      make(chan struct{}),
	}
	s.report = reporter{sink: o.diagnostics, session: s.id, serial: s.serial}
	s.dispatcher = newDispatcher(s.codec, s.report)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Serial() uint32 { return s.serial }

func (s *Session) Codec() codec.Codec { return s.codec }

// Done is closed once the session is cancelled or interrupted.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns nil while the session is usable, and the reason it ended afterwards.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pending returns the number of two-way sends still waiting for completion.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Activate exports the session on its transport and starts the connection.
// The transport must not have been configured by anyone else. Activating an
// active session does nothing.
func (s *Session) Activate() error {
	var err error
	if !s.queue.sync(func() { err = s.activate() }) {
		return s.Err()
	}
	return err
}

func (s *Session) activate() error {
	switch s.currentState() {
	case stateActivated:
		return nil
	case stateCancelled:
		return s.Err()
	}

	if s.transport.Configured() {
		return ErrAlreadyConfigured
	}
	if err := s.transport.Export(s.dispatcher); err != nil {
		return err
	}
	s.transport.SetInterruptionHandler(s.interrupted)
	if err := s.transport.Activate(); err != nil {
		s.shutdown(err)
		return s.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateCancelled {
		return s.err
	}
	s.state = stateActivated
	return nil
}

// Cancel ends the session. Outstanding two-way sends complete with
// ErrConnectionClosed. Cancel may be called more than once.
func (s *Session) Cancel() {
	s.shutdown(ErrCancelled)
}

func (s *Session) interrupted(err error) {
	if err == nil {
		err = errPeerInterrupted
	}
	select {
	case <-s.done:
		return
	default:
	}
	s.report.warn(WarnInterrupted, err)
	s.shutdown(err)
}

func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	if s.state == stateCancelled {
		s.mu.Unlock()
		return
	}
	s.state = stateCancelled
	s.err = connectionClosed(cause)
	pending := s.pending
	s.pending = make(map[uint64]*record)
	close(s.done)
	err := s.err
	s.mu.Unlock()

	// Invalidate errors only say the connection was already gone.
	_ = s.transport.Invalidate()

	for _, r := range pending {
		r.finish(nil, err)
	}
	s.queue.close()
}

// SetIncomingMessageHandler replaces the handler for inbound messages. The
// swap runs on the session's executor after every operation queued before
// it; each inbound message is handled by exactly one handler.
func (s *Session) SetIncomingMessageHandler(h Handler) {
	s.queue.async(func() { s.dispatcher.setHandler(h) })
}

// Send encodes message and queues it for one-way delivery. Encoding errors
// are returned before anything is queued; delivery errors are reported to
// Diagnostics.
func (s *Session) Send(message any) error {
	data, err := s.encode(message)
	if err != nil {
		return err
	}
	if err := s.usable(); err != nil {
		return err
	}
	if !s.queue.async(func() { s.deliver(data) }) {
		return s.Err()
	}
	return nil
}

func (s *Session) deliver(data []byte) {
	if err := s.usable(); err != nil {
		s.report.warn(WarnSendFailed, err)
		return
	}
	peer, err := s.remote()
	if err != nil {
		s.report.warn(WarnSendFailed, err)
		return
	}
	if err := peer.ProcessMessage(data); err != nil {
		s.report.warn(WarnSendFailed, err)
	}
}

// request queues data for two-way delivery. done is called exactly once.
// The returned record is nil when done already ran.
func (s *Session) request(data []byte, done func(reply []byte, err error)) *record {
	r := &record{done: done}
	if err := s.track(r); err != nil {
		r.finish(nil, err)
		return nil
	}
	if !s.queue.async(func() { s.deliverRequest(r, data) }) {
		s.complete(r, nil, s.Err())
	}
	return r
}

func (s *Session) deliverRequest(r *record, data []byte) {
	if !s.isPending(r) {
		// Abandoned or failed while queued.
		return
	}
	if err := s.usable(); err != nil {
		s.complete(r, nil, err)
		return
	}
	peer, err := s.remote()
	if err != nil {
		s.complete(r, nil, err)
		return
	}

	done := func(reply []byte, err error) {
		s.complete(r, reply, err)
	}
	var cancel func()
	if cp, ok := peer.(CancelablePeer); ok {
		cancel, err = cp.ProcessCancelableMessageWithReply(data, done)
	} else {
		err = peer.ProcessMessageWithReply(data, done)
	}
	if err != nil {
		s.complete(r, nil, err)
		return
	}
	if cancel != nil && !s.attachCancel(r, cancel) {
		cancel()
	}
}

func (s *Session) isPending(r *record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[r.id] == r
}

// attachCancel stores cancel on r if r is still pending.
func (s *Session) attachCancel(r *record, cancel func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[r.id] != r {
		return false
	}
	r.cancel = cancel
	return true
}

// abandon completes r with err and tells the transport to forget it. A reply
// arriving later is dropped.
func (s *Session) abandon(r *record, err error) {
	s.mu.Lock()
	var cancel func()
	if s.pending[r.id] == r {
		delete(s.pending, r.id)
		cancel = r.cancel
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.finish(nil, err)
}

func (s *Session) track(r *record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateCreated:
		return ErrNotActivated
	case stateCancelled:
		return s.err
	}
	s.nextID++
	r.id = s.nextID
	s.pending[r.id] = r
	return nil
}

func (s *Session) complete(r *record, reply []byte, err error) {
	s.mu.Lock()
	if s.pending[r.id] == r {
		delete(s.pending, r.id)
	}
	s.mu.Unlock()

	r.finish(reply, err)
}

func (s *Session) remote() (Peer, error) {
	peer, err := s.transport.Remote()
	if err != nil {
		return nil, serviceMismatch(err)
	}
	if peer == nil {
		return nil, ErrServiceMismatch
	}
	return peer, nil
}

func (s *Session) encode(message any) ([]byte, error) {
	data, err := s.codec.Encode(message)
	if err != nil {
		return nil, encodeFailure(err)
	}
	return data, nil
}

func (s *Session) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateCreated:
		return ErrNotActivated
	case stateCancelled:
		return s.err
	}
	return nil
}

func (s *Session) currentState() state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
