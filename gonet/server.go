package gonet

import (
	"net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"connsession-go/session"
)

// SessionFactory runs one session per accepted connection until the peer
// goes away or the listener closes.
type SessionFactory struct {
	Handler        session.Handler
	SessionOptions []session.Option
	ConnOptions    []ConnOption

	// Accepted, if set, is called with every activated session.
	Accepted func(s *session.Session)

	Logger *zerolog.Logger
}

func NewSessionFactory(handler session.Handler, opts ...ConnOption) *SessionFactory {
	return &SessionFactory{Handler: handler, ConnOptions: opts}
}

func (f *SessionFactory) New(conn net.Conn, done <-chan struct{}) {
	logger := log.Logger
	if f.Logger != nil {
		logger = *f.Logger
	}

	sess := session.New(NewConnection(conn, f.ConnOptions...), f.SessionOptions...)
	defer sess.Cancel()

	sess.SetIncomingMessageHandler(f.Handler)
	if err := sess.Activate(); err != nil {
		logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session activation failed")
		return
	}
	logger.Debug().Str("session", sess.ID()).Str("remote", conn.RemoteAddr().String()).Msg("session started")

	if f.Accepted != nil {
		f.Accepted(sess)
	}

	select {
	case <-done:
	case <-sess.Done():
	}
	logger.Debug().Str("session", sess.ID()).AnErr("cause", sess.Err()).Msg("session finished")
}
