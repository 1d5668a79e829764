package gonet

import (
	"context"
	"net"
	"time"

	"connsession-go/logging"
	"connsession-go/session"
	"connsession-go/testutil"
)

type BaseSuite struct {
	testutil.BaseSuite
}

func (s *BaseSuite) SetupSuite() {
	logging.ConfigureTests()
}

func (s *BaseSuite) SetupListener(h HandlerFactory) *Listener {
	l := NewListenerForAddr(s.StrEnv("TEST_LISTEN_ADDR", "127.0.0.1:0"), h)
	err := l.Start(context.Background())
	s.Require().NoError(err)

	return l
}

// Activated wraps conn in an activated session that is cancelled after the test.
func (s *BaseSuite) Activated(conn *Connection, h session.Handler, opts ...session.Option) *session.Session {
	sess := session.New(conn, opts...)
	sess.SetIncomingMessageHandler(h)
	s.Require().NoError(sess.Activate())
	s.T().Cleanup(sess.Cancel)
	return sess
}

// Pipe returns both ends of an in-memory connection.
func (s *BaseSuite) Pipe(a, b []ConnOption) (*Connection, *Connection) {
	ca, cb := net.Pipe()
	return NewConnection(ca, a...), NewConnection(cb, b...)
}

func (s *BaseSuite) WaitClosed(ch <-chan struct{}) {
	select {
	case <-ch:
	case <-time.After(s.DurationEnv("TEST_WAIT_TIMEOUT", 5*time.Second)):
		s.FailNow("timed out waiting for close")
	}
}
