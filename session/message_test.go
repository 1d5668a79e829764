package session

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"connsession-go/codec"
)

type MessageSuite struct {
	suite.Suite
	rec *recorder
}

func TestMessageSuite(t *testing.T) {
	suite.Run(t, new(MessageSuite))
}

func (s *MessageSuite) SetupTest() {
	s.rec = &recorder{}
}

func (s *MessageSuite) newDispatcher() *dispatcher {
	return newDispatcher(codec.JSON, reporter{sink: s.rec, session: "test", serial: 1})
}

func (s *MessageSuite) encode(v any) []byte {
	data, err := codec.JSON.Encode(v)
	s.Require().NoError(err)
	return data
}

func (s *MessageSuite) TestDecodeRepeatable() {
	d := s.newDispatcher()
	var seen *ReceivedMessage
	d.setHandler(func(msg *ReceivedMessage) any {
		seen = msg
		return nil
	})
	d.ProcessMessage(s.encode("hello"))
	s.Require().NotNil(seen)

	for i := 0; i < 3; i++ {
		v, err := Decode[string](seen)
		s.Require().NoError(err)
		s.Equal("hello", v)
	}
	_, err := Decode[int](seen)
	s.ErrorIs(err, ErrDecodeFailure)

	data := seen.Data()
	data[0] = 'x'
	v, err := Decode[string](seen)
	s.Require().NoError(err)
	s.Equal("hello", v)
}

func (s *MessageSuite) TestOneWayReplyDropped() {
	d := s.newDispatcher()
	d.setHandler(func(msg *ReceivedMessage) any {
		s.False(msg.ExpectsReply())
		s.False(msg.IsSync())
		msg.Reply("world")
		s.False(msg.Replied())
		msg.Reply("again")
		s.False(msg.Replied())
		return nil
	})
	d.ProcessMessage(s.encode("hello"))

	s.Equal(2, s.rec.count(WarnUnexpectedReply))
	s.Equal(0, s.rec.count(WarnDuplicateReply))
	s.Equal(0, s.rec.count(WarnUnexpectedReturn))
}

func (s *MessageSuite) TestOneWayReturnValueWarns() {
	d := s.newDispatcher()
	d.setHandler(func(msg *ReceivedMessage) any { return "world" })
	d.ProcessMessage(s.encode("hello"))

	events := s.rec.all()
	s.Require().Len(events, 1)
	s.Equal(WarnUnexpectedReturn, events[0].Kind)
	s.Equal("test", events[0].Session)
	s.Equal(uint32(1), events[0].Serial)
}

func (s *MessageSuite) TestTwoWayReplyOnce() {
	d := s.newDispatcher()
	var replies [][]byte
	d.setHandler(func(msg *ReceivedMessage) any {
		s.True(msg.ExpectsReply())
		msg.Reply("world")
		msg.Reply("again")
		s.True(msg.Replied())
		return nil
	})
	d.ProcessMessageWithReply(s.encode("hello"), func(data []byte) { replies = append(replies, data) })

	s.Require().Len(replies, 1)
	var v string
	s.Require().NoError(codec.JSON.Decode(replies[0], &v))
	s.Equal("world", v)
	s.Equal(1, s.rec.count(WarnDuplicateReply))
}

func (s *MessageSuite) TestTwoWayReturnValueIgnored() {
	d := s.newDispatcher()
	replies := 0
	d.setHandler(func(msg *ReceivedMessage) any { return "world" })
	d.ProcessMessageWithReply(s.encode("hello"), func([]byte) { replies++ })

	s.Equal(0, replies)
	s.Empty(s.rec.all())
}

func (s *MessageSuite) TestReplyEncodeFailure() {
	d := s.newDispatcher()
	replies := 0
	var seen *ReceivedMessage
	d.setHandler(func(msg *ReceivedMessage) any {
		seen = msg
		msg.Reply(make(chan int))
		return nil
	})
	d.ProcessMessageWithReply(s.encode("hello"), func([]byte) { replies++ })

	s.Equal(0, replies)
	s.False(seen.Replied())
	events := s.rec.all()
	s.Require().Len(events, 1)
	s.Equal(WarnReplyEncode, events[0].Kind)
	s.ErrorIs(events[0].Err, ErrEncodeFailure)

	seen.Reply("late")
	s.Equal(0, replies)
	s.Equal(1, s.rec.count(WarnDuplicateReply))
}

func (s *MessageSuite) TestDeferredReply() {
	d := s.newDispatcher()
	held := make(chan *ReceivedMessage, 1)
	got := make(chan []byte, 1)
	d.setHandler(func(msg *ReceivedMessage) any {
		held <- msg
		return nil
	})
	d.ProcessMessageWithReply(s.encode("hello"), func(data []byte) { got <- data })

	msg := <-held
	go msg.Reply("later")
	var v string
	s.Require().NoError(codec.JSON.Decode(<-got, &v))
	s.Equal("later", v)
}

func (s *MessageSuite) TestSyncDelivery() {
	d := s.newDispatcher()
	d.setHandler(func(msg *ReceivedMessage) any {
		s.True(msg.IsSync())
		s.True(msg.ExpectsReply())
		msg.Reply("world")
		return nil
	})
	replied := false
	d.ProcessSyncMessage(s.encode("hello"), func([]byte) { replied = true })
	s.True(replied)
}

func (s *MessageSuite) TestHandlerPanic() {
	d := s.newDispatcher()
	d.setHandler(func(msg *ReceivedMessage) any { panic("boom") })
	s.NotPanics(func() { d.ProcessMessage(s.encode("hello")) })
	s.Equal(1, s.rec.count(WarnHandlerPanic))
	s.Equal(0, s.rec.count(WarnUnexpectedReturn))
}

func (s *MessageSuite) TestDefaultHandler() {
	d := s.newDispatcher()
	replies := 0
	d.ProcessMessage(s.encode("hello"))
	d.ProcessMessageWithReply(s.encode("hello"), func([]byte) { replies++ })
	d.setHandler(nil)
	d.ProcessMessage(s.encode("hello"))

	s.Equal(0, replies)
	s.Empty(s.rec.all())
}
