package gonet

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
)

type FrameSuite struct {
	suite.Suite
}

func TestFrameSuite(t *testing.T) {
	suite.Run(t, new(FrameSuite))
}

func (s *FrameSuite) TestRoundTrip() {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	frames := []frame{
		{kind: kindHello, payload: []byte("connsession")},
		{kind: kindMessage, payload: []byte(`"hello"`)},
		{kind: kindRequest, id: 7, payload: []byte(`"hello"`)},
		{kind: kindReply, id: 7, payload: []byte{}},
	}
	for _, f := range frames {
		s.Require().NoError(writeFrame(w, f))
	}
	s.Require().NoError(w.Flush())

	r := bufio.NewReader(&buf)
	for _, want := range frames {
		got, err := readFrame(r, DefaultMaxFrameSize)
		s.Require().NoError(err)
		s.Equal(want.kind, got.kind)
		s.Equal(want.id, got.id)
		s.Equal(want.payload, got.payload)
	}
}

func (s *FrameSuite) TestTooLarge() {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	s.Require().NoError(writeFrame(w, frame{kind: kindMessage, payload: make([]byte, 64)}))
	s.Require().NoError(w.Flush())

	_, err := readFrame(bufio.NewReader(&buf), 32)
	s.ErrorIs(err, ErrFrameTooLarge)
}

func (s *FrameSuite) TestBadKind() {
	_, err := readFrame(bufio.NewReader(bytes.NewReader([]byte{42, 0, 0, 0, 1, 0, 0, 0, 0})), DefaultMaxFrameSize)
	s.ErrorIs(err, ErrBadFrame)
}

func (s *FrameSuite) TestTruncated() {
	_, err := readFrame(bufio.NewReader(bytes.NewReader([]byte{byte(kindMessage), 0, 0, 0, 1, 0, 0, 0, 9, 'x'})), DefaultMaxFrameSize)
	s.ErrorIs(err, ErrBadFrame)
}
