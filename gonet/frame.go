package gonet

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: kind (1 byte), id (4 bytes, big endian), payload length
// (4 bytes, big endian), payload.
const headerSize = 9

const DefaultMaxFrameSize = 4 << 20

var (
	ErrFrameTooLarge = errors.New("gonet: frame too large")
	ErrBadFrame      = errors.New("gonet: bad frame")
)

type frameKind uint8

const (
	// kindHello carries the sender's service name. Sent once, first.
	kindHello frameKind = iota + 1
	// kindMessage is a one-way message.
	kindMessage
	// kindRequest expects a kindReply with the same id.
	kindRequest
	kindReply
)

func (k frameKind) String() string {
	switch k {
	case kindHello:
		return "hello"
	case kindMessage:
		return "message"
	case kindRequest:
		return "request"
	case kindReply:
		return "reply"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type frame struct {
	kind    frameKind
	id      uint32
	payload []byte
}

// writeFrame buffers f on w. The caller flushes.
func writeFrame(w *bufio.Writer, f frame) error {
	var header [headerSize]byte
	header[0] = byte(f.kind)
	binary.BigEndian.PutUint32(header[1:5], f.id)
	binary.BigEndian.PutUint32(header[5:9], uint32(len(f.payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(f.payload)
	return err
}

func readFrame(r *bufio.Reader, maxSize int) (frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}

	f := frame{
		kind: frameKind(header[0]),
		id:   binary.BigEndian.Uint32(header[1:5]),
	}
	if f.kind < kindHello || f.kind > kindReply {
		return frame{}, fmt.Errorf("%w: unknown %s", ErrBadFrame, f.kind)
	}

	length := binary.BigEndian.Uint32(header[5:9])
	if maxSize > 0 && uint64(length) > uint64(maxSize) {
		return frame{}, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, length, maxSize)
	}
	f.payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.payload); err != nil {
		return frame{}, fmt.Errorf("%w: truncated payload: %w", ErrBadFrame, err)
	}
	return f, nil
}
