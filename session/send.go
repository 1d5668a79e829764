package session

import "context"

// SendWithReply encodes message, sends it as a two-way message and calls
// handler exactly once with the reply decoded as R, or with an error.
//
// Only encoding errors are returned; everything after that, including a
// session that is not active, is delivered to handler. handler may run on a
// transport goroutine and should not block.
func SendWithReply[R any](s *Session, message any, handler func(reply R, err error)) error {
	_, err := sendWithReply(s, message, handler)
	return err
}

func sendWithReply[R any](s *Session, message any, handler func(reply R, err error)) (*record, error) {
	data, err := s.encode(message)
	if err != nil {
		return nil, err
	}

	r := s.request(data, func(reply []byte, err error) {
		var value R
		if err != nil {
			handler(value, err)
			return
		}
		if err := s.codec.Decode(reply, &value); err != nil {
			handler(value, decodeFailure(err))
			return
		}
		handler(value, nil)
	})
	return r, nil
}

// Call sends message and waits for the reply decoded as R. If ctx ends first,
// Call returns ctx.Err(), the exchange is forgotten and a late reply is
// discarded.
func Call[R any](ctx context.Context, s *Session, message any) (R, error) {
	c := newCompletion[R]()
	r, err := sendWithReply(s, message, func(reply R, err error) {
		c.complete(reply, err)
	})
	if err != nil {
		var zero R
		return zero, err
	}

	value, err := c.wait(ctx)
	if err != nil && r != nil && ctx.Err() != nil {
		s.abandon(r, ctx.Err())
	}
	return value, err
}
