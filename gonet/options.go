package gonet

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultService          = "connsession"
	DefaultHandshakeTimeout = 5 * time.Second
)

type ConnOption func(*connOptions)

type connOptions struct {
	service          string
	handshakeTimeout time.Duration
	maxFrameSize     int
	logger           zerolog.Logger
}

func defaultConnOptions() connOptions {
	return connOptions{
		service:          DefaultService,
		handshakeTimeout: DefaultHandshakeTimeout,
		maxFrameSize:     DefaultMaxFrameSize,
		logger:           log.Logger,
	}
}

// WithService names the protocol announced to the peer. Both sides must agree.
func WithService(name string) ConnOption {
	return func(o *connOptions) { o.service = name }
}

// WithHandshakeTimeout bounds how long Remote waits for the peer's hello.
func WithHandshakeTimeout(d time.Duration) ConnOption {
	return func(o *connOptions) { o.handshakeTimeout = d }
}

func WithMaxFrameSize(n int) ConnOption {
	return func(o *connOptions) { o.maxFrameSize = n }
}

func WithLogger(logger zerolog.Logger) ConnOption {
	return func(o *connOptions) { o.logger = logger }
}
