package connsession_go

import (
	"context"
	"fmt"
	"strings"
	"time"

	"connsession-go/config"
	"connsession-go/gonet"
	"connsession-go/session"
)

// Client is one activated session to a connsession peer.
type Client struct {
	sess    *session.Session
	timeout time.Duration
}

// NewClient dials cfg.Address and activates a session on it. handler
// receives messages pushed by the peer and may be nil.
func NewClient(ctx context.Context, cfg config.Config, handler session.Handler, opts ...session.Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := cfg.CodecValue()
	if err != nil {
		return nil, err
	}

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
	}

	sess := session.New(conn, append([]session.Option{session.WithCodec(c)}, opts...)...)
	sess.SetIncomingMessageHandler(handler)
	if err := sess.Activate(); err != nil {
		sess.Cancel()
		return nil, err
	}
	return &Client{sess: sess, timeout: cfg.RequestTimeout}, nil
}

func dial(ctx context.Context, cfg config.Config) (*gonet.Connection, error) {
	if cfg.Transport == config.TransportWebsocket {
		url := cfg.Address
		if !strings.Contains(url, "://") {
			url = "ws://" + url
		}
		return gonet.DialWebsocket(ctx, url, cfg.ConnOptions()...)
	}
	return gonet.Dial(ctx, cfg.Network, cfg.Address, cfg.ConnOptions()...)
}

func (c *Client) Session() *session.Session {
	return c.sess
}

func (c *Client) Close() {
	c.sess.Cancel()
}

func (c *Client) Send(message any) error {
	return c.sess.Send(message)
}

// Call sends message and waits for the typed reply. The configured request
// timeout applies when ctx has no deadline of its own.
func Call[R any](ctx context.Context, c *Client, message any) (R, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return session.Call[R](ctx, c.sess, message)
}
