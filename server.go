package connsession_go

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"connsession-go/config"
	"connsession-go/gonet"
	"connsession-go/session"
)

// Server accepts connections and runs handler on one session per peer.
type Server struct {
	addr  net.Addr
	close func() error
	done  <-chan struct{}
}

func Serve(ctx context.Context, cfg config.Config, handler session.Handler, opts ...session.Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := cfg.CodecValue()
	if err != nil {
		return nil, err
	}

	factory := gonet.NewSessionFactory(handler, cfg.ConnOptions()...)
	factory.SessionOptions = append([]session.Option{session.WithCodec(c)}, opts...)

	if cfg.Transport == config.TransportWebsocket {
		return serveWebsocket(ctx, cfg, factory)
	}

	l := gonet.NewListenerForAddr(cfg.Address, factory)
	if err := l.Start(ctx); err != nil {
		return nil, err
	}
	log.Info().Str("address", l.Address().String()).Str("service", cfg.Service).Msg("listening")
	return &Server{addr: l.Address(), close: l.Close, done: l.Done()}, nil
}

func serveWebsocket(ctx context.Context, cfg config.Config, factory *gonet.SessionFactory) (*Server, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	srv := &http.Server{Handler: gonet.WebsocketHandler(factory, stop)}
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("websocket server stopped")
		}
	}()
	log.Info().Str("address", listener.Addr().String()).Str("service", cfg.Service).Msg("listening for websockets")

	shutdown := func() error {
		close(stop)
		return srv.Close()
	}
	return &Server{addr: listener.Addr(), close: shutdown, done: done}, nil
}

func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close stops accepting and ends every running session.
func (s *Server) Close() error {
	return s.close()
}

func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Greeter answers "hello" with "world" and echoes every other string.
// One-way messages are logged and dropped.
func Greeter(msg *session.ReceivedMessage) any {
	text, err := session.Decode[string](msg)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable message")
		return nil
	}
	if !msg.ExpectsReply() {
		log.Info().Str("text", text).Msg("message")
		return nil
	}
	if text == "hello" {
		msg.Reply("world")
		return nil
	}
	msg.Reply(text)
	return nil
}
