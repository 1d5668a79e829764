package gonet

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// HandlerFactory takes over an accepted connection. New may block for the
// lifetime of the connection; it runs on its own goroutine. done is closed
// when the listener shuts down.
type HandlerFactory interface {
	New(c net.Conn, done <-chan struct{})
}

type Listener struct {
	handler HandlerFactory
	addr    string

	listener net.Listener
	done     chan struct{}
	accepted chan struct{}
	finished chan struct{}
	handlers sync.WaitGroup
}

func NewListener(port int, handler HandlerFactory) *Listener {
	return NewListenerForAddr(fmt.Sprintf(":%d", port), handler)
}

func NewListenerForAddr(addr string, handler HandlerFactory) *Listener {
	l := &Listener{
		handler: handler,
		addr:    addr,

		done:     make(chan struct{}),
		accepted: make(chan struct{}),
		finished: make(chan struct{}),
	}
	return l
}

func (l *Listener) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return err
	}

	l.listener = listener
	go l.listen()
	go func() {
		<-l.accepted
		l.handlers.Wait()
		close(l.finished)
	}()
	return nil
}

func (l *Listener) listen() {
	defer close(l.accepted)
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			return
		}
		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			l.handler.New(conn, l.done)
		}()
	}
}

func (l *Listener) Address() net.Addr {
	return l.listener.Addr()
}

// Close stops accepting and signals every running handler to finish.
func (l *Listener) Close() error {
	close(l.done)
	err := l.listener.Close()
	<-l.accepted
	return err
}

// Done is closed once Close was called and every handler has returned.
func (l *Listener) Done() <-chan struct{} {
	return l.finished
}
