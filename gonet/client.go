package gonet

import (
	"context"
	"net"
)

// Dial connects to addr and wraps the connection. The result is not
// activated; hand it to session.New.
func Dial(ctx context.Context, network, addr string, opts ...ConnOption) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, opts...), nil
}
