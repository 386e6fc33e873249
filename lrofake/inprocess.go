package lrofake

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufferSize = 1 << 20

// ServeInProcess serves s on an in-memory listener and returns a client connection to it.
// Close the connection and call [Server.Stop] when done.
func (s *Server) ServeInProcess() (*grpc.ClientConn, error) {
	listener := bufconn.Listen(bufferSize)
	go func() {
		_ = s.Serve(listener)
	}()
	conn, err := grpc.NewClient("passthrough:///lrofake",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		s.Stop()
		return nil, err
	}
	return conn, nil
}
