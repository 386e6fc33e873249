// Package lrogrpc implements [lro.Transport] over gRPC.
//
// Operations are started by invoking the admin method that creates them directly on the connection, so any
// method returning google.longrunning.Operation can be tracked without a generated client. Status, cancel and delete
// calls go to the google.longrunning.Operations service on the same connection.
package lrogrpc

import (
	"context"
	"errors"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/lro"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

// User-Agent set on outgoing calls.
const userAgent = "btlro-go-sdk/" + version

type (
	// TransportOptions are options for creating a [Transport].
	TransportOptions struct {
		// Call options applied to every RPC.
		CallOptions []grpc.CallOption
		// Metadata appended to the outgoing context of every RPC, e.g. x-goog-request-params routing headers.
		Metadata metadata.MD
		// Defaults to a no-op logger.
		Logger *zap.Logger
	}

	// A Transport makes long-running operation calls over a gRPC connection.
	Transport struct {
		lro.UnimplementedTransport

		options    TransportOptions
		conn       grpc.ClientConnInterface
		operations longrunningpb.OperationsClient
		// Set when the transport dialed conn itself.
		closer func() error
	}
)

var errNilConn = errors.New("nil connection")

// NewTransport creates a new [Transport] on top of conn. The caller keeps ownership of conn; Close does not close it.
func NewTransport(conn grpc.ClientConnInterface, options TransportOptions) (*Transport, error) {
	if conn == nil {
		return nil, errNilConn
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Transport{
		options:    options,
		conn:       conn,
		operations: longrunningpb.NewOperationsClient(conn),
	}, nil
}

// Dial connects to target and returns a [Transport] that owns the connection.
func Dial(target string, options TransportOptions, dialOptions ...grpc.DialOption) (*Transport, error) {
	dialOptions = append([]grpc.DialOption{grpc.WithUserAgent(userAgent)}, dialOptions...)
	conn, err := grpc.NewClient(target, dialOptions...)
	if err != nil {
		return nil, err
	}
	t, err := NewTransport(conn, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	t.closer = conn.Close
	return t, nil
}

func (t *Transport) outgoing(ctx context.Context) context.Context {
	if len(t.options.Metadata) == 0 {
		return ctx
	}
	kv := make([]string, 0, 2*t.options.Metadata.Len())
	for k, vs := range t.options.Metadata {
		for _, v := range vs {
			kv = append(kv, k, v)
		}
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// StartOperation implements [lro.Transport].
func (t *Transport) StartOperation(ctx context.Context, method string, request proto.Message) (*longrunningpb.Operation, error) {
	op := &longrunningpb.Operation{}
	if err := t.conn.Invoke(t.outgoing(ctx), method, request, op, t.options.CallOptions...); err != nil {
		t.options.Logger.Debug("start operation failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	return op, nil
}

// GetOperation implements [lro.Transport].
func (t *Transport) GetOperation(ctx context.Context, name string) (*longrunningpb.Operation, error) {
	return t.operations.GetOperation(t.outgoing(ctx), &longrunningpb.GetOperationRequest{Name: name}, t.options.CallOptions...)
}

// CancelOperation implements [lro.Transport].
func (t *Transport) CancelOperation(ctx context.Context, name string) error {
	_, err := t.operations.CancelOperation(t.outgoing(ctx), &longrunningpb.CancelOperationRequest{Name: name}, t.options.CallOptions...)
	return err
}

// DeleteOperation implements [lro.Transport].
func (t *Transport) DeleteOperation(ctx context.Context, name string) error {
	_, err := t.operations.DeleteOperation(t.outgoing(ctx), &longrunningpb.DeleteOperationRequest{Name: name}, t.options.CallOptions...)
	return err
}

// ListOperations lists operations under name matching filter, following page tokens until exhausted.
func (t *Transport) ListOperations(ctx context.Context, name string, filter string) ([]*longrunningpb.Operation, error) {
	var ops []*longrunningpb.Operation
	request := &longrunningpb.ListOperationsRequest{Name: name, Filter: filter}
	for {
		resp, err := t.operations.ListOperations(t.outgoing(ctx), request, t.options.CallOptions...)
		if err != nil {
			return nil, err
		}
		ops = append(ops, resp.GetOperations()...)
		if resp.GetNextPageToken() == "" {
			return ops, nil
		}
		request.PageToken = resp.GetNextPageToken()
	}
}

// Close implements [lro.Transport]. It closes the connection only if it was created by [Dial].
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer()
}
