package lro

import (
	"context"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// Transport is the low-level abstraction used by [Tracker] and [OperationHandle] to make network calls.
//
// Each method issues exactly one call attempt; retries are the caller's decision. Implementations must be safe for
// concurrent use and must embed [UnimplementedTransport] for future compatibility.
type Transport interface {
	// StartOperation invokes the given full gRPC method (e.g.
	// "/google.bigtable.admin.v2.BigtableInstanceAdmin/CreateInstance") and returns the Operation the server
	// created. The returned operation may already be done.
	StartOperation(ctx context.Context, method string, request proto.Message) (*longrunningpb.Operation, error)
	// GetOperation fetches the latest state of the named operation.
	GetOperation(ctx context.Context, name string) (*longrunningpb.Operation, error)
	// CancelOperation requests cancellation of the named operation.
	//
	// Cancelation is asynchronous and may be not be respected by the server.
	CancelOperation(ctx context.Context, name string) error
	// DeleteOperation tells the server the client is no longer interested in the operation result.
	DeleteOperation(ctx context.Context, name string) error
	// Close this Transport and release any underlying resources.
	Close() error

	mustEmbedUnimplementedTransport()
}

// UnimplementedTransport must be embedded into any [Transport] implementation for future compatibility.
// It implements all methods on the [Transport] interface, returning Unimplemented errors if they are not implemented
// by the embedding type.
type UnimplementedTransport struct{}

func (UnimplementedTransport) mustEmbedUnimplementedTransport() {}

func (UnimplementedTransport) StartOperation(context.Context, string, proto.Message) (*longrunningpb.Operation, error) {
	return nil, status.Error(codes.Unimplemented, "StartOperation not implemented")
}

func (UnimplementedTransport) GetOperation(context.Context, string) (*longrunningpb.Operation, error) {
	return nil, status.Error(codes.Unimplemented, "GetOperation not implemented")
}

func (UnimplementedTransport) CancelOperation(context.Context, string) error {
	return status.Error(codes.Unimplemented, "CancelOperation not implemented")
}

func (UnimplementedTransport) DeleteOperation(context.Context, string) error {
	return status.Error(codes.Unimplemented, "DeleteOperation not implemented")
}

func (UnimplementedTransport) Close() error {
	return nil
}
