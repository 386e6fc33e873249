package lro

import (
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// Status is the failure reported by a completed operation.
type Status struct {
	Code    codes.Code
	Message string
	// Structured error details, such as google.rpc.ErrorInfo or google.rpc.QuotaFailure.
	Details []*anypb.Any
}

func statusFromProto(s *status.Status) *Status {
	details := make([]*anypb.Any, 0, len(s.GetDetails()))
	for _, d := range s.GetDetails() {
		details = append(details, proto.Clone(d).(*anypb.Any))
	}
	return &Status{
		Code:    codes.Code(s.GetCode()),
		Message: s.GetMessage(),
		Details: details,
	}
}

// Proto converts s back to its wire representation.
func (s *Status) Proto() *status.Status {
	return &status.Status{
		Code:    int32(s.Code),
		Message: s.Message,
		Details: s.Details,
	}
}

// GRPCStatus converts s to a gRPC status.
func (s *Status) GRPCStatus() *grpcstatus.Status {
	return grpcstatus.FromProto(s.Proto())
}

// Result is the outcome of a completed operation. One and only one of the success payload or the failure status is
// populated; the zero value is never handed out.
type Result[R proto.Message] struct {
	name    string
	value   R
	failure *Status
}

func succeeded[R proto.Message](name string, value R) *Result[R] {
	return &Result[R]{name: name, value: value}
}

func failed[R proto.Message](name string, failure *Status) *Result[R] {
	return &Result[R]{name: name, failure: failure}
}

// Succeeded reports whether the operation completed successfully.
func (r *Result[R]) Succeeded() bool {
	return r.failure == nil
}

// Value returns the success payload, or the zero R if the operation failed.
func (r *Result[R]) Value() R {
	return r.value
}

// Failure returns the failure status, or nil if the operation succeeded.
func (r *Result[R]) Failure() *Status {
	return r.failure
}

// Get returns the success payload or an [OperationError] built from the failure status.
func (r *Result[R]) Get() (R, error) {
	if r.failure != nil {
		var zero R
		return zero, &OperationError{Name: r.name, Status: r.failure}
	}
	return r.value, nil
}
