package lro

import (
	"fmt"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// snapshot is a decoded view of a single fetched Operation.
type snapshot[M, R proto.Message] struct {
	done     bool
	metadata M
	result   *Result[R]
	raw      *longrunningpb.Operation
}

// decodeOperation unpacks op into typed metadata and result, enforcing the done/result invariants.
func decodeOperation[M, R proto.Message](op *longrunningpb.Operation) (*snapshot[M, R], error) {
	if op == nil {
		return nil, newUnexpectedResponseError("nil operation in response")
	}
	if op.GetName() == "" {
		return nil, newUnexpectedResponseError("operation without a name")
	}
	op = proto.Clone(op).(*longrunningpb.Operation)
	metadata, err := unpack[M](op.GetMetadata())
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata of %s: %w", op.GetName(), err)
	}
	s := &snapshot[M, R]{
		done:     op.GetDone(),
		metadata: metadata,
		raw:      op,
	}

	switch result := op.GetResult().(type) {
	case nil:
		if op.GetDone() {
			return nil, newUnexpectedResponseError("operation %s is done without a result", op.GetName())
		}
	case *longrunningpb.Operation_Error:
		if !op.GetDone() {
			return nil, newUnexpectedResponseError("operation %s has an error but is not done", op.GetName())
		}
		s.result = failed[R](op.GetName(), statusFromProto(result.Error))
	case *longrunningpb.Operation_Response:
		if !op.GetDone() {
			return nil, newUnexpectedResponseError("operation %s has a response but is not done", op.GetName())
		}
		value, err := unpack[R](result.Response)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response of %s: %w", op.GetName(), err)
		}
		s.result = succeeded(op.GetName(), value)
	default:
		return nil, newUnexpectedResponseError("operation %s has an unknown result type %T", op.GetName(), result)
	}
	return s, nil
}

// unpack decodes a into a new T. A nil a yields the zero T. When T is *anypb.Any the value is passed through
// untouched, which is how untyped handles keep payloads opaque.
func unpack[T proto.Message](a *anypb.Any) (T, error) {
	var zero T
	if a == nil {
		return zero, nil
	}
	if v, ok := any(a).(T); ok {
		return v, nil
	}
	msg := zero.ProtoReflect().Type().New().Interface()
	if err := a.UnmarshalTo(msg); err != nil {
		return zero, err
	}
	return msg.(T), nil
}
