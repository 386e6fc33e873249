package lro

import (
	"testing"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/anypb"
)

type instanceSnapshot = snapshot[*adminpb.CreateInstanceMetadata, *adminpb.Instance]

func decodeInstance(op *longrunningpb.Operation) (*instanceSnapshot, error) {
	return decodeOperation[*adminpb.CreateInstanceMetadata, *adminpb.Instance](op)
}

func TestDecode_ExactlyOneResultBranch(t *testing.T) {
	s, err := decodeInstance(succeededOp(t, &adminpb.Instance{DisplayName: "prod-1"}))
	require.NoError(t, err)
	require.True(t, s.done)
	require.True(t, s.result.Succeeded())
	require.Nil(t, s.result.Failure())
	require.Equal(t, "prod-1", s.result.Value().GetDisplayName())

	s, err = decodeInstance(failedOp(t, codes.ResourceExhausted, "quota exceeded"))
	require.NoError(t, err)
	require.False(t, s.result.Succeeded())
	require.Nil(t, s.result.Value())
	require.Equal(t, codes.ResourceExhausted, s.result.Failure().Code)

	s, err = decodeInstance(pendingOp(t))
	require.NoError(t, err)
	require.False(t, s.done)
	require.Nil(t, s.result)
}

func TestDecode_InvariantViolations(t *testing.T) {
	doneWithoutResult := pendingOp(t)
	doneWithoutResult.Done = true

	errorNotDone := failedOp(t, codes.Internal, "boom")
	errorNotDone.Done = false

	responseNotDone := succeededOp(t, &adminpb.Instance{})
	responseNotDone.Done = false

	for name, op := range map[string]*longrunningpb.Operation{
		"done without result": doneWithoutResult,
		"error not done":      errorNotDone,
		"response not done":   responseNotDone,
		"no name":             {Done: false},
		"nil":                 nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeInstance(op)
			var unexpected *UnexpectedResponseError
			require.ErrorAs(t, err, &unexpected)
		})
	}
}

func TestDecode_WrongPayloadType(t *testing.T) {
	op := pendingOp(t)
	op.Done = true
	op.Result = &longrunningpb.Operation_Response{Response: mustAny(t, &adminpb.Cluster{Name: "c"})}
	_, err := decodeInstance(op)
	require.ErrorContains(t, err, "failed to decode response")
}

func TestDecode_SnapshotIsIsolatedFromInput(t *testing.T) {
	op := pendingOp(t)
	s, err := decodeInstance(op)
	require.NoError(t, err)
	op.Name = "mutated"
	require.Equal(t, testOperationName, s.raw.GetName())
}

func TestStatus_KeepsDetails(t *testing.T) {
	detail, err := anypb.New(&errdetails.QuotaFailure{
		Violations: []*errdetails.QuotaFailure_Violation{{Subject: "projects/p", Description: "nodes"}},
	})
	require.NoError(t, err)
	s := statusFromProto(&rpcstatus.Status{Code: int32(codes.ResourceExhausted), Message: "quota exceeded", Details: []*anypb.Any{detail}})
	require.Len(t, s.Details, 1)

	grpcStatus := s.GRPCStatus()
	require.Equal(t, codes.ResourceExhausted, grpcStatus.Code())
	details := grpcStatus.Details()
	require.Len(t, details, 1)
	quota, ok := details[0].(*errdetails.QuotaFailure)
	require.True(t, ok)
	require.Equal(t, "nodes", quota.GetViolations()[0].GetDescription())
}
