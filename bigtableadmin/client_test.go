package bigtableadmin_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"github.com/bigtable-lro/sdk-go/bigtableadmin"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/bigtable-lro/sdk-go/lrofake"
	"github.com/bigtable-lro/sdk-go/lrogrpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

const testTimeout = time.Second * 5

var awaitOptions = lro.AwaitOptions{PollInterval: time.Millisecond, Multiplier: 1, Timeout: testTimeout}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setup(t *testing.T, planner lrofake.Planner) (ctx context.Context, client *bigtableadmin.Client, server *lrofake.Server, teardown func()) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)

	server = lrofake.NewServer(lrofake.Options{Planner: planner})
	conn, err := server.ServeInProcess()
	require.NoError(t, err)
	transport, err := lrogrpc.NewTransport(conn, lrogrpc.TransportOptions{})
	require.NoError(t, err)
	tracker, err := lro.NewTracker(lro.TrackerOptions{Transport: transport})
	require.NoError(t, err)
	client, err = bigtableadmin.NewClient(tracker, "projects/p")
	require.NoError(t, err)

	return ctx, client, server, func() {
		cancel()
		require.NoError(t, tracker.Close())
		require.NoError(t, conn.Close())
		server.Stop()
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := bigtableadmin.NewClient(nil, "")
	require.ErrorContains(t, err, "nil tracker")
	require.ErrorContains(t, err, "empty project")
}

func TestCreateInstance(t *testing.T) {
	ctx, client, server, teardown := setup(t, nil)
	defer teardown()

	handle, err := client.CreateInstance(ctx, "prod-1", bigtableadmin.InstanceConfig{
		DisplayName: "Production",
		Type:        "production",
		Clusters: map[string]bigtableadmin.ClusterConfig{
			"prod-1-c1": {Scaling: bigtableadmin.Scaling{ServeNodes: 3}, Location: "us-central1-b", Storage: "ssd"},
		},
	})
	require.NoError(t, err)
	require.False(t, handle.Done())
	require.Equal(t, "prod-1", handle.Metadata().GetOriginalRequest().GetInstanceId())

	instance, err := handle.Await(ctx, awaitOptions)
	require.NoError(t, err)
	require.Equal(t, "projects/p/instances/prod-1", instance.GetName())
	require.Equal(t, adminpb.Instance_READY, instance.GetState())
	require.Equal(t, "Production", instance.GetDisplayName())
	require.Equal(t, lro.StateSucceeded, handle.State())
	require.NotNil(t, handle.Metadata().GetFinishTime())
	require.Equal(t, 3, server.Polls(handle.Name))
}

func TestCreateCluster_Failure(t *testing.T) {
	ctx, client, _, teardown := setup(t, func(method string, request proto.Message) lrofake.Plan {
		return lrofake.Plan{PendingPolls: 1, Failure: status.New(codes.ResourceExhausted, "quota exceeded")}
	})
	defer teardown()

	handle, err := client.CreateCluster(ctx, "prod-1", "c2", bigtableadmin.ClusterConfig{
		Scaling:  bigtableadmin.Scaling{MinServeNodes: 1, MaxServeNodes: 4, CPUUtilizationPercent: 50},
		Location: "us-east1-c",
	})
	require.NoError(t, err)
	_, err = handle.Await(ctx, awaitOptions)
	var operationErr *lro.OperationError
	require.ErrorAs(t, err, &operationErr)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
	require.Equal(t, lro.StateFailed, handle.State())
}

func TestUpdateCluster_Synchronous(t *testing.T) {
	ctx, client, server, teardown := setup(t, func(method string, request proto.Message) lrofake.Plan {
		if method != bigtableadmin.PartialUpdateCluster.FullName() {
			return lrofake.Plan{Reject: status.Errorf(codes.Unimplemented, "unexpected method %s", method)}
		}
		return lrofake.Plan{Synchronous: true}
	})
	defer teardown()

	handle, err := client.UpdateCluster(ctx, "prod-1", "c1", bigtableadmin.ClusterUpdate{ServeNodes: 5})
	require.NoError(t, err)
	require.True(t, handle.Done())
	cluster, err := handle.Await(ctx, awaitOptions)
	require.NoError(t, err)
	require.Equal(t, int32(5), cluster.GetServeNodes())
	require.Equal(t, 0, server.Polls(handle.Name))
}

func TestReplaceCluster(t *testing.T) {
	ctx, client, _, teardown := setup(t, nil)
	defer teardown()

	handle, err := client.ReplaceCluster(ctx, "prod-1", "c1", bigtableadmin.ClusterConfig{Scaling: bigtableadmin.Scaling{ServeNodes: 4}})
	require.NoError(t, err)
	cluster, err := handle.Await(ctx, awaitOptions)
	require.NoError(t, err)
	require.Equal(t, "projects/p/instances/prod-1/clusters/c1", cluster.GetName())
}

func TestUpdateInstanceAndAppProfile(t *testing.T) {
	ctx, client, _, teardown := setup(t, nil)
	defer teardown()

	instanceHandle, err := client.UpdateInstance(ctx, "prod-1", bigtableadmin.InstanceUpdate{DisplayName: "Renamed"})
	require.NoError(t, err)
	instance, err := instanceHandle.Await(ctx, awaitOptions)
	require.NoError(t, err)
	require.Equal(t, "Renamed", instance.GetDisplayName())

	profileHandle, err := client.UpdateAppProfile(ctx, "prod-1", "batch", bigtableadmin.AppProfileUpdate{Routing: "c1"})
	require.NoError(t, err)
	profile, err := profileHandle.Await(ctx, awaitOptions)
	require.NoError(t, err)
	require.Equal(t, "c1", profile.GetSingleClusterRouting().GetClusterId())
}

func TestSubmit_Rejected(t *testing.T) {
	ctx, client, server, teardown := setup(t, func(string, proto.Message) lrofake.Plan {
		return lrofake.Plan{Reject: status.Error(codes.AlreadyExists, "instance exists")}
	})
	defer teardown()

	_, err := client.CreateInstance(ctx, "prod-1", bigtableadmin.InstanceConfig{
		Clusters: map[string]bigtableadmin.ClusterConfig{"c1": {Scaling: bigtableadmin.Scaling{ServeNodes: 1}}},
	})
	var submissionErr *lro.SubmissionError
	require.ErrorAs(t, err, &submissionErr)
	require.Equal(t, codes.AlreadyExists, status.Code(submissionErr.Cause))
	require.Empty(t, server.Names())
}
