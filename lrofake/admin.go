package lrofake

import (
	"context"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/bigtableadmin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// adminService implements the Instance Admin methods that return operations. All other methods are unimplemented.
type adminService struct {
	adminpb.UnimplementedBigtableInstanceAdminServer
	server *Server
}

func (a *adminService) now() *timestamppb.Timestamp {
	return timestamppb.New(a.server.options.Now())
}

func (a *adminService) CreateInstance(ctx context.Context, request *adminpb.CreateInstanceRequest) (*longrunningpb.Operation, error) {
	if request.GetParent() == "" || request.GetInstanceId() == "" {
		return nil, status.Error(codes.InvalidArgument, "parent and instance_id are required")
	}
	if len(request.GetClusters()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one cluster is required")
	}
	instance := cloneOrNew(request.GetInstance())
	instance.Name = request.GetParent() + "/instances/" + request.GetInstanceId()
	instance.State = adminpb.Instance_READY
	metadata := &adminpb.CreateInstanceMetadata{OriginalRequest: request, RequestTime: a.now()}
	return a.server.start(bigtableadmin.CreateInstance.FullName(), request, instance.GetName(), instance, metadata,
		func(ts *timestamppb.Timestamp) { metadata.FinishTime = ts })
}

func (a *adminService) CreateCluster(ctx context.Context, request *adminpb.CreateClusterRequest) (*longrunningpb.Operation, error) {
	if request.GetParent() == "" || request.GetClusterId() == "" {
		return nil, status.Error(codes.InvalidArgument, "parent and cluster_id are required")
	}
	cluster := cloneOrNew(request.GetCluster())
	cluster.Name = request.GetParent() + "/clusters/" + request.GetClusterId()
	cluster.State = adminpb.Cluster_READY
	metadata := &adminpb.CreateClusterMetadata{OriginalRequest: request, RequestTime: a.now()}
	return a.server.start(bigtableadmin.CreateCluster.FullName(), request, cluster.GetName(), cluster, metadata,
		func(ts *timestamppb.Timestamp) { metadata.FinishTime = ts })
}

func (a *adminService) PartialUpdateInstance(ctx context.Context, request *adminpb.PartialUpdateInstanceRequest) (*longrunningpb.Operation, error) {
	if request.GetInstance().GetName() == "" {
		return nil, status.Error(codes.InvalidArgument, "instance.name is required")
	}
	if len(request.GetUpdateMask().GetPaths()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "update_mask is required")
	}
	instance := cloneOrNew(request.GetInstance())
	instance.State = adminpb.Instance_READY
	metadata := &adminpb.UpdateInstanceMetadata{OriginalRequest: request, RequestTime: a.now()}
	return a.server.start(bigtableadmin.PartialUpdateInstance.FullName(), request, instance.GetName(), instance, metadata,
		func(ts *timestamppb.Timestamp) { metadata.FinishTime = ts })
}

func (a *adminService) UpdateCluster(ctx context.Context, request *adminpb.Cluster) (*longrunningpb.Operation, error) {
	if request.GetName() == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	cluster := cloneOrNew(request)
	cluster.State = adminpb.Cluster_READY
	metadata := &adminpb.UpdateClusterMetadata{OriginalRequest: request, RequestTime: a.now()}
	return a.server.start(bigtableadmin.UpdateCluster.FullName(), request, cluster.GetName(), cluster, metadata,
		func(ts *timestamppb.Timestamp) { metadata.FinishTime = ts })
}

func (a *adminService) PartialUpdateCluster(ctx context.Context, request *adminpb.PartialUpdateClusterRequest) (*longrunningpb.Operation, error) {
	if request.GetCluster().GetName() == "" {
		return nil, status.Error(codes.InvalidArgument, "cluster.name is required")
	}
	if len(request.GetUpdateMask().GetPaths()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "update_mask is required")
	}
	cluster := cloneOrNew(request.GetCluster())
	cluster.State = adminpb.Cluster_READY
	metadata := &adminpb.PartialUpdateClusterMetadata{OriginalRequest: request, RequestTime: a.now()}
	return a.server.start(bigtableadmin.PartialUpdateCluster.FullName(), request, cluster.GetName(), cluster, metadata,
		func(ts *timestamppb.Timestamp) { metadata.FinishTime = ts })
}

func (a *adminService) UpdateAppProfile(ctx context.Context, request *adminpb.UpdateAppProfileRequest) (*longrunningpb.Operation, error) {
	if request.GetAppProfile().GetName() == "" {
		return nil, status.Error(codes.InvalidArgument, "app_profile.name is required")
	}
	if len(request.GetUpdateMask().GetPaths()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "update_mask is required")
	}
	profile := cloneOrNew(request.GetAppProfile())
	return a.server.start(bigtableadmin.UpdateAppProfile.FullName(), request, profile.GetName(), profile,
		&adminpb.UpdateAppProfileMetadata{}, nil)
}

// cloneOrNew returns a deep copy of m, or a new empty message if m is nil.
func cloneOrNew[T proto.Message](m T) T {
	reflected := m.ProtoReflect()
	if !reflected.IsValid() {
		return reflected.Type().New().Interface().(T)
	}
	return proto.Clone(m).(T)
}
