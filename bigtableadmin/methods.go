// Package bigtableadmin provides typed long-running operation definitions for the Bigtable Instance Admin API and
// a [Client] that submits them through an [lro.Tracker].
package bigtableadmin

import (
	"context"
	"errors"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"github.com/bigtable-lro/sdk-go/lro"
)

const service = "/google.bigtable.admin.v2.BigtableInstanceAdmin/"

var (
	CreateInstance = lro.Method[*adminpb.CreateInstanceRequest, *adminpb.CreateInstanceMetadata, *adminpb.Instance](
		service + "CreateInstance")
	CreateCluster = lro.Method[*adminpb.CreateClusterRequest, *adminpb.CreateClusterMetadata, *adminpb.Cluster](
		service + "CreateCluster")
	PartialUpdateInstance = lro.Method[*adminpb.PartialUpdateInstanceRequest, *adminpb.UpdateInstanceMetadata, *adminpb.Instance](
		service + "PartialUpdateInstance")
	UpdateCluster = lro.Method[*adminpb.Cluster, *adminpb.UpdateClusterMetadata, *adminpb.Cluster](
		service + "UpdateCluster")
	PartialUpdateCluster = lro.Method[*adminpb.PartialUpdateClusterRequest, *adminpb.PartialUpdateClusterMetadata, *adminpb.Cluster](
		service + "PartialUpdateCluster")
	UpdateAppProfile = lro.Method[*adminpb.UpdateAppProfileRequest, *adminpb.UpdateAppProfileMetadata, *adminpb.AppProfile](
		service + "UpdateAppProfile")
)

type (
	InstanceHandle             = lro.OperationHandle[*adminpb.CreateInstanceMetadata, *adminpb.Instance]
	ClusterHandle              = lro.OperationHandle[*adminpb.CreateClusterMetadata, *adminpb.Cluster]
	InstanceUpdateHandle       = lro.OperationHandle[*adminpb.UpdateInstanceMetadata, *adminpb.Instance]
	ClusterUpdateHandle        = lro.OperationHandle[*adminpb.UpdateClusterMetadata, *adminpb.Cluster]
	ClusterPartialUpdateHandle = lro.OperationHandle[*adminpb.PartialUpdateClusterMetadata, *adminpb.Cluster]
	AppProfileUpdateHandle     = lro.OperationHandle[*adminpb.UpdateAppProfileMetadata, *adminpb.AppProfile]
)

// A Client submits Instance Admin operations for a single project.
type Client struct {
	tracker *lro.Tracker
	project string
}

// NewClient creates a [Client] for project. project may be a bare id or a projects/ prefixed name.
func NewClient(tracker *lro.Tracker, project string) (*Client, error) {
	var errs []error
	if tracker == nil {
		errs = append(errs, errors.New("nil tracker"))
	}
	if project == "" {
		errs = append(errs, errors.New("empty project"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Client{tracker: tracker, project: projectID(project)}, nil
}

// Project returns the bare project id.
func (c *Client) Project() string {
	return c.project
}

// Tracker returns the tracker operations are submitted through.
func (c *Client) Tracker() *lro.Tracker {
	return c.tracker
}

// CreateInstance starts creating instance id with the given configuration.
func (c *Client) CreateInstance(ctx context.Context, id string, config InstanceConfig) (*InstanceHandle, error) {
	request, err := config.request(c.project, id)
	if err != nil {
		return nil, err
	}
	return lro.Submit(ctx, c.tracker, CreateInstance, request)
}

// CreateCluster starts adding cluster id to instance.
func (c *Client) CreateCluster(ctx context.Context, instance, id string, config ClusterConfig) (*ClusterHandle, error) {
	if id == "" {
		return nil, errors.New("empty cluster id")
	}
	cluster, err := config.Proto(c.project)
	if err != nil {
		return nil, err
	}
	return lro.Submit(ctx, c.tracker, CreateCluster, &adminpb.CreateClusterRequest{
		Parent:    InstanceName(c.project, instance),
		ClusterId: id,
		Cluster:   cluster,
	})
}

// UpdateInstance starts a partial update of instance covering only the fields set in update.
func (c *Client) UpdateInstance(ctx context.Context, instance string, update InstanceUpdate) (*InstanceUpdateHandle, error) {
	request, err := update.request(InstanceName(c.project, instance))
	if err != nil {
		return nil, err
	}
	return lro.Submit(ctx, c.tracker, PartialUpdateInstance, request)
}

// ReplaceCluster starts a full update of cluster. config must name either serve nodes or the complete autoscaling
// configuration.
func (c *Client) ReplaceCluster(ctx context.Context, instance, cluster string, config ClusterConfig) (*ClusterUpdateHandle, error) {
	request, err := config.Proto(c.project)
	if err != nil {
		return nil, err
	}
	request.Name = ClusterName(c.project, instance, cluster)
	return lro.Submit(ctx, c.tracker, UpdateCluster, request)
}

// UpdateCluster starts a partial update of cluster scaling covering only the fields set in update.
func (c *Client) UpdateCluster(ctx context.Context, instance, cluster string, update ClusterUpdate) (*ClusterPartialUpdateHandle, error) {
	request, err := update.request(ClusterName(c.project, instance, cluster))
	if err != nil {
		return nil, err
	}
	return lro.Submit(ctx, c.tracker, PartialUpdateCluster, request)
}

// UpdateAppProfile starts updating profile covering only the fields set in update.
func (c *Client) UpdateAppProfile(ctx context.Context, instance, profile string, update AppProfileUpdate) (*AppProfileUpdateHandle, error) {
	request, err := update.request(AppProfileName(c.project, instance, profile))
	if err != nil {
		return nil, err
	}
	return lro.Submit(ctx, c.tracker, UpdateAppProfile, request)
}
