package bigtableadmin

import (
	"errors"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

var (
	ErrNoScalingConfig = errors.New("must specify either serve_nodes or all of the autoscaling configurations " +
		"(min_serve_nodes, max_serve_nodes, and cpu_utilization_percent)")
	ErrConflictingScalingConfig = errors.New("cannot specify both serve_nodes and autoscaling configurations " +
		"(min_serve_nodes, max_serve_nodes, and cpu_utilization_percent)")
	ErrIncompleteAutoscalingConfig = errors.New("all of autoscaling configurations must be specified at the same time " +
		"(min_serve_nodes, max_serve_nodes, and cpu_utilization_percent)")
)

// Update mask paths of a partial cluster update.
const (
	maskServeNodes        = "serve_nodes"
	maskAutoscaling       = "cluster_config.cluster_autoscaling_config"
	maskMinServeNodes     = maskAutoscaling + ".autoscaling_limits.min_serve_nodes"
	maskMaxServeNodes     = maskAutoscaling + ".autoscaling_limits.max_serve_nodes"
	maskCPUUtilizationPct = maskAutoscaling + ".autoscaling_targets.cpu_utilization_percent"
)

// Scaling is the node allocation of a cluster: either a fixed number of serve nodes or autoscaling between two
// bounds towards a CPU target.
type Scaling struct {
	ServeNodes            int32
	MinServeNodes         int32
	MaxServeNodes         int32
	CPUUtilizationPercent int32
}

func (s Scaling) autoscaling() bool {
	return s.MinServeNodes != 0 || s.MaxServeNodes != 0 || s.CPUUtilizationPercent != 0
}

// Validate checks that exactly one of serve nodes or the complete autoscaling configuration is set.
func (s Scaling) Validate() error {
	switch {
	case s.ServeNodes != 0 && s.autoscaling():
		return ErrConflictingScalingConfig
	case s.ServeNodes != 0:
		return nil
	case !s.autoscaling():
		return ErrNoScalingConfig
	case s.MinServeNodes == 0 || s.MaxServeNodes == 0 || s.CPUUtilizationPercent == 0:
		return ErrIncompleteAutoscalingConfig
	}
	return nil
}

func (s Scaling) apply(cluster *adminpb.Cluster) {
	if s.ServeNodes != 0 {
		cluster.ServeNodes = s.ServeNodes
	}
	if !s.autoscaling() {
		return
	}
	cluster.Config = &adminpb.Cluster_ClusterConfig_{
		ClusterConfig: &adminpb.Cluster_ClusterConfig{
			ClusterAutoscalingConfig: &adminpb.Cluster_ClusterAutoscalingConfig{
				AutoscalingLimits: &adminpb.AutoscalingLimits{
					MinServeNodes: s.MinServeNodes,
					MaxServeNodes: s.MaxServeNodes,
				},
				AutoscalingTargets: &adminpb.AutoscalingTargets{
					CpuUtilizationPercent: s.CPUUtilizationPercent,
				},
			},
		},
	}
}

// ClusterConfig describes a cluster to create or replace.
type ClusterConfig struct {
	Scaling
	// Zone id such as us-central1-b, or a full location name.
	Location string
	// "ssd" or "hdd". Left unspecified otherwise.
	Storage string
	// Cloud KMS key used for customer managed encryption.
	KMSKeyName string
}

// Proto builds the cluster message for config. Location is expanded relative to project.
func (c ClusterConfig) Proto(project string) (*adminpb.Cluster, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cluster := &adminpb.Cluster{DefaultStorageType: StorageType(c.Storage)}
	if c.Location != "" {
		cluster.Location = LocationName(project, c.Location)
	}
	c.Scaling.apply(cluster)
	if c.KMSKeyName != "" {
		cluster.EncryptionConfig = &adminpb.Cluster_EncryptionConfig{KmsKeyName: c.KMSKeyName}
	}
	return cluster, nil
}

// ClusterUpdate changes the scaling of an existing cluster. Only set fields are sent.
type ClusterUpdate Scaling

// UpdateMask returns the field paths covered by u. Setting only serve nodes also clears autoscaling.
func (u ClusterUpdate) UpdateMask() []string {
	var paths []string
	if u.ServeNodes != 0 {
		paths = append(paths, maskServeNodes)
		if !Scaling(u).autoscaling() {
			paths = append(paths, maskAutoscaling)
		}
	}
	if u.MinServeNodes != 0 {
		paths = append(paths, maskMinServeNodes)
	}
	if u.MaxServeNodes != 0 {
		paths = append(paths, maskMaxServeNodes)
	}
	if u.CPUUtilizationPercent != 0 {
		paths = append(paths, maskCPUUtilizationPct)
	}
	return paths
}

func (u ClusterUpdate) request(name string) (*adminpb.PartialUpdateClusterRequest, error) {
	paths := u.UpdateMask()
	if len(paths) == 0 {
		return nil, ErrNoScalingConfig
	}
	if u.ServeNodes != 0 && Scaling(u).autoscaling() {
		return nil, ErrConflictingScalingConfig
	}
	cluster := &adminpb.Cluster{Name: name}
	Scaling(u).apply(cluster)
	return &adminpb.PartialUpdateClusterRequest{
		Cluster:    cluster,
		UpdateMask: &fieldmaskpb.FieldMask{Paths: paths},
	}, nil
}
