package bigtableadmin

import (
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

var errNoUpdateFields = errors.New("no fields to update")

// InstanceConfig describes an instance to create.
type InstanceConfig struct {
	// Defaults to the instance id.
	DisplayName string
	// "production" or "development". Left unspecified otherwise.
	Type   string
	Labels map[string]string
	// Clusters to create with the instance, keyed by cluster id. At least one is required.
	Clusters map[string]ClusterConfig
}

func (c InstanceConfig) request(project, id string) (*adminpb.CreateInstanceRequest, error) {
	if id == "" {
		return nil, errors.New("empty instance id")
	}
	if len(c.Clusters) == 0 {
		return nil, errors.New("at least one cluster is required")
	}
	displayName := c.DisplayName
	if displayName == "" {
		displayName = id
	}
	request := &adminpb.CreateInstanceRequest{
		Parent:     ProjectName(project),
		InstanceId: id,
		Instance: &adminpb.Instance{
			DisplayName: displayName,
			Type:        InstanceType(c.Type),
			Labels:      c.Labels,
		},
		Clusters: make(map[string]*adminpb.Cluster, len(c.Clusters)),
	}
	ids := make([]string, 0, len(c.Clusters))
	for clusterID := range c.Clusters {
		ids = append(ids, clusterID)
	}
	sort.Strings(ids)
	var errs []error
	for _, clusterID := range ids {
		if clusterID == "" {
			errs = append(errs, errors.New("a cluster was provided without an id"))
			continue
		}
		cluster, err := c.Clusters[clusterID].Proto(project)
		if err != nil {
			errs = append(errs, fmt.Errorf("cluster %q: %w", clusterID, err))
			continue
		}
		request.Clusters[clusterID] = cluster
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return request, nil
}

// InstanceUpdate changes instance attributes. Empty strings and a nil Labels map are left untouched; a non-nil
// empty map clears all labels.
type InstanceUpdate struct {
	DisplayName string
	Type        string
	Labels      map[string]string
}

// UpdateMask returns the field paths covered by u.
func (u InstanceUpdate) UpdateMask() []string {
	var paths []string
	if u.DisplayName != "" {
		paths = append(paths, "display_name")
	}
	if u.Type != "" {
		paths = append(paths, "type")
	}
	if u.Labels != nil {
		paths = append(paths, "labels")
	}
	return paths
}

func (u InstanceUpdate) request(name string) (*adminpb.PartialUpdateInstanceRequest, error) {
	paths := u.UpdateMask()
	if len(paths) == 0 {
		return nil, errNoUpdateFields
	}
	return &adminpb.PartialUpdateInstanceRequest{
		Instance: &adminpb.Instance{
			Name:        name,
			DisplayName: u.DisplayName,
			Type:        InstanceType(u.Type),
			Labels:      u.Labels,
		},
		UpdateMask: &fieldmaskpb.FieldMask{Paths: paths},
	}, nil
}
