package bigtableadmin

import (
	"errors"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

// RouteAny routes requests to the nearest available cluster.
const RouteAny = "any"

// AppProfileUpdate changes how an app profile routes requests.
type AppProfileUpdate struct {
	// RouteAny for multi-cluster routing, or the id of the single cluster to route to. Empty leaves routing as is.
	Routing string
	// Only meaningful with single cluster routing.
	AllowTransactionalWrites bool
	// Empty leaves the description as is.
	Description string
	// Proceed even if the server warns about the change, e.g. about lost transactional writes.
	IgnoreWarnings bool
}

func (u AppProfileUpdate) profile(name string) *adminpb.AppProfile {
	profile := &adminpb.AppProfile{Name: name, Description: u.Description}
	switch u.Routing {
	case "":
	case RouteAny:
		profile.RoutingPolicy = &adminpb.AppProfile_MultiClusterRoutingUseAny_{
			MultiClusterRoutingUseAny: &adminpb.AppProfile_MultiClusterRoutingUseAny{},
		}
	default:
		profile.RoutingPolicy = &adminpb.AppProfile_SingleClusterRouting_{
			SingleClusterRouting: &adminpb.AppProfile_SingleClusterRouting{
				ClusterId:                u.Routing,
				AllowTransactionalWrites: u.AllowTransactionalWrites,
			},
		}
	}
	return profile
}

// UpdateMask returns the field paths covered by u.
func (u AppProfileUpdate) UpdateMask() []string {
	var paths []string
	if u.Description != "" {
		paths = append(paths, "description")
	}
	switch u.Routing {
	case "":
	case RouteAny:
		paths = append(paths, "multi_cluster_routing_use_any")
	default:
		paths = append(paths, "single_cluster_routing")
	}
	return paths
}

func (u AppProfileUpdate) request(name string) (*adminpb.UpdateAppProfileRequest, error) {
	if u.AllowTransactionalWrites && (u.Routing == "" || u.Routing == RouteAny) {
		return nil, errors.New("transactional writes require single cluster routing")
	}
	paths := u.UpdateMask()
	if len(paths) == 0 {
		return nil, errNoUpdateFields
	}
	return &adminpb.UpdateAppProfileRequest{
		AppProfile:     u.profile(name),
		UpdateMask:     &fieldmaskpb.FieldMask{Paths: paths},
		IgnoreWarnings: u.IgnoreWarnings,
	}, nil
}
