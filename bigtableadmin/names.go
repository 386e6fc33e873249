package bigtableadmin

import (
	"strings"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
)

func projectID(project string) string {
	return strings.TrimPrefix(project, "projects/")
}

// ProjectName returns the resource name of project.
func ProjectName(project string) string {
	return "projects/" + projectID(project)
}

// InstanceName returns the resource name of instance in project.
func InstanceName(project, instance string) string {
	return ProjectName(project) + "/instances/" + instance
}

// ClusterName returns the resource name of cluster in instance.
func ClusterName(project, instance, cluster string) string {
	return InstanceName(project, instance) + "/clusters/" + cluster
}

// AppProfileName returns the resource name of an app profile in instance.
func AppProfileName(project, instance, profile string) string {
	return InstanceName(project, instance) + "/appProfiles/" + profile
}

// LocationName expands a zone id into a location resource name. Values that already contain a slash are returned
// as given.
func LocationName(project, location string) string {
	if strings.Contains(location, "/") {
		return location
	}
	return ProjectName(project) + "/locations/" + location
}

// StorageType maps "ssd" and "hdd" to their storage type, case insensitively. Anything else is unspecified.
func StorageType(s string) adminpb.StorageType {
	switch strings.ToLower(s) {
	case "ssd":
		return adminpb.StorageType_SSD
	case "hdd":
		return adminpb.StorageType_HDD
	default:
		return adminpb.StorageType_STORAGE_TYPE_UNSPECIFIED
	}
}

// InstanceType maps "production" and "development" to their instance type, case insensitively. Anything else is
// unspecified.
func InstanceType(s string) adminpb.Instance_Type {
	switch strings.ToLower(s) {
	case "production":
		return adminpb.Instance_PRODUCTION
	case "development":
		return adminpb.Instance_DEVELOPMENT
	default:
		return adminpb.Instance_TYPE_UNSPECIFIED
	}
}
