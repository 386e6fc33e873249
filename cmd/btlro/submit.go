package main

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/bigtableadmin"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type awaitFlags struct {
	wait            bool
	pollInterval    time.Duration
	maxPollInterval time.Duration
	multiplier      float64
	timeout         time.Duration
}

func (f *awaitFlags) addCLIFlags(fs *pflag.FlagSet, waitByDefault bool) {
	if !waitByDefault {
		fs.BoolVar(&f.wait, "wait", false, "Wait for the operation to complete")
	}
	f.wait = waitByDefault
	fs.DurationVar(&f.pollInterval, "poll-interval", 2*time.Second, "Pause after the first poll")
	fs.DurationVar(&f.maxPollInterval, "max-poll-interval", 0, "Upper bound on the pause between polls (default 30s)")
	fs.Float64Var(&f.multiplier, "poll-multiplier", 0, "Growth factor of the pause between polls, 1 for a fixed interval (default 1.5)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Stop waiting after this long and leave the operation running (default no limit)")
}

func (f *awaitFlags) options() lro.AwaitOptions {
	return lro.AwaitOptions{
		PollInterval:    f.pollInterval,
		MaxPollInterval: f.maxPollInterval,
		Multiplier:      f.multiplier,
		Timeout:         f.timeout,
	}
}

func printOperation(w io.Writer, op *longrunningpb.Operation) error {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(op)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// finish prints the operation, first waiting for it if requested. A failed wait is returned after printing the
// latest snapshot.
func finish[M, R proto.Message](ctx context.Context, cmd *cobra.Command, s *session, handle *lro.OperationHandle[M, R], wait awaitFlags) error {
	s.logger.Infow("Tracking operation", "operation", handle.Name, "done", handle.Done())
	var err error
	if wait.wait {
		_, err = handle.Await(ctx, wait.options())
	}
	if printErr := printOperation(cmd.OutOrStdout(), handle.Raw()); printErr != nil && err == nil {
		err = printErr
	}
	return err
}

// submitCmd wires the connect, submit and finish steps shared by all submitting commands.
func submitCmd(o *rootOptions, cmd *cobra.Command, submit func(ctx context.Context, cmd *cobra.Command, s *session, client *bigtableadmin.Client, wait awaitFlags) error) *cobra.Command {
	var wait awaitFlags
	wait.addCLIFlags(cmd.Flags(), false)
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		s, err := o.connect()
		if err != nil {
			return err
		}
		defer s.Close()
		client, err := s.adminClient()
		if err != nil {
			return err
		}
		return submit(cmd.Context(), cmd, s, client, wait)
	}
	return cmd
}

type scalingFlags struct {
	scaling bigtableadmin.Scaling
}

func (f *scalingFlags) addCLIFlags(fs *pflag.FlagSet) {
	fs.Int32Var(&f.scaling.ServeNodes, "nodes", 0, "Fixed number of serve nodes")
	fs.Int32Var(&f.scaling.MinServeNodes, "min-nodes", 0, "Autoscaling minimum number of serve nodes")
	fs.Int32Var(&f.scaling.MaxServeNodes, "max-nodes", 0, "Autoscaling maximum number of serve nodes")
	fs.Int32Var(&f.scaling.CPUUtilizationPercent, "cpu-target", 0, "Autoscaling CPU utilization target in percent")
}

type clusterFlags struct {
	scalingFlags
	id     string
	config bigtableadmin.ClusterConfig
}

func (f *clusterFlags) addCLIFlags(fs *pflag.FlagSet) {
	f.scalingFlags.addCLIFlags(fs)
	fs.StringVar(&f.id, "cluster", "", "Cluster id")
	fs.StringVar(&f.config.Location, "zone", "", "Zone of the cluster, e.g. us-central1-b")
	fs.StringVar(&f.config.Storage, "storage", "ssd", "Storage type: ssd or hdd")
	fs.StringVar(&f.config.KMSKeyName, "kms-key", "", "Cloud KMS key for customer managed encryption")
}

func (f *clusterFlags) clusterConfig() bigtableadmin.ClusterConfig {
	config := f.config
	config.Scaling = f.scaling
	return config
}

func createInstanceCmd(o *rootOptions) *cobra.Command {
	var (
		instance string
		config   bigtableadmin.InstanceConfig
		cluster  clusterFlags
	)
	cmd := &cobra.Command{
		Use:   "create-instance",
		Short: "Create an instance with one cluster",
	}
	fs := cmd.Flags()
	fs.StringVar(&instance, "instance", "", "Instance id")
	fs.StringVar(&config.DisplayName, "display-name", "", "Display name (default the instance id)")
	fs.StringVar(&config.Type, "type", "production", "Instance type: production or development")
	fs.StringToStringVar(&config.Labels, "labels", nil, "Labels as key=value pairs")
	cluster.addCLIFlags(fs)
	return submitCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, client *bigtableadmin.Client, wait awaitFlags) error {
		config.Clusters = map[string]bigtableadmin.ClusterConfig{cluster.id: cluster.clusterConfig()}
		handle, err := client.CreateInstance(ctx, instance, config)
		if err != nil {
			return err
		}
		return finish(ctx, cmd, s, handle, wait)
	})
}

func createClusterCmd(o *rootOptions) *cobra.Command {
	var (
		instance string
		cluster  clusterFlags
	)
	cmd := &cobra.Command{
		Use:   "create-cluster",
		Short: "Add a cluster to an instance",
	}
	cmd.Flags().StringVar(&instance, "instance", "", "Instance id")
	cluster.addCLIFlags(cmd.Flags())
	return submitCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, client *bigtableadmin.Client, wait awaitFlags) error {
		handle, err := client.CreateCluster(ctx, instance, cluster.id, cluster.clusterConfig())
		if err != nil {
			return err
		}
		return finish(ctx, cmd, s, handle, wait)
	})
}

func updateInstanceCmd(o *rootOptions) *cobra.Command {
	var (
		instance string
		update   bigtableadmin.InstanceUpdate
	)
	cmd := &cobra.Command{
		Use:   "update-instance",
		Short: "Change the display name, type or labels of an instance",
	}
	fs := cmd.Flags()
	fs.StringVar(&instance, "instance", "", "Instance id")
	fs.StringVar(&update.DisplayName, "display-name", "", "New display name")
	fs.StringVar(&update.Type, "type", "", "New instance type: production or development")
	fs.StringToStringVar(&update.Labels, "labels", nil, "Replacement labels as key=value pairs")
	return submitCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, client *bigtableadmin.Client, wait awaitFlags) error {
		if cmd.Flags().Changed("labels") && update.Labels == nil {
			update.Labels = map[string]string{}
		}
		handle, err := client.UpdateInstance(ctx, instance, update)
		if err != nil {
			return err
		}
		return finish(ctx, cmd, s, handle, wait)
	})
}

func updateClusterCmd(o *rootOptions) *cobra.Command {
	var (
		instance, cluster string
		scaling           scalingFlags
	)
	cmd := &cobra.Command{
		Use:   "update-cluster",
		Short: "Change the node count or autoscaling configuration of a cluster",
	}
	cmd.Flags().StringVar(&instance, "instance", "", "Instance id")
	cmd.Flags().StringVar(&cluster, "cluster", "", "Cluster id")
	scaling.addCLIFlags(cmd.Flags())
	return submitCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, client *bigtableadmin.Client, wait awaitFlags) error {
		handle, err := client.UpdateCluster(ctx, instance, cluster, bigtableadmin.ClusterUpdate(scaling.scaling))
		if err != nil {
			return err
		}
		return finish(ctx, cmd, s, handle, wait)
	})
}

func updateAppProfileCmd(o *rootOptions) *cobra.Command {
	var (
		instance, profile string
		update            bigtableadmin.AppProfileUpdate
	)
	cmd := &cobra.Command{
		Use:   "update-app-profile",
		Short: "Change the routing policy or description of an app profile",
	}
	fs := cmd.Flags()
	fs.StringVar(&instance, "instance", "", "Instance id")
	fs.StringVar(&profile, "app-profile", "", "App profile id")
	fs.StringVar(&update.Routing, "routing", "", `"any" for multi-cluster routing, or a cluster id`)
	fs.BoolVar(&update.AllowTransactionalWrites, "allow-transactional-writes", false, "Allow transactional writes with single cluster routing")
	fs.StringVar(&update.Description, "description", "", "New description")
	fs.BoolVar(&update.IgnoreWarnings, "ignore-warnings", false, "Apply the change despite server warnings")
	return submitCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, client *bigtableadmin.Client, wait awaitFlags) error {
		handle, err := client.UpdateAppProfile(ctx, instance, profile, update)
		if err != nil {
			return err
		}
		return finish(ctx, cmd, s, handle, wait)
	})
}
