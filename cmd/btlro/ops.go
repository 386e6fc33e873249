package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/bigtableadmin"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
)

// handleCmd wires a command operating on an existing operation given by name.
func handleCmd(o *rootOptions, cmd *cobra.Command, run func(ctx context.Context, cmd *cobra.Command, s *session, handle *lro.UntypedHandle) error) *cobra.Command {
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		s, err := o.connect()
		if err != nil {
			return err
		}
		defer s.Close()
		handle, err := lro.NewUntypedHandle(s.tracker, args[0])
		if err != nil {
			return err
		}
		return run(cmd.Context(), cmd, s, handle)
	}
	return cmd
}

func waitCmd(o *rootOptions) *cobra.Command {
	var wait awaitFlags
	cmd := &cobra.Command{
		Use:   "wait NAME",
		Short: "Wait for an operation to complete and print it",
	}
	wait.addCLIFlags(cmd.Flags(), true)
	return handleCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, handle *lro.UntypedHandle) error {
		return finish(ctx, cmd, s, handle, wait)
	})
}

func getCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Fetch and print the current state of an operation",
	}
	return handleCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, handle *lro.UntypedHandle) error {
		if _, err := handle.Poll(ctx); err != nil {
			return err
		}
		return printOperation(cmd.OutOrStdout(), handle.Raw())
	})
}

func cancelCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel NAME",
		Short: "Request cancellation of an operation",
	}
	return handleCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, handle *lro.UntypedHandle) error {
		if err := handle.Cancel(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", handle.Name)
		return err
	})
}

func deleteCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an operation from the server and the snapshot store",
	}
	return handleCmd(o, cmd, func(ctx context.Context, cmd *cobra.Command, s *session, handle *lro.UntypedHandle) error {
		if err := handle.Delete(ctx); err != nil {
			return err
		}
		if s.store != nil {
			if err := s.store.Delete(ctx, handle.Name); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", handle.Name)
		return err
	})
}

func printOperationLine(w io.Writer, op *longrunningpb.Operation) error {
	data, err := protojson.Marshal(op)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func listCmd(o *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list [NAME]",
		Short: "List operations on the server under NAME, one JSON operation per line",
		Long:  "List operations on the server whose name starts with NAME. NAME defaults to the operations of --project.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			switch {
			case len(args) == 1:
				name = args[0]
			case o.project != "":
				name = "operations/" + bigtableadmin.ProjectName(o.project)
			default:
				return errors.New("a NAME argument or --project is required")
			}
			s, err := o.connect()
			if err != nil {
				return err
			}
			defer s.Close()
			ops, err := s.transport.ListOperations(cmd.Context(), name, filter)
			if err != nil {
				return err
			}
			s.logger.Debugw("Listed operations", "name", name, "count", len(ops))
			for _, op := range ops {
				if err := printOperationLine(cmd.OutOrStdout(), op); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Server side filter expression")
	return cmd
}
