package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/bigtable-lro/sdk-go/opstore"
	"github.com/spf13/cobra"
)

func printRecord(w io.Writer, record opstore.Record) error {
	return json.NewEncoder(w).Encode(record)
}

func historyCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded operation snapshots, one JSON record per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.openHistory()
			if err != nil {
				return err
			}
			defer s.Close()
			records, err := s.store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, record := range records {
				if err := printRecord(cmd.OutOrStdout(), record); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func watchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print recorded operation snapshots as they arrive until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.openHistory()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			records, err := s.store.Subscribe(ctx)
			if err != nil {
				return err
			}
			s.logger.Info("Watching for operation updates")
			for record := range records {
				if err := printRecord(cmd.OutOrStdout(), record); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
