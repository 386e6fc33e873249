package main

import (
	"errors"
	"net"

	"github.com/bigtable-lro/sdk-go/lrofake"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

func serveFakeCmd(o *rootOptions) *cobra.Command {
	var (
		listen       string
		pendingPolls int
		failMessage  string
	)
	cmd := &cobra.Command{
		Use:   "serve-fake",
		Short: "Serve an in-memory Instance Admin API for local experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := o.loggingOptions.MustCreateLogger()
			defer logger.Sync()

			plan := lrofake.Plan{PendingPolls: pendingPolls}
			if failMessage != "" {
				plan.Failure = status.New(codes.Aborted, failMessage)
			}
			server := lrofake.NewServer(lrofake.Options{
				Planner: func(string, proto.Message) lrofake.Plan { return plan },
				Logger:  logger.Desugar(),
			})
			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			go func() {
				<-cmd.Context().Done()
				server.Stop()
			}()
			logger.Infow("Serving fake Instance Admin API", "addr", listener.Addr().String())
			// Serve reports ErrServerStopped when the context ended before it started.
			if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "localhost:8086", "Address to listen on")
	cmd.Flags().IntVar(&pendingPolls, "pending-polls", 2, "Number of status calls an operation stays running for")
	cmd.Flags().StringVar(&failMessage, "fail", "", "Fail every operation with this message")
	return cmd
}
