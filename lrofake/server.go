// Package lrofake provides an in-memory gRPC server for the long-running Bigtable Instance Admin methods and the
// google.longrunning.Operations service. Operations complete after a scripted number of status calls, which makes
// the server useful for tests and local demos.
package lrofake

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const defaultPageSize = 50

type (
	// Plan scripts the lifecycle of one submitted operation.
	Plan struct {
		// Number of status calls that report the operation running before it completes.
		PendingPolls int
		// Complete the operation in the submission response.
		Synchronous bool
		// Complete the operation with this failure instead of a response.
		Failure *status.Status
		// Reject the submission itself; no operation is created.
		Reject error
	}

	// Planner decides the [Plan] for a submitted request. method is the full gRPC method name.
	Planner func(method string, request proto.Message) Plan

	// Options are options for creating a [Server].
	Options struct {
		// Defaults to a planner that completes every operation successfully after two pending polls.
		Planner Planner
		// Defaults to a no-op logger.
		Logger *zap.Logger
		// Defaults to time.Now.
		Now func() time.Time
		// Options for the underlying gRPC server, e.g. interceptors.
		ServerOptions []grpc.ServerOption
	}

	// Server is an in-memory implementation of the long-running parts of the Bigtable Instance Admin API.
	Server struct {
		options Options

		grpcServer *grpc.Server

		mu         sync.Mutex
		operations map[string]*operation
	}

	operation struct {
		op        *longrunningpb.Operation
		plan      Plan
		polls     int
		response  proto.Message
		metadata  proto.Message
		setFinish func(*timestamppb.Timestamp)
	}
)

// DefaultPlan completes operations successfully after two pending polls.
func DefaultPlan(string, proto.Message) Plan {
	return Plan{PendingPolls: 2}
}

// NewServer creates a new [Server] from the provided [Options].
func NewServer(options Options) *Server {
	if options.Planner == nil {
		options.Planner = DefaultPlan
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	s := &Server{
		options:    options,
		operations: make(map[string]*operation),
		grpcServer: grpc.NewServer(options.ServerOptions...),
	}
	s.Register(s.grpcServer)
	return s
}

// Register registers the Operations and Instance Admin services on server, which may be shared with other services.
func (s *Server) Register(server *grpc.Server) {
	longrunningpb.RegisterOperationsServer(server, &operationsService{server: s})
	adminpb.RegisterBigtableInstanceAdminServer(server, &adminService{server: s})
}

// Serve accepts connections on listener until [Server.Stop] is called.
func (s *Server) Serve(listener net.Listener) error {
	return s.grpcServer.Serve(listener)
}

// Stop closes all connections and listeners of the server.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// Polls returns the number of status calls received for the named operation.
func (s *Server) Polls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.operations[name]; ok {
		return o.polls
	}
	return 0
}

// Names returns the names of all known operations, sorted.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.operations))
	for name := range s.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// start creates an operation for request unless the plan rejects it. resource is the name of the affected
// resource; metadata is the method specific metadata message whose finish time is set via setFinish.
func (s *Server) start(
	method string,
	request proto.Message,
	resource string,
	response proto.Message,
	metadata proto.Message,
	setFinish func(*timestamppb.Timestamp),
) (*longrunningpb.Operation, error) {
	plan := s.options.Planner(method, request)
	if plan.Reject != nil {
		s.options.Logger.Info("rejecting submission", zap.String("method", method), zap.Error(plan.Reject))
		return nil, plan.Reject
	}
	o := &operation{
		op:        &longrunningpb.Operation{Name: fmt.Sprintf("operations/%s/operations/%s", resource, uuid.NewString())},
		plan:      plan,
		response:  response,
		metadata:  metadata,
		setFinish: setFinish,
	}
	if err := o.refreshMetadata(); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to pack metadata: %v", err)
	}
	if plan.Synchronous {
		if err := s.complete(o); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.operations[o.op.GetName()] = o
	s.mu.Unlock()
	s.options.Logger.Info("operation started", zap.String("method", method), zap.String("operation", o.op.GetName()))
	return proto.Clone(o.op).(*longrunningpb.Operation), nil
}

func (o *operation) refreshMetadata() error {
	packed, err := anypb.New(o.metadata)
	if err != nil {
		return err
	}
	o.op.Metadata = packed
	return nil
}

// complete resolves o according to its plan.
func (s *Server) complete(o *operation) error {
	if o.plan.Failure != nil {
		return s.fail(o, o.plan.Failure)
	}
	packed, err := anypb.New(o.response)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to pack response: %v", err)
	}
	if err := s.stampFinish(o); err != nil {
		return err
	}
	o.op.Done = true
	o.op.Result = &longrunningpb.Operation_Response{Response: packed}
	return nil
}

func (s *Server) fail(o *operation, failure *status.Status) error {
	if err := s.stampFinish(o); err != nil {
		return err
	}
	o.op.Done = true
	o.op.Result = &longrunningpb.Operation_Error{Error: failure.Proto()}
	return nil
}

func (s *Server) stampFinish(o *operation) error {
	if o.setFinish == nil {
		return nil
	}
	o.setFinish(timestamppb.New(s.options.Now()))
	if err := o.refreshMetadata(); err != nil {
		return status.Errorf(codes.Internal, "failed to pack metadata: %v", err)
	}
	return nil
}

func (s *Server) lookup(name string) (*operation, error) {
	o, ok := s.operations[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "operation %q not found", name)
	}
	return o, nil
}

type operationsService struct {
	longrunningpb.UnimplementedOperationsServer
	server *Server
}

func (o *operationsService) GetOperation(ctx context.Context, request *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	s := o.server
	s.mu.Lock()
	defer s.mu.Unlock()
	op, err := s.lookup(request.GetName())
	if err != nil {
		return nil, err
	}
	op.polls++
	if !op.op.GetDone() && op.polls > op.plan.PendingPolls {
		if err := s.complete(op); err != nil {
			return nil, err
		}
	}
	return proto.Clone(op.op).(*longrunningpb.Operation), nil
}

func (o *operationsService) CancelOperation(ctx context.Context, request *longrunningpb.CancelOperationRequest) (*emptypb.Empty, error) {
	s := o.server
	s.mu.Lock()
	defer s.mu.Unlock()
	op, err := s.lookup(request.GetName())
	if err != nil {
		return nil, err
	}
	if !op.op.GetDone() {
		if err := s.fail(op, status.New(codes.Canceled, "operation canceled")); err != nil {
			return nil, err
		}
		s.options.Logger.Info("operation canceled", zap.String("operation", request.GetName()))
	}
	return &emptypb.Empty{}, nil
}

func (o *operationsService) DeleteOperation(ctx context.Context, request *longrunningpb.DeleteOperationRequest) (*emptypb.Empty, error) {
	s := o.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(request.GetName()); err != nil {
		return nil, err
	}
	delete(s.operations, request.GetName())
	return &emptypb.Empty{}, nil
}

func (o *operationsService) ListOperations(ctx context.Context, request *longrunningpb.ListOperationsRequest) (*longrunningpb.ListOperationsResponse, error) {
	s := o.server
	offset := 0
	if token := request.GetPageToken(); token != "" {
		var err error
		if offset, err = strconv.Atoi(token); err != nil || offset < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "invalid page token %q", token)
		}
	}
	pageSize := int(request.GetPageSize())
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var matches []string
	for _, name := range s.Names() {
		if strings.HasPrefix(name, request.GetName()) {
			matches = append(matches, name)
		}
	}
	resp := &longrunningpb.ListOperationsResponse{}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := offset; i < len(matches) && i < offset+pageSize; i++ {
		if op, ok := s.operations[matches[i]]; ok {
			resp.Operations = append(resp.Operations, proto.Clone(op.op).(*longrunningpb.Operation))
		}
	}
	if offset+pageSize < len(matches) {
		resp.NextPageToken = strconv.Itoa(offset + pageSize)
	}
	return resp, nil
}
