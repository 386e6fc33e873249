package main

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bigtable-lro/sdk-go/bigtableadmin"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/bigtable-lro/sdk-go/lrogrpc"
	"github.com/bigtable-lro/sdk-go/metrics"
	"github.com/bigtable-lro/sdk-go/opstore"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultEndpoint = "bigtableadmin.googleapis.com:443"

func newRootCmd() *cobra.Command {
	var o rootOptions
	cmd := &cobra.Command{
		Use:           "btlro",
		Short:         "Submit and track long-running Bigtable Instance Admin operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.addCLIFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		createInstanceCmd(&o),
		createClusterCmd(&o),
		updateInstanceCmd(&o),
		updateClusterCmd(&o),
		updateAppProfileCmd(&o),
		waitCmd(&o),
		getCmd(&o),
		cancelCmd(&o),
		deleteCmd(&o),
		listCmd(&o),
		historyCmd(&o),
		watchCmd(&o),
		serveFakeCmd(&o),
	)
	return cmd
}

type rootOptions struct {
	endpoint       string
	insecure       bool
	project        string
	redisAddr      string
	metricsAddr    string
	loggingOptions LoggingOptions
}

func (o *rootOptions) addCLIFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.endpoint, "endpoint", defaultEndpoint, "Instance Admin API endpoint")
	fs.BoolVar(&o.insecure, "insecure", false, "Connect without TLS, e.g. to a local fake server")
	fs.StringVar(&o.project, "project", "", "Project id")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "Redis address to record operation snapshots in (optional)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on while the command runs (optional)")
	o.loggingOptions.AddCLIFlags(fs)
}

// A session holds everything a command needs to talk to the server.
type session struct {
	logger    *zap.SugaredLogger
	transport *lrogrpc.Transport
	tracker   *lro.Tracker
	client    *bigtableadmin.Client
	store     *opstore.Store
	closers   []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Debugw("Failed to close", "error", err)
		}
	}
}

// openStore connects to Redis if an address was given. s.store stays nil otherwise.
func (o *rootOptions) openStore(s *session, logger *zap.Logger) error {
	if o.redisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: o.redisAddr})
	s.closers = append(s.closers, client.Close)
	store, err := opstore.New(opstore.Options{Client: client, Logger: logger})
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

func (o *rootOptions) newSession(setup func(*session, *zap.Logger) error) (*session, error) {
	logger, err := o.loggingOptions.CreateLogger()
	if err != nil {
		return nil, err
	}
	s := &session{logger: logger.Sugar()}
	s.closers = append(s.closers, func() error {
		// Syncing stderr fails on some platforms.
		_ = logger.Sync()
		return nil
	})
	if err := setup(s, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// connect opens a session with a tracker connected to the endpoint.
func (o *rootOptions) connect() (*session, error) {
	return o.newSession(o.setup)
}

// openHistory opens a session with only the snapshot store. Requires --redis-addr.
func (o *rootOptions) openHistory() (*session, error) {
	return o.newSession(func(s *session, logger *zap.Logger) error {
		if o.redisAddr == "" {
			return errors.New("--redis-addr is required")
		}
		return o.openStore(s, logger)
	})
}

func (o *rootOptions) setup(s *session, logger *zap.Logger) error {
	var observers []lro.Observer
	if err := o.openStore(s, logger); err != nil {
		return err
	}
	if s.store != nil {
		observers = append(observers, opstore.NewRecorder(s.store, nil))
	}
	if o.metricsAddr != "" {
		collector := metrics.NewCollector()
		registry := prometheus.NewRegistry()
		if err := collector.Register(registry); err != nil {
			return err
		}
		if err := o.serveMetrics(s, registry); err != nil {
			return err
		}
		observers = append(observers, collector)
	}

	creds := credentials.NewClientTLSFromCert(nil, "")
	if o.insecure {
		creds = insecure.NewCredentials()
	}
	transport, err := lrogrpc.Dial(o.endpoint, lrogrpc.TransportOptions{Logger: logger}, grpc.WithTransportCredentials(creds))
	if err != nil {
		return err
	}
	tracker, err := lro.NewTracker(lro.TrackerOptions{
		Transport: transport,
		Logger:    logger,
		Observer:  lro.Observers(observers...),
	})
	if err != nil {
		transport.Close()
		return err
	}
	s.closers = append(s.closers, tracker.Close)
	s.transport = transport
	s.tracker = tracker
	if o.project == "" {
		return nil
	}
	s.client, err = bigtableadmin.NewClient(tracker, o.project)
	return err
}

func (s *session) adminClient() (*bigtableadmin.Client, error) {
	if s.client == nil {
		return nil, errors.New("--project is required")
	}
	return s.client, nil
}

func (o *rootOptions) serveMetrics(s *session, registry *prometheus.Registry) error {
	listener, err := net.Listen("tcp", o.metricsAddr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warnw("Metrics server failed", "error", err)
		}
	}()
	s.logger.Infow("Serving metrics", "addr", listener.Addr().String())
	s.closers = append(s.closers, server.Close)
	return nil
}
