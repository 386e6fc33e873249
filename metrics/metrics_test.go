package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bigtable-lro/sdk-go/bigtableadmin"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/bigtable-lro/sdk-go/lrofake"
	"github.com/bigtable-lro/sdk-go/lrogrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const method = "/google.bigtable.admin.v2.BigtableInstanceAdmin/CreateInstance"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()
	c.ObserveSubmit(method, nil)
	c.ObserveSubmit(method, status.Error(codes.AlreadyExists, "exists"))
	c.ObservePoll(method, 10*time.Millisecond, nil)
	c.ObservePoll(method, 20*time.Millisecond, errors.New("not grpc"))
	c.ObserveOutcome(method, lro.OutcomeSucceeded)

	require.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues(method, "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues(method, "AlreadyExists")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues(method, "Unknown")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.outcomes.WithLabelValues(method, "succeeded")))
	require.Equal(t, 1, testutil.CollectAndCount(c.pollDuration))
}

func TestCollector_Register(t *testing.T) {
	registry := prometheus.NewPedanticRegistry()
	c := NewCollector()
	require.NoError(t, c.Register(registry))
	require.Error(t, c.Register(registry))

	c.ObserveOutcome(method, lro.OutcomeTimedOut)
	expected := `
# HELP btlro_outcomes_total Total number of finished waits by outcome
# TYPE btlro_outcomes_total counter
btlro_outcomes_total{method="/google.bigtable.admin.v2.BigtableInstanceAdmin/CreateInstance",outcome="timed_out"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "btlro_outcomes_total"))
}

func TestCollector_ObservesTracker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := lrofake.NewServer(lrofake.Options{})
	defer server.Stop()
	conn, err := server.ServeInProcess()
	require.NoError(t, err)
	defer conn.Close()
	transport, err := lrogrpc.NewTransport(conn, lrogrpc.TransportOptions{})
	require.NoError(t, err)

	c := NewCollector()
	tracker, err := lro.NewTracker(lro.TrackerOptions{Transport: transport, Observer: c})
	require.NoError(t, err)
	client, err := bigtableadmin.NewClient(tracker, "p")
	require.NoError(t, err)

	handle, err := client.UpdateInstance(ctx, "i", bigtableadmin.InstanceUpdate{DisplayName: "renamed"})
	require.NoError(t, err)
	_, err = handle.Await(ctx, lro.AwaitOptions{PollInterval: time.Millisecond, Multiplier: 1})
	require.NoError(t, err)

	name := bigtableadmin.PartialUpdateInstance.FullName()
	require.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues(name, "OK")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.polls.WithLabelValues(name, "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.outcomes.WithLabelValues(name, "succeeded")))
}
