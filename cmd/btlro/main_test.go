package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"cloud.google.com/go/bigtable/admin/apiv2/adminpb"
	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/alicebob/miniredis/v2"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/bigtable-lro/sdk-go/lrofake"
	"github.com/bigtable-lro/sdk-go/opstore"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"
)

const testTimeout = time.Second * 5

type harness struct {
	ctx      context.Context
	endpoint string
	redis    string
	server   *lrofake.Server
}

func setup(t *testing.T) (*harness, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	server := lrofake.NewServer(lrofake.Options{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.Serve(listener)
	}()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	h := &harness{ctx: ctx, endpoint: listener.Addr().String(), redis: mr.Addr(), server: server}
	return h, func() {
		cancel()
		server.Stop()
		mr.Close()
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--endpoint", h.endpoint, "--insecure", "--project", "p", "--redis-addr", h.redis, "--log-level", "error",
	}, args...))
	err := cmd.ExecuteContext(h.ctx)
	return out.String(), err
}

func parseOperation(t *testing.T, out string) *longrunningpb.Operation {
	op := &longrunningpb.Operation{}
	require.NoError(t, protojson.Unmarshal([]byte(out), op))
	return op
}

func TestCreateInstance_WaitAndHistory(t *testing.T) {
	h, teardown := setup(t)
	defer teardown()

	out, err := h.run(t, "create-instance", "--instance", "prod-1", "--cluster", "prod-1-c1", "--zone", "us-central1-b",
		"--nodes", "3", "--wait", "--poll-interval", "1ms", "--poll-multiplier", "1")
	require.NoError(t, err)
	op := parseOperation(t, out)
	require.True(t, op.GetDone())
	instance := &adminpb.Instance{}
	require.NoError(t, op.GetResponse().UnmarshalTo(instance))
	require.Equal(t, "projects/p/instances/prod-1", instance.GetName())

	out, err = h.run(t, "history")
	require.NoError(t, err)
	scanner := bufio.NewScanner(bytes.NewBufferString(out))
	require.True(t, scanner.Scan())
	var record opstore.Record
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
	require.Equal(t, op.GetName(), record.Name)
	require.Equal(t, lro.StateSucceeded, record.State)
	require.False(t, scanner.Scan())
}

func TestSubmitWithoutWait_ThenGetCancelDelete(t *testing.T) {
	h, teardown := setup(t)
	defer teardown()

	out, err := h.run(t, "update-cluster", "--instance", "prod-1", "--cluster", "c1", "--nodes", "5")
	require.NoError(t, err)
	op := parseOperation(t, out)
	require.False(t, op.GetDone())

	out, err = h.run(t, "get", op.GetName())
	require.NoError(t, err)
	require.False(t, parseOperation(t, out).GetDone())

	_, err = h.run(t, "cancel", op.GetName())
	require.NoError(t, err)

	_, err = h.run(t, "wait", op.GetName(), "--poll-interval", "1ms")
	var operationErr *lro.OperationError
	require.ErrorAs(t, err, &operationErr)
	require.Equal(t, codes.Canceled, operationErr.Code())

	_, err = h.run(t, "delete", op.GetName())
	require.NoError(t, err)
	require.Empty(t, h.server.Names())
	out, err = h.run(t, "history")
	require.NoError(t, err)
	require.Empty(t, out)
}

func outputLines(out string) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewBufferString(out))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestList(t *testing.T) {
	h, teardown := setup(t)
	defer teardown()

	var names []string
	for _, instance := range []string{"prod-1", "prod-2"} {
		out, err := h.run(t, "update-cluster", "--instance", instance, "--cluster", "c1", "--nodes", "5")
		require.NoError(t, err)
		names = append(names, parseOperation(t, out).GetName())
	}

	out, err := h.run(t, "list")
	require.NoError(t, err)
	var listed []string
	for _, line := range outputLines(out) {
		listed = append(listed, parseOperation(t, line).GetName())
	}
	require.ElementsMatch(t, names, listed)

	out, err = h.run(t, "list", "operations/projects/p/instances/prod-2")
	require.NoError(t, err)
	lines := outputLines(out)
	require.Len(t, lines, 1)
	require.Equal(t, names[1], parseOperation(t, lines[0]).GetName())
}

func TestServeFake_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve-fake", "--listen", "127.0.0.1:0", "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(ctx))
}

func TestSubmit_Validation(t *testing.T) {
	h, teardown := setup(t)
	defer teardown()

	_, err := h.run(t, "update-cluster", "--instance", "prod-1", "--cluster", "c1", "--nodes", "5", "--min-nodes", "1")
	require.ErrorContains(t, err, "cannot specify both")

	_, err = h.run(t, "update-instance", "--instance", "prod-1", "--wait", "--poll-interval", "0")
	require.Error(t, err)
}
