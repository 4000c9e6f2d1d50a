package docker

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/moby/errdefs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeAPI serves one scripted exec and records file copies.
type fakeAPI struct {
	stdout, stderr string
	exitCode       int
	runningPolls   int
	createErr      error
	inspect        container.InspectResponse
	logs           map[string]string

	execOptions container.ExecOptions
	copiedTo    string
	copied      map[string][]byte
}

func (f *fakeAPI) ContainerExecCreate(_ context.Context, _ string, options container.ExecOptions) (container.ExecCreateResponse, error) {
	f.execOptions = options
	if f.createErr != nil {
		return container.ExecCreateResponse{}, f.createErr
	}
	return container.ExecCreateResponse{ID: "exec-1"}, nil
}

func (f *fakeAPI) ContainerExecAttach(context.Context, string, container.ExecAttachOptions) (types.HijackedResponse, error) {
	var buf bytes.Buffer
	if f.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	}
	if f.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	}
	local, remote := net.Pipe()
	_ = remote.Close()
	return types.HijackedResponse{Conn: local, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeAPI) ContainerExecInspect(context.Context, string) (container.ExecInspect, error) {
	if f.runningPolls > 0 {
		f.runningPolls--
		return container.ExecInspect{ExecID: "exec-1", Running: true}, nil
	}
	return container.ExecInspect{ExecID: "exec-1", ExitCode: f.exitCode}, nil
}

func (f *fakeAPI) ContainerInspect(context.Context, string) (container.InspectResponse, error) {
	return f.inspect, nil
}

func (f *fakeAPI) ContainerLogs(_ context.Context, name string, _ container.LogsOptions) (io.ReadCloser, error) {
	logs, ok := f.logs[name]
	if !ok {
		return nil, errdefs.NotFound(fmt.Errorf("no such container: %s", name))
	}
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(logs))
	return io.NopCloser(&buf), nil
}

func (f *fakeAPI) CopyToContainer(_ context.Context, _ string, dir string, content io.Reader, _ container.CopyToContainerOptions) error {
	f.copiedTo = dir
	f.copied = map[string][]byte{}
	tr := tar.NewReader(content)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		bz, err := io.ReadAll(tr)
		if err != nil {
			return err
		}
		f.copied[hdr.Name] = bz
	}
}

func TestExecRunnerExec(t *testing.T) {
	cli := &fakeAPI{stdout: "SUCCESS Channel", stderr: "INFO creating channel", exitCode: 0, runningPolls: 2}
	r := NewExecRunner(zaptest.NewLogger(t), cli, "test-relayer-1", WithUser("hermes"))

	res, err := r.Exec(context.Background(), []string{"hermes", "version"}, []string{"RUST_LOG=info"})
	require.NoError(t, err)
	require.Equal(t, "SUCCESS Channel", string(res.Stdout))
	require.Equal(t, "INFO creating channel", string(res.Stderr))
	require.Equal(t, 0, res.ExitCode)

	require.Equal(t, []string{"hermes", "version"}, cli.execOptions.Cmd)
	require.Equal(t, []string{"RUST_LOG=info"}, cli.execOptions.Env)
	require.Equal(t, "hermes", cli.execOptions.User)
	require.True(t, cli.execOptions.AttachStdout)
	require.True(t, cli.execOptions.AttachStderr)
}

func TestExecRunnerNonZeroExitIsNotAnError(t *testing.T) {
	cli := &fakeAPI{stderr: "Error: no packets", exitCode: 1}
	r := NewExecRunner(zaptest.NewLogger(t), cli, "test-relayer-1")

	res, err := r.Exec(context.Background(), []string{"hermes", "clear", "packets"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ExitCode)
	require.Equal(t, "Error: no packets", string(res.Stderr))
}

func TestExecRunnerCreateFailure(t *testing.T) {
	cli := &fakeAPI{createErr: errors.New("No such container: test-relayer-1")}
	r := NewExecRunner(zaptest.NewLogger(t), cli, "test-relayer-1")

	_, err := r.Exec(context.Background(), []string{"hermes"}, nil)
	require.ErrorContains(t, err, "No such container")
}

func TestExecRunnerWriteFile(t *testing.T) {
	cli := &fakeAPI{}
	r := NewExecRunner(zaptest.NewLogger(t), cli, "test-relayer-1")

	require.NoError(t, r.WriteFile(context.Background(), "/home/hermes/.hermes/config.toml", []byte("[global]\n")))
	require.Equal(t, "/home/hermes/.hermes/", cli.copiedTo)
	require.Equal(t, "[global]\n", string(cli.copied["config.toml"]))

	require.Error(t, r.WriteFile(context.Background(), "relative/config.toml", nil))
	require.Error(t, r.WriteFile(context.Background(), "/home/hermes/", nil))
}
