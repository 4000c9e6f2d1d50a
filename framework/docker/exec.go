package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

const (
	inspectAttempts = 20
	inspectDelay    = 50 * time.Millisecond
)

var (
	_ types.CommandRunner = &ExecRunner{}
	_ types.FileWriter    = &ExecRunner{}
)

// ExecRunner runs commands inside an already running container, the equivalent of
// `docker exec <container> cmd...`.
type ExecRunner struct {
	cli       API
	container string
	user      string
	logger    *zap.Logger
}

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithUser runs commands and writes files as the given user instead of the container default.
func WithUser(user string) ExecOption {
	return func(r *ExecRunner) {
		r.user = user
	}
}

// NewExecRunner returns a runner for the named container.
func NewExecRunner(logger *zap.Logger, cli API, containerName string, opts ...ExecOption) *ExecRunner {
	r := &ExecRunner{
		cli:       cli,
		container: containerName,
		logger:    logger.With(zap.String("container", containerName)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Exec runs cmd to completion and returns its demultiplexed output and exit code. A
// command that runs and fails is not an error.
func (r *ExecRunner) Exec(ctx context.Context, cmd []string, env []string) (types.ExecResult, error) {
	exec, err := r.cli.ContainerExecCreate(ctx, r.container, container.ExecOptions{
		User:         r.user,
		Env:          env,
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return types.ExecResult{}, fmt.Errorf("failed to create exec in %s: %w", r.container, err)
	}

	resp, err := r.cli.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{})
	if err != nil {
		return types.ExecResult{}, fmt.Errorf("failed to attach to exec %s: %w", exec.ID, err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return types.ExecResult{}, fmt.Errorf("failed to read exec output: %w", err)
	}

	// the stream can close slightly before the daemon records the exit code
	inspect, err := retry.DoWithData(
		func() (container.ExecInspect, error) {
			res, err := r.cli.ContainerExecInspect(ctx, exec.ID)
			if err != nil {
				return res, retry.Unrecoverable(err)
			}
			if res.Running {
				return res, fmt.Errorf("exec %s still running", exec.ID)
			}
			return res, nil
		},
		retry.Context(ctx),
		retry.Attempts(inspectAttempts),
		retry.Delay(inspectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return types.ExecResult{}, fmt.Errorf("failed to inspect exec %s: %w", exec.ID, err)
	}

	r.logger.Debug("exec finished", zap.Strings("cmd", cmd), zap.Int("exit_code", inspect.ExitCode))
	return types.ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// WriteFile copies content into the container at the absolute path filePath. The parent
// directory must already exist.
func (r *ExecRunner) WriteFile(ctx context.Context, filePath string, content []byte) error {
	dir, name := path.Split(filePath)
	if !path.IsAbs(filePath) || name == "" {
		return fmt.Errorf("invalid container file path %q", filePath)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("failed to write %s to tar: %w", name, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}

	if err := r.cli.CopyToContainer(ctx, r.container, dir, &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", filePath, r.container, err)
	}
	return nil
}
