package docker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/moby/errdefs"
)

// TestingT is the subset of testing.T needed to collect logs after a failed test.
type TestingT interface {
	Helper()
	Name() string
	Failed() bool
	Cleanup(func())
	Logf(format string, args ...any)
}

// SaveLogsOnFailure registers a cleanup that writes the logs of the given containers to
// LOG_DIR (default "logs") when the test fails. Containers that no longer exist are skipped.
func SaveLogsOnFailure(t TestingT, cli API, containers ...string) {
	t.Helper()
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}

		logDir := os.Getenv("LOG_DIR")
		if logDir == "" {
			logDir = "logs"
		}

		ctx := context.Background()
		for _, name := range containers {
			if err := saveLogs(ctx, cli, name, logDir, t.Name()); err != nil {
				if errdefs.IsNotFound(err) {
					continue
				}
				t.Logf("Failed to save logs for container %s: %v", name, err)
			}
		}
	})
}

func saveLogs(ctx context.Context, cli API, containerName, dir, testName string) error {
	rc, err := cli.ContainerLogs(ctx, containerName, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "all",
	})
	if err != nil {
		return err
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return fmt.Errorf("failed to demultiplex logs: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fileName := fmt.Sprintf("%s-%s.log", sanitizeName(testName), strings.TrimPrefix(containerName, "/"))
	return os.WriteFile(filepath.Join(dir, fileName), out.Bytes(), 0o644)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, name)
}
