package docker

import (
	"context"
	"fmt"
	"net"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// GetHostPort returns the first host binding of portID as host:port, or an empty string
// if the port is not published.
func GetHostPort(cont container.InspectResponse, portID string) string {
	if cont.NetworkSettings == nil {
		return ""
	}

	m, ok := cont.NetworkSettings.Ports[nat.Port(portID)]
	if !ok || len(m) == 0 {
		return ""
	}

	return net.JoinHostPort(m[0].HostIP, m[0].HostPort)
}

// HostAddress resolves the host-side address of a published container port such as
// "26657/tcp". Wildcard bindings are reported as localhost.
func HostAddress(ctx context.Context, cli API, containerName, portID string) (string, error) {
	cont, err := cli.ContainerInspect(ctx, containerName)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container %s: %w", containerName, err)
	}

	hostPort := GetHostPort(cont, portID)
	if hostPort == "" {
		return "", fmt.Errorf("port %s of container %s is not published", portID, containerName)
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", fmt.Errorf("invalid host port %q: %w", hostPort, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port), nil
}
