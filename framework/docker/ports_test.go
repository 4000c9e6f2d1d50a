package docker

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
)

func inspectWithPorts(ports nat.PortMap) container.InspectResponse {
	return container.InspectResponse{
		NetworkSettings: &container.NetworkSettings{
			NetworkSettingsBase: container.NetworkSettingsBase{Ports: ports},
		},
	}
}

func TestGetHostPort(t *testing.T) {
	for _, tt := range []struct {
		Container container.InspectResponse
		PortID    string
		Want      string
	}{
		{
			inspectWithPorts(nat.PortMap{
				nat.Port("26657/tcp"): []nat.PortBinding{
					{HostIP: "1.2.3.4", HostPort: "8080"},
					{HostIP: "0.0.0.0", HostPort: "9999"},
				},
			}), "26657/tcp", "1.2.3.4:8080",
		},
		{
			inspectWithPorts(nat.PortMap{
				nat.Port("9090/tcp"): []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "3000"}},
			}), "9090/tcp", "0.0.0.0:3000",
		},
		{inspectWithPorts(nat.PortMap{nat.Port("9090/tcp"): nil}), "9090/tcp", ""},
		{container.InspectResponse{}, "", ""},
		{container.InspectResponse{NetworkSettings: &container.NetworkSettings{}}, "does-not-matter", ""},
	} {
		require.Equal(t, tt.Want, GetHostPort(tt.Container, tt.PortID), tt)
	}
}

func TestHostAddress(t *testing.T) {
	cli := &fakeAPI{inspect: inspectWithPorts(nat.PortMap{
		nat.Port("26657/tcp"): []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "36657"}},
		nat.Port("9090/tcp"):  []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "39090"}},
	})}

	addr, err := HostAddress(context.Background(), cli, "localsecret-1", "26657/tcp")
	require.NoError(t, err)
	require.Equal(t, "localhost:36657", addr)

	addr, err = HostAddress(context.Background(), cli, "localsecret-1", "9090/tcp")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:39090", addr)

	_, err = HostAddress(context.Background(), cli, "localsecret-1", "1317/tcp")
	require.Error(t, err)
}
