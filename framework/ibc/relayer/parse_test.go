package relayer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// hermes 1.8 create channel, default output
const channelDebugOutput = `2025-01-10T09:12:01.113Z  INFO ThreadId(01) Creating new channel with order ORDER_UNORDERED
2025-01-10T09:12:09.551Z  INFO ThreadId(01) channel handshake already finished for Channel { ordering: ORDER_UNORDERED, a_side: ChannelSide { chain: BaseChainHandle { chain_id: secretdev-1 }, client_id: 07-tendermint-0, connection_id: connection-0, port_id: wasm.secret1ics20, channel_id: channel-4, version: Some(ics20-1) }, b_side: ChannelSide { chain: BaseChainHandle { chain_id: secretdev-2 }, client_id: 07-tendermint-0, connection_id: connection-0, port_id: transfer, channel_id: channel-7, version: Some(ics20-1) }, connection_delay: 0ns }
SUCCESS Channel {
    ordering: Unordered,
    a_side: ChannelSide {
        chain: BaseChainHandle {
            chain_id: ChainId {
                id: "secretdev-1",
                version: 1,
            },
            runtime_sender: Sender { .. },
        },
        client_id: ClientId(
            "07-tendermint-0",
        ),
        connection_id: ConnectionId(
            "connection-0",
        ),
        port_id: PortId(
            "wasm.secret1ics20",
        ),
        channel_id: Some(
            ChannelId(
                "channel-4",
            ),
        ),
        version: None,
    },
    b_side: ChannelSide {
        chain: BaseChainHandle {
            chain_id: ChainId {
                id: "secretdev-2",
                version: 2,
            },
            runtime_sender: Sender { .. },
        },
        client_id: ClientId(
            "07-tendermint-0",
        ),
        connection_id: ConnectionId(
            "connection-0",
        ),
        port_id: PortId(
            "transfer",
        ),
        channel_id: Some(
            ChannelId(
                "channel-7",
            ),
        ),
        version: None,
    },
    connection_delay: 0ns,
}
`

// hermes 1.8 create channel with --json
const channelJSONOutput = `{"timestamp":"2025-01-10T09:12:01.113Z","level":"INFO","fields":{"message":"Creating new channel with order ORDER_UNORDERED"},"target":"ibc_relayer_cli::commands::create::channel"}
{"timestamp":"2025-01-10T09:12:05.001Z","level":"INFO","fields":{"message":"ChanOpenInit","channel_id":"channel-4"},"target":"ibc_relayer::channel"}
{"result":{"a_side":{"chain":{"id":"secretdev-1"},"channel_id":"channel-4","client_id":"07-tendermint-0","connection_id":"connection-0","port_id":"wasm.secret1ics20","version":"ics20-1"},"b_side":{"chain":{"id":"secretdev-2"},"channel_id":"channel-7","client_id":"07-tendermint-0","connection_id":"connection-0","port_id":"transfer","version":"ics20-1"},"connection_delay":{"nanos":0,"secs":0},"ordering":"Unordered"},"status":"success"}
`

const connectionDebugOutput = `SUCCESS Connection {
    delay_period: 0ns,
    a_side: ConnectionSide {
        chain: BaseChainHandle {
            chain_id: ChainId {
                id: "secretdev-1",
                version: 1,
            },
            runtime_sender: Sender { .. },
        },
        client_id: ClientId(
            "07-tendermint-1",
        ),
        connection_id: Some(
            ConnectionId(
                "connection-1",
            ),
        ),
    },
    b_side: ConnectionSide {
        chain: BaseChainHandle {
            chain_id: ChainId {
                id: "secretdev-2",
                version: 2,
            },
            runtime_sender: Sender { .. },
        },
        client_id: ClientId(
            "07-tendermint-3",
        ),
        connection_id: Some(
            ConnectionId(
                "connection-3",
            ),
        ),
    },
}
`

func TestParseChannelPair(t *testing.T) {
	tests := []struct {
		name   string
		output string
		wantA  string
		wantB  string
	}{
		{
			name:   "json result line",
			output: channelJSONOutput,
			wantA:  "channel-4",
			wantB:  "channel-7",
		},
		{
			name:   "debug output",
			output: channelDebugOutput,
			wantA:  "channel-4",
			wantB:  "channel-7",
		},
		{
			name:   "compact debug output",
			output: `a_side:ChannelSide{port_id:PortId("transfer"),channel_id:Some(ChannelId("channel-12")),},b_side:ChannelSide{port_id:PortId("transfer"),channel_id:Some(ChannelId("channel-0")),}`,
			wantA:  "channel-12",
			wantB:  "channel-0",
		},
		{
			name:   "same id on both sides",
			output: "opened channel-0 on secretdev-1\ncounterparty channel-0 on secretdev-2\n",
			wantA:  "channel-0",
			wantB:  "channel-0",
		},
		{
			name:   "bare identifiers in order",
			output: "a channel-3 b channel-3\nINFO relaying on channel-9\n",
			wantA:  "channel-3",
			wantB:  "channel-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, err := ParseChannelPair([]byte(tt.output))
			require.NoError(t, err)
			require.Equal(t, tt.wantA, a)
			require.Equal(t, tt.wantB, b)
		})
	}
}

func TestParseChannelPairFailure(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{name: "empty", output: ""},
		{name: "error only", output: "ERROR channel open init failed: connection-0 is not open"},
		{name: "single channel", output: "created channel-0"},
		{name: "json error", output: `{"result":"connection not found","status":"error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseChannelPair([]byte(tt.output))
			require.ErrorIs(t, err, types.ErrProtocolParse)
		})
	}
}

func TestParseConnectionPair(t *testing.T) {
	a, b, err := ParseConnectionPair([]byte(connectionDebugOutput))
	require.NoError(t, err)
	require.Equal(t, "connection-1", a)
	require.Equal(t, "connection-3", b)

	jsonOut := `{"result":{"a_side":{"client_id":"07-tendermint-1","connection_id":"connection-1"},"b_side":{"client_id":"07-tendermint-3","connection_id":"connection-3"},"delay_period":{"nanos":0,"secs":0}},"status":"success"}`
	a, b, err = ParseConnectionPair([]byte(jsonOut))
	require.NoError(t, err)
	require.Equal(t, "connection-1", a)
	require.Equal(t, "connection-3", b)

	_, _, err = ParseConnectionPair([]byte("Error: failed to build connection: client 07-tendermint-9 not found"))
	require.ErrorIs(t, err, types.ErrProtocolParse)
}
