package handshake

import (
	"context"
	"fmt"

	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/celestiaorg/ics20-harness/framework/ibc"
)

// StateQuerier reports the current handshake state of connection and channel ends on one chain.
// Objects the chain does not know about are reported as ibc.StateNotFound.
type StateQuerier interface {
	// Connection returns the connection end with its state and counterparty. An empty id
	// selects the open connection with the lowest sequence, or, when none is open, reports
	// the most advanced state with no id.
	Connection(ctx context.Context, connectionID string) (ibc.Connection, error)
	// ChannelState returns the state of the channel end. An empty port id matches the
	// channel id on any port.
	ChannelState(ctx context.Context, portID, channelID string) (ibc.State, error)
}

var _ StateQuerier = &GRPCStateQuerier{}

// GRPCStateQuerier queries ibc-go's connection and channel query services.
type GRPCStateQuerier struct {
	connections connectiontypes.QueryClient
	channels    channeltypes.QueryClient
}

// NewGRPCStateQuerier returns a StateQuerier using the given connection.
func NewGRPCStateQuerier(conn grpc.ClientConnInterface) *GRPCStateQuerier {
	return &GRPCStateQuerier{
		connections: connectiontypes.NewQueryClient(conn),
		channels:    channeltypes.NewQueryClient(conn),
	}
}

// Connection implements StateQuerier.
func (q *GRPCStateQuerier) Connection(ctx context.Context, connectionID string) (ibc.Connection, error) {
	if connectionID == "" {
		return q.firstOpenConnection(ctx)
	}

	res, err := q.connections.Connection(ctx, &connectiontypes.QueryConnectionRequest{ConnectionId: connectionID})
	if err != nil {
		state, err := notFoundOr(err, fmt.Sprintf("failed to query connection %s", connectionID))
		return ibc.Connection{ConnectionID: connectionID, State: state}, err
	}
	if res.Connection == nil {
		return ibc.Connection{ConnectionID: connectionID, State: ibc.StateNotFound}, nil
	}
	end := res.Connection
	return ibc.Connection{
		ConnectionID:         connectionID,
		CounterpartyID:       end.Counterparty.ConnectionId,
		ClientID:             end.ClientId,
		CounterpartyClientID: end.Counterparty.ClientId,
		State:                ibc.ParseState(end.State.String()),
	}, nil
}

func (q *GRPCStateQuerier) firstOpenConnection(ctx context.Context) (ibc.Connection, error) {
	res, err := q.connections.Connections(ctx, &connectiontypes.QueryConnectionsRequest{})
	if err != nil {
		state, err := notFoundOr(err, "failed to list connections")
		return ibc.Connection{State: state}, err
	}

	var (
		best    *connectiontypes.IdentifiedConnection
		bestSeq uint64
		states  = make([]ibc.State, 0, len(res.Connections))
	)
	for _, c := range res.Connections {
		state := ibc.ParseState(c.State.String())
		states = append(states, state)
		if !state.IsOpen() {
			continue
		}
		seq, err := connectiontypes.ParseConnectionSequence(c.Id)
		if err != nil {
			continue
		}
		if best == nil || seq < bestSeq {
			best, bestSeq = c, seq
		}
	}
	if best == nil {
		return ibc.Connection{State: mostAdvanced(states)}, nil
	}
	return ibc.Connection{
		ConnectionID:         best.Id,
		CounterpartyID:       best.Counterparty.ConnectionId,
		ClientID:             best.ClientId,
		CounterpartyClientID: best.Counterparty.ClientId,
		State:                ibc.StateOpen,
	}, nil
}

// ChannelState implements StateQuerier.
func (q *GRPCStateQuerier) ChannelState(ctx context.Context, portID, channelID string) (ibc.State, error) {
	if portID == "" {
		res, err := q.channels.Channels(ctx, &channeltypes.QueryChannelsRequest{})
		if err != nil {
			return notFoundOr(err, "failed to list channels")
		}
		var states []ibc.State
		for _, c := range res.Channels {
			if c.ChannelId == channelID {
				states = append(states, ibc.ParseState(c.State.String()))
			}
		}
		return mostAdvanced(states), nil
	}

	res, err := q.channels.Channel(ctx, &channeltypes.QueryChannelRequest{PortId: portID, ChannelId: channelID})
	if err != nil {
		return notFoundOr(err, fmt.Sprintf("failed to query channel %s/%s", portID, channelID))
	}
	if res.Channel == nil {
		return ibc.StateNotFound, nil
	}
	return ibc.ParseState(res.Channel.State.String()), nil
}

func notFoundOr(err error, msg string) (ibc.State, error) {
	if status.Code(err) == codes.NotFound {
		return ibc.StateNotFound, nil
	}
	return "", fmt.Errorf("%s: %w", msg, err)
}

var stateRank = map[ibc.State]int{
	ibc.StateUninitialized: 1,
	ibc.StateInit:          2,
	ibc.StateTryOpen:       3,
	ibc.StateOpen:          4,
}

// mostAdvanced returns OPEN if any state is open, otherwise the furthest handshake step seen.
func mostAdvanced(states []ibc.State) ibc.State {
	best := ibc.StateNotFound
	for _, s := range states {
		if stateRank[s] > stateRank[best] {
			best = s
		}
	}
	return best
}
