package e2e

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	"go.uber.org/zap/zaptest"

	"github.com/celestiaorg/ics20-harness/framework/chain"
	"github.com/celestiaorg/ics20-harness/framework/ibc"
	"github.com/celestiaorg/ics20-harness/framework/ibc/handshake"
	"github.com/celestiaorg/ics20-harness/framework/ibc/relayer"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

const (
	chainAID = "secretdev-1"
	chainBID = "secretdev-2"
)

type credit struct {
	chainID, address, denom string
	amount                  sdkmath.Int
}

// fakeNetwork is an in-memory pair of chains joined by a relayer that only moves packets
// when asked to clear them. It also plays the relayer's command runner.
type fakeNetwork struct {
	mu       sync.Mutex
	balances map[string]sdkmath.Int
	pending  []credit
	// unwind maps an ibc denom on chain B back to the denom it came from on chain A
	unwind map[string]string

	commands      [][]string
	missedClears  int
	createExit    int
	hangOnCreate  bool
	channelStates ibc.State

	// connection is the open connection as seen from chain A
	connection       ibc.Connection
	connectionLookup []string
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		balances:      map[string]sdkmath.Int{},
		unwind:        map[string]string{},
		channelStates: ibc.StateOpen,
		connection:    ibc.Connection{ConnectionID: "connection-0", CounterpartyID: "connection-0", State: ibc.StateOpen},
	}
}

func balanceKey(chainID, address, denom string) string {
	return chainID + "|" + address + "|" + denom
}

func (n *fakeNetwork) setBalance(chainID, address, denom string, amount int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[balanceKey(chainID, address, denom)] = sdkmath.NewInt(amount)
}

func (n *fakeNetwork) balance(chainID, address, denom string) sdkmath.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if v, ok := n.balances[balanceKey(chainID, address, denom)]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (n *fakeNetwork) querier(chainID string) types.BalanceQuerier {
	return types.BalanceQuerierFunc(func(_ context.Context, address, denom string) (sdk.Coin, bool, error) {
		amount := n.balance(chainID, address, denom)
		if amount.IsZero() {
			return sdk.Coin{}, false, nil
		}
		return sdk.Coin{Denom: denom, Amount: amount}, true, nil
	})
}

// send debits the sender now and credits the receiver once packets are cleared.
func (n *fakeNetwork) send(from, to credit) (sdk.TxResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := balanceKey(from.chainID, from.address, from.denom)
	have, ok := n.balances[key]
	if !ok || have.LT(from.amount) {
		return sdk.TxResponse{Code: 5, RawLog: fmt.Sprintf("insufficient funds: %s%s", have, from.denom)}, nil
	}
	n.balances[key] = have.Sub(from.amount)
	n.pending = append(n.pending, to)
	return sdk.TxResponse{TxHash: fmt.Sprintf("TX%d", len(n.pending))}, nil
}

func (n *fakeNetwork) Exec(ctx context.Context, cmd []string, _ []string) (types.ExecResult, error) {
	if n.hangOnCreate && strings.Contains(strings.Join(cmd, " "), "create channel") {
		<-ctx.Done()
		return types.ExecResult{}, ctx.Err()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.commands = append(n.commands, cmd)

	args := strings.Join(cmd, " ")
	switch {
	case strings.Contains(args, "create channel"):
		if n.createExit != 0 {
			return types.ExecResult{ExitCode: n.createExit, Stderr: []byte("ERROR connection-0 does not exist")}, nil
		}
		return types.ExecResult{Stdout: []byte(`{"result":{"a_side":{"channel_id":"channel-4"},"b_side":{"channel_id":"channel-7"}},"status":"success"}`)}, nil
	case strings.Contains(args, "create connection"):
		n.connection = ibc.Connection{ConnectionID: "connection-2", CounterpartyID: "connection-5", State: ibc.StateOpen}
		return types.ExecResult{Stdout: []byte(`{"result":{"a_side":{"connection_id":"connection-2"},"b_side":{"connection_id":"connection-5"}},"status":"success"}`)}, nil
	case strings.Contains(args, "clear packets"):
		if n.missedClears > 0 {
			n.missedClears--
			return types.ExecResult{ExitCode: 1, Stderr: []byte("ERROR query failed")}, nil
		}
		for _, c := range n.pending {
			key := balanceKey(c.chainID, c.address, c.denom)
			have, ok := n.balances[key]
			if !ok {
				have = sdkmath.ZeroInt()
			}
			n.balances[key] = have.Add(c.amount)
		}
		n.pending = nil
		return types.ExecResult{}, nil
	}
	return types.ExecResult{ExitCode: 2, Stderr: []byte("unknown command")}, nil
}

// Connection answers for both chains: chain A knows n.connection and chain B its counterparty.
func (n *fakeNetwork) Connection(_ context.Context, connectionID string) (ibc.Connection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connectionLookup = append(n.connectionLookup, connectionID)

	switch connectionID {
	case "", n.connection.ConnectionID:
		return n.connection, nil
	case n.connection.CounterpartyID:
		return ibc.Connection{ConnectionID: connectionID, CounterpartyID: n.connection.ConnectionID, State: ibc.StateOpen}, nil
	}
	return ibc.Connection{ConnectionID: connectionID, State: ibc.StateNotFound}, nil
}

func (n *fakeNetwork) ChannelState(context.Context, string, string) (ibc.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channelStates, nil
}

// chainBBroadcaster executes MsgTransfer on chain B.
type chainBBroadcaster struct {
	net       *fakeNetwork
	rejectAll bool
}

func (b *chainBBroadcaster) BroadcastMessages(_ context.Context, signer string, msgs ...sdk.Msg) (sdk.TxResponse, error) {
	if b.rejectAll {
		return sdk.TxResponse{Code: 11, RawLog: "out of gas"}, nil
	}
	msg, ok := msgs[0].(*transfertypes.MsgTransfer)
	if !ok || len(msgs) != 1 {
		return sdk.TxResponse{}, fmt.Errorf("unexpected msgs %v", msgs)
	}
	if msg.Sender != signer {
		return sdk.TxResponse{Code: 4, RawLog: "unauthorized"}, nil
	}

	b.net.mu.Lock()
	origin := b.net.unwind[msg.Token.Denom]
	b.net.mu.Unlock()

	return b.net.send(
		credit{chainID: chainBID, address: msg.Sender, denom: msg.Token.Denom, amount: msg.Token.Amount},
		credit{chainID: chainAID, address: msg.Receiver, denom: origin, amount: msg.Token.Amount},
	)
}

// heightCounter advances one block per query.
type heightCounter struct {
	mu sync.Mutex
	h  int64
}

func (c *heightCounter) Height(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h++
	return c.h, nil
}

func newFakeEnv(t *testing.T, n *fakeNetwork, opts ...Option) *Env {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := DefaultConfig(append([]Option{
		WithChains(
			ChainConfig{ChainID: chainAID, RPCAddr: "http://localhost:26657", GRPCAddr: "localhost:9090"},
			ChainConfig{ChainID: chainBID, RPCAddr: "http://localhost:36657", GRPCAddr: "localhost:39090"},
		),
		WithSetupTimeout(time.Second),
		WithTransferTimeout(time.Second),
		WithPollInterval(time.Millisecond),
	}, opts...)...)

	clients := func(id string) ChainClients {
		return ChainClients{
			ChainID: id,
			Probe:   chain.NewProbe(logger, id, &heightCounter{}, chain.WithProbeInterval(time.Millisecond)),
			Bank:    n.querier(id),
			Watcher: handshake.NewWatcher(logger, id, n, handshake.WithInterval(time.Millisecond)),
		}
	}

	hermes := relayer.NewHermes(logger, n, relayer.WithJSONOutput(true))
	return NewEnv(logger, cfg, hermes, clients(chainAID), clients(chainBID))
}
