package e2e

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/chain"
	"github.com/celestiaorg/ics20-harness/framework/docker"
	"github.com/celestiaorg/ics20-harness/framework/ibc"
	"github.com/celestiaorg/ics20-harness/framework/ibc/handshake"
	"github.com/celestiaorg/ics20-harness/framework/ibc/relayer"
	"github.com/celestiaorg/ics20-harness/framework/types"
	"github.com/celestiaorg/ics20-harness/framework/verify"
)

// ChainClients groups everything the harness uses to observe one chain.
type ChainClients struct {
	ChainID string
	Probe   *chain.Probe
	Bank    types.BalanceQuerier
	Watcher *handshake.Watcher
	// Signer is set when the chain config has a mnemonic.
	Signer *chain.KeySigner

	// Endpoint is set when the clients were dialed; it is closed by Env.Close.
	Endpoint *chain.Endpoint
}

// Env is the context of one harness run: the two chains, the relayer and, once SetupIBC has
// run, the channel between them. It is built once and passed to every scenario.
type Env struct {
	Config  Config
	Logger  *zap.Logger
	ChainA  ChainClients
	ChainB  ChainClients
	Relayer *relayer.Hermes
	Poller  *verify.Poller

	// FileWriter installs the hermes config when Relayer.WriteConfig is set.
	FileWriter types.FileWriter

	// Connection and Channel are filled by SetupIBC.
	Connection ibc.Connection
	Channel    ibc.Channel
}

// NewEnv assembles an Env from already constructed clients.
func NewEnv(logger *zap.Logger, cfg Config, hermes *relayer.Hermes, chainA, chainB ChainClients) *Env {
	return &Env{
		Config:  cfg,
		Logger:  logger,
		ChainA:  chainA,
		ChainB:  chainB,
		Relayer: hermes,
		Poller: verify.NewPoller(logger,
			verify.WithPollInterval(cfg.Timeouts.PollInterval),
			verify.WithTimeout(cfg.Timeouts.Transfer),
		),
	}
}

// Dial connects to both chains and to the relayer container described by cfg.
func Dial(ctx context.Context, logger *zap.Logger, cfg Config, cli docker.API) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var clients [2]ChainClients
	for i, c := range cfg.Chains {
		cc, err := dialChain(ctx, logger, cfg, c, cli)
		if err != nil {
			closeClients(clients[:i]...)
			return nil, err
		}
		clients[i] = cc
	}

	runnerOpts := []docker.ExecOption{}
	if cfg.Relayer.User != "" {
		runnerOpts = append(runnerOpts, docker.WithUser(cfg.Relayer.User))
	}
	runner := docker.NewExecRunner(logger, cli, cfg.Relayer.Container, runnerOpts...)

	hermes := relayer.NewHermes(logger, runner,
		relayer.WithBinary(cfg.Relayer.Binary),
		relayer.WithConfigPath(cfg.Relayer.ConfigPath),
		relayer.WithJSONOutput(cfg.Relayer.JSON),
	)

	env := NewEnv(logger, cfg, hermes, clients[0], clients[1])
	env.FileWriter = runner
	return env, nil
}

func dialChain(ctx context.Context, logger *zap.Logger, cfg Config, c ChainConfig, cli docker.API) (ChainClients, error) {
	rpcAddr, grpcAddr := c.RPCAddr, c.GRPCAddr
	if rpcAddr == "" {
		hostPort, err := docker.HostAddress(ctx, cli, c.Container, c.RPCPort)
		if err != nil {
			return ChainClients{}, fmt.Errorf("failed to resolve rpc address of %s: %w", c.ChainID, err)
		}
		rpcAddr = "http://" + hostPort
	}
	if grpcAddr == "" {
		hostPort, err := docker.HostAddress(ctx, cli, c.Container, c.GRPCPort)
		if err != nil {
			return ChainClients{}, fmt.Errorf("failed to resolve grpc address of %s: %w", c.ChainID, err)
		}
		grpcAddr = hostPort
	}

	endpoint, err := chain.Dial(logger, c.ChainID, rpcAddr, grpcAddr)
	if err != nil {
		return ChainClients{}, err
	}

	clients := ChainClients{
		ChainID:  c.ChainID,
		Probe:    endpoint.Probe(chain.WithProbeInterval(cfg.Timeouts.ProbeInterval)),
		Bank:     endpoint.Bank(),
		Watcher:  handshake.NewWatcher(logger, c.ChainID, handshake.NewGRPCStateQuerier(endpoint.GrpcConn), handshake.WithInterval(cfg.Timeouts.HandshakeInterval)),
		Endpoint: endpoint,
	}
	if c.Mnemonic == "" {
		return clients, nil
	}

	signer, err := newSigner(endpoint, c)
	if err != nil {
		_ = endpoint.Close()
		return ChainClients{}, err
	}
	clients.Signer = signer
	return clients, nil
}

func newSigner(endpoint *chain.Endpoint, c ChainConfig) (*chain.KeySigner, error) {
	coinType := c.CoinType
	if coinType == 0 {
		coinType = chain.CosmosCoinType
	}
	key, err := chain.KeyFromMnemonic(c.Mnemonic, coinType)
	if err != nil {
		return nil, fmt.Errorf("signer for %s: %w", c.ChainID, err)
	}

	var opts []chain.SignerOption
	if c.GasPrice != "" {
		price, err := sdk.ParseDecCoin(c.GasPrice)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "gas price %q for chain %s: %v", c.GasPrice, c.ChainID, err)
		}
		opts = append(opts, chain.WithGasPrice(price))
	}
	return endpoint.Signer(c.Bech32Prefix, key, opts...)
}

// Close releases the chain connections.
func (e *Env) Close() error {
	return closeClients(e.ChainA, e.ChainB)
}

func closeClients(clients ...ChainClients) error {
	var errs []error
	for _, c := range clients {
		if c.Endpoint == nil {
			continue
		}
		if err := c.Endpoint.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.ChainID, err))
		}
	}
	return errors.Join(errs...)
}

// ClearForward relays packets sent from chain A over the channel.
func (e *Env) ClearForward(ctx context.Context) error {
	return e.Relayer.ClearPackets(ctx, e.ChainB.ChainID, e.Channel.CounterpartyPort, e.Channel.CounterpartyID)
}

// ClearReturn relays packets sent from chain B over the channel, with the return config
// when one is set.
func (e *Env) ClearReturn(ctx context.Context) error {
	h := e.Relayer
	if path := e.Config.Relayer.ReturnConfigPath; path != "" {
		h = h.UsingConfig(path)
	}
	return h.ClearPackets(ctx, e.ChainA.ChainID, e.Channel.PortID, e.Channel.ChannelID)
}
