package relayer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/ibc"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

const defaultBinary = "hermes"

// HermesOption configures a Hermes driver.
type HermesOption func(*Hermes)

// WithBinary overrides the hermes executable name or path.
func WithBinary(binary string) HermesOption {
	return func(h *Hermes) {
		h.binary = binary
	}
}

// WithConfigPath passes --config to every invocation.
func WithConfigPath(path string) HermesOption {
	return func(h *Hermes) {
		h.configPath = path
	}
}

// WithJSONOutput passes --json to every invocation.
func WithJSONOutput(enabled bool) HermesOption {
	return func(h *Hermes) {
		h.json = enabled
	}
}

// WithEnv sets extra environment variables for every invocation.
func WithEnv(env ...string) HermesOption {
	return func(h *Hermes) {
		h.env = append(h.env, env...)
	}
}

// Hermes runs one-shot hermes commands through a CommandRunner. It keeps no state between
// calls, so a single driver can be shared by every scenario in a run.
type Hermes struct {
	runner     types.CommandRunner
	binary     string
	configPath string
	json       bool
	env        []string
	logger     *zap.Logger
}

// NewHermes returns a Hermes driver that executes commands with runner.
func NewHermes(logger *zap.Logger, runner types.CommandRunner, opts ...HermesOption) *Hermes {
	h := &Hermes{
		runner: runner,
		binary: defaultBinary,
		logger: logger.With(zap.String("relayer", "hermes")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ConfigPath returns the configuration file passed to hermes, if any.
func (h *Hermes) ConfigPath() string {
	return h.configPath
}

// UsingConfig returns a copy of the driver that passes path as --config. The receiver is
// not modified.
func (h *Hermes) UsingConfig(path string) *Hermes {
	c := *h
	c.configPath = path
	return &c
}

// CreateConnection opens a connection (and the clients underneath it) between the two chains.
func (h *Hermes) CreateConnection(ctx context.Context, chainA, chainB string) (ibc.Connection, error) {
	if chainA == "" || chainB == "" {
		return ibc.Connection{}, errorsmod.Wrap(types.ErrInvalidArgument, "both chain ids are required to create a connection")
	}

	res, err := h.mustSucceed(ctx, "create connection", "create", "connection", "--a-chain", chainA, "--b-chain", chainB)
	if err != nil {
		return ibc.Connection{}, err
	}

	a, b, err := ParseConnectionPair(combinedOutput(res))
	if err != nil {
		return ibc.Connection{}, errorsmod.Wrapf(err, "create connection %s <> %s", chainA, chainB)
	}

	h.logger.Info("created connection", zap.String("a_chain", chainA), zap.String("a_connection", a), zap.String("b_chain", chainB), zap.String("b_connection", b))
	return ibc.Connection{ConnectionID: a, CounterpartyID: b}, nil
}

// CreateChannel runs the channel handshake on an existing connection of chainA. The returned
// channel carries the id on chainA as ChannelID and the counterparty's id as CounterpartyID.
// Its State is left empty; callers confirm the handshake on chain.
func (h *Hermes) CreateChannel(ctx context.Context, chainA, connectionA string, opts ibc.CreateChannelOptions) (ibc.Channel, error) {
	if chainA == "" || connectionA == "" {
		return ibc.Channel{}, errorsmod.Wrap(types.ErrInvalidArgument, "chain and connection ids are required to create a channel")
	}
	if opts.SourcePortName == "" || opts.DestPortName == "" {
		return ibc.Channel{}, errorsmod.Wrap(types.ErrInvalidArgument, "both port ids are required to create a channel")
	}
	if opts.Order == "" {
		opts.Order = ibc.OrderUnordered
	}
	if opts.Version == "" {
		opts.Version = ibc.ICS20Version
	}

	res, err := h.mustSucceed(ctx, "create channel",
		"create", "channel",
		"--order", string(opts.Order),
		"--a-chain", chainA,
		"--a-connection", connectionA,
		"--a-port", opts.SourcePortName,
		"--b-port", opts.DestPortName,
		"--channel-version", opts.Version,
	)
	if err != nil {
		return ibc.Channel{}, err
	}

	a, b, err := ParseChannelPair(combinedOutput(res))
	if err != nil {
		return ibc.Channel{}, errorsmod.Wrapf(err, "create channel on %s/%s", chainA, connectionA)
	}

	h.logger.Info("created channel",
		zap.String("a_chain", chainA),
		zap.String("a_port", opts.SourcePortName),
		zap.String("a_channel", a),
		zap.String("b_port", opts.DestPortName),
		zap.String("b_channel", b),
	)

	return ibc.Channel{
		ChannelID:        a,
		CounterpartyID:   b,
		PortID:           opts.SourcePortName,
		CounterpartyPort: opts.DestPortName,
		Order:            opts.Order,
		Version:          opts.Version,
	}, nil
}

// ClearPackets relays all pending packets and acknowledgements on the channel once. A
// non-zero exit only means there was nothing to relay yet or the chains lagged, so it is
// logged and ignored. An error is returned only when hermes could not be run at all.
func (h *Hermes) ClearPackets(ctx context.Context, chainID, portID, channelID string) error {
	res, err := h.run(ctx, "clear", "packets", "--chain", chainID, "--port", portID, "--channel", channelID)
	if err != nil {
		return errorsmod.Wrapf(types.ErrExternalTool, "clear packets on %s %s/%s: %v", chainID, portID, channelID, err)
	}
	if res.ExitCode != 0 {
		h.logger.Debug("clear packets exited non-zero",
			zap.String("chain_id", chainID),
			zap.String("port", portID),
			zap.String("channel", channelID),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", truncate(res.Stderr, 256)),
		)
	}
	return nil
}

// mustSucceed runs the command and treats both runner failures and non-zero exits as
// ErrExternalTool. A command cut short by the deadline of ctx is ErrTimeout.
func (h *Hermes) mustSucceed(ctx context.Context, what string, args ...string) (types.ExecResult, error) {
	res, err := h.run(ctx, args...)
	if err != nil {
		switch ctxErr := ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			return res, errorsmod.Wrapf(types.ErrTimeout, "%s did not finish before the deadline: %v", what, err)
		case ctxErr != nil:
			return res, fmt.Errorf("context cancelled while running %s: %w", what, ctxErr)
		}
		return res, errorsmod.Wrapf(types.ErrExternalTool, "%s: %v", what, err)
	}
	if res.ExitCode != 0 {
		return res, errorsmod.Wrapf(types.ErrExternalTool, "%s exited with code %d: %s", what, res.ExitCode, truncate(combinedOutput(res), 1024))
	}
	return res, nil
}

func (h *Hermes) run(ctx context.Context, args ...string) (types.ExecResult, error) {
	cmd := h.command(args...)
	h.logger.Debug("running hermes", zap.String("cmd", strings.Join(cmd, " ")))
	return h.runner.Exec(ctx, cmd, h.env)
}

func (h *Hermes) command(args ...string) []string {
	cmd := []string{h.binary}
	if h.configPath != "" {
		cmd = append(cmd, "--config", h.configPath)
	}
	if h.json {
		cmd = append(cmd, "--json")
	}
	return append(cmd, args...)
}

func combinedOutput(res types.ExecResult) []byte {
	out := make([]byte, 0, len(res.Stdout)+len(res.Stderr)+1)
	out = append(out, res.Stdout...)
	out = append(out, '\n')
	return append(out, res.Stderr...)
}
