package e2e

import (
	"context"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/chain"
	"github.com/celestiaorg/ics20-harness/framework/ibc"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

// SetupOptions selects the connection and ports of the channel SetupIBC creates.
type SetupOptions struct {
	// CreateConnection makes hermes create a new connection. Otherwise ConnectionID names an
	// existing connection on chain A, or, when empty, setup waits for a connection to open on
	// chain A and uses the open one with the lowest sequence. Chain B always waits for the
	// counterparty of the connection chosen on chain A.
	CreateConnection bool
	ConnectionID     string

	Channel ibc.CreateChannelOptions
}

// DefaultSetupOptions creates a transfer/transfer ICS20 channel on the first open connection.
func DefaultSetupOptions() SetupOptions {
	return SetupOptions{Channel: ibc.DefaultTransferChannelOptions(ibc.TransferPort, ibc.TransferPort)}
}

// SetupIBC brings the run to a state where a channel between the two chains is open on both
// ends. Steps run in order and the first failure aborts setup; the whole sequence, relayer
// commands included, shares the configured setup timeout.
func (e *Env) SetupIBC(ctx context.Context, opts SetupOptions) (ibc.Channel, error) {
	deadline := time.Now().Add(e.Config.Timeouts.Setup)
	remaining := func() time.Duration {
		return time.Until(deadline)
	}
	// relayer commands are bounded by setupCtx, waits by remaining()
	setupCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	e.Logger.Info("waiting for chains to produce blocks")
	if err := chain.AwaitLive(ctx, remaining(), e.ChainA.Probe, e.ChainB.Probe); err != nil {
		return ibc.Channel{}, fmt.Errorf("chains are not live: %w", err)
	}

	if e.Config.Relayer.WriteConfig {
		if err := e.installRelayerConfig(setupCtx); err != nil {
			return ibc.Channel{}, e.setupError(setupCtx, err)
		}
	}

	conn, err := e.setupConnection(ctx, setupCtx, opts, remaining)
	if err != nil {
		return ibc.Channel{}, err
	}
	e.Connection = conn

	e.Logger.Info("creating channel",
		zap.String("connection", conn.ConnectionID),
		zap.String("a_port", opts.Channel.SourcePortName),
		zap.String("b_port", opts.Channel.DestPortName),
	)
	ch, err := e.Relayer.CreateChannel(setupCtx, e.ChainA.ChainID, conn.ConnectionID, opts.Channel)
	if err != nil {
		return ibc.Channel{}, e.setupError(setupCtx, err)
	}

	if err := e.ChainA.Watcher.AwaitChannelOpen(ctx, ch.PortID, ch.ChannelID, remaining()); err != nil {
		return ibc.Channel{}, err
	}
	if err := e.ChainB.Watcher.AwaitChannelOpen(ctx, ch.CounterpartyPort, ch.CounterpartyID, remaining()); err != nil {
		return ibc.Channel{}, err
	}

	ch.State = ibc.StateOpen
	e.Channel = ch
	e.Logger.Info("channel open",
		zap.String(e.ChainA.ChainID, ch.PortID+"/"+ch.ChannelID),
		zap.String(e.ChainB.ChainID, ch.CounterpartyPort+"/"+ch.CounterpartyID),
	)
	return ch, nil
}

// setupError reports a step cut short by the setup deadline as ErrTimeout.
func (e *Env) setupError(setupCtx context.Context, err error) error {
	switch {
	case errors.Is(err, types.ErrTimeout):
		return fmt.Errorf("setup did not finish within %s: %w", e.Config.Timeouts.Setup, err)
	case errors.Is(setupCtx.Err(), context.DeadlineExceeded):
		return errorsmod.Wrapf(types.ErrTimeout, "setup did not finish within %s: %v", e.Config.Timeouts.Setup, err)
	}
	return err
}

func (e *Env) setupConnection(ctx, setupCtx context.Context, opts SetupOptions, remaining func() time.Duration) (ibc.Connection, error) {
	connectionID := opts.ConnectionID
	if opts.CreateConnection {
		created, err := e.Relayer.CreateConnection(setupCtx, e.ChainA.ChainID, e.ChainB.ChainID)
		if err != nil {
			return ibc.Connection{}, e.setupError(setupCtx, err)
		}
		connectionID = created.ConnectionID
	}

	e.Logger.Info("waiting for connection", zap.String("connection", connectionID))
	end, err := e.ChainA.Watcher.AwaitConnectionOpen(ctx, connectionID, remaining())
	if err != nil {
		return ibc.Connection{}, err
	}
	if end.CounterpartyID == "" {
		return ibc.Connection{}, errorsmod.Wrapf(types.ErrInvalidArgument, "open connection %s on %s has no counterparty", end.ConnectionID, e.ChainA.ChainID)
	}
	if _, err := e.ChainB.Watcher.AwaitConnectionOpen(ctx, end.CounterpartyID, remaining()); err != nil {
		return ibc.Connection{}, err
	}

	end.State = ibc.StateOpen
	return end, nil
}

func (e *Env) installRelayerConfig(ctx context.Context) error {
	if e.FileWriter == nil {
		return errorsmod.Wrap(types.ErrInvalidArgument, "relayer.write_config is set but the env has no file writer")
	}
	hermesCfg, err := e.Config.HermesConfig()
	if err != nil {
		return err
	}
	return e.Relayer.WriteConfig(ctx, e.FileWriter, hermesCfg)
}
