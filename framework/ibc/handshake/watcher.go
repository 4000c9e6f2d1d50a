// Package handshake waits for IBC connections and channels to finish their handshakes.
package handshake

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/ibc"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

const defaultInterval = time.Second

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the delay between state queries.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.interval = d
	}
}

// Watcher polls one chain until a connection or channel end reaches OPEN.
type Watcher struct {
	chainID  string
	querier  StateQuerier
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher returns a Watcher for the given chain.
func NewWatcher(logger *zap.Logger, chainID string, querier StateQuerier, opts ...Option) *Watcher {
	w := &Watcher{
		chainID:  chainID,
		querier:  querier,
		interval: defaultInterval,
		logger:   logger.With(zap.String("chain_id", chainID)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AwaitConnectionOpen waits until the connection is OPEN and returns its end, which names
// the counterparty connection. An empty connectionID waits for any connection on the chain
// to open and returns the one with the lowest sequence.
func (w *Watcher) AwaitConnectionOpen(ctx context.Context, connectionID string, timeout time.Duration) (ibc.Connection, error) {
	name := "connection " + connectionID
	if connectionID == "" {
		name = "any connection"
	}

	var end ibc.Connection
	err := w.await(ctx, name, timeout, func(ctx context.Context) (ibc.State, error) {
		c, err := w.querier.Connection(ctx, connectionID)
		if err != nil {
			return "", err
		}
		end = c
		return c.State, nil
	})
	if err != nil {
		return ibc.Connection{}, err
	}
	return end, nil
}

// AwaitChannelOpen waits until the channel end is OPEN. An empty portID matches the
// channel on any port.
func (w *Watcher) AwaitChannelOpen(ctx context.Context, portID, channelID string, timeout time.Duration) error {
	name := "channel " + channelID
	if portID != "" {
		name = fmt.Sprintf("channel %s/%s", portID, channelID)
	}
	return w.await(ctx, name, timeout, func(ctx context.Context) (ibc.State, error) {
		return w.querier.ChannelState(ctx, portID, channelID)
	})
}

// await retries query until it reports OPEN. Query failures and pending states are retried
// alike; only the deadline ends the wait.
func (w *Watcher) await(ctx context.Context, name string, timeout time.Duration, query func(context.Context) (ibc.State, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := w.logger.With(zap.String("object", name))
	lastState := ibc.State("UNKNOWN")

	err := retry.Do(
		func() error {
			state, err := query(waitCtx)
			if err != nil {
				return err
			}
			lastState = state
			if !state.IsOpen() {
				return fmt.Errorf("%s is %s", name, state)
			}
			return nil
		},
		retry.Context(waitCtx),
		retry.UntilSucceeded(),
		retry.Delay(w.interval),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("handshake not complete", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err == nil {
		logger.Info("handshake complete")
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("context cancelled while waiting for %s on %s: %w", name, w.chainID, ctx.Err())
	}
	return errorsmod.Wrapf(types.ErrTimeout, "%s on %s not open after %s (last state %s)", name, w.chainID, timeout, lastState)
}
