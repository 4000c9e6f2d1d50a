package chain

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

const defaultProbeInterval = time.Second

var _ types.HeightQuerier = RPCHeightQuerier{}

// RPCHeightQuerier reads the latest block height from the CometBFT /status endpoint.
type RPCHeightQuerier struct {
	Client rpcclient.StatusClient
}

// Height retrieves the latest block height of the chain using the CometBFT RPC client.
func (q RPCHeightQuerier) Height(ctx context.Context) (int64, error) {
	res, err := q.Client.Status(ctx)
	if err != nil {
		return 0, fmt.Errorf("cometbft rpc client status: %w", err)
	}
	return res.SyncInfo.LatestBlockHeight, nil
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithProbeInterval sets the delay between height queries.
func WithProbeInterval(d time.Duration) ProbeOption {
	return func(p *Probe) {
		p.interval = d
	}
}

// Probe observes block production on a single chain.
type Probe struct {
	chainID  string
	querier  types.HeightQuerier
	interval time.Duration
	logger   *zap.Logger
}

// NewProbe returns a Probe for the chain.
func NewProbe(logger *zap.Logger, chainID string, querier types.HeightQuerier, opts ...ProbeOption) *Probe {
	p := &Probe{
		chainID:  chainID,
		querier:  querier,
		interval: defaultProbeInterval,
		logger:   logger.With(zap.String("chain_id", chainID)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ChainID returns the id of the probed chain.
func (p *Probe) ChainID() string {
	return p.chainID
}

// Height returns the latest block height.
func (p *Probe) Height(ctx context.Context) (int64, error) {
	return p.querier.Height(ctx)
}

// AwaitHeightIncrease returns once the chain height advances past the first height observed.
func (p *Probe) AwaitHeightIncrease(ctx context.Context, timeout time.Duration) error {
	return p.WaitForBlocks(ctx, 1, timeout)
}

// WaitForBlocks returns once the chain has produced n blocks after the first height observed.
// Query errors are retried until timeout elapses, at which point ErrTimeout is returned.
func (p *Probe) WaitForBlocks(ctx context.Context, n int64, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		start, last int64 = -1, -1
		lastErr     error
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for waitCtx.Err() == nil {
		height, err := p.querier.Height(waitCtx)
		switch {
		case err != nil:
			lastErr = err
			p.logger.Debug("height query failed", zap.Error(err))
		case start < 0:
			start, last = height, height
			p.logger.Debug("observed starting height", zap.Int64("height", height))
		default:
			last = height
			if height-start >= n {
				p.logger.Info("chain is producing blocks", zap.Int64("start", start), zap.Int64("height", height))
				return nil
			}
		}

		select {
		case <-waitCtx.Done():
		case <-ticker.C:
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("context cancelled while waiting for blocks on %s: %w", p.chainID, ctx.Err())
	}
	if start < 0 {
		return errorsmod.Wrapf(types.ErrTimeout, "chain %s never reported a height within %s: %v", p.chainID, timeout, lastErr)
	}
	return errorsmod.Wrapf(types.ErrTimeout, "chain %s advanced from %d to %d within %s, want %d blocks", p.chainID, start, last, timeout, n)
}

// AwaitLive waits in parallel for every probed chain to produce a new block.
// The first failure cancels the remaining waits.
func AwaitLive(ctx context.Context, timeout time.Duration, probes ...*Probe) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, p := range probes {
		eg.Go(func() error {
			return p.AwaitHeightIncrease(egCtx, timeout)
		})
	}
	return eg.Wait()
}
