// Package verify polls chains until the effect of an ICS20 transfer becomes visible.
package verify

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/tx"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultTimeout      = 5 * time.Minute
)

// Option configures a Poller.
type Option func(*Poller)

// WithPollInterval sets the sleep between iterations.
func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithTimeout sets the deadline applied to expectations that do not carry their own.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		p.timeout = d
	}
}

// Poller drives the relayer and watches a balance until it matches an expectation.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPoller returns a Poller with a 500ms interval and a 5m default timeout.
func NewPoller(logger *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		interval: defaultPollInterval,
		timeout:  defaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TransferAndVerify submits a transfer and waits for its expected balance on the
// destination chain. Submission is never retried: a transport error is returned as is and
// a non-zero result code fails with ErrRejectedTransaction.
func (p *Poller) TransferAndVerify(ctx context.Context, submit SubmitFunc, query types.BalanceQuerier, clear ClearFunc, expect Expectation) (Result, error) {
	if err := validate(expect); err != nil {
		return Result{}, err
	}

	resp, err := submit(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := tx.AssertSuccess(resp); err != nil {
		return Result{TxResponse: resp}, err
	}

	pending := expect.Pending(time.Now(), p.timeout)
	p.logger.Info("transfer accepted",
		zap.String("tx_hash", resp.TxHash),
		zap.Int64("height", resp.Height),
		zap.Stringer("pending", pending),
	)

	res, err := p.await(ctx, query, clear, pending)
	res.TxResponse = resp
	return res, err
}

// AwaitBalance runs the relay-then-observe loop for an expectation without submitting
// anything, e.g. to confirm a sender was debited.
func (p *Poller) AwaitBalance(ctx context.Context, query types.BalanceQuerier, clear ClearFunc, expect Expectation) (Result, error) {
	if err := validate(expect); err != nil {
		return Result{}, err
	}
	return p.await(ctx, query, clear, expect.Pending(time.Now(), p.timeout))
}

func (p *Poller) await(ctx context.Context, query types.BalanceQuerier, clear ClearFunc, pending PendingTransfer) (Result, error) {
	waitCtx, cancel := context.WithDeadline(ctx, pending.Deadline)
	defer cancel()

	logger := p.logger.With(
		zap.String("chain_id", pending.DestChain),
		zap.String("address", pending.Address),
		zap.String("denom", pending.ExpectedDenom),
	)

	start := time.Now()
	var (
		res     Result
		lastErr error
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for waitCtx.Err() == nil {
		select {
		case <-waitCtx.Done():
			continue
		case <-timer.C:
		}
		res.Attempts++

		if clear != nil {
			if err := clear(waitCtx); err != nil {
				logger.Debug("relay attempt failed", zap.Int("attempt", res.Attempts), zap.Error(err))
			}
		}

		coin, found, err := query.Balance(waitCtx, pending.Address, pending.ExpectedDenom)
		switch {
		case err != nil:
			lastErr = err
			logger.Debug("balance query failed", zap.Int("attempt", res.Attempts), zap.Error(err))
		case matches(pending, coin.Amount, found):
			res.Outcome = OutcomeConverged
			res.Observed, res.Found = coin, found
			res.Elapsed = time.Since(start)
			logger.Info("balance converged", zap.Int("attempts", res.Attempts), zap.Duration("elapsed", res.Elapsed))
			return res, nil
		default:
			lastErr = nil
			res.Observed, res.Found = coin, found
			logger.Debug("balance not converged", zap.Int("attempt", res.Attempts), zap.Bool("found", found), zap.Stringer("observed", coin.Amount))
		}

		timer.Reset(p.interval)
	}

	res.Outcome = OutcomeTimedOut
	res.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		return res, fmt.Errorf("context cancelled while waiting for %s: %w", pending, ctx.Err())
	}

	last := "absent"
	if res.Found {
		last = res.Observed.String()
	}
	if lastErr != nil {
		last = fmt.Sprintf("%s, last query error: %v", last, lastErr)
	}
	return res, errorsmod.Wrapf(types.ErrTimeout, "waiting for %s after %d attempts (last observed: %s)", pending, res.Attempts, last)
}

// matches reports whether the observed balance is the expected one. An absent balance
// matches an expected zero.
func matches(pending PendingTransfer, amount sdkmath.Int, found bool) bool {
	if !found {
		return pending.ExpectedAmount.IsZero()
	}
	return !amount.IsNil() && amount.Equal(pending.ExpectedAmount)
}

func validate(expect Expectation) error {
	switch {
	case expect.Address == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "expectation has no address")
	case expect.Denom == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "expectation has no denom")
	case expect.Amount.IsNil() || expect.Amount.IsNegative():
		return errorsmod.Wrap(types.ErrInvalidArgument, "expectation needs a non-negative amount")
	}
	return nil
}
