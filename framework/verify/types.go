package verify

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// SubmitFunc broadcasts the transaction that starts a transfer.
type SubmitFunc func(ctx context.Context) (sdk.TxResponse, error)

// ClearFunc asks the relayer to deliver whatever is pending on the transfer's channel.
type ClearFunc func(ctx context.Context) error

// Outcome is how a convergence wait ended.
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Expectation describes the balance a transfer should produce.
type Expectation struct {
	SourceChain string
	DestChain   string
	// ChannelID is the channel on the source chain the transfer leaves through.
	ChannelID string
	// Address and Denom select the balance to watch on DestChain.
	Address string
	Denom   string
	// Amount is the exact balance expected once the transfer has been relayed, not the
	// amount sent. A zero amount is satisfied by an absent balance.
	Amount sdkmath.Int
	// Timeout defaults to the poller's timeout when zero.
	Timeout time.Duration
}

// Pending returns the in-flight transfer for an expectation accepted at now.
func (e Expectation) Pending(now time.Time, defaultTimeout time.Duration) PendingTransfer {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return PendingTransfer{
		SourceChain:    e.SourceChain,
		DestChain:      e.DestChain,
		ChannelID:      e.ChannelID,
		Address:        e.Address,
		ExpectedDenom:  e.Denom,
		ExpectedAmount: e.Amount,
		Deadline:       now.Add(timeout),
	}
}

// PendingTransfer is a transfer whose triggering transaction was accepted and whose
// effect on the destination chain has not been observed yet.
type PendingTransfer struct {
	SourceChain    string
	DestChain      string
	ChannelID      string
	Address        string
	ExpectedDenom  string
	ExpectedAmount sdkmath.Int
	Deadline       time.Time
}

func (p PendingTransfer) String() string {
	return fmt.Sprintf("%s%s for %s on %s (via %s from %s)", p.ExpectedAmount, p.ExpectedDenom, p.Address, p.DestChain, p.ChannelID, p.SourceChain)
}

// Result reports how a wait ended and what was last seen.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	// Observed is the last balance read; Found is false when the denom was absent.
	Observed sdk.Coin
	Found    bool
	// TxResponse is the submitted transaction's response, when there was one.
	TxResponse sdk.TxResponse
}
