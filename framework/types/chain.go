package types

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// HeightQuerier returns the latest committed block height of a chain.
type HeightQuerier interface {
	Height(ctx context.Context) (int64, error)
}

// BalanceQuerier looks up the balance of a single denomination held by an address.
// A missing balance is reported with found set to false, not as an error.
type BalanceQuerier interface {
	Balance(ctx context.Context, address, denom string) (coin sdk.Coin, found bool, err error)
}

// BalanceQuerierFunc adapts a function to the BalanceQuerier interface. It is useful for
// balances that do not live in the bank module, such as contract-held token balances.
type BalanceQuerierFunc func(ctx context.Context, address, denom string) (sdk.Coin, bool, error)

// Balance calls f(ctx, address, denom).
func (f BalanceQuerierFunc) Balance(ctx context.Context, address, denom string) (sdk.Coin, bool, error) {
	return f(ctx, address, denom)
}

// Broadcaster signs and broadcasts messages on behalf of the given signer and returns
// the response once the transaction has been included in a block.
type Broadcaster interface {
	BroadcastMessages(ctx context.Context, signer string, msgs ...sdk.Msg) (sdk.TxResponse, error)
}
