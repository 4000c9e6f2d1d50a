package chain

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"google.golang.org/grpc"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

var _ types.BalanceQuerier = &BankQuerier{}

// BankQuerier queries x/bank balances over gRPC.
type BankQuerier struct {
	client banktypes.QueryClient
}

// NewBankQuerier returns a BankQuerier using the given connection.
func NewBankQuerier(conn grpc.ClientConnInterface) *BankQuerier {
	return &BankQuerier{client: banktypes.NewQueryClient(conn)}
}

// Balance returns the bank balance of denom held by address. The bank module answers
// unknown denominations with a zero coin, which is reported as not found.
func (q *BankQuerier) Balance(ctx context.Context, address, denom string) (sdk.Coin, bool, error) {
	res, err := q.client.Balance(ctx, &banktypes.QueryBalanceRequest{
		Address: address,
		Denom:   denom,
	})
	if err != nil {
		return sdk.Coin{}, false, fmt.Errorf("failed to query balance of %s for %s: %w", denom, address, err)
	}

	if res.Balance == nil || res.Balance.Amount.IsNil() || res.Balance.Amount.IsZero() {
		return sdk.Coin{}, false, nil
	}
	return *res.Balance, true, nil
}
