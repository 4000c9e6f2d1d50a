// Package tx inspects transaction results returned by a chain.
package tx

import (
	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// AssertSuccess returns ErrRejectedTransaction carrying the raw log when the transaction
// was executed with a non-zero code.
func AssertSuccess(resp sdk.TxResponse) error {
	if resp.Code == 0 {
		return nil
	}
	return errorsmod.Wrapf(types.ErrRejectedTransaction, "tx %s failed with code %d (codespace %q): %s", resp.TxHash, resp.Code, resp.Codespace, resp.RawLog)
}

// FirstAttribute returns the value of the first attribute named key in events of the
// given type. An empty eventType matches every event.
func FirstAttribute(events []abci.Event, eventType, key string) (string, bool) {
	for _, ev := range events {
		if eventType != "" && ev.Type != eventType {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}
