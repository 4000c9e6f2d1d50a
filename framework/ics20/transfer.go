package ics20

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// NewMsgTransfer builds a native ICS20 transfer that times out after timeout, measured from
// now. Height based timeouts are disabled.
func NewMsgTransfer(sourcePort, sourceChannel string, token sdk.Coin, sender, receiver string, now time.Time, timeout time.Duration) (*transfertypes.MsgTransfer, error) {
	if timeout <= 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "transfer timeout must be positive")
	}
	if err := token.Validate(); err != nil || !token.IsPositive() {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "invalid transfer token %s", token)
	}

	timeoutTimestamp := uint64(now.Add(timeout).UnixNano())
	return transfertypes.NewMsgTransfer(sourcePort, sourceChannel, token, sender, receiver, clienttypes.ZeroHeight(), timeoutTimestamp, ""), nil
}
