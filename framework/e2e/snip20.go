package e2e

import (
	"context"
	"fmt"
	"math"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/ibc"
	"github.com/celestiaorg/ics20-harness/framework/ibc/denom"
	"github.com/celestiaorg/ics20-harness/framework/ics20"
	"github.com/celestiaorg/ics20-harness/framework/tx"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

// ContractExecutor executes msg on contract in a transaction signed by sender.
type ContractExecutor interface {
	ExecuteContract(ctx context.Context, sender string, contract ics20.Snip20Token, msg []byte) (sdk.TxResponse, error)
}

// Snip20Source is a SNIP20 token on chain A that leaves through the ICS20 contract.
type Snip20Source struct {
	Token ics20.Snip20Token
	ICS20 ics20.Snip20Token

	// ViewingKey reads balances of the sending account.
	ViewingKey string

	Contracts ics20.ContractQuerier
	Executor  ContractExecutor
}

func (s Snip20Source) validate() error {
	switch {
	case s.Token.Address == "" || s.ICS20.Address == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "snip20 source needs token and ics20 contract addresses")
	case s.ViewingKey == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "snip20 source needs a viewing key")
	case s.Contracts == nil || s.Executor == nil:
		return errorsmod.Wrap(types.ErrInvalidArgument, "snip20 source needs a contract querier and executor")
	}
	return nil
}

// Denom is the denom the ICS20 contract sends the token under.
func (s Snip20Source) Denom() string {
	return denom.CW20Denom(s.Token.Address)
}

// RegisterToken allows the token on the ICS20 contract. admin must be the contract admin.
func (s Snip20Source) RegisterToken(ctx context.Context, admin string) error {
	msg, err := ics20.RegisterTokensMsg(s.Token)
	if err != nil {
		return err
	}
	return s.execute(ctx, admin, s.ICS20, msg)
}

// SetViewingKey sets ViewingKey for owner so its balance can be read.
func (s Snip20Source) SetViewingKey(ctx context.Context, owner string) error {
	msg, err := ics20.SetViewingKeyMsg(s.ViewingKey)
	if err != nil {
		return err
	}
	return s.execute(ctx, owner, s.Token, msg)
}

// Fund moves amount of the token from one account on chain A to another.
func (s Snip20Source) Fund(ctx context.Context, from, to string, amount sdkmath.Int) error {
	msg, err := ics20.TransferToMsg(to, amount)
	if err != nil {
		return err
	}
	return s.execute(ctx, from, s.Token, msg)
}

func (s Snip20Source) execute(ctx context.Context, sender string, contract ics20.Snip20Token, msg []byte) error {
	resp, err := s.Executor.ExecuteContract(ctx, sender, contract, msg)
	if err != nil {
		return fmt.Errorf("failed to execute %s: %w", contract.Address, err)
	}
	return tx.AssertSuccess(resp)
}

// Snip20RoundTrip returns a RoundTrip that sends the token to destAddress with a SNIP20 send
// to the ICS20 contract over the open channel, reads the source balance through the viewing
// key and returns the token with a MsgTransfer signed by dest.
func (e *Env) Snip20RoundTrip(src Snip20Source, amount sdkmath.Int, sourceAddress, destAddress string, dest types.Broadcaster) (RoundTrip, error) {
	if err := src.validate(); err != nil {
		return RoundTrip{}, err
	}
	if !e.Channel.State.IsOpen() {
		return RoundTrip{}, errorsmod.Wrap(types.ErrInvalidArgument, "no open channel, run SetupIBC first")
	}
	if port := ibc.ContractPortID(src.ICS20.Address); e.Channel.PortID != port {
		return RoundTrip{}, errorsmod.Wrapf(types.ErrInvalidArgument, "channel %s is bound to %s, not %s", e.Channel.ChannelID, e.Channel.PortID, port)
	}

	transfer := ics20.TransferMsg{
		Channel:       e.Channel.ChannelID,
		RemoteAddress: destAddress,
		Timeout:       uint64(math.Ceil(e.Config.Timeouts.Transfer.Seconds())),
	}
	msg, err := ics20.SendMsg(src.ICS20, amount, transfer)
	if err != nil {
		return RoundTrip{}, err
	}

	send := func(ctx context.Context) (sdk.TxResponse, error) {
		resp, err := src.Executor.ExecuteContract(ctx, sourceAddress, src.Token, msg)
		if err != nil {
			return resp, err
		}
		if seq, ok := tx.FirstAttribute(resp.Events, "send_packet", "packet_sequence"); ok {
			e.Logger.Debug("snip20 send emitted packet", zap.String("channel", transfer.Channel), zap.String("sequence", seq))
		}
		return resp, nil
	}

	return RoundTrip{
		Amount:          amount,
		SourceAddress:   sourceAddress,
		SourceDenom:     src.Denom(),
		SourceBalance:   ics20.Snip20BalanceQuerier(src.Contracts, src.Token, src.ViewingKey),
		Send:            send,
		DestAddress:     destAddress,
		DestBroadcaster: dest,
	}, nil
}
