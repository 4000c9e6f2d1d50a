package e2e

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/ibc/denom"
	"github.com/celestiaorg/ics20-harness/framework/ics20"
	"github.com/celestiaorg/ics20-harness/framework/types"
	"github.com/celestiaorg/ics20-harness/framework/verify"
)

// RoundTrip describes a transfer from chain A to chain B and back.
type RoundTrip struct {
	// Amount moves in both directions.
	Amount sdkmath.Int

	// SourceAddress sends on chain A and receives the return leg.
	SourceAddress string
	// SourceDenom is the denom as held on chain A, e.g. cw20:<snip20 address>, uscrt or the
	// full trace path of a voucher. Hashed ibc/ denoms are rejected.
	SourceDenom string
	// SourceBalance reads SourceDenom on chain A. It defaults to chain A's bank.
	SourceBalance types.BalanceQuerier

	// Send submits the forward transfer of Amount from SourceAddress to DestAddress.
	Send verify.SubmitFunc
	// ForwardFee is what Send pays in SourceDenom, e.g. when SourceDenom is also the fee
	// denom. The source balance is expected to end ForwardFee below where it started.
	ForwardFee sdkmath.Int

	// DestAddress receives on chain B and sends the return leg.
	DestAddress string
	// DestBroadcaster signs and broadcasts the return MsgTransfer on chain B.
	DestBroadcaster types.Broadcaster
}

// RoundTripReport collects the results of each leg.
type RoundTripReport struct {
	IBCDenom string
	Forward  verify.Result
	Debit    verify.Result
	Return   verify.Result
}

func (rt RoundTrip) validate() error {
	switch {
	case rt.Amount.IsNil() || !rt.Amount.IsPositive():
		return errorsmod.Wrap(types.ErrInvalidArgument, "round trip amount must be positive")
	case rt.SourceAddress == "" || rt.DestAddress == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "round trip needs source and destination addresses")
	case rt.SourceDenom == "":
		return errorsmod.Wrap(types.ErrInvalidArgument, "round trip needs a source denom")
	case denom.IsIBCDenom(rt.SourceDenom):
		return errorsmod.Wrapf(types.ErrInvalidArgument, "source denom %s is a hash, use its full trace path", rt.SourceDenom)
	case !rt.ForwardFee.IsNil() && rt.ForwardFee.IsNegative():
		return errorsmod.Wrap(types.ErrInvalidArgument, "forward fee must not be negative")
	case rt.Send == nil || rt.DestBroadcaster == nil:
		return errorsmod.Wrap(types.ErrInvalidArgument, "round trip needs a forward submitter and a destination broadcaster")
	}
	return nil
}

// RunRoundTrip sends Amount from chain A to chain B over the open channel, checks that it
// arrived under the expected ibc/ denom, sends it back with a native ICS20 transfer and checks
// that chain A's balance is exactly what it was before, less ForwardFee. It does not modify
// the Env.
func (e *Env) RunRoundTrip(ctx context.Context, rt RoundTrip) (RoundTripReport, error) {
	if err := rt.validate(); err != nil {
		return RoundTripReport{}, err
	}
	if !e.Channel.State.IsOpen() {
		return RoundTripReport{}, errorsmod.Wrap(types.ErrInvalidArgument, "no open channel, run SetupIBC first")
	}
	if rt.SourceBalance == nil {
		rt.SourceBalance = e.ChainA.Bank
	}
	if rt.ForwardFee.IsNil() {
		rt.ForwardFee = sdkmath.ZeroInt()
	}

	ch := e.Channel
	sourceTrace, err := denom.ParseTrace(rt.SourceDenom)
	if err != nil {
		return RoundTripReport{}, err
	}
	trace := sourceTrace.ReceivedOver(denom.NewHop(ch.CounterpartyPort, ch.CounterpartyID))
	report := RoundTripReport{IBCDenom: trace.IBCDenom()}

	logger := e.Logger.With(
		zap.String("source_denom", rt.SourceDenom),
		zap.String("ibc_denom", report.IBCDenom),
		zap.Stringer("amount", rt.Amount),
	)

	priorSource, err := balanceOrZero(ctx, rt.SourceBalance, rt.SourceAddress, rt.SourceDenom)
	if err != nil {
		return report, err
	}
	spent := rt.Amount.Add(rt.ForwardFee)
	if priorSource.LT(spent) {
		return report, errorsmod.Wrapf(types.ErrInvalidArgument, "%s holds %s%s, less than %s", rt.SourceAddress, priorSource, rt.SourceDenom, spent)
	}
	priorDest, err := balanceOrZero(ctx, e.ChainB.Bank, rt.DestAddress, report.IBCDenom)
	if err != nil {
		return report, err
	}

	logger.Info("sending forward leg", zap.Stringer("prior_source", priorSource), zap.Stringer("prior_dest", priorDest))
	report.Forward, err = e.Poller.TransferAndVerify(ctx, rt.Send, e.ChainB.Bank, e.ClearForward, verify.Expectation{
		SourceChain: e.ChainA.ChainID,
		DestChain:   e.ChainB.ChainID,
		ChannelID:   ch.ChannelID,
		Address:     rt.DestAddress,
		Denom:       report.IBCDenom,
		Amount:      priorDest.Add(rt.Amount),
	})
	if err != nil {
		return report, fmt.Errorf("forward leg: %w", err)
	}

	report.Debit, err = e.Poller.AwaitBalance(ctx, rt.SourceBalance, nil, verify.Expectation{
		SourceChain: e.ChainA.ChainID,
		DestChain:   e.ChainA.ChainID,
		ChannelID:   ch.ChannelID,
		Address:     rt.SourceAddress,
		Denom:       rt.SourceDenom,
		Amount:      priorSource.Sub(spent),
	})
	if err != nil {
		return report, fmt.Errorf("source debit: %w", err)
	}

	logger.Info("sending return leg")
	sendBack := func(ctx context.Context) (sdk.TxResponse, error) {
		msg, err := ics20.NewMsgTransfer(ch.CounterpartyPort, ch.CounterpartyID, sdk.Coin{Denom: report.IBCDenom, Amount: rt.Amount},
			rt.DestAddress, rt.SourceAddress, time.Now(), e.Config.Timeouts.Transfer)
		if err != nil {
			return sdk.TxResponse{}, err
		}
		return rt.DestBroadcaster.BroadcastMessages(ctx, rt.DestAddress, msg)
	}

	report.Return, err = e.Poller.TransferAndVerify(ctx, sendBack, rt.SourceBalance, e.ClearReturn, verify.Expectation{
		SourceChain: e.ChainB.ChainID,
		DestChain:   e.ChainA.ChainID,
		ChannelID:   ch.CounterpartyID,
		Address:     rt.SourceAddress,
		Denom:       rt.SourceDenom,
		Amount:      priorSource.Sub(rt.ForwardFee),
	})
	if err != nil {
		return report, fmt.Errorf("return leg: %w", err)
	}

	logger.Info("round trip complete",
		zap.Duration("forward", report.Forward.Elapsed),
		zap.Duration("return", report.Return.Elapsed),
	)
	return report, nil
}

func balanceOrZero(ctx context.Context, q types.BalanceQuerier, address, coinDenom string) (sdkmath.Int, error) {
	coin, found, err := q.Balance(ctx, address, coinDenom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !found {
		return sdkmath.ZeroInt(), nil
	}
	return coin.Amount, nil
}
