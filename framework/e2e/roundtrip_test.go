package e2e

import (
	"context"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/ics20-harness/framework/ibc/denom"
	"github.com/celestiaorg/ics20-harness/framework/types"
	"github.com/celestiaorg/ics20-harness/framework/verify"
)

const (
	sender   = "secret1sender"
	receiver = "secret1receiver"
	snip20   = "secret1snip20token"
)

type roundTripFixture struct {
	net *fakeNetwork
	env *Env
	rt  RoundTrip
	// forwardSends counts forward transfers submitted
	forwardSends int
}

func newRoundTripFixture(t *testing.T, opts ...Option) *roundTripFixture {
	t.Helper()
	f := &roundTripFixture{net: newFakeNetwork()}
	f.env = newFakeEnv(t, f.net, opts...)

	_, err := f.env.SetupIBC(context.Background(), contractChannelOptions())
	require.NoError(t, err)

	sourceDenom := denom.CW20Denom(snip20)
	ibcDenom, err := denom.DeriveIBCDenom([]denom.ChannelHop{denom.NewHop("transfer", "channel-7")}, sourceDenom)
	require.NoError(t, err)
	f.net.unwind[ibcDenom] = sourceDenom
	f.net.setBalance(chainAID, sender, sourceDenom, 1000)

	f.rt = RoundTrip{
		Amount:        sdkmath.NewInt(1),
		SourceAddress: sender,
		SourceDenom:   sourceDenom,
		Send: func(context.Context) (sdk.TxResponse, error) {
			f.forwardSends++
			return f.net.send(
				credit{chainID: chainAID, address: sender, denom: sourceDenom, amount: sdkmath.NewInt(1)},
				credit{chainID: chainBID, address: receiver, denom: ibcDenom, amount: sdkmath.NewInt(1)},
			)
		},
		DestAddress:     receiver,
		DestBroadcaster: &chainBBroadcaster{net: f.net},
	}
	return f
}

func TestRunRoundTrip(t *testing.T) {
	t.Run("balance restored", func(t *testing.T) {
		f := newRoundTripFixture(t)
		// the relayer lags behind on the first clears
		f.net.missedClears = 2

		report, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.NoError(t, err)
		require.Equal(t, 1, f.forwardSends)

		want, err := denom.DeriveIBCDenom([]denom.ChannelHop{denom.NewHop("transfer", "channel-7")}, "cw20:"+snip20)
		require.NoError(t, err)
		require.Equal(t, want, report.IBCDenom)

		require.Equal(t, verify.OutcomeConverged, report.Forward.Outcome)
		require.Equal(t, sdkmath.NewInt(1), report.Forward.Observed.Amount)
		require.Greater(t, report.Forward.Attempts, 1)
		require.Equal(t, sdkmath.NewInt(999), report.Debit.Observed.Amount)
		require.Equal(t, verify.OutcomeConverged, report.Return.Outcome)
		require.Equal(t, sdkmath.NewInt(1000), report.Return.Observed.Amount)

		require.Equal(t, sdkmath.NewInt(1000), f.net.balance(chainAID, sender, "cw20:"+snip20))
		require.True(t, f.net.balance(chainBID, receiver, want).IsZero())
	})

	t.Run("repeatable on the same env", func(t *testing.T) {
		f := newRoundTripFixture(t)
		for range 3 {
			_, err := f.env.RunRoundTrip(context.Background(), f.rt)
			require.NoError(t, err)
		}
		require.Equal(t, 3, f.forwardSends)
		require.Equal(t, sdkmath.NewInt(1000), f.net.balance(chainAID, sender, "cw20:"+snip20))
	})

	t.Run("forward fee paid in source denom", func(t *testing.T) {
		f := newRoundTripFixture(t)
		send := f.rt.Send
		f.rt.ForwardFee = sdkmath.NewInt(3)
		f.rt.Send = func(ctx context.Context) (sdk.TxResponse, error) {
			f.net.setBalance(chainAID, sender, "cw20:"+snip20, f.net.balance(chainAID, sender, "cw20:"+snip20).Int64()-3)
			return send(ctx)
		}

		report, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.NoError(t, err)
		require.Equal(t, sdkmath.NewInt(996), report.Debit.Observed.Amount)
		require.Equal(t, sdkmath.NewInt(997), f.net.balance(chainAID, sender, "cw20:"+snip20))
	})

	t.Run("return leg cleared with its own config", func(t *testing.T) {
		f := newRoundTripFixture(t)
		f.env.Config.Relayer.ReturnConfigPath = "/home/hermes-user/.hermes/alternative-config.toml"

		_, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.NoError(t, err)

		var forward, back int
		for _, cmd := range f.net.commands {
			args := strings.Join(cmd, " ")
			switch {
			case strings.Contains(args, "clear packets --chain "+chainBID):
				require.NotContains(t, args, "alternative-config.toml")
				forward++
			case strings.Contains(args, "clear packets --chain "+chainAID):
				require.Contains(t, args, "--config /home/hermes-user/.hermes/alternative-config.toml")
				back++
			}
		}
		require.Positive(t, forward)
		require.Positive(t, back)
	})

	t.Run("voucher source keeps its trace", func(t *testing.T) {
		f := newRoundTripFixture(t)
		voucher := "transfer/channel-9/uatom"
		want, err := denom.DeriveIBCDenom([]denom.ChannelHop{denom.NewHop("transfer", "channel-7"), denom.NewHop("transfer", "channel-9")}, "uatom")
		require.NoError(t, err)
		f.net.unwind[want] = voucher
		f.net.setBalance(chainAID, sender, voucher, 10)

		f.rt.SourceDenom = voucher
		f.rt.Send = func(context.Context) (sdk.TxResponse, error) {
			return f.net.send(
				credit{chainID: chainAID, address: sender, denom: voucher, amount: sdkmath.NewInt(1)},
				credit{chainID: chainBID, address: receiver, denom: want, amount: sdkmath.NewInt(1)},
			)
		}

		report, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.NoError(t, err)
		require.Equal(t, want, report.IBCDenom)
		require.Equal(t, sdkmath.NewInt(10), f.net.balance(chainAID, sender, voucher))
	})

	t.Run("rejected return transfer", func(t *testing.T) {
		f := newRoundTripFixture(t)
		f.rt.DestBroadcaster = &chainBBroadcaster{net: f.net, rejectAll: true}

		report, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.ErrorIs(t, err, types.ErrRejectedTransaction)
		require.Contains(t, err.Error(), "out of gas")
		require.Equal(t, verify.OutcomeConverged, report.Forward.Outcome)
		require.Empty(t, report.Return.Outcome)
	})

	t.Run("packets never relayed", func(t *testing.T) {
		f := newRoundTripFixture(t, WithTransferTimeout(30*time.Millisecond))
		f.net.missedClears = 1 << 20

		report, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.ErrorIs(t, err, types.ErrTimeout)
		require.Contains(t, err.Error(), "forward leg")
		require.Equal(t, verify.OutcomeTimedOut, report.Forward.Outcome)
	})

	t.Run("insufficient source balance", func(t *testing.T) {
		f := newRoundTripFixture(t)
		f.rt.Amount = sdkmath.NewInt(5000)

		_, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.ErrorIs(t, err, types.ErrInvalidArgument)
		require.Zero(t, f.forwardSends)
	})

	t.Run("requires an open channel", func(t *testing.T) {
		f := newRoundTripFixture(t)
		f.env.Channel.State = ""

		_, err := f.env.RunRoundTrip(context.Background(), f.rt)
		require.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("invalid round trip", func(t *testing.T) {
		f := newRoundTripFixture(t)
		cases := map[string]func(*RoundTrip){
			"zero amount":     func(rt *RoundTrip) { rt.Amount = sdkmath.ZeroInt() },
			"nil amount":      func(rt *RoundTrip) { rt.Amount = sdkmath.Int{} },
			"no source denom": func(rt *RoundTrip) { rt.SourceDenom = "" },
			"hashed denom":    func(rt *RoundTrip) { rt.SourceDenom = "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2" },
			"no receiver":     func(rt *RoundTrip) { rt.DestAddress = "" },
			"no broadcaster":  func(rt *RoundTrip) { rt.DestBroadcaster = nil },
			"negative fee":    func(rt *RoundTrip) { rt.ForwardFee = sdkmath.NewInt(-1) },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				rt := f.rt
				mutate(&rt)
				_, err := f.env.RunRoundTrip(context.Background(), rt)
				require.ErrorIs(t, err, types.ErrInvalidArgument)
			})
		}
	})
}
