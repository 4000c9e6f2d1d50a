package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/avast/retry-go/v4"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

const (
	defaultInclusionTimeout  = time.Minute
	defaultInclusionInterval = 500 * time.Millisecond
)

// TxServiceOption configures a TxServiceBroadcaster.
type TxServiceOption func(*TxServiceBroadcaster)

// WithInclusionTimeout bounds how long BroadcastTx waits for a transaction to be included.
func WithInclusionTimeout(d time.Duration) TxServiceOption {
	return func(b *TxServiceBroadcaster) {
		b.inclusionTimeout = d
	}
}

// WithInclusionInterval sets the delay between inclusion queries.
func WithInclusionInterval(d time.Duration) TxServiceOption {
	return func(b *TxServiceBroadcaster) {
		b.inclusionInterval = d
	}
}

// TxServiceBroadcaster submits already signed transactions through the cosmos-sdk tx service
// and waits for them to be committed. Signing happens elsewhere.
type TxServiceBroadcaster struct {
	client            txtypes.ServiceClient
	inclusionTimeout  time.Duration
	inclusionInterval time.Duration
	logger            *zap.Logger
}

// NewTxServiceBroadcaster returns a broadcaster using the given connection.
func NewTxServiceBroadcaster(logger *zap.Logger, conn grpc.ClientConnInterface, opts ...TxServiceOption) *TxServiceBroadcaster {
	b := &TxServiceBroadcaster{
		client:            txtypes.NewServiceClient(conn),
		inclusionTimeout:  defaultInclusionTimeout,
		inclusionInterval: defaultInclusionInterval,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BroadcastTx broadcasts the signed transaction bytes in sync mode. A transaction rejected by
// CheckTx is returned immediately with its non-zero code; otherwise the committed response is
// returned once the transaction is found in a block.
func (b *TxServiceBroadcaster) BroadcastTx(ctx context.Context, txBytes []byte) (sdk.TxResponse, error) {
	res, err := b.client.BroadcastTx(ctx, &txtypes.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    txtypes.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		return sdk.TxResponse{}, fmt.Errorf("failed to broadcast tx: %w", err)
	}
	if res.TxResponse == nil {
		return sdk.TxResponse{}, errors.New("broadcast returned an empty response")
	}
	if res.TxResponse.Code != 0 {
		return *res.TxResponse, nil
	}

	return b.awaitInclusion(ctx, res.TxResponse.TxHash)
}

// awaitInclusion polls GetTx until the transaction is committed or the inclusion timeout elapses.
func (b *TxServiceBroadcaster) awaitInclusion(ctx context.Context, hash string) (sdk.TxResponse, error) {
	waitCtx, cancel := context.WithTimeout(ctx, b.inclusionTimeout)
	defer cancel()

	resp, err := retry.DoWithData(
		func() (*sdk.TxResponse, error) {
			res, err := b.client.GetTx(waitCtx, &txtypes.GetTxRequest{Hash: hash})
			if err != nil {
				if status.Code(err) != codes.NotFound {
					b.logger.Debug("tx query failed", zap.String("hash", hash), zap.Error(err))
				}
				return nil, err
			}
			return res.TxResponse, nil
		},
		retry.Context(waitCtx),
		retry.UntilSucceeded(),
		retry.Delay(b.inclusionInterval),
		retry.DelayType(retry.FixedDelay),
		retry.WrapContextErrorWithLastError(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return sdk.TxResponse{}, fmt.Errorf("context cancelled while waiting for tx %s: %w", hash, ctx.Err())
		}
		return sdk.TxResponse{}, errorsmod.Wrapf(types.ErrTimeout, "tx %s was not included within %s: %v", hash, b.inclusionTimeout, err)
	}
	if resp == nil {
		return sdk.TxResponse{}, fmt.Errorf("tx %s: empty response", hash)
	}
	return *resp, nil
}
