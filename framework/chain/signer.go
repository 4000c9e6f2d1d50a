package chain

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/cosmos/cosmos-sdk/client"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	moduletestutil "github.com/cosmos/cosmos-sdk/types/module/testutil"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/cosmos-sdk/x/bank"
	"github.com/cosmos/ibc-go/v8/modules/apps/transfer"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

const (
	defaultGasLimit = 200_000

	// CosmosCoinType is the BIP44 coin type of most cosmos-sdk chains.
	CosmosCoinType uint32 = 118
	// SecretCoinType is the BIP44 coin type used by Secret Network keys.
	SecretCoinType uint32 = 529
)

// AccountQuerier returns the account number and next sequence of an address.
type AccountQuerier interface {
	AccountInfo(ctx context.Context, address string) (accountNumber, sequence uint64, err error)
}

// TxSubmitter broadcasts signed transaction bytes. TxServiceBroadcaster implements it.
type TxSubmitter interface {
	BroadcastTx(ctx context.Context, txBytes []byte) (sdk.TxResponse, error)
}

// GRPCAccountQuerier reads accounts through the x/auth gRPC query service.
type GRPCAccountQuerier struct {
	client authtypes.QueryClient
}

// NewGRPCAccountQuerier returns an AccountQuerier using the given connection.
func NewGRPCAccountQuerier(conn grpc.ClientConnInterface) *GRPCAccountQuerier {
	return &GRPCAccountQuerier{client: authtypes.NewQueryClient(conn)}
}

func (q *GRPCAccountQuerier) AccountInfo(ctx context.Context, address string) (uint64, uint64, error) {
	res, err := q.client.AccountInfo(ctx, &authtypes.QueryAccountInfoRequest{Address: address})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query account %s: %w", address, err)
	}
	if res.Info == nil {
		return 0, 0, fmt.Errorf("account %s: empty response", address)
	}
	return res.Info.AccountNumber, res.Info.Sequence, nil
}

// KeyFromMnemonic derives the first secp256k1 key of a mnemonic for the given coin type.
func KeyFromMnemonic(mnemonic string, coinType uint32) (cryptotypes.PrivKey, error) {
	path := hd.NewFundraiserParams(0, coinType, 0).String()
	bz, err := hd.Secp256k1.Derive()(mnemonic, "", path)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "derive key at %s: %v", path, err)
	}
	return hd.Secp256k1.Generate()(bz), nil
}

// SignerOption configures a KeySigner.
type SignerOption func(*KeySigner)

// WithGasLimit sets the gas limit of every transaction.
func WithGasLimit(gas uint64) SignerOption {
	return func(s *KeySigner) {
		s.gasLimit = gas
	}
}

// WithGasPrice makes transactions pay gasLimit * price in fees.
func WithGasPrice(price sdk.DecCoin) SignerOption {
	return func(s *KeySigner) {
		s.gasPrice = price
	}
}

// KeySigner signs transactions with a single key in direct sign mode and submits them.
// It implements types.Broadcaster for the address of its key.
type KeySigner struct {
	chainID  string
	address  string
	key      cryptotypes.PrivKey
	txConfig client.TxConfig
	accounts AccountQuerier
	sink     TxSubmitter
	gasLimit uint64
	gasPrice sdk.DecCoin
	logger   *zap.Logger
}

var _ types.Broadcaster = (*KeySigner)(nil)

// NewKeySigner returns a signer for the account of key on chainID. The account address uses
// bech32Prefix.
func NewKeySigner(logger *zap.Logger, chainID, bech32Prefix string, key cryptotypes.PrivKey, accounts AccountQuerier, sink TxSubmitter, opts ...SignerOption) (*KeySigner, error) {
	if chainID == "" || bech32Prefix == "" || key == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "signer needs a chain id, a bech32 prefix and a key")
	}
	address, err := sdk.Bech32ifyAddressBytes(bech32Prefix, key.PubKey().Address())
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "bech32 prefix %q: %v", bech32Prefix, err)
	}

	s := &KeySigner{
		chainID:  chainID,
		address:  address,
		key:      key,
		txConfig: newTxConfig(),
		accounts: accounts,
		sink:     sink,
		gasLimit: defaultGasLimit,
		logger:   logger.With(zap.String("chain_id", chainID), zap.String("signer", address)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// newTxConfig encodes bank and ICS20 transfer messages.
func newTxConfig() client.TxConfig {
	return moduletestutil.MakeTestEncodingConfig(bank.AppModuleBasic{}, transfer.AppModuleBasic{}).TxConfig
}

// Address is the bech32 address of the signing key.
func (s *KeySigner) Address() string {
	return s.address
}

// BroadcastMessages signs msgs with the signer's key and broadcasts them. signer must be the
// signer's own address.
func (s *KeySigner) BroadcastMessages(ctx context.Context, signer string, msgs ...sdk.Msg) (sdk.TxResponse, error) {
	if signer != s.address {
		return sdk.TxResponse{}, errorsmod.Wrapf(types.ErrInvalidArgument, "cannot sign for %s with the key of %s", signer, s.address)
	}
	if len(msgs) == 0 {
		return sdk.TxResponse{}, errorsmod.Wrap(types.ErrInvalidArgument, "no messages to broadcast")
	}

	txBytes, err := s.sign(ctx, msgs)
	if err != nil {
		return sdk.TxResponse{}, err
	}
	resp, err := s.sink.BroadcastTx(ctx, txBytes)
	if err != nil {
		return sdk.TxResponse{}, err
	}
	s.logger.Debug("broadcast tx", zap.String("hash", resp.TxHash), zap.Uint32("code", resp.Code), zap.Int("msgs", len(msgs)))
	return resp, nil
}

func (s *KeySigner) sign(ctx context.Context, msgs []sdk.Msg) ([]byte, error) {
	accountNumber, sequence, err := s.accounts.AccountInfo(ctx, s.address)
	if err != nil {
		return nil, err
	}

	builder := s.txConfig.NewTxBuilder()
	if err := builder.SetMsgs(msgs...); err != nil {
		return nil, fmt.Errorf("failed to set msgs: %w", err)
	}
	builder.SetGasLimit(s.gasLimit)
	if fee := s.Fee(); !fee.IsZero() {
		builder.SetFeeAmount(fee)
	}

	signMode := signing.SignMode(s.txConfig.SignModeHandler().DefaultMode())

	// the signer info has to be in the auth info before the sign bytes are computed
	empty := signing.SignatureV2{
		PubKey:   s.key.PubKey(),
		Data:     &signing.SingleSignatureData{SignMode: signMode},
		Sequence: sequence,
	}
	if err := builder.SetSignatures(empty); err != nil {
		return nil, fmt.Errorf("failed to set signature: %w", err)
	}

	signerData := authsigning.SignerData{
		Address:       s.address,
		ChainID:       s.chainID,
		AccountNumber: accountNumber,
		Sequence:      sequence,
		PubKey:        s.key.PubKey(),
	}
	sig, err := clienttx.SignWithPrivKey(ctx, signMode, signerData, builder, s.key, s.txConfig, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := builder.SetSignatures(sig); err != nil {
		return nil, fmt.Errorf("failed to set signature: %w", err)
	}

	txBytes, err := s.txConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, fmt.Errorf("failed to encode tx: %w", err)
	}
	return txBytes, nil
}

// Fee is the fee paid by every transaction: gasLimit * gasPrice rounded up, or nothing
// without a gas price.
func (s *KeySigner) Fee() sdk.Coins {
	if s.gasPrice.Denom == "" || s.gasPrice.Amount.IsNil() || !s.gasPrice.Amount.IsPositive() {
		return nil
	}
	amount := s.gasPrice.Amount.MulInt64(int64(s.gasLimit)).Ceil().TruncateInt()
	return sdk.NewCoins(sdk.NewCoin(s.gasPrice.Denom, amount))
}
