package chain

import (
	"fmt"
	"time"

	rpcclient "github.com/cometbft/cometbft/rpc/client"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	libclient "github.com/cometbft/cometbft/rpc/jsonrpc/client"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const rpcRequestTimeout = 10 * time.Second

// Endpoint holds the RPC and gRPC clients for one chain.
type Endpoint struct {
	ChainID  string
	Client   rpcclient.Client
	GrpcConn *grpc.ClientConn

	logger *zap.Logger
}

// Dial creates CometBFT RPC and gRPC clients for the chain. No request is made until
// the clients are used.
func Dial(logger *zap.Logger, chainID, rpcAddr, grpcAddr string) (*Endpoint, error) {
	httpClient, err := libclient.DefaultHTTPClient(rpcAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client for %s: %w", rpcAddr, err)
	}

	httpClient.Timeout = rpcRequestTimeout
	rpcClient, err := rpchttp.NewWithClient(rpcAddr, "/websocket", httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client for %s: %w", rpcAddr, err)
	}

	grpcConn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	return &Endpoint{
		ChainID:  chainID,
		Client:   rpcClient,
		GrpcConn: grpcConn,
		logger:   logger.With(zap.String("chain_id", chainID)),
	}, nil
}

// Close releases the gRPC connection.
func (e *Endpoint) Close() error {
	if e.GrpcConn == nil {
		return nil
	}
	return e.GrpcConn.Close()
}

// Probe returns a liveness probe backed by the endpoint's RPC client.
func (e *Endpoint) Probe(opts ...ProbeOption) *Probe {
	return NewProbe(e.logger, e.ChainID, RPCHeightQuerier{Client: e.Client}, opts...)
}

// Bank returns a bank balance querier backed by the endpoint's gRPC connection.
func (e *Endpoint) Bank() *BankQuerier {
	return NewBankQuerier(e.GrpcConn)
}

// TxService returns a broadcaster for pre-signed transactions.
func (e *Endpoint) TxService(opts ...TxServiceOption) *TxServiceBroadcaster {
	return NewTxServiceBroadcaster(e.logger, e.GrpcConn, opts...)
}

// Signer returns a KeySigner for key that queries accounts and broadcasts through the endpoint.
func (e *Endpoint) Signer(bech32Prefix string, key cryptotypes.PrivKey, opts ...SignerOption) (*KeySigner, error) {
	return NewKeySigner(e.logger, e.ChainID, bech32Prefix, key, NewGRPCAccountQuerier(e.GrpcConn), e.TxService(), opts...)
}
