package relayer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/BurntSushi/toml"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.uber.org/zap"

	"github.com/celestiaorg/ics20-harness/framework/types"
)

// HermesConfig is the subset of the Hermes configuration file the harness writes.
type HermesConfig struct {
	Global    GlobalConfig  `toml:"global"`
	Mode      ModeConfig    `toml:"mode"`
	Rest      ServerConfig  `toml:"rest"`
	Telemetry ServerConfig  `toml:"telemetry"`
	Chains    []ChainConfig `toml:"chains"`

	// Overrides are merged into the encoded file, e.g. {"mode": {"packets": {"clear_interval": 100}}}.
	Overrides Toml `toml:"-"`
}

type GlobalConfig struct {
	LogLevel string `toml:"log_level"`
}

type ModeConfig struct {
	Clients     ClientsConfig `toml:"clients"`
	Connections EnabledConfig `toml:"connections"`
	Channels    EnabledConfig `toml:"channels"`
	Packets     PacketsConfig `toml:"packets"`
}

type ClientsConfig struct {
	Enabled      bool `toml:"enabled"`
	Refresh      bool `toml:"refresh"`
	Misbehaviour bool `toml:"misbehaviour"`
}

type EnabledConfig struct {
	Enabled bool `toml:"enabled"`
}

type PacketsConfig struct {
	Enabled        bool `toml:"enabled"`
	ClearInterval  int  `toml:"clear_interval"`
	ClearOnStart   bool `toml:"clear_on_start"`
	TxConfirmation bool `toml:"tx_confirmation"`
}

// ServerConfig covers the rest and telemetry endpoints, which the harness leaves disabled.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// ChainConfig is one [[chains]] entry.
type ChainConfig struct {
	ID             string            `toml:"id"`
	Type           string            `toml:"type"`
	RPCAddr        string            `toml:"rpc_addr"`
	GRPCAddr       string            `toml:"grpc_addr"`
	EventSource    EventSourceConfig `toml:"event_source"`
	RPCTimeout     string            `toml:"rpc_timeout"`
	TrustedNode    bool              `toml:"trusted_node"`
	AccountPrefix  string            `toml:"account_prefix"`
	KeyName        string            `toml:"key_name"`
	KeyStoreType   string            `toml:"key_store_type"`
	StorePrefix    string            `toml:"store_prefix"`
	DefaultGas     int               `toml:"default_gas"`
	MaxGas         int               `toml:"max_gas"`
	GasPrice       GasPrice          `toml:"gas_price"`
	GasMultiplier  float64           `toml:"gas_multiplier"`
	MaxMsgNum      int               `toml:"max_msg_num"`
	MaxTxSize      int               `toml:"max_tx_size"`
	ClockDrift     string            `toml:"clock_drift"`
	MaxBlockTime   string            `toml:"max_block_time"`
	TrustingPeriod string            `toml:"trusting_period"`
	TrustThreshold TrustThreshold    `toml:"trust_threshold"`
	AddressType    AddressType       `toml:"address_type"`
}

type EventSourceConfig struct {
	Mode       string `toml:"mode"`
	URL        string `toml:"url"`
	BatchDelay string `toml:"batch_delay"`
}

type GasPrice struct {
	Price float64 `toml:"price"`
	Denom string  `toml:"denom"`
}

type TrustThreshold struct {
	Numerator   string `toml:"numerator"`
	Denominator string `toml:"denominator"`
}

type AddressType struct {
	Derivation string `toml:"derivation"`
}

// ChainEndpoint is what the relayer needs to know about one chain. Addresses must be
// reachable from wherever hermes runs, which for a containerised relayer means the
// docker network names rather than host-mapped ports.
type ChainEndpoint struct {
	ChainID       string
	RPCAddr       string
	GRPCAddr      string
	AccountPrefix string
	// GasPrice is a decimal coin such as "0.25uscrt".
	GasPrice string
	// KeyName defaults to relayer-<chain id>.
	KeyName string
}

// NewHermesConfig renders a configuration relaying between the given chains.
func NewHermesConfig(chains ...ChainEndpoint) (*HermesConfig, error) {
	if len(chains) < 2 {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "hermes needs at least two chains, got %d", len(chains))
	}

	hermesChains := make([]ChainConfig, 0, len(chains))
	for _, c := range chains {
		if c.ChainID == "" || c.RPCAddr == "" || c.GRPCAddr == "" {
			return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "chain %q is missing an id or address", c.ChainID)
		}

		price, err := sdk.ParseDecCoin(c.GasPrice)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "gas price %q for chain %s: %v", c.GasPrice, c.ChainID, err)
		}
		priceFloat, err := price.Amount.Float64()
		if err != nil {
			return nil, fmt.Errorf("failed to convert gas price for chain %s: %w", c.ChainID, err)
		}

		wsURL, err := websocketURL(c.RPCAddr)
		if err != nil {
			return nil, err
		}

		keyName := c.KeyName
		if keyName == "" {
			keyName = fmt.Sprintf("relayer-%s", c.ChainID)
		}

		hermesChains = append(hermesChains, ChainConfig{
			ID:       c.ChainID,
			Type:     "CosmosSdk",
			RPCAddr:  c.RPCAddr,
			GRPCAddr: c.GRPCAddr,
			EventSource: EventSourceConfig{
				Mode:       "push",
				URL:        wsURL,
				BatchDelay: "500ms",
			},
			RPCTimeout:     "10s",
			TrustedNode:    true,
			AccountPrefix:  c.AccountPrefix,
			KeyName:        keyName,
			KeyStoreType:   "Test",
			StorePrefix:    "ibc",
			DefaultGas:     100000,
			MaxGas:         3000000,
			GasPrice:       GasPrice{Price: priceFloat, Denom: price.Denom},
			GasMultiplier:  1.3,
			MaxMsgNum:      30,
			MaxTxSize:      2097152,
			ClockDrift:     "5s",
			MaxBlockTime:   "30s",
			TrustingPeriod: "14days",
			TrustThreshold: TrustThreshold{Numerator: "1", Denominator: "3"},
			AddressType:    AddressType{Derivation: "cosmos"},
		})
	}

	return &HermesConfig{
		Global: GlobalConfig{LogLevel: "info"},
		Mode: ModeConfig{
			Clients:     ClientsConfig{Enabled: true, Refresh: true, Misbehaviour: false},
			Connections: EnabledConfig{Enabled: true},
			Channels:    EnabledConfig{Enabled: true},
			// packets are cleared on demand by the harness
			Packets: PacketsConfig{Enabled: true, ClearInterval: 0, ClearOnStart: true, TxConfirmation: false},
		},
		Rest:      ServerConfig{Enabled: false, Host: "127.0.0.1", Port: 3000},
		Telemetry: ServerConfig{Enabled: false, Host: "127.0.0.1", Port: 3001},
		Chains:    hermesChains,
	}, nil
}

// ToTOML encodes the configuration in the format hermes reads.
func (c *HermesConfig) ToTOML() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode hermes config: %w", err)
	}
	if len(c.Overrides) == 0 {
		return buf.Bytes(), nil
	}
	return ModifyTOML(buf.Bytes(), c.Overrides)
}

// WriteConfig installs cfg at the driver's config path using w.
func (h *Hermes) WriteConfig(ctx context.Context, w types.FileWriter, cfg *HermesConfig) error {
	if h.configPath == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "hermes driver has no config path")
	}
	if !path.IsAbs(h.configPath) {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "hermes config path %q must be absolute", h.configPath)
	}

	bz, err := cfg.ToTOML()
	if err != nil {
		return err
	}
	if err := w.WriteFile(ctx, h.configPath, bz); err != nil {
		return fmt.Errorf("failed to write hermes config to %s: %w", h.configPath, err)
	}

	h.logger.Info("wrote hermes config", zap.String("path", h.configPath), zap.Int("chains", len(cfg.Chains)))
	return nil
}

// websocketURL turns a tendermint RPC address into its event subscription endpoint.
func websocketURL(rpcAddr string) (string, error) {
	switch {
	case strings.HasPrefix(rpcAddr, "http://"):
		return "ws://" + strings.TrimPrefix(rpcAddr, "http://") + "/websocket", nil
	case strings.HasPrefix(rpcAddr, "https://"):
		return "wss://" + strings.TrimPrefix(rpcAddr, "https://") + "/websocket", nil
	}
	return "", errorsmod.Wrapf(types.ErrInvalidArgument, "rpc address %q must start with http:// or https://", rpcAddr)
}
