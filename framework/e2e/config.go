package e2e

import (
	"fmt"
	"os"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/BurntSushi/toml"

	"github.com/celestiaorg/ics20-harness/framework/ibc/relayer"
	"github.com/celestiaorg/ics20-harness/framework/types"
)

// ConfigEnvVar names the environment variable holding the path of the harness config file.
const ConfigEnvVar = "ICS20_HARNESS_CONFIG"

const (
	DefaultSetupTimeout      = 3 * time.Minute
	DefaultTransferTimeout   = 5 * time.Minute
	DefaultProbeInterval     = time.Second
	DefaultHandshakeInterval = time.Second
	DefaultPollInterval      = 500 * time.Millisecond

	DefaultRelayerContainer = "test-relayer-1"
	DefaultRelayerBinary    = "hermes"
)

// Config describes the two chains under test and the relayer connecting them.
type Config struct {
	Chains   []ChainConfig  `toml:"chains"`
	Relayer  RelayerConfig  `toml:"relayer"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
}

// ChainConfig locates one chain. RPCAddr and GRPCAddr are used from the test process; when
// they are empty they are resolved from the host ports docker published for Container.
type ChainConfig struct {
	ChainID   string `toml:"chain_id"`
	RPCAddr   string `toml:"rpc_addr"`
	GRPCAddr  string `toml:"grpc_addr"`
	Container string `toml:"container"`
	RPCPort   string `toml:"rpc_port"`
	GRPCPort  string `toml:"grpc_port"`

	// RelayerRPCAddr and RelayerGRPCAddr are the addresses hermes uses from inside its
	// container. They default to the container name on the standard ports.
	RelayerRPCAddr  string `toml:"relayer_rpc_addr"`
	RelayerGRPCAddr string `toml:"relayer_grpc_addr"`

	Bech32Prefix string `toml:"bech32_prefix"`
	Denom        string `toml:"denom"`
	GasPrice     string `toml:"gas_price"`

	// Mnemonic of a funded account used to sign transfers. CoinType defaults to 118.
	Mnemonic string `toml:"mnemonic"`
	CoinType uint32 `toml:"coin_type"`
}

// RelayerConfig describes how hermes is invoked.
type RelayerConfig struct {
	Container  string `toml:"container"`
	Binary     string `toml:"binary"`
	ConfigPath string `toml:"config_path"`
	User       string `toml:"user"`
	JSON       bool   `toml:"json"`
	// WriteConfig renders a hermes config for the two chains and installs it at ConfigPath
	// before setup.
	WriteConfig bool `toml:"write_config"`
	// Overrides are merged into the rendered hermes config.
	Overrides relayer.Toml `toml:"overrides"`
	// ReturnConfigPath, when set, is the hermes config used to clear packets sent back from
	// chain B, for contract ports relayed under a second configuration. It must already
	// exist in the relayer container.
	ReturnConfigPath string `toml:"return_config_path"`
}

// TimeoutsConfig bounds every wait. Durations are written as strings such as "3m".
type TimeoutsConfig struct {
	Setup             time.Duration `toml:"setup"`
	Transfer          time.Duration `toml:"transfer"`
	ProbeInterval     time.Duration `toml:"probe_interval"`
	HandshakeInterval time.Duration `toml:"handshake_interval"`
	PollInterval      time.Duration `toml:"poll_interval"`
}

// Option modifies a Config.
type Option func(*Config)

// WithChains replaces the configured chains.
func WithChains(chains ...ChainConfig) Option {
	return func(cfg *Config) {
		cfg.Chains = chains
	}
}

// WithRelayer replaces the relayer configuration. Empty fields keep their defaults.
func WithRelayer(r RelayerConfig) Option {
	return func(cfg *Config) {
		if r.Container == "" {
			r.Container = cfg.Relayer.Container
		}
		if r.Binary == "" {
			r.Binary = cfg.Relayer.Binary
		}
		cfg.Relayer = r
	}
}

// WithSetupTimeout bounds liveness, handshake and channel creation.
func WithSetupTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeouts.Setup = d
	}
}

// WithTransferTimeout bounds each transfer convergence wait.
func WithTransferTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeouts.Transfer = d
	}
}

// WithPollInterval sets the interval of every polling loop.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Timeouts.ProbeInterval = d
		cfg.Timeouts.HandshakeInterval = d
		cfg.Timeouts.PollInterval = d
	}
}

// DefaultConfig returns a configuration with default timeouts and relayer settings and no
// chains.
func DefaultConfig(opts ...Option) Config {
	cfg := Config{
		Relayer: RelayerConfig{
			Container: DefaultRelayerContainer,
			Binary:    DefaultRelayerBinary,
		},
		Timeouts: TimeoutsConfig{
			Setup:             DefaultSetupTimeout,
			Transfer:          DefaultTransferTimeout,
			ProbeInterval:     DefaultProbeInterval,
			HandshakeInterval: DefaultHandshakeInterval,
			PollInterval:      DefaultPollInterval,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// LoadConfig reads a TOML file over the defaults and applies opts. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadConfig(path string, opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, errorsmod.Wrapf(types.ErrInvalidArgument, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyChainDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromEnv loads the file named by ICS20_HARNESS_CONFIG. ok is false when the
// variable is unset.
func ConfigFromEnv(opts ...Option) (cfg Config, ok bool, err error) {
	path := os.Getenv(ConfigEnvVar)
	if path == "" {
		return Config{}, false, nil
	}
	cfg, err = LoadConfig(path, opts...)
	return cfg, true, err
}

func (cfg *Config) applyChainDefaults() {
	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if c.RPCPort == "" {
			c.RPCPort = "26657/tcp"
		}
		if c.GRPCPort == "" {
			c.GRPCPort = "9090/tcp"
		}
		if c.RelayerRPCAddr == "" && c.Container != "" {
			c.RelayerRPCAddr = fmt.Sprintf("http://%s:26657", c.Container)
		}
		if c.RelayerGRPCAddr == "" && c.Container != "" {
			c.RelayerGRPCAddr = fmt.Sprintf("http://%s:9090", c.Container)
		}
	}
}

// Validate checks that the configuration describes exactly two reachable chains and a
// relayer.
func (cfg Config) Validate() error {
	if len(cfg.Chains) != 2 {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "exactly two chains are required, got %d", len(cfg.Chains))
	}
	if cfg.Chains[0].ChainID == "" || cfg.Chains[1].ChainID == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "every chain needs a chain_id")
	}
	if cfg.Chains[0].ChainID == cfg.Chains[1].ChainID {
		return errorsmod.Wrapf(types.ErrInvalidArgument, "chain ids must differ, both are %s", cfg.Chains[0].ChainID)
	}
	for _, c := range cfg.Chains {
		if (c.RPCAddr == "" || c.GRPCAddr == "") && c.Container == "" {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "chain %s needs rpc_addr and grpc_addr or a container", c.ChainID)
		}
		if c.Mnemonic != "" && c.Bech32Prefix == "" {
			return errorsmod.Wrapf(types.ErrInvalidArgument, "chain %s has a mnemonic but no bech32_prefix", c.ChainID)
		}
	}
	if cfg.Relayer.Container == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "relayer container is required")
	}
	if cfg.Relayer.WriteConfig && cfg.Relayer.ConfigPath == "" {
		return errorsmod.Wrap(types.ErrInvalidArgument, "relayer.write_config needs relayer.config_path")
	}
	if cfg.Timeouts.Setup <= 0 || cfg.Timeouts.Transfer <= 0 {
		return errorsmod.Wrap(types.ErrInvalidArgument, "setup and transfer timeouts must be positive")
	}
	return nil
}

// HermesConfig renders the relayer configuration for the two chains.
func (cfg Config) HermesConfig() (*relayer.HermesConfig, error) {
	endpoints := make([]relayer.ChainEndpoint, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		rpc, grpc := c.RelayerRPCAddr, c.RelayerGRPCAddr
		if rpc == "" {
			rpc = c.RPCAddr
		}
		if grpc == "" {
			grpc = c.GRPCAddr
		}
		endpoints = append(endpoints, relayer.ChainEndpoint{
			ChainID:       c.ChainID,
			RPCAddr:       rpc,
			GRPCAddr:      grpc,
			AccountPrefix: c.Bech32Prefix,
			GasPrice:      c.GasPrice,
		})
	}
	hermesCfg, err := relayer.NewHermesConfig(endpoints...)
	if err != nil {
		return nil, err
	}
	hermesCfg.Overrides = cfg.Relayer.Overrides
	return hermesCfg, nil
}
