package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/celestiaorg/ics20-harness/framework/docker"
)

// IBCTestSuite runs against an already running pair of chains and relayer described by the
// file named in ICS20_HARNESS_CONFIG. It dials both chains, opens a channel once per suite
// and exposes the resulting Env to every test. Without a config, or under -short, the suite
// is skipped.
type IBCTestSuite struct {
	suite.Suite

	// Options selects the channel the suite opens. DefaultSetupOptions is used when it has
	// no ports.
	Options SetupOptions

	Env    *Env
	ctx    context.Context
	logger *zap.Logger
}

// SetupSuite loads the configuration, connects to the network and runs SetupIBC.
func (s *IBCTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping live ibc suite in short mode")
	}
	cfg, ok, err := ConfigFromEnv()
	s.Require().NoError(err)
	if !ok {
		s.T().Skipf("%s is not set", ConfigEnvVar)
	}

	s.ctx = context.Background()
	s.logger = zaptest.NewLogger(s.T())

	cli, err := docker.NewClient()
	s.Require().NoError(err)
	s.T().Cleanup(func() {
		_ = cli.Close()
	})
	docker.SaveLogsOnFailure(s.T(), cli, s.containers(cfg)...)

	s.Env, err = Dial(s.ctx, s.logger, cfg, cli)
	s.Require().NoError(err)

	opts := s.Options
	if opts.Channel.SourcePortName == "" {
		opts = DefaultSetupOptions()
	}
	_, err = s.Env.SetupIBC(s.ctx, opts)
	s.Require().NoError(err)
}

// TearDownSuite closes the chain connections.
func (s *IBCTestSuite) TearDownSuite() {
	if s.Env == nil {
		return
	}
	if err := s.Env.Close(); err != nil {
		s.T().Logf("Failed to close env: %s", err)
	}
}

// Context returns the suite's context.
func (s *IBCTestSuite) Context() context.Context {
	return s.ctx
}

func (s *IBCTestSuite) containers(cfg Config) []string {
	names := []string{cfg.Relayer.Container}
	for _, c := range cfg.Chains {
		if c.Container != "" {
			names = append(names, c.Container)
		}
	}
	return names
}
