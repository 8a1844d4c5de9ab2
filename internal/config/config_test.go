package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/market-watch/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestParseAppliesDefaults() {
	cfg, err := Parse([]byte(`
base_url: https://terminal.example.com
watchlist:
  - AAPL
  - MSFT
`))
	s.Require().NoError(err)

	s.Equal("https://terminal.example.com", cfg.BaseURL)
	s.Equal([]string{"AAPL", "MSFT"}, cfg.Watchlist)
	s.Equal("day", cfg.Timeframe)
	s.Equal(time.Second, cfg.Stream.ReconnectBase)
	s.Equal(10*time.Second, cfg.Stream.ReconnectMax)
	s.Equal(10*time.Second, cfg.Stream.DegradedAfter)
	s.Equal(4*time.Second, cfg.Poll.SnapshotInterval)
	s.Equal(20*time.Second, cfg.Poll.BarsInterval)
}

func (s *ConfigTestSuite) TestParseHonorsOverrides() {
	cfg, err := Parse([]byte(`
base_url: http://localhost:8080
timeframe: minute
stream:
  reconnect_base: 500ms
  reconnect_max: 30s
  degraded_after: 5s
poll:
  snapshot_interval: 2s
  bars_interval: 10s
`))
	s.Require().NoError(err)

	s.Equal("minute", cfg.Timeframe)
	s.Equal(500*time.Millisecond, cfg.Stream.ReconnectBase)
	s.Equal(30*time.Second, cfg.Stream.ReconnectMax)
	s.Equal(5*time.Second, cfg.Stream.DegradedAfter)
	s.Equal(2*time.Second, cfg.Poll.SnapshotInterval)
	s.Equal(10*time.Second, cfg.Poll.BarsInterval)
}

func (s *ConfigTestSuite) TestParseRequiresBaseURL() {
	_, err := Parse([]byte(`watchlist: [AAPL]`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *ConfigTestSuite) TestParseRejectsUnknownTimeframe() {
	_, err := Parse([]byte(`
base_url: https://terminal.example.com
timeframe: decade
`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *ConfigTestSuite) TestParseRejectsMalformedYAML() {
	_, err := Parse([]byte(`base_url: [unclosed`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load("/nonexistent/market-watch.yaml")
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
