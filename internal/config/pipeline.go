package config

import (
	"cmp"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/provider"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // json or console
}

type GameConfig struct {
	StartDate       string  `yaml:"start_date"`
	StartingCashKRW float64 `yaml:"starting_cash_krw"`
	Timezone        string  `yaml:"timezone"`

	location *time.Location
}

// Location is the game timezone; valid after Setup.
func (c GameConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

type BenchmarksConfig struct {
	SPY   string `yaml:"spy"`
	KOSPI string `yaml:"kospi"`
}

type ProvidersConfig struct {
	Chain string `yaml:"chain"` // comma separated, e.g. "TWELVE,YAHOO,MOCK"; env overrides

	TwelveDataBaseURL string `yaml:"twelve_data_base_url"`
	YahooBaseURL      string `yaml:"yahoo_base_url"`
	InvestConfigPath  string `yaml:"invest_config_path"`

	names   []provider.Name
	invalid []string
}

// Names is the parsed chain; valid after Setup.
func (c ProvidersConfig) Names() []provider.Name {
	return c.names
}

// Invalid lists chain tokens that name no known provider. They are skipped.
func (c ProvidersConfig) Invalid() []string {
	return c.invalid
}

type RetryConfig struct {
	Delays  []time.Duration `yaml:"delays"`
	Timeout time.Duration   `yaml:"timeout"`
}

func (c RetryConfig) Policy() provider.RetryPolicy {
	return provider.RetryPolicy{
		Delays:      c.Delays,
		Timeout:     c.Timeout,
		IsTransient: provider.IsTransient,
	}
}

type RateLimitConfig struct {
	TwelveData int `yaml:"twelve_data"` // requests per minute
	Yahoo      int `yaml:"yahoo"`
	TInvest    int `yaml:"tinvest"`
}

type WindowConfig struct {
	Size   int `yaml:"size"`
	MinObs int `yaml:"min_obs"`
}

type ScheduleConfig struct {
	Daily string `yaml:"daily"` // cron spec with seconds
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type PipelineConfig struct {
	Log        LogConfig        `yaml:"log"`
	Game       GameConfig       `yaml:"game"`
	FxPair     string           `yaml:"fx_pair"`
	Benchmarks BenchmarksConfig `yaml:"benchmarks"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Retry      RetryConfig      `yaml:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Window     WindowConfig     `yaml:"window"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Server     ServerConfig     `yaml:"server"`
}

const (
	_logLevelDefault      = "info"
	_logEncodingDefault   = "json"
	_startDateDefault     = "2026-01-01"
	_startingCashDefault  = 10_000_000_000
	_timezoneDefault      = "Asia/Seoul"
	_fxPairDefault        = "USDKRW"
	_spyCodeDefault       = "SPY"
	_kospiCodeDefault     = "KOSPI"
	_chainDefault         = "TWELVE"
	_twelveDataURLDefault = "https://api.twelvedata.com"
	_yahooURLDefault      = "https://query1.finance.yahoo.com"
	_investConfigDefault  = "./configs/invest.yaml"
	_retryTimeoutDefault  = 15 * time.Second
	_twelveDataRPMDefault = 8
	_yahooRPMDefault      = 60
	_tinvestRPMDefault    = 500
	_windowSizeDefault    = 252
	_windowMinObsDefault  = 60
	_dailyScheduleDefault = "0 30 6 * * *"
	_serverPortDefault    = "8080"
)

var _retryDelaysDefault = []time.Duration{300 * time.Millisecond, 900 * time.Millisecond}

func (c *PipelineConfig) Setup() error {
	c.Log.Level = cmp.Or(c.Log.Level, _logLevelDefault)
	c.Log.Encoding = cmp.Or(c.Log.Encoding, _logEncodingDefault)
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("unknown log encoding %q", c.Log.Encoding)
	}

	c.Game.StartDate = cmp.Or(c.Game.StartDate, _startDateDefault)
	if err := calendar.Validate(c.Game.StartDate); err != nil {
		return fmt.Errorf("%w: invalid game start date", err)
	}
	if c.Game.StartingCashKRW <= 0 {
		c.Game.StartingCashKRW = _startingCashDefault
	}
	c.Game.Timezone = cmp.Or(c.Game.Timezone, _timezoneDefault)
	loc, err := time.LoadLocation(c.Game.Timezone)
	if err != nil {
		return fmt.Errorf("%w: invalid game timezone", err)
	}
	c.Game.location = loc

	c.FxPair = cmp.Or(strings.ToUpper(c.FxPair), _fxPairDefault)
	c.Benchmarks.SPY = cmp.Or(c.Benchmarks.SPY, _spyCodeDefault)
	c.Benchmarks.KOSPI = cmp.Or(c.Benchmarks.KOSPI, _kospiCodeDefault)

	c.Providers.Setup()

	if len(c.Retry.Delays) == 0 {
		c.Retry.Delays = _retryDelaysDefault
	}
	for _, d := range c.Retry.Delays {
		if d < 0 {
			return fmt.Errorf("negative retry delay %s", d)
		}
	}
	if c.Retry.Timeout <= 0 {
		c.Retry.Timeout = _retryTimeoutDefault
	}

	if c.RateLimit.TwelveData <= 0 {
		c.RateLimit.TwelveData = _twelveDataRPMDefault
	}
	if c.RateLimit.Yahoo <= 0 {
		c.RateLimit.Yahoo = _yahooRPMDefault
	}
	if c.RateLimit.TInvest <= 0 {
		c.RateLimit.TInvest = _tinvestRPMDefault
	}

	if c.Window.Size <= 1 {
		c.Window.Size = _windowSizeDefault
	}
	if c.Window.MinObs <= 1 {
		c.Window.MinObs = _windowMinObsDefault
	}
	if c.Window.MinObs > c.Window.Size {
		return fmt.Errorf("window min_obs %d exceeds size %d", c.Window.MinObs, c.Window.Size)
	}

	c.Schedule.Daily = cmp.Or(c.Schedule.Daily, _dailyScheduleDefault)
	c.Server.Port = cmp.Or(c.Server.Port, _serverPortDefault)

	return nil
}

func (c *ProvidersConfig) Setup() {
	c.Chain = cmp.Or(
		strings.TrimSpace(os.Getenv("MARKET_DATA_PROVIDERS")),
		strings.TrimSpace(os.Getenv("MARKET_DATA_PROVIDER")),
		strings.TrimSpace(c.Chain),
		_chainDefault,
	)
	c.names, c.invalid = provider.ParseChain(c.Chain)

	c.TwelveDataBaseURL = cmp.Or(c.TwelveDataBaseURL, _twelveDataURLDefault)
	c.YahooBaseURL = cmp.Or(c.YahooBaseURL, _yahooURLDefault)
	c.InvestConfigPath = cmp.Or(c.InvestConfigPath, _investConfigDefault)
}

// Default is the configuration used when no file is given.
func Default() (PipelineConfig, error) {
	var cfg PipelineConfig
	if err := cfg.Setup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}
	return cfg, nil
}

func LoadPipelineConfig(filename string) (PipelineConfig, error) {
	var cfg PipelineConfig
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	if err := cfg.Setup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}

	return cfg, nil
}
