package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
)

const (
	_investEndpointDefault = "invest-public-api.tinkoff.ru:443"
	_investAppNameDefault  = "paper-league"
)

var ErrMissingInvestToken = errors.New("T_INVEST_API_TOKEN is missing")

// LoadInvestConfig reads the T-Invest SDK config. The token only comes from
// the environment; a missing file leaves the SDK defaults for the public
// endpoint.
func LoadInvestConfig(filename string) (investgo.Config, error) {
	token := os.Getenv("T_INVEST_API_TOKEN")
	if token == "" {
		return investgo.Config{}, ErrMissingInvestToken
	}

	var cfg investgo.Config
	if _, err := os.Stat(filename); err == nil {
		cfg, err = investgo.LoadConfig(filename)
		if err != nil {
			return investgo.Config{}, fmt.Errorf("%w: can't load config", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return investgo.Config{}, fmt.Errorf("%w: can't stat config", err)
	}

	cfg.Token = token
	cfg.EndPoint = cmp.Or(cfg.EndPoint, _investEndpointDefault)
	cfg.AppName = cmp.Or(cfg.AppName, _investAppNameDefault)

	return cfg, nil
}
