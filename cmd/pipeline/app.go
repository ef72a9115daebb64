package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"slices"
	"time"

	"github.com/STTM-NSU/paper-league/internal/calendar"
	"github.com/STTM-NSU/paper-league/internal/config"
	"github.com/STTM-NSU/paper-league/internal/ledger"
	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/pipeline"
	"github.com/STTM-NSU/paper-league/internal/portfolio"
	"github.com/STTM-NSU/paper-league/internal/postgres"
	"github.com/STTM-NSU/paper-league/internal/provider"
	"github.com/STTM-NSU/paper-league/internal/provider/mock"
	"github.com/STTM-NSU/paper-league/internal/provider/tinvest"
	"github.com/STTM-NSU/paper-league/internal/provider/twelvedata"
	"github.com/STTM-NSU/paper-league/internal/provider/yahoo"
	"github.com/STTM-NSU/paper-league/internal/risk"
	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
)

// app holds what every command needs: config, logger and the store.
type app struct {
	cfg    config.PipelineConfig
	logger logger.Logger
	repo   *postgres.Repository

	closers []func()
}

func setup(ctx context.Context) (*app, error) {
	envErr := godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: can't load config %s", err, *configPath)
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.Options{
		Level:    logger.ParseLevel(cfg.Log.Level),
		Encoding: cfg.Log.Encoding,
	})
	if err != nil {
		log.Printf("%s: can't init logger", err)
		return nil, err
	}
	a := &app{cfg: cfg, logger: zapLogger, closers: []func(){loggerSync}}

	if envErr != nil {
		zapLogger.Warnf("can't detect .env file")
	}
	if invalid := cfg.Providers.Invalid(); len(invalid) > 0 {
		zapLogger.Warnf("skipping unknown providers %v in chain %q", invalid, cfg.Providers.Chain)
	}

	pgConfig := postgres.NewConfigFromEnv().Setup()
	zapLogger.Debugf("trying to connect to db %s at %s:%s", pgConfig.DBName, pgConfig.Host, pgConfig.Port)
	db, err := postgres.NewDB(ctx, pgConfig)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%w: can't connect to db", err)
	}
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			zapLogger.Warnf("%s: can't close db", err)
		}
	})
	a.repo = postgres.NewRepository(db)

	return a, nil
}

func loadConfig(filename string) (config.PipelineConfig, error) {
	cfg, err := config.LoadPipelineConfig(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for _, f := range slices.Backward(a.closers) {
		f()
	}
}

func (a *app) orchestrator(ctx context.Context) *pipeline.Orchestrator {
	handles := provider.Resolve(a.cfg.Providers.Names(), a.providerFactories(ctx))
	for _, h := range handles {
		if h.InitError != nil {
			a.logger.Warnf("%s: provider %s is unavailable", h.InitError, h.Name)
		}
	}
	chain := provider.NewChain(handles, a.cfg.Retry.Policy(), a.logger)

	return pipeline.New(a.repo, chain, pipeline.Settings{
		FxPair:          a.cfg.FxPair,
		SPYCode:         a.cfg.Benchmarks.SPY,
		KOSPICode:       a.cfg.Benchmarks.KOSPI,
		GameStartDate:   a.cfg.Game.StartDate,
		StartingCashKRW: a.cfg.Game.StartingCashKRW,
		Timezone:        a.cfg.Game.Timezone,
		Window: risk.Window{
			Size:   a.cfg.Window.Size,
			MinObs: a.cfg.Window.MinObs,
		},
		RequestedProviders:    a.cfg.Providers.Chain,
		InvalidProviderTokens: a.cfg.Providers.Invalid(),
	}, a.logger)
}

// providerFactories builds providers lazily; only the configured chain is
// constructed, so credentials of unused providers are never required.
func (a *app) providerFactories(ctx context.Context) map[provider.Name]provider.Factory {
	return map[provider.Name]provider.Factory{
		provider.Twelve: func() (provider.MarketDataProvider, error) {
			p, err := twelvedata.New(twelvedata.Config{
				BaseURL:           a.cfg.Providers.TwelveDataBaseURL,
				APIKey:            os.Getenv("TWELVE_DATA_API_KEY"),
				RequestsPerMinute: a.cfg.RateLimit.TwelveData,
			}, a.logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		provider.Yahoo: func() (provider.MarketDataProvider, error) {
			return yahoo.New(yahoo.Config{
				BaseURL:           a.cfg.Providers.YahooBaseURL,
				RequestsPerMinute: a.cfg.RateLimit.Yahoo,
			}, a.logger), nil
		},
		provider.TInvest: func() (provider.MarketDataProvider, error) {
			investCfg, err := config.LoadInvestConfig(a.cfg.Providers.InvestConfigPath)
			if err != nil {
				return nil, fmt.Errorf("%w: can't load invest cfg", err)
			}
			client, err := investgo.NewClient(ctx, investCfg, a.logger)
			if err != nil {
				return nil, fmt.Errorf("%w: can't create invest client", err)
			}
			p := tinvest.New(client, a.cfg.RateLimit.TInvest, a.logger)
			a.closers = append(a.closers, func() {
				if err := p.Close(); err != nil {
					a.logger.Warnf("%s: can't stop invest client", err)
				}
			})
			return p, nil
		},
		provider.Mock: func() (provider.MarketDataProvider, error) {
			return mock.New(), nil
		},
	}
}

func (a *app) portfolio() *portfolio.Service {
	engine := ledger.NewEngine(a.repo, a.cfg.FxPair, a.cfg.Game.StartingCashKRW)
	return portfolio.NewService(a.repo, engine, a.cfg.FxPair, a.logger)
}

// dateOrYesterday validates date, defaulting to yesterday in the game timezone.
func (a *app) dateOrYesterday(date string) (string, error) {
	if date == "" {
		return calendar.Yesterday(time.Now(), a.cfg.Game.Timezone)
	}
	if err := calendar.Validate(date); err != nil {
		return "", err
	}
	return date, nil
}

func printJSON(v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: can't encode output", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
