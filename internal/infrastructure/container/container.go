package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"arbscan/internal/application/port"
	"arbscan/internal/application/service"
	"arbscan/internal/application/usecase/scan"
	s3blob "arbscan/internal/infrastructure/blob/s3"
	"arbscan/internal/infrastructure/config"
	"arbscan/internal/infrastructure/exchange"
	"arbscan/internal/infrastructure/exchange/binance"
	"arbscan/internal/infrastructure/exchange/dexscreener"
	"arbscan/internal/infrastructure/metrics"
	"arbscan/internal/infrastructure/storage/composite"
	pgrepo "arbscan/internal/infrastructure/storage/postgres"
	redisrepo "arbscan/internal/infrastructure/storage/redis"
	sqliterepo "arbscan/internal/infrastructure/storage/sqlite"
	"arbscan/internal/interfaces/console"
	"arbscan/internal/interfaces/jsonfile"
)

// Container 包含所有应用依赖
type Container struct {
	cfg *config.Config

	cex     port.CexClient // binance 关闭时为 nil
	stream  *binance.StreamClient
	scanner *service.Scanner
	repo    *composite.Repo
	sqlite  *sqliterepo.Repo
	sinks   []port.ReportSink
	metrics *metrics.Recorder
	svc     *scan.Service

	closeOnce   sync.Once
	closerChain []func() error
}

// New 按配置组装依赖；任何一步失败都会释放已初始化的资源
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
		metrics:     metrics.NewRecorder(),
	}

	c.initExchanges()
	c.initScanner()

	if err := c.initStorage(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.initSinks(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	interval := time.Duration(0)
	if cfg.App.Continuous {
		interval = cfg.App.Interval.Duration
	}
	c.svc = scan.NewService(scan.ServiceDeps{
		Scanner:   c.scanner,
		Scenarios: cfg.ScenarioList(),
		Interval:  interval,
		Repo:      c.repo,
		Sinks:     c.sinks,
		Metrics:   c.metrics,
	})
	return c, nil
}

func (c *Container) retryPolicy() exchange.Policy {
	p := exchange.DefaultPolicy()
	r := c.cfg.Retry
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay.Duration > 0 {
		p.BaseDelay = r.BaseDelay.Duration
	}
	if r.Multiplier >= 1 {
		p.Multiplier = r.Multiplier
	}
	return p
}

func (c *Container) initExchanges() {
	bc := c.cfg.Exchange.Binance
	if !bc.Enabled {
		log.Warn().Msg("binance disabled: CEX/DEX scenario will be empty and gas uses static prices")
		return
	}
	rest := binance.NewRESTClient(binance.Config{
		BaseURL:           bc.RestURL,
		Timeout:           bc.Timeout.Duration,
		RequestsPerSecond: bc.RequestsPerSecond,
		Retry:             c.retryPolicy(),
		GainerQuote:       c.primaryQuote(),
	})
	c.cex = rest
	if bc.UseStream {
		c.stream = binance.NewStreamClient(bc.WsURL, rest, 0)
		c.cex = c.stream
	}
	log.Info().Str("rest", bc.RestURL).Bool("stream", bc.UseStream).Msg("binance initialized")
}

func (c *Container) primaryQuote() string {
	if len(c.cfg.Scan.QuoteAssets) > 0 {
		return strings.ToUpper(c.cfg.Scan.QuoteAssets[0])
	}
	return "USDT"
}

func (c *Container) initScanner() {
	cfg := c.cfg
	norm := service.NewNormalizer(service.NormalizerConfig{
		QuoteAssets:       cfg.Scan.QuoteAssets,
		StableQuotes:      cfg.Scan.StableQuotes,
		LiquidityFloorUSD: decimal.NewFromFloat(cfg.Scan.LiquidityFloorUSD),
	})

	deps := service.ScannerDeps{
		Assets:     cfg.SelectAssets(),
		Aliases:    cfg.Scan.Aliases,
		Params:     cfg.Params(),
		TopGainers: cfg.Scan.TopGainers,
	}
	if c.cex != nil {
		deps.Gainers = service.NewCexSource(c.cex, norm)
	}
	if cfg.DexScreener.Enabled {
		dex := dexscreener.NewClient(dexscreener.Config{
			BaseURL:           cfg.DexScreener.BaseURL,
			Timeout:           cfg.DexScreener.Timeout.Duration,
			RequestsPerMinute: cfg.DexScreener.RequestsPerMinute,
			Retry:             c.retryPolicy(),
		})
		deps.OnChain = append(deps.OnChain, service.NewDexSource(dex, norm, cfg.EnabledNetworks()))
	} else {
		log.Warn().Msg("dexscreener disabled: no on-chain quotes")
	}

	networks := make([]service.NetworkGas, 0, len(cfg.Networks))
	for _, name := range cfg.EnabledNetworks() {
		n := cfg.Networks[name]
		networks = append(networks, service.NetworkGas{
			ID:             name,
			GasPriceGwei:   decimal.NewFromFloat(n.GasPriceGwei),
			NativeSymbol:   n.NativeToken,
			NativePriceUSD: decimal.NewFromFloat(n.NativePriceUSD),
		})
	}
	deps.Gas = service.NewGasOracle(networks, cfg.Scan.GasLimit, c.cex, norm.PrimaryQuote())

	c.scanner = service.NewScanner(deps)
	log.Info().
		Int("assets", len(deps.Assets)).
		Strs("networks", cfg.EnabledNetworks()).
		Int("onchain_sources", len(deps.OnChain)).
		Msg("scanner initialized")
}

// initStorage 初始化存储层（SQLite、Postgres、Redis）；
// 每个仓库打开后立即登记关闭函数，后续步骤失败时由 Close 释放
func (c *Container) initStorage(ctx context.Context) error {
	var repos []port.OpportunityRepository
	st := c.cfg.Storage
	register := func(name string, repo port.OpportunityRepository) {
		repos = append(repos, repo)
		c.closerChain = append(c.closerChain, func() error {
			log.Debug().Str("repo", name).Msg("closing repository")
			return repo.Close()
		})
	}

	if st.SQLite.Enabled {
		repo, err := sqliterepo.New(st.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
		c.sqlite = repo
		register("sqlite", repo)
		log.Info().Str("path", st.SQLite.Path).Msg("sqlite initialized")
	}

	if st.Postgres.Enabled {
		repo, err := pgrepo.New(st.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
		register("postgres", repo)
		log.Info().Msg("postgres initialized")
	}

	if st.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     st.Redis.Addr,
			Password: st.Redis.Password,
			DB:       st.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping failed: %w", err)
		}
		register("redis", redisrepo.New(rdb, st.Redis.Prefix, st.Redis.TTL.Duration))
		log.Info().Str("addr", st.Redis.Addr).Int("db", st.Redis.DB).Msg("redis initialized")
	}

	c.repo = composite.New(repos...)
	log.Debug().Int("repos", c.repo.Len()).Msg("storage initialized")
	return nil
}

func (c *Container) initSinks(ctx context.Context) error {
	rc := c.cfg.Report
	if rc.Console {
		c.sinks = append(c.sinks, console.NewSink(nil, rc.Links, c.LinkBuilder()))
	}
	if rc.JSON.Enabled {
		c.sinks = append(c.sinks, jsonfile.NewSink(rc.JSON.Path))
	}
	if rc.S3.Enabled {
		a, err := s3blob.New(ctx, s3blob.Config{
			Bucket:    rc.S3.Bucket,
			Prefix:    rc.S3.Prefix,
			Region:    rc.S3.Region,
			Endpoint:  rc.S3.Endpoint,
			PathStyle: rc.S3.PathStyle,
			AccessKey: rc.S3.AccessKey,
			SecretKey: rc.S3.SecretKey,
		})
		if err != nil {
			return err
		}
		c.sinks = append(c.sinks, a)
		log.Info().Str("bucket", rc.S3.Bucket).Msg("s3 archive initialized")
	}
	return nil
}

// LinkBuilder 控制台核对链接：浏览器地址来自网络表，CEX 符号取别名的反向映射
func (c *Container) LinkBuilder() console.LinkBuilder {
	explorers := make(map[string]string, len(c.cfg.Networks))
	for name, n := range c.cfg.Networks {
		explorers[name] = n.Explorer
	}
	cexSymbols := make(map[string]string, len(c.cfg.Scan.Aliases))
	for cex, registry := range c.cfg.Scan.Aliases {
		cexSymbols[strings.ToUpper(registry)] = strings.ToUpper(cex)
	}
	return console.LinkBuilder{Explorers: explorers, CexSymbols: cexSymbols, CexQuote: c.primaryQuote()}
}

// Start 启动后台组件（行情流、指标服务），ctx 结束时随之停止
func (c *Container) Start(ctx context.Context) {
	if c.stream != nil {
		c.stream.Start(ctx)
	}
	c.metrics.Serve(ctx, c.cfg.Metrics.ListenAddr)
}

func (c *Container) Config() *config.Config { return c.cfg }

func (c *Container) Scanner() *service.Scanner { return c.scanner }

func (c *Container) Service() *scan.Service { return c.svc }

// SQLiteRepo 未启用时为 nil
func (c *Container) SQLiteRepo() *sqliterepo.Repo { return c.sqlite }

func (c *Container) Sinks() []port.ReportSink { return c.sinks }

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Debug().Msg("container closed")
	})
	return err
}
