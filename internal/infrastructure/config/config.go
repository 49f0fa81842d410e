package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"arbscan/internal/domain/model"
	dsvc "arbscan/internal/domain/service"
)

// Duration toml 中写 "60s" / "1m30s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

type Network struct {
	Enabled        *bool   `toml:"enabled"`
	ChainID        int64   `toml:"chain_id"`
	NativeToken    string  `toml:"native_token"`
	Explorer       string  `toml:"explorer"`
	GasPriceGwei   float64 `toml:"gas_price_gwei"`
	NativePriceUSD float64 `toml:"native_price_usd"`
}

// IsEnabled 未写 enabled 视为启用
func (n Network) IsEnabled() bool { return n.Enabled == nil || *n.Enabled }

type Asset struct {
	Decimals  int               `toml:"decimals"`
	Addresses map[string]string `toml:"addresses"`
}

type Config struct {
	App struct {
		LogLevel   string   `toml:"log_level"`
		Continuous bool     `toml:"continuous"`
		Interval   Duration `toml:"interval"`
	} `toml:"app"`

	Scan struct {
		Scenarios            string            `toml:"scenarios"` // "all" 或 "1,3"
		Quantity             float64           `toml:"quantity"`
		MinProfitPercent     float64           `toml:"min_profit_percent"`
		MinLiquidityUSD      float64           `toml:"min_liquidity_usd"`
		LiquidityFloorUSD    float64           `toml:"liquidity_floor_usd"`
		TopGainers           int               `toml:"top_gainers"`
		CrossNetworkBestOnly bool              `toml:"cross_network_best_only"`
		GasLimit             int64             `toml:"gas_limit"`
		Tokens               []string          `toml:"tokens"`
		Category             string            `toml:"category"`
		QuoteAssets          []string          `toml:"quote_assets"`
		StableQuotes         []string          `toml:"stable_quotes"`
		Aliases              map[string]string `toml:"aliases"`
	} `toml:"scan"`

	Fees struct {
		CexDefault        float64            `toml:"cex_default"`
		DexDefault        float64            `toml:"dex_default"`
		BridgeDefault     float64            `toml:"bridge_default"`
		GasCostUSDDefault float64            `toml:"gas_cost_usd_default"`
		Cex               map[string]float64 `toml:"cex"`
		Dex               map[string]float64 `toml:"dex"`
	} `toml:"fees"`

	Networks   map[string]Network            `toml:"networks"`
	BridgeFees map[string]map[string]float64 `toml:"bridge_fees"` // src -> dst -> percent
	Assets     map[string]Asset              `toml:"assets"`
	Categories map[string][]string           `toml:"categories"`

	Exchange struct {
		Binance struct {
			Enabled           bool     `toml:"enabled"`
			RestURL           string   `toml:"rest_url"`
			WsURL             string   `toml:"ws_url"`
			UseStream         bool     `toml:"use_stream"`
			RequestsPerSecond float64  `toml:"requests_per_second"`
			Timeout           Duration `toml:"timeout"`
		} `toml:"binance"`
	} `toml:"exchange"`

	DexScreener struct {
		Enabled           bool     `toml:"enabled"`
		BaseURL           string   `toml:"base_url"`
		RequestsPerMinute int      `toml:"requests_per_minute"`
		Timeout           Duration `toml:"timeout"`
	} `toml:"dexscreener"`

	Retry struct {
		MaxAttempts int      `toml:"max_attempts"`
		BaseDelay   Duration `toml:"base_delay"`
		Multiplier  float64  `toml:"multiplier"`
	} `toml:"retry"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`
		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
		Redis struct {
			Enabled  bool     `toml:"enabled"`
			Addr     string   `toml:"addr"`
			Password string   `toml:"password"`
			DB       int      `toml:"db"`
			Prefix   string   `toml:"prefix"`
			TTL      Duration `toml:"ttl"`
		} `toml:"redis"`
	} `toml:"storage"`

	Report struct {
		Console bool `toml:"console"`
		Links   bool `toml:"links"`
		JSON    struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"json"`
		S3 struct {
			Enabled   bool   `toml:"enabled"`
			Bucket    string `toml:"bucket"`
			Prefix    string `toml:"prefix"`
			Region    string `toml:"region"`
			Endpoint  string `toml:"endpoint"`
			PathStyle bool   `toml:"path_style"`
			AccessKey string `toml:"-"` // 只从环境变量读取
			SecretKey string `toml:"-"`
		} `toml:"s3"`
	} `toml:"report"`

	Metrics struct {
		ListenAddr string `toml:"listen_addr"`
	} `toml:"metrics"`
}

// Overrides 命令行参数；零值表示不覆盖
type Overrides struct {
	Scenarios        string
	Tokens           []string
	Category         string
	MinProfitPercent *float64
	MinLiquidityUSD  *float64
	Continuous       *bool
	Interval         time.Duration
}

func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	applyDefaults(&cfg, md)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply 合并命令行覆盖并重新校验
func (c *Config) Apply(o Overrides) error {
	if strings.TrimSpace(o.Scenarios) != "" {
		c.Scan.Scenarios = o.Scenarios
	}
	if len(o.Tokens) > 0 {
		c.Scan.Tokens = o.Tokens
	}
	if strings.TrimSpace(o.Category) != "" {
		c.Scan.Category = o.Category
	}
	if o.MinProfitPercent != nil {
		c.Scan.MinProfitPercent = *o.MinProfitPercent
	}
	if o.MinLiquidityUSD != nil {
		c.Scan.MinLiquidityUSD = *o.MinLiquidityUSD
	}
	if o.Continuous != nil {
		c.App.Continuous = *o.Continuous
	}
	if o.Interval > 0 {
		c.App.Interval.Duration = o.Interval
	}
	return validate(c)
}

// applyDefaults 阈值和费率显式写 0 是合法配置，只有文件里没写时才填默认值
func applyDefaults(cfg *Config, md toml.MetaData) {
	unset := func(key ...string) bool { return !md.IsDefined(key...) }

	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.Interval.Duration <= 0 {
		cfg.App.Interval.Duration = 60 * time.Second
	}

	if strings.TrimSpace(cfg.Scan.Scenarios) == "" {
		cfg.Scan.Scenarios = "all"
	}
	if cfg.Scan.Quantity <= 0 {
		cfg.Scan.Quantity = 1
	}
	if unset("scan", "min_profit_percent") {
		cfg.Scan.MinProfitPercent = 0.5
	}
	if unset("scan", "min_liquidity_usd") {
		cfg.Scan.MinLiquidityUSD = 10_000
	}
	if unset("scan", "liquidity_floor_usd") {
		cfg.Scan.LiquidityFloorUSD = 10_000
	}
	if cfg.Scan.TopGainers <= 0 {
		cfg.Scan.TopGainers = 20
	}
	if cfg.Scan.GasLimit <= 0 {
		cfg.Scan.GasLimit = dsvc.DefaultGasLimit
	}
	if len(cfg.Scan.Aliases) == 0 {
		cfg.Scan.Aliases = map[string]string{"ETH": "WETH", "BTC": "WBTC", "BNB": "WBNB", "MATIC": "WMATIC"}
	}

	if unset("fees", "cex_default") {
		cfg.Fees.CexDefault = 0.1
	}
	if unset("fees", "dex_default") {
		cfg.Fees.DexDefault = 0.3
	}
	if unset("fees", "bridge_default") {
		cfg.Fees.BridgeDefault = 0.1
	}
	if unset("fees", "gas_cost_usd_default") {
		cfg.Fees.GasCostUSDDefault = 1
	}

	if cfg.Exchange.Binance.RestURL == "" {
		cfg.Exchange.Binance.RestURL = "https://api.binance.com"
	}
	if cfg.Exchange.Binance.WsURL == "" {
		cfg.Exchange.Binance.WsURL = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Exchange.Binance.RequestsPerSecond <= 0 {
		cfg.Exchange.Binance.RequestsPerSecond = 1
	}
	if cfg.Exchange.Binance.Timeout.Duration <= 0 {
		cfg.Exchange.Binance.Timeout.Duration = 10 * time.Second
	}

	if cfg.DexScreener.BaseURL == "" {
		cfg.DexScreener.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.DexScreener.RequestsPerMinute <= 0 {
		cfg.DexScreener.RequestsPerMinute = 300
	}
	if cfg.DexScreener.Timeout.Duration <= 0 {
		cfg.DexScreener.Timeout.Duration = 10 * time.Second
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay.Duration <= 0 {
		cfg.Retry.BaseDelay.Duration = time.Second
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = 2
	}

	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/arbscan.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "arbscan"
	}
	if cfg.Storage.Redis.TTL.Duration <= 0 {
		cfg.Storage.Redis.TTL.Duration = 10 * time.Minute
	}
	if cfg.Report.JSON.Path == "" {
		cfg.Report.JSON.Path = "arbitrage_opportunities.json"
	}
	if cfg.Report.S3.Prefix == "" {
		cfg.Report.S3.Prefix = "reports/"
	}
}

func validate(cfg *Config) error {
	if _, err := model.ParseScenarioSelector(cfg.Scan.Scenarios); err != nil {
		return fmt.Errorf("scan.scenarios: %w", err)
	}
	if cfg.Scan.MinProfitPercent < 0 {
		return errors.New("scan.min_profit_percent must not be negative")
	}
	if cfg.Scan.MinLiquidityUSD < 0 {
		return errors.New("scan.min_liquidity_usd must not be negative")
	}
	if cfg.Scan.LiquidityFloorUSD < 0 {
		return errors.New("scan.liquidity_floor_usd must not be negative")
	}
	for name, v := range map[string]float64{
		"cex_default":          cfg.Fees.CexDefault,
		"dex_default":          cfg.Fees.DexDefault,
		"gas_cost_usd_default": cfg.Fees.GasCostUSDDefault,
	} {
		if v < 0 {
			return fmt.Errorf("fees.%s must not be negative", name)
		}
	}
	if cfg.Fees.BridgeDefault < 0 || cfg.Fees.BridgeDefault >= 100 {
		return errors.New("fees.bridge_default must be in [0, 100)")
	}

	cfg.Scan.Tokens = normalizeSymbols(cfg.Scan.Tokens)
	cfg.Scan.Category = strings.ToLower(strings.TrimSpace(cfg.Scan.Category))

	// 网络 / 场所名统一小写
	cfg.Networks = lowerKeys(cfg.Networks)
	cfg.Fees.Cex = lowerKeys(cfg.Fees.Cex)
	cfg.Fees.Dex = lowerKeys(cfg.Fees.Dex)
	bridge := make(map[string]map[string]float64, len(cfg.BridgeFees))
	for src, byDst := range cfg.BridgeFees {
		bridge[strings.ToLower(src)] = lowerKeys(byDst)
	}
	cfg.BridgeFees = bridge

	for name, fee := range cfg.Fees.Cex {
		if fee < 0 {
			return fmt.Errorf("fees.cex.%s must not be negative", name)
		}
	}
	for name, fee := range cfg.Fees.Dex {
		if fee < 0 {
			return fmt.Errorf("fees.dex.%s must not be negative", name)
		}
	}
	for src, byDst := range cfg.BridgeFees {
		for dst, fee := range byDst {
			if fee < 0 || fee >= 100 {
				return fmt.Errorf("bridge_fees.%s.%s must be in [0, 100)", src, dst)
			}
		}
	}

	assets := make(map[string]Asset, len(cfg.Assets))
	for sym, a := range cfg.Assets {
		u := strings.ToUpper(strings.TrimSpace(sym))
		addrs := make(map[string]string, len(a.Addresses))
		for network, addr := range a.Addresses {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("assets.%s.addresses.%s: invalid address %q", u, network, addr)
			}
			addrs[strings.ToLower(network)] = common.HexToAddress(addr).Hex()
		}
		a.Addresses = addrs
		assets[u] = a
	}
	cfg.Assets = assets

	cats := make(map[string][]string, len(cfg.Categories))
	for name, list := range cfg.Categories {
		cats[strings.ToLower(strings.TrimSpace(name))] = normalizeSymbols(list)
	}
	cfg.Categories = cats

	if cfg.Exchange.Binance.Enabled && strings.TrimSpace(cfg.Exchange.Binance.RestURL) == "" {
		return errors.New("exchange.binance.rest_url empty but enabled")
	}
	if cfg.Exchange.Binance.UseStream && strings.TrimSpace(cfg.Exchange.Binance.WsURL) == "" {
		return errors.New("exchange.binance.ws_url empty but use_stream set")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Report.S3.Enabled && strings.TrimSpace(cfg.Report.S3.Bucket) == "" {
		return errors.New("report.s3.bucket empty but enabled")
	}
	return nil
}

// ScenarioList 解析 scan.scenarios
func (c *Config) ScenarioList() []model.Scenario {
	out, err := model.ParseScenarioSelector(c.Scan.Scenarios)
	if err != nil {
		return append([]model.Scenario(nil), model.AllScenarios...)
	}
	return out
}

// EnabledNetworks 启用的网络，按名称排序
func (c *Config) EnabledNetworks() []string {
	out := make([]string, 0, len(c.Networks))
	for name, n := range c.Networks {
		if n.IsEnabled() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SelectAssets 按 tokens 白名单或分类选出资产；未知分类回退到全部资产。
// 只保留启用网络上的地址，结果按符号排序。
func (c *Config) SelectAssets() []model.Asset {
	var want []string
	switch {
	case len(c.Scan.Tokens) > 0:
		want = c.Scan.Tokens
	case c.Scan.Category != "" && c.Scan.Category != "all":
		if list, ok := c.Categories[c.Scan.Category]; ok {
			want = list
		} else {
			log.Warn().Str("category", c.Scan.Category).Msg("unknown category, scanning all assets")
		}
	}

	enabled := map[string]struct{}{}
	for _, n := range c.EnabledNetworks() {
		enabled[n] = struct{}{}
	}

	pick := func(sym string, a Asset) model.Asset {
		addrs := make(map[string]string, len(a.Addresses))
		for network, addr := range a.Addresses {
			if _, ok := enabled[network]; ok || len(enabled) == 0 {
				addrs[network] = addr
			}
		}
		return model.Asset{Symbol: sym, Decimals: a.Decimals, Addresses: addrs}
	}

	var out []model.Asset
	if want == nil {
		for sym, a := range c.Assets {
			out = append(out, pick(sym, a))
		}
	} else {
		for _, sym := range want {
			if a, ok := c.Assets[sym]; ok {
				out = append(out, pick(sym, a))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Params 构造引擎参数；float 配置在这里一次性转换为十进制
func (c *Config) Params() dsvc.Params {
	p := dsvc.DefaultParams()
	p.Quantity = dec(c.Scan.Quantity)
	p.MinProfitPercent = dec(c.Scan.MinProfitPercent)
	p.MinLiquidityUSD = dec(c.Scan.MinLiquidityUSD)
	p.CrossNetworkBestOnly = c.Scan.CrossNetworkBestOnly

	fees := model.NewFeeSchedule()
	fees.DefaultCexFee = dec(c.Fees.CexDefault)
	fees.DefaultDexFee = dec(c.Fees.DexDefault)
	fees.DefaultBridgeFee = dec(c.Fees.BridgeDefault)
	fees.DefaultGasCostUSD = dec(c.Fees.GasCostUSDDefault)
	for venue, fee := range c.Fees.Cex {
		fees.CexTakerFees[venue] = dec(fee)
	}
	for venue, fee := range c.Fees.Dex {
		fees.DexFees[venue] = dec(fee)
	}
	for src, byDst := range c.BridgeFees {
		m := make(map[string]decimal.Decimal, len(byDst))
		for dst, fee := range byDst {
			m[dst] = dec(fee)
		}
		fees.BridgeFees[src] = m
	}
	p.Fees = fees
	return p
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func lowerKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
