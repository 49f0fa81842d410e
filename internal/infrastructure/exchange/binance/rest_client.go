package binance

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/application/port"
	"arbscan/internal/infrastructure/exchange"
)

const (
	// Name 场所 id
	Name = "binance"

	DefaultBaseURL = "https://api.binance.com"
	tickerPath     = "/api/v3/ticker/24hr"
)

// Config Binance 现货行情
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             exchange.Policy
	GainerQuote       string // 涨幅榜只看该计价资产，默认 USDT
}

// ticker24h /api/v3/ticker/24hr 响应
type ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

func (t ticker24h) toPort() port.Ticker {
	return port.Ticker{
		Symbol:             strings.ToUpper(t.Symbol),
		LastPrice:          t.LastPrice,
		PriceChangePercent: t.PriceChangePercent,
		QuoteVolume:        t.QuoteVolume,
	}
}

// RESTClient Binance 公共行情 REST 客户端（无需签名）
type RESTClient struct {
	rest        *exchange.RESTClient
	gainerQuote string
	requests    atomic.Int64
}

func NewRESTClient(cfg Config) *RESTClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.GainerQuote == "" {
		cfg.GainerQuote = "USDT"
	}
	return &RESTClient{
		rest: exchange.NewRESTClient(exchange.RESTConfig{
			Venue:             Name,
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Retry:             cfg.Retry,
		}),
		gainerQuote: strings.ToUpper(cfg.GainerQuote),
	}
}

func (c *RESTClient) Name() string { return Name }

// Requests 已发出的逻辑请求数
func (c *RESTClient) Requests() int64 { return c.requests.Load() }

// GetTicker 单个交易对 24h ticker
func (c *RESTClient) GetTicker(ctx context.Context, symbol string) (port.Ticker, error) {
	c.requests.Add(1)
	var t ticker24h
	q := url.Values{"symbol": {strings.ToUpper(strings.TrimSpace(symbol))}}
	if err := c.rest.GetJSON(ctx, tickerPath, q, &t); err != nil {
		return port.Ticker{}, err
	}
	return t.toPort(), nil
}

// GetAllTickers 全市场 24h ticker
func (c *RESTClient) GetAllTickers(ctx context.Context) ([]port.Ticker, error) {
	c.requests.Add(1)
	var all []ticker24h
	if err := c.rest.GetJSON(ctx, tickerPath, nil, &all); err != nil {
		return nil, err
	}
	out := make([]port.Ticker, 0, len(all))
	for _, t := range all {
		out = append(out, t.toPort())
	}
	return out, nil
}

// GetTopGainers 涨幅榜：只保留以 gainerQuote 计价且 24h 涨幅为正的交易对，按涨幅降序取前 limit 个
func (c *RESTClient) GetTopGainers(ctx context.Context, limit int) ([]port.Ticker, error) {
	all, err := c.GetAllTickers(ctx)
	if err != nil {
		return nil, err
	}
	return TopGainers(all, c.gainerQuote, limit), nil
}

// TopGainers 纯函数，便于测试；涨幅相同按交易对名称排序
func TopGainers(all []port.Ticker, quote string, limit int) []port.Ticker {
	type ranked struct {
		t   port.Ticker
		chg decimal.Decimal
	}
	rs := make([]ranked, 0, len(all))
	for _, t := range all {
		sym := strings.ToUpper(t.Symbol)
		if !strings.HasSuffix(sym, quote) || len(sym) == len(quote) {
			continue
		}
		chg, err := decimal.NewFromString(strings.TrimSpace(t.PriceChangePercent))
		if err != nil || !chg.IsPositive() {
			continue
		}
		rs = append(rs, ranked{t: t, chg: chg})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if c := rs[i].chg.Cmp(rs[j].chg); c != 0 {
			return c > 0
		}
		return rs[i].t.Symbol < rs[j].t.Symbol
	})
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]port.Ticker, len(rs))
	for i, r := range rs {
		out[i] = r.t
	}
	return out
}

var _ port.CexClient = (*RESTClient)(nil)
