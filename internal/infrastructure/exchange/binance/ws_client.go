package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"arbscan/internal/application/port"
	"arbscan/internal/infrastructure/exchange"
)

const (
	DefaultWsURL   = "wss://stream.binance.com:9443/ws"
	allMiniTickers = "!miniTicker@arr"
	defaultMaxAge  = 30 * time.Second
)

type miniTickerMsg struct {
	Symbol      string `json:"s"`
	Close       string `json:"c"`
	Open        string `json:"o"`
	QuoteVolume string `json:"q"`
}

type cachedTicker struct {
	t  port.Ticker
	at time.Time
}

// StreamClient 订阅全市场 miniTicker 并缓存；缓存缺失或过期时回退到 REST
type StreamClient struct {
	rest   *RESTClient
	ws     exchange.WSHelper
	maxAge time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	tickers map[string]cachedTicker
}

func NewStreamClient(wsURL string, rest *RESTClient, maxAge time.Duration) *StreamClient {
	if strings.TrimSpace(wsURL) == "" {
		wsURL = DefaultWsURL
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &StreamClient{
		rest:    rest,
		ws:      exchange.WSHelper{URL: strings.TrimRight(wsURL, "/") + "/" + allMiniTickers},
		maxAge:  maxAge,
		now:     time.Now,
		tickers: make(map[string]cachedTicker),
	}
}

func (c *StreamClient) Name() string { return Name }

// Start 后台维持连接，直到 ctx 取消
func (c *StreamClient) Start(ctx context.Context) {
	go c.ws.RunWS(ctx, Name, c.onMessage)
}

func (c *StreamClient) onMessage(b []byte) {
	var msgs []miniTickerMsg
	if err := json.Unmarshal(b, &msgs); err != nil {
		log.Error().Str("feed", Name).Err(err).Msg("json unmarshal failed")
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		sym := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if sym == "" || strings.TrimSpace(m.Close) == "" {
			continue
		}
		c.tickers[sym] = cachedTicker{
			t: port.Ticker{
				Symbol:             sym,
				LastPrice:          m.Close,
				PriceChangePercent: changePercent(m.Open, m.Close),
				QuoteVolume:        m.QuoteVolume,
			},
			at: now,
		}
	}
}

// GetTicker 优先用流缓存
func (c *StreamClient) GetTicker(ctx context.Context, symbol string) (port.Ticker, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	c.mu.RLock()
	ct, ok := c.tickers[sym]
	c.mu.RUnlock()
	if ok && c.now().Sub(ct.at) <= c.maxAge {
		return ct.t, nil
	}
	return c.rest.GetTicker(ctx, sym)
}

// GetTopGainers 缓存新鲜时直接在缓存上排序，否则走 REST
func (c *StreamClient) GetTopGainers(ctx context.Context, limit int) ([]port.Ticker, error) {
	fresh := c.snapshot()
	if len(fresh) == 0 {
		return c.rest.GetTopGainers(ctx, limit)
	}
	return TopGainers(fresh, c.rest.gainerQuote, limit), nil
}

func (c *StreamClient) snapshot() []port.Ticker {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]port.Ticker, 0, len(c.tickers))
	for _, ct := range c.tickers {
		if now.Sub(ct.at) <= c.maxAge {
			out = append(out, ct.t)
		}
	}
	return out
}

func changePercent(open, last string) string {
	o, err := decimal.NewFromString(strings.TrimSpace(open))
	if err != nil || !o.IsPositive() {
		return "0"
	}
	l, err := decimal.NewFromString(strings.TrimSpace(last))
	if err != nil {
		return "0"
	}
	return l.Sub(o).Mul(decimal.NewFromInt(100)).DivRound(o, 8).String()
}

var _ port.CexClient = (*StreamClient)(nil)
