package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"arbscan/internal/application/port"
	"arbscan/internal/infrastructure/exchange"
)

const (
	Name           = "dexscreener"
	DefaultBaseURL = "https://api.dexscreener.com"
)

// Config DexScreener 公共 API，默认 300 次/分钟
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	Retry             exchange.Policy
}

type token struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// pair /token-pairs/v1/{chainId}/{tokenAddress} 返回的单个池子
type pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	PriceUSD    string `json:"priceUsd"`
	Liquidity   *struct {
		USD json.Number `json:"usd"`
	} `json:"liquidity"`
	BaseToken  token `json:"baseToken"`
	QuoteToken token `json:"quoteToken"`
}

// Client 链上聚合器：一次请求拿到某网络上某代币的全部池子
type Client struct {
	rest *exchange.RESTClient
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	rps := 5.0
	if cfg.RequestsPerMinute > 0 {
		rps = float64(cfg.RequestsPerMinute) / 60
	}
	return &Client{rest: exchange.NewRESTClient(exchange.RESTConfig{
		Venue:             Name,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: rps,
		Retry:             cfg.Retry,
	})}
}

func (c *Client) Name() string { return Name }

// GetPriceAcrossVenues 返回 networkID 上 tokenAddress 的所有池子（不过滤，交给 normalizer）
func (c *Client) GetPriceAcrossVenues(ctx context.Context, networkID, tokenAddress string) ([]port.DexPair, error) {
	network := strings.ToLower(strings.TrimSpace(networkID))
	address := strings.TrimSpace(tokenAddress)
	if network == "" || address == "" {
		return nil, fmt.Errorf("dexscreener: network and token address are required")
	}

	var pairs []pair
	path := "/token-pairs/v1/" + url.PathEscape(network) + "/" + url.PathEscape(address)
	if err := c.rest.GetJSON(ctx, path, nil, &pairs); err != nil {
		return nil, err
	}

	out := make([]port.DexPair, 0, len(pairs))
	for _, p := range pairs {
		if p.ChainID != "" && !strings.EqualFold(p.ChainID, network) {
			continue
		}
		dp := port.DexPair{
			ChainID:     network,
			DexID:       p.DexID,
			PairAddress: p.PairAddress,
			PriceUSD:    p.PriceUSD,
			BaseToken:   port.DexToken{Address: p.BaseToken.Address, Symbol: p.BaseToken.Symbol},
			QuoteToken:  port.DexToken{Address: p.QuoteToken.Address, Symbol: p.QuoteToken.Symbol},
		}
		if p.Liquidity != nil {
			dp.LiquidityUSD = p.Liquidity.USD
		}
		out = append(out, dp)
	}
	return out, nil
}

var _ port.DexClient = (*Client)(nil)
