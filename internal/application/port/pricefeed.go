package port

import (
	"context"
	"encoding/json"

	"arbscan/internal/domain/model"
)

// Ticker 中心化交易所 24h ticker（原始字符串，解析交给 normalizer）
type Ticker struct {
	Symbol             string // "ETHUSDT"
	LastPrice          string
	PriceChangePercent string
	QuoteVolume        string // 24h 计价资产成交额
}

// DexToken 聚合器返回的交易对一侧代币
type DexToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// DexPair 聚合器返回的单个池子
type DexPair struct {
	ChainID      string      `json:"chainId"`
	DexID        string      `json:"dexId"`
	PairAddress  string      `json:"pairAddress"`
	PriceUSD     string      `json:"priceUsd"`
	LiquidityUSD json.Number `json:"liquidityUsd"`
	BaseToken    DexToken    `json:"baseToken"`
	QuoteToken   DexToken    `json:"quoteToken"`
}

// CexClient 中心化交易所行情；传输错误以 model.ErrTransportFailure 包装返回
type CexClient interface {
	Name() string
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetTopGainers(ctx context.Context, limit int) ([]Ticker, error)
}

// DexClient 去中心化交易所聚合器
type DexClient interface {
	Name() string
	GetPriceAcrossVenues(ctx context.Context, networkID, tokenAddress string) ([]DexPair, error)
}

// PriceSource 报价能力：给定资产返回若干规范化报价。
// 部分失败时同时返回已得到的报价和 errors.Join 后的 *model.LegError。
type PriceSource interface {
	Name() string
	FetchQuotes(ctx context.Context, asset model.Asset) ([]model.PriceQuote, error)
}

// GainerSource 按 24h 涨幅挑选资产的中心化报价源
type GainerSource interface {
	PriceSource
	TopGainerQuotes(ctx context.Context, limit int) ([]model.PriceQuote, error)
}
