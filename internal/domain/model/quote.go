package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CentralizedNetwork 中心化交易所报价使用的 network_id 哨兵值
const CentralizedNetwork = "centralized"

// Asset 监控资产：符号 + 各网络上的合约地址
type Asset struct {
	Symbol    string            `json:"symbol"`
	Decimals  int               `json:"decimals"`
	Addresses map[string]string `json:"addresses"` // network -> contract address
}

// Networks returns the networks the asset has a contract address on, sorted.
func (a Asset) Networks() []string {
	out := make([]string, 0, len(a.Addresses))
	for n, addr := range a.Addresses {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MultiNetwork 资产是否部署在多于一个网络上
func (a Asset) MultiNetwork() bool {
	return len(a.Networks()) > 1
}

func (a Asset) AddressOn(network string) (string, bool) {
	addr, ok := a.Addresses[network]
	if !ok || strings.TrimSpace(addr) == "" {
		return "", false
	}
	return addr, true
}

// PriceQuote 某个场所在某一时刻对某个资产的报价
type PriceQuote struct {
	VenueID      string          `json:"venue_id"`
	NetworkID    string          `json:"network_id"` // "" 或 "centralized" 表示中心化交易所
	PriceUSD     decimal.Decimal `json:"price_usd"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	AssetSymbol  string          `json:"asset_symbol"`
	AssetAddress string          `json:"asset_address,omitempty"`
	PoolAddress  string          `json:"pool_address,omitempty"` // 链上池子地址；同一 DEX 的不同池子是不同场所
	ObservedAt   time.Time       `json:"observed_at"`
}

// Centralized reports whether the quote comes from a centralized exchange.
func (q PriceQuote) Centralized() bool {
	n := strings.TrimSpace(q.NetworkID)
	return n == "" || strings.EqualFold(n, CentralizedNetwork)
}

// Usable 价格 <= 0 视为无数据，不参与配对
func (q PriceQuote) Usable() bool {
	return q.PriceUSD.IsPositive()
}

// VenuePair 同一资产的两条报价组成的 (买, 卖) 腿；Buy 价格严格低于 Sell
type VenuePair struct {
	Buy  PriceQuote `json:"buy"`
	Sell PriceQuote `json:"sell"`
}

func (p VenuePair) MinLiquidityUSD() decimal.Decimal {
	return decimal.Min(p.Buy.LiquidityUSD, p.Sell.LiquidityUSD)
}
