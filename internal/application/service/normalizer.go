package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

// Default quote-asset handling for centralized symbols. Suffixes are matched in order.
var (
	DefaultQuoteAssets  = []string{"USDT", "BUSD", "BTC", "ETH", "BNB"}
	DefaultStableQuotes = []string{"USDT", "BUSD"}
)

// DefaultLiquidityFloorUSD 链上池子最低流动性
var DefaultLiquidityFloorUSD = decimal.NewFromInt(10_000)

// NormalizerConfig 规范化参数
type NormalizerConfig struct {
	QuoteAssets       []string
	StableQuotes      []string
	LiquidityFloorUSD decimal.Decimal
}

// Normalizer 把中心化 ticker 与链上池子统一成 model.PriceQuote。
// 价格和流动性一律从字符串直接解析为十进制，不经过 float64。
type Normalizer struct {
	quoteAssets []string
	stable      map[string]struct{}
	floor       decimal.Decimal
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	quotes := normalizeList(cfg.QuoteAssets)
	if len(quotes) == 0 {
		quotes = DefaultQuoteAssets
	}
	stableList := normalizeList(cfg.StableQuotes)
	if len(stableList) == 0 {
		stableList = DefaultStableQuotes
	}
	stable := make(map[string]struct{}, len(stableList))
	for _, s := range stableList {
		stable[s] = struct{}{}
	}
	floor := cfg.LiquidityFloorUSD
	if floor.IsNegative() {
		floor = decimal.Zero
	}
	return &Normalizer{quoteAssets: quotes, stable: stable, floor: floor}
}

// PrimaryQuote is the quote asset used when asking a CEX for an asset's price.
func (n *Normalizer) PrimaryQuote() string {
	for _, q := range n.quoteAssets {
		if n.IsStable(q) {
			return q
		}
	}
	return "USDT"
}

// IsStable reports whether quote is treated as 1 USD.
func (n *Normalizer) IsStable(quote string) bool {
	_, ok := n.stable[strings.ToUpper(strings.TrimSpace(quote))]
	return ok
}

// SplitSymbol 拆分交易对，例如 ETHBTC -> (ETH, BTC)
func (n *Normalizer) SplitSymbol(symbol string) (base, quote string, ok bool) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range n.quoteAssets {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			return strings.TrimSuffix(sym, q), q, true
		}
	}
	return "", "", false
}

// NormalizeTicker converts a centralized ticker into a USD quote. quoteUSD is the USD price
// of the pair's quote asset (1 for stable quotes); a non-positive value means the secondary
// lookup failed and the quote is dropped.
func (n *Normalizer) NormalizeTicker(venue string, t port.Ticker, quoteUSD decimal.Decimal, observedAt time.Time) (model.PriceQuote, error) {
	base, quote, ok := n.SplitSymbol(t.Symbol)
	if !ok {
		return model.PriceQuote{}, fmt.Errorf("%w: unsupported quote asset in %q", model.ErrDataUnavailable, t.Symbol)
	}
	price, err := parseDecimal(t.LastPrice)
	if err != nil {
		return model.PriceQuote{}, fmt.Errorf("%w: %s last price: %v", model.ErrDataUnavailable, t.Symbol, err)
	}
	if !price.IsPositive() {
		return model.PriceQuote{}, fmt.Errorf("%w: %s last price %s", model.ErrDataUnavailable, t.Symbol, price)
	}
	if !quoteUSD.IsPositive() {
		return model.PriceQuote{}, fmt.Errorf("%w: %s has no USD price", model.ErrSecondaryPriceUnresolved, quote)
	}

	liquidity := decimal.Zero
	if vol, err := parseDecimal(t.QuoteVolume); err == nil && vol.IsPositive() {
		liquidity = vol.Mul(quoteUSD)
	}
	return model.PriceQuote{
		VenueID:      strings.ToLower(venue),
		NetworkID:    model.CentralizedNetwork,
		PriceUSD:     price.Mul(quoteUSD),
		LiquidityUSD: liquidity,
		AssetSymbol:  base,
		ObservedAt:   observedAt,
	}, nil
}

// NormalizeDexPair converts one aggregator pool into a quote for asset on network.
// Pools where the asset is not the base token, pools without a USD price and pools whose
// liquidity does not exceed the floor are rejected with model.ErrDataUnavailable.
func (n *Normalizer) NormalizeDexPair(p port.DexPair, asset model.Asset, network string, observedAt time.Time) (model.PriceQuote, error) {
	address, ok := asset.AddressOn(network)
	if !ok {
		return model.PriceQuote{}, fmt.Errorf("%w: %s has no address on %s", model.ErrDataUnavailable, asset.Symbol, network)
	}
	if !strings.EqualFold(strings.TrimSpace(p.BaseToken.Address), address) {
		return model.PriceQuote{}, fmt.Errorf("%w: %s is not the base token of pool %s", model.ErrDataUnavailable, asset.Symbol, p.PairAddress)
	}
	if strings.TrimSpace(p.DexID) == "" {
		return model.PriceQuote{}, fmt.Errorf("%w: pool %s has no dex id", model.ErrDataUnavailable, p.PairAddress)
	}
	price, err := parseDecimal(p.PriceUSD)
	if err != nil || !price.IsPositive() {
		return model.PriceQuote{}, fmt.Errorf("%w: pool %s price %q", model.ErrDataUnavailable, p.PairAddress, p.PriceUSD)
	}
	liquidity, err := parseDecimal(p.LiquidityUSD.String())
	if err != nil {
		liquidity = decimal.Zero
	}
	if !liquidity.GreaterThan(n.floor) {
		return model.PriceQuote{}, fmt.Errorf("%w: pool %s liquidity %s not above floor %s",
			model.ErrDataUnavailable, p.PairAddress, liquidity.StringFixed(2), n.floor)
	}
	return model.PriceQuote{
		VenueID:      strings.ToLower(strings.TrimSpace(p.DexID)),
		NetworkID:    network,
		PriceUSD:     price,
		LiquidityUSD: liquidity,
		AssetSymbol:  asset.Symbol,
		AssetAddress: address,
		PoolAddress:  strings.ToLower(strings.TrimSpace(p.PairAddress)),
		ObservedAt:   observedAt,
	}, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	return decimal.NewFromString(v)
}

func normalizeList(in []string) []string {
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
