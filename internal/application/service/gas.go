package service

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
	dsvc "arbscan/internal/domain/service"
)

// NetworkGas 单个网络的 gas 配置
type NetworkGas struct {
	ID             string
	GasPriceGwei   decimal.Decimal // <= 0 表示未配置
	NativeSymbol   string          // ETH / BNB / MATIC
	NativePriceUSD decimal.Decimal // 静态兜底价格，<= 0 表示未配置
}

// GasOracle 在扫描开始前把各网络 gas 估算成 USD，扫描期间只读
type GasOracle struct {
	networks []NetworkGas
	gasLimit int64
	cex      port.CexClient // 可为 nil：只用静态价格
	quote    string
}

func NewGasOracle(networks []NetworkGas, gasLimit int64, cex port.CexClient, primaryQuote string) *GasOracle {
	sorted := append([]NetworkGas(nil), networks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	if gasLimit <= 0 {
		gasLimit = dsvc.DefaultGasLimit
	}
	if primaryQuote == "" {
		primaryQuote = "USDT"
	}
	return &GasOracle{networks: sorted, gasLimit: gasLimit, cex: cex, quote: primaryQuote}
}

// Estimate returns the gas table for one scan. A network without a gas price is charged the
// default native amount; a network whose native asset has no USD price is left out, so the
// fee schedule falls back to its default USD gas cost for it.
func (o *GasOracle) Estimate(ctx context.Context) (map[string]model.GasEstimate, []model.ConfigGap) {
	out := make(map[string]model.GasEstimate, len(o.networks))
	var gaps []model.ConfigGap

	for _, n := range o.networks {
		native := model.DefaultGasCostNative
		if n.GasPriceGwei.IsPositive() {
			native = dsvc.EstimateGasCostNative(n.GasPriceGwei, o.gasLimit)
		} else {
			gaps = append(gaps, model.ConfigGap{Kind: model.GapGas, Key: n.ID + ":gas_price_gwei"})
		}

		price := o.livePrice(ctx, n)
		if !price.IsPositive() {
			price = n.NativePriceUSD
		}
		if !price.IsPositive() {
			gaps = append(gaps, model.ConfigGap{Kind: model.GapGas, Key: n.ID + ":native_price_usd"})
			continue
		}

		out[n.ID] = model.GasEstimate{
			NetworkID:      n.ID,
			GasPriceGwei:   n.GasPriceGwei,
			CostNative:     native,
			NativePriceUSD: price,
			CostUSD:        native.Mul(price),
		}
	}
	return out, gaps
}

func (o *GasOracle) livePrice(ctx context.Context, n NetworkGas) decimal.Decimal {
	if o.cex == nil || strings.TrimSpace(n.NativeSymbol) == "" {
		return decimal.Zero
	}
	symbol := strings.ToUpper(n.NativeSymbol) + o.quote
	t, err := o.cex.GetTicker(ctx, symbol)
	if err != nil {
		log.Debug().Err(err).Str("network", n.ID).Str("symbol", symbol).Msg("native price lookup failed, using configured price")
		return decimal.Zero
	}
	price, err := parseDecimal(t.LastPrice)
	if err != nil {
		return decimal.Zero
	}
	return price
}
