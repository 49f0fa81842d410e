package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testWETH = model.Asset{
	Symbol:   "WETH",
	Decimals: 18,
	Addresses: map[string]string{
		"ethereum": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"polygon":  "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
	},
}

func TestSplitSymbol(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})

	cases := []struct {
		in          string
		base, quote string
		ok          bool
	}{
		{"ETHUSDT", "ETH", "USDT", true},
		{"LINKBUSD", "LINK", "BUSD", true},
		{"ETHBTC", "ETH", "BTC", true},
		{"CAKEBNB", "CAKE", "BNB", true},
		{"usdt", "", "", false},
		{"ETHEUR", "", "", false},
	}
	for _, c := range cases {
		base, quote, ok := n.SplitSymbol(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.base, base, c.in)
		assert.Equal(t, c.quote, quote, c.in)
	}
}

func TestNormalizeTicker(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	now := time.Unix(1700000000, 0)

	t.Run("stable quote", func(t *testing.T) {
		q, err := n.NormalizeTicker("Binance", port.Ticker{Symbol: "ETHUSDT", LastPrice: "2000.5", QuoteVolume: "1500000"}, decimal.NewFromInt(1), now)
		require.NoError(t, err)
		assert.Equal(t, "binance", q.VenueID)
		assert.True(t, q.Centralized())
		assert.Equal(t, "ETH", q.AssetSymbol)
		assert.True(t, q.PriceUSD.Equal(d("2000.5")))
		assert.True(t, q.LiquidityUSD.Equal(d("1500000")))
		assert.Equal(t, now, q.ObservedAt)
	})

	t.Run("secondary quote", func(t *testing.T) {
		q, err := n.NormalizeTicker("binance", port.Ticker{Symbol: "LINKBTC", LastPrice: "0.0004", QuoteVolume: "10"}, d("50000"), now)
		require.NoError(t, err)
		assert.True(t, q.PriceUSD.Equal(d("20")))
		assert.True(t, q.LiquidityUSD.Equal(d("500000")))
	})

	t.Run("unresolved quote", func(t *testing.T) {
		_, err := n.NormalizeTicker("binance", port.Ticker{Symbol: "LINKBTC", LastPrice: "0.0004"}, decimal.Zero, now)
		assert.ErrorIs(t, err, model.ErrSecondaryPriceUnresolved)
	})

	t.Run("bad price", func(t *testing.T) {
		_, err := n.NormalizeTicker("binance", port.Ticker{Symbol: "ETHUSDT", LastPrice: "0"}, decimal.NewFromInt(1), now)
		assert.ErrorIs(t, err, model.ErrDataUnavailable)
		_, err = n.NormalizeTicker("binance", port.Ticker{Symbol: "ETHUSDT", LastPrice: "abc"}, decimal.NewFromInt(1), now)
		assert.ErrorIs(t, err, model.ErrDataUnavailable)
	})
}

func TestNormalizeDexPair(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{LiquidityFloorUSD: d("10000")})
	now := time.Now()
	addr := testWETH.Addresses["ethereum"]

	pool := func(dex, price, liq, base string) port.DexPair {
		return port.DexPair{
			ChainID:      "ethereum",
			DexID:        dex,
			PairAddress:  "0xpool",
			PriceUSD:     price,
			LiquidityUSD: json.Number(liq),
			BaseToken:    port.DexToken{Address: base},
		}
	}

	q, err := n.NormalizeDexPair(pool("Uniswap", "2001.25", "250000", addr), testWETH, "ethereum", now)
	require.NoError(t, err)
	assert.Equal(t, "uniswap", q.VenueID)
	assert.Equal(t, "ethereum", q.NetworkID)
	assert.Equal(t, addr, q.AssetAddress)
	assert.Equal(t, "0xpool", q.PoolAddress)
	assert.True(t, q.PriceUSD.Equal(d("2001.25")))

	// 地址大小写不敏感
	_, err = n.NormalizeDexPair(pool("uniswap", "2000", "250000", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"), testWETH, "ethereum", now)
	assert.NoError(t, err)

	// 流动性必须严格高于下限
	_, err = n.NormalizeDexPair(pool("uniswap", "2000", "10000.01", addr), testWETH, "ethereum", now)
	assert.NoError(t, err)
	_, err = n.NormalizeDexPair(pool("uniswap", "2000", "10000", addr), testWETH, "ethereum", now)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)

	_, err = n.NormalizeDexPair(pool("uniswap", "2000", "250000", "0xdead"), testWETH, "ethereum", now)
	assert.ErrorIs(t, err, model.ErrDataUnavailable, "asset must be the base token")

	_, err = n.NormalizeDexPair(pool("uniswap", "", "250000", addr), testWETH, "ethereum", now)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)

	_, err = n.NormalizeDexPair(pool("uniswap", "2000", "250000", addr), testWETH, "bsc", now)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestPrimaryQuote(t *testing.T) {
	assert.Equal(t, "USDT", NewNormalizer(NormalizerConfig{}).PrimaryQuote())
	n := NewNormalizer(NormalizerConfig{QuoteAssets: []string{"btc", "busd"}, StableQuotes: []string{"busd"}})
	assert.Equal(t, "BUSD", n.PrimaryQuote())
	assert.True(t, n.IsStable("busd"))
	assert.False(t, n.IsStable("USDT"))
}
