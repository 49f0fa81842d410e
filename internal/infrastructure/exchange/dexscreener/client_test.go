package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscan/internal/domain/model"
	"arbscan/internal/infrastructure/exchange"
)

const weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

const pairsBody = `[
  {"chainId":"ethereum","dexId":"uniswap","pairAddress":"0xaaa","priceUsd":"2001.5",
   "liquidity":{"usd":1250000.75,"base":300,"quote":600000},
   "baseToken":{"address":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2","symbol":"WETH"},
   "quoteToken":{"address":"0xA0b8","symbol":"USDC"}},
  {"chainId":"ethereum","dexId":"sushiswap","pairAddress":"0xbbb","priceUsd":"2003",
   "baseToken":{"address":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2","symbol":"WETH"},
   "quoteToken":{"address":"0xdAC1","symbol":"USDT"}},
  {"chainId":"bsc","dexId":"pancakeswap","pairAddress":"0xccc","priceUsd":"1990",
   "liquidity":{"usd":50000},
   "baseToken":{"address":"0x2170","symbol":"ETH"},
   "quoteToken":{"address":"0x55d3","symbol":"USDT"}}
]`

func TestGetPriceAcrossVenues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-pairs/v1/ethereum/"+weth, r.URL.Path)
		_, _ = w.Write([]byte(pairsBody))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestsPerMinute: 6000})
	pairs, err := c.GetPriceAcrossVenues(context.Background(), "Ethereum", weth)
	require.NoError(t, err)
	require.Len(t, pairs, 2, "pools on other chains are dropped")

	assert.Equal(t, "uniswap", pairs[0].DexID)
	assert.Equal(t, "2001.5", pairs[0].PriceUSD)
	assert.Equal(t, "1250000.75", pairs[0].LiquidityUSD.String())
	assert.Equal(t, weth, pairs[0].BaseToken.Address)
	assert.Equal(t, "USDC", pairs[0].QuoteToken.Symbol)

	assert.Equal(t, "", pairs[1].LiquidityUSD.String(), "missing liquidity stays empty")
}

func TestGetPriceAcrossVenuesFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:           srv.URL,
		RequestsPerMinute: 6000,
		Retry:             exchange.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2},
	})
	_, err := c.GetPriceAcrossVenues(context.Background(), "ethereum", weth)
	assert.ErrorIs(t, err, model.ErrTransportFailure)
	assert.Equal(t, int32(3), hits.Load())

	_, err = c.GetPriceAcrossVenues(context.Background(), "", weth)
	assert.Error(t, err)
}
