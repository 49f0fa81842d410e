package container

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscan/internal/domain/model"
	"arbscan/internal/infrastructure/config"
)

const wethAddr = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

func binanceServer(t *testing.T) *httptest.Server {
	t.Helper()
	eth := map[string]string{"symbol": "ETHUSDT", "lastPrice": "1900", "priceChangePercent": "5", "quoteVolume": "1000000000"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "":
			_ = json.NewEncoder(w).Encode([]map[string]string{eth})
		case "ETHUSDT":
			_ = json.NewEncoder(w).Encode(eth)
		default:
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dexServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.URL.Path, "/token-pairs/v1/ethereum/"+wethAddr) {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		pool := func(dex, price, liq string) map[string]any {
			return map[string]any{
				"chainId":    "ethereum",
				"dexId":      dex,
				"priceUsd":   price,
				"liquidity":  map[string]any{"usd": json.Number(liq)},
				"baseToken":  map[string]string{"address": wethAddr, "symbol": "WETH"},
				"quoteToken": map[string]string{"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC"},
			}
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			pool("uniswap", "2000", "500000"),
			pool("sushiswap", "2100", "400000"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestContainerEndToEnd(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "arbscan.db")
	jsonPath := filepath.Join(dir, "arbitrage_opportunities.json")

	cfg := writeConfig(t, fmt.Sprintf(`
[app]
log_level = "error"

[scan]
scenarios = "all"
tokens = ["weth"]

[networks.ethereum]
chain_id = 1
native_token = "ETH"
explorer = "https://etherscan.io"
gas_price_gwei = 30
native_price_usd = 2000

[assets.WETH]
decimals = 18
addresses = { ethereum = "%s" }

[exchange.binance]
enabled = true
rest_url = "%s"
requests_per_second = 1000

[dexscreener]
enabled = true
base_url = "%s"
requests_per_minute = 60000

[retry]
max_attempts = 1
base_delay = "1ms"

[storage.sqlite]
enabled = true
path = "%s"

[storage.redis]
enabled = true
addr = "%s"
prefix = "e2e"

[report.json]
enabled = true
path = "%s"
`, strings.ToLower(wethAddr), binanceServer(t).URL, dexServer(t).URL, dbPath, mr.Addr(), jsonPath))

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	require.Len(t, c.Sinks(), 1)
	report, err := c.Service().Once(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.Results[model.ScenarioCexDex].Opportunities)
	dexDex := report.Results[model.ScenarioDexDex].Opportunities
	require.Len(t, dexDex, 1)
	assert.Equal(t, "uniswap", dexDex[0].BuyVenue)
	assert.Equal(t, "sushiswap", dexDex[0].SellVenue)
	assert.Equal(t, wethAddr, dexDex[0].AssetAddress)
	// 只有一个网络，跨网络场景没有候选
	assert.Empty(t, report.Results[model.ScenarioCrossNetwork].Opportunities)

	runs, err := c.SQLiteRepo().RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.ID, runs[0].ID)

	assert.True(t, mr.Exists("e2e:latest:2"))
	_, err = os.Stat(jsonPath)
	assert.NoError(t, err)
}

func TestContainerLinkBuilder(t *testing.T) {
	cfg := writeConfig(t, `
[networks.Polygon]
explorer = "https://polygonscan.com"
`)
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	lb := c.LinkBuilder()
	assert.Equal(t, "https://polygonscan.com", lb.Explorers["polygon"])
	assert.Equal(t, "ETH", lb.CexSymbols["WETH"])
	assert.Equal(t, "USDT", lb.CexQuote)
	assert.Nil(t, c.SQLiteRepo())
}

func TestContainerRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := writeConfig(t, fmt.Sprintf(`
[storage.redis]
enabled = true
addr = "%s"
`, addr))
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestContainerReleasesStorageOnFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := writeConfig(t, fmt.Sprintf(`
[storage.sqlite]
enabled = true
path = "%s"

[storage.redis]
enabled = true
addr = "%s"
`, filepath.ToSlash(filepath.Join(t.TempDir(), "arbscan.db")), addr))

	c := &Container{cfg: cfg}
	err = c.initStorage(context.Background())
	require.ErrorContains(t, err, "redis ping failed")
	require.NotNil(t, c.sqlite)

	require.NoError(t, c.Close())
	_, err = c.sqlite.RecentRuns(context.Background(), 1)
	assert.ErrorContains(t, err, "database is closed")
}
