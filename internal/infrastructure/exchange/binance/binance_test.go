package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
	"arbscan/internal/infrastructure/exchange"
)

var allTickers = []ticker24h{
	{Symbol: "ETHUSDT", LastPrice: "2000", PriceChangePercent: "3.5", QuoteVolume: "900000000"},
	{Symbol: "LINKUSDT", LastPrice: "15", PriceChangePercent: "12.1", QuoteVolume: "50000000"},
	{Symbol: "UNIUSDT", LastPrice: "6", PriceChangePercent: "-2", QuoteVolume: "3000000"},
	{Symbol: "LINKBTC", LastPrice: "0.0003", PriceChangePercent: "40", QuoteVolume: "10"},
	{Symbol: "AAVEUSDT", LastPrice: "90", PriceChangePercent: "3.5", QuoteVolume: "8000000"},
	{Symbol: "USDT", LastPrice: "1", PriceChangePercent: "1", QuoteVolume: "1"},
}

func newBinanceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tickerPath, r.URL.Path)
		sym := r.URL.Query().Get("symbol")
		if sym == "" {
			_ = json.NewEncoder(w).Encode(allTickers)
			return
		}
		for _, tk := range allTickers {
			if tk.Symbol == sym {
				_ = json.NewEncoder(w).Encode(tk)
				return
			}
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testRetry() exchange.Policy {
	return exchange.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestGetTicker(t *testing.T) {
	srv := newBinanceServer(t)
	c := NewRESTClient(Config{BaseURL: srv.URL, Retry: testRetry()})

	tk, err := c.GetTicker(context.Background(), "ethusdt")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", tk.Symbol)
	assert.Equal(t, "2000", tk.LastPrice)
	assert.Equal(t, "900000000", tk.QuoteVolume)

	_, err = c.GetTicker(context.Background(), "NOPEUSDT")
	assert.ErrorIs(t, err, model.ErrTransportFailure)
	assert.Equal(t, int64(2), c.Requests())
}

func TestGetTopGainers(t *testing.T) {
	srv := newBinanceServer(t)
	c := NewRESTClient(Config{BaseURL: srv.URL, Retry: testRetry()})

	got, err := c.GetTopGainers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LINKUSDT", got[0].Symbol)
	// 涨幅相同按名称
	assert.Equal(t, "AAVEUSDT", got[1].Symbol)

	all, err := c.GetTopGainers(context.Background(), 20)
	require.NoError(t, err)
	var syms []string
	for _, tk := range all {
		syms = append(syms, tk.Symbol)
	}
	assert.Equal(t, []string{"LINKUSDT", "AAVEUSDT", "ETHUSDT"}, syms)
}

func TestStreamClientUsesCache(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, allMiniTickers))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`[{"e":"24hrMiniTicker","s":"ETHUSDT","c":"2100","o":"2000","q":"123"},`+
				`{"e":"24hrMiniTicker","s":"LINKUSDT","c":"15","o":"16","q":"10"}]`))
		// 保持连接直到客户端断开
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ws.Close()

	restSrv := newBinanceServer(t)
	rest := NewRESTClient(Config{BaseURL: restSrv.URL, Retry: testRetry()})
	c := NewStreamClient("ws"+strings.TrimPrefix(ws.URL, "http"), rest, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	require.Eventually(t, func() bool { return len(c.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	tk, err := c.GetTicker(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "2100", tk.LastPrice)
	assert.Equal(t, "5", tk.PriceChangePercent)
	assert.Equal(t, int64(0), rest.Requests())

	// 缓存中没有的交易对回退到 REST
	tk, err = c.GetTicker(ctx, "AAVEUSDT")
	require.NoError(t, err)
	assert.Equal(t, "90", tk.LastPrice)
	assert.Equal(t, int64(1), rest.Requests())

	gainers, err := c.GetTopGainers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, gainers, 1)
	assert.Equal(t, "ETHUSDT", gainers[0].Symbol)
}

func TestStreamClientFallsBackWhenStale(t *testing.T) {
	restSrv := newBinanceServer(t)
	rest := NewRESTClient(Config{BaseURL: restSrv.URL, Retry: testRetry()})
	c := NewStreamClient("", rest, time.Second)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.onMessage([]byte(`[{"s":"ETHUSDT","c":"2100","o":"2000","q":"1"}]`))

	c.now = func() time.Time { return base.Add(time.Minute) }
	tk, err := c.GetTicker(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "2000", tk.LastPrice)

	gainers, err := c.GetTopGainers(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "LINKUSDT", gainers[0].Symbol)
}

func TestTopGainersIgnoresBadRows(t *testing.T) {
	got := TopGainers([]port.Ticker{
		{Symbol: "AUSDT", PriceChangePercent: "abc"},
		{Symbol: "BUSDT", PriceChangePercent: "0"},
		{Symbol: "CUSDT", PriceChangePercent: "0.01"},
	}, "USDT", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "CUSDT", got[0].Symbol)
}
