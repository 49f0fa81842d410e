package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

// MockCexClient 内存中的 ticker 表
type MockCexClient struct {
	mu       sync.Mutex
	tickers  map[string]port.Ticker
	gainers  []port.Ticker
	failAll  error
	requests map[string]int
}

func NewMockCexClient() *MockCexClient {
	return &MockCexClient{tickers: map[string]port.Ticker{}, requests: map[string]int{}}
}

func (m *MockCexClient) Name() string { return "Binance" }

func (m *MockCexClient) Set(symbol, last, volume string) {
	m.tickers[symbol] = port.Ticker{Symbol: symbol, LastPrice: last, QuoteVolume: volume}
}

func (m *MockCexClient) GetTicker(ctx context.Context, symbol string) (port.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[symbol]++
	if m.failAll != nil {
		return port.Ticker{}, m.failAll
	}
	t, ok := m.tickers[symbol]
	if !ok {
		return port.Ticker{}, fmt.Errorf("%w: unknown symbol %s", model.ErrTransportFailure, symbol)
	}
	return t, nil
}

func (m *MockCexClient) GetTopGainers(ctx context.Context, limit int) ([]port.Ticker, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	if limit > 0 && len(m.gainers) > limit {
		return m.gainers[:limit], nil
	}
	return m.gainers, nil
}

func (m *MockCexClient) Requests(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[symbol]
}

// MockDexClient network|address -> pools
type MockDexClient struct {
	mu       sync.Mutex
	pools    map[string][]port.DexPair
	fails    map[string]error
	requests int
}

func NewMockDexClient() *MockDexClient {
	return &MockDexClient{pools: map[string][]port.DexPair{}, fails: map[string]error{}}
}

func (m *MockDexClient) Name() string { return "dexscreener" }

func (m *MockDexClient) AddPool(network, address, dex, price, liquidity string) {
	key := network + "|" + address
	m.pools[key] = append(m.pools[key], port.DexPair{
		ChainID:      network,
		DexID:        dex,
		PairAddress:  fmt.Sprintf("0xpool%d", len(m.pools[key])),
		PriceUSD:     price,
		LiquidityUSD: json.Number(liquidity),
		BaseToken:    port.DexToken{Address: address},
		QuoteToken:   port.DexToken{Address: "0xusdc", Symbol: "USDC"},
	})
}

func (m *MockDexClient) Fail(network, address string, err error) {
	m.fails[network+"|"+address] = err
}

func (m *MockDexClient) GetPriceAcrossVenues(ctx context.Context, networkID, tokenAddress string) ([]port.DexPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	key := networkID + "|" + tokenAddress
	if err, ok := m.fails[key]; ok {
		return nil, err
	}
	return m.pools[key], nil
}

func (m *MockDexClient) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// staticGas 固定 gas 表
type staticGas map[string]model.GasEstimate

func (g staticGas) Estimate(ctx context.Context) (map[string]model.GasEstimate, []model.ConfigGap) {
	return map[string]model.GasEstimate(g), nil
}
