package console

import (
	"fmt"
	"net/url"
	"strings"

	"arbscan/internal/domain/model"
)

// Link 人工核对用链接
type Link struct {
	Label string
	URL   string
}

// LinkBuilder 根据机会的买卖场所生成核对链接
type LinkBuilder struct {
	Explorers  map[string]string // network -> 区块浏览器根地址
	CexSymbols map[string]string // 注册表符号 -> CEX 符号，例如 WETH -> ETH
	CexQuote   string
}

func (b LinkBuilder) For(o model.Opportunity) []Link {
	var links []Link
	seen := map[string]bool{}
	add := func(l Link, ok bool) {
		if ok && !seen[l.URL] {
			seen[l.URL] = true
			links = append(links, l)
		}
	}

	add(b.venue(o, o.BuyVenue, o.BuyNetwork, "buy"))
	add(b.venue(o, o.SellVenue, o.SellNetwork, "sell"))
	add(b.explorer(o.AssetAddress, o.BuyNetwork))
	if o.SellNetwork != o.BuyNetwork {
		add(b.explorer(o.AssetAddress, o.SellNetwork))
	}
	add(Link{Label: "DexScreener", URL: "https://dexscreener.com/search?q=" + url.QueryEscape(o.AssetSymbol)}, true)
	add(Link{Label: "CoinGecko", URL: "https://www.coingecko.com/en/coins/" + strings.ToLower(b.cexSymbol(o.AssetSymbol))}, true)
	return links
}

func (b LinkBuilder) venue(o model.Opportunity, venue, network, side string) (Link, bool) {
	v := strings.ToLower(venue)
	addr := o.AssetAddress
	switch {
	case strings.EqualFold(network, model.CentralizedNetwork) || v == "binance":
		quote := b.CexQuote
		if quote == "" {
			quote = "USDT"
		}
		return Link{Label: "Binance", URL: fmt.Sprintf("https://www.binance.com/en/trade/%s_%s", b.cexSymbol(o.AssetSymbol), quote)}, true
	case addr == "":
		return Link{}, false
	case strings.Contains(v, "uniswap"):
		return Link{Label: "Uniswap " + side, URL: fmt.Sprintf("https://app.uniswap.org/swap?chain=%s&outputCurrency=%s", strings.ToLower(network), addr)}, true
	case strings.Contains(v, "sushi"):
		return Link{Label: "SushiSwap " + side, URL: "https://www.sushi.com/swap?outputCurrency=" + addr}, true
	case strings.Contains(v, "pancake"):
		return Link{Label: "PancakeSwap " + side, URL: "https://pancakeswap.finance/swap?outputCurrency=" + addr}, true
	case strings.Contains(v, "quickswap"):
		return Link{Label: "QuickSwap " + side, URL: "https://quickswap.exchange/#/swap?outputCurrency=" + addr}, true
	default:
		return Link{}, false
	}
}

func (b LinkBuilder) explorer(addr, network string) (Link, bool) {
	root, ok := b.Explorers[strings.ToLower(network)]
	if !ok || root == "" || addr == "" {
		return Link{}, false
	}
	return Link{Label: "Explorer (" + network + ")", URL: strings.TrimRight(root, "/") + "/token/" + addr}, true
}

func (b LinkBuilder) cexSymbol(sym string) string {
	if s, ok := b.CexSymbols[strings.ToUpper(sym)]; ok {
		return s
	}
	return strings.ToUpper(sym)
}
