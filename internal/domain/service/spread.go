package service

import "github.com/shopspring/decimal"

// PriceDiffPercent 价差百分比 (sell - buy) / buy * 100；buy 为 0 时返回 0
func PriceDiffPercent(buy, sell decimal.Decimal) decimal.Decimal {
	if buy.IsZero() {
		return decimal.Zero
	}
	return sell.Sub(buy).Mul(hundred).DivRound(buy, DivisionScale)
}
