package service

import "github.com/shopspring/decimal"

// DivisionScale is the number of decimal places kept by every division in the engine.
// Multiplication and subtraction on decimals are exact.
const DivisionScale int32 = 28

// DefaultGasLimit is the gas units assumed for one swap.
const DefaultGasLimit int64 = 200_000

var hundred = decimal.NewFromInt(100)

// TotalBuyCost = buyPrice * quantity * (1 + buyFeePercent/100)
func TotalBuyCost(buyPrice, quantity, buyFeePercent decimal.Decimal) decimal.Decimal {
	return buyPrice.Mul(quantity).Mul(decimal.NewFromInt(1).Add(buyFeePercent.Shift(-2)))
}

// TotalSellRevenue = sellPrice * quantity * (1 - sellFeePercent/100)
func TotalSellRevenue(sellPrice, quantity, sellFeePercent decimal.Decimal) decimal.Decimal {
	return sellPrice.Mul(quantity).Mul(decimal.NewFromInt(1).Sub(sellFeePercent.Shift(-2)))
}

// ComputeNetProfit returns the fee-adjusted profit of buying quantity at buyPrice and
// selling it at sellPrice. profitPercent is netProfit relative to the total buy cost and is
// exactly zero when that cost is zero.
func ComputeNetProfit(
	buyPrice, sellPrice, quantity decimal.Decimal,
	buyFeePercent, sellFeePercent decimal.Decimal,
	gasCostUSD, otherFeesUSD decimal.Decimal,
) (netProfit, profitPercent decimal.Decimal) {
	cost := TotalBuyCost(buyPrice, quantity, buyFeePercent)
	revenue := TotalSellRevenue(sellPrice, quantity, sellFeePercent)

	netProfit = revenue.Sub(cost).Sub(gasCostUSD).Sub(otherFeesUSD)
	if cost.IsZero() {
		return netProfit, decimal.Zero
	}
	profitPercent = netProfit.Mul(hundred).DivRound(cost, DivisionScale)
	return netProfit, profitPercent
}

// EstimateGasCostNative converts a gas price in gwei and a gas limit into native-asset units:
// gwei * 1e9 * gasLimit / 1e18.
func EstimateGasCostNative(gasPriceGwei decimal.Decimal, gasLimit int64) decimal.Decimal {
	if gasLimit <= 0 {
		gasLimit = DefaultGasLimit
	}
	return gasPriceGwei.Mul(decimal.NewFromInt(gasLimit)).Shift(-9)
}

// BridgedQuantity 跨链后剩余数量：bridge fee 按数量扣减，而不是按 USD 扣减
func BridgedQuantity(quantity, bridgeFeePercent decimal.Decimal) decimal.Decimal {
	return quantity.Sub(quantity.Mul(bridgeFeePercent).Shift(-2))
}
