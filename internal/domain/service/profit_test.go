package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeNetProfit_Formula(t *testing.T) {
	net, pct := ComputeNetProfit(d("100"), d("102"), d("1"), d("0.3"), d("0.3"), d("1"), d("0"))

	// cost = 100 * 1.003 = 100.3, revenue = 102 * 0.997 = 101.694
	assert.True(t, net.Equal(d("0.394")), "net=%s", net)
	expected := d("0.394").Mul(hundred).DivRound(d("100.3"), DivisionScale)
	assert.True(t, pct.Equal(expected), "pct=%s expected=%s", pct, expected)
}

func TestComputeNetProfit_OtherFeesAndGas(t *testing.T) {
	net, _ := ComputeNetProfit(d("10"), d("11"), d("3"), d("0"), d("0"), d("0.5"), d("0.25"))
	assert.True(t, net.Equal(d("2.25")), "net=%s", net)
}

func TestComputeNetProfit_ZeroCostGivesZeroPercent(t *testing.T) {
	cases := []struct {
		name             string
		buy, qty, buyFee string
	}{
		{"zero price", "0", "1", "0.3"},
		{"zero quantity", "100", "0", "0.3"},
		{"fee wipes cost", "100", "1", "-100"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net, pct := ComputeNetProfit(d(tc.buy), d("105"), d(tc.qty), d(tc.buyFee), d("0.1"), d("1"), d("0"))
			assert.True(t, pct.IsZero(), "pct=%s", pct)
			assert.False(t, net.IsZero(), "net profit is still computed")
		})
	}
}

func TestComputeNetProfit_ProfitPercentInvariant(t *testing.T) {
	tolerance := d("1e-10")
	prices := []string{"0.000001234", "1", "99.99", "43000.5", "1234567.891"}
	fees := []string{"0", "0.075", "0.25", "0.3", "1"}
	for _, buy := range prices {
		for _, sell := range prices {
			for _, fee := range fees {
				qty := d("1.5")
				net, pct := ComputeNetProfit(d(buy), d(sell), qty, d(fee), d(fee), d("0.37"), d("0.01"))
				cost := TotalBuyCost(d(buy), qty, d(fee))
				require.False(t, cost.IsZero())

				want := net.DivRound(cost, 40).Mul(hundred)
				diff := pct.Sub(want).Abs()
				if !want.IsZero() {
					diff = diff.DivRound(want.Abs(), 40)
				}
				assert.True(t, diff.LessThanOrEqual(tolerance),
					"buy=%s sell=%s fee=%s pct=%s want=%s", buy, sell, fee, pct, want)
			}
		}
	}
}

func TestComputeNetProfit_FeeMonotonicity(t *testing.T) {
	fees := []string{"0", "0.01", "0.1", "0.25", "0.3", "0.5", "1", "5"}
	for _, fixed := range fees {
		prevBuy, _ := ComputeNetProfit(d("100"), d("103"), d("2"), d(fees[0]), d(fixed), d("1"), d("0"))
		prevSell, _ := ComputeNetProfit(d("100"), d("103"), d("2"), d(fixed), d(fees[0]), d("1"), d("0"))
		for _, f := range fees[1:] {
			byBuy, _ := ComputeNetProfit(d("100"), d("103"), d("2"), d(f), d(fixed), d("1"), d("0"))
			bySell, _ := ComputeNetProfit(d("100"), d("103"), d("2"), d(fixed), d(f), d("1"), d("0"))
			assert.True(t, byBuy.LessThanOrEqual(prevBuy), "buy fee %s raised net profit", f)
			assert.True(t, bySell.LessThanOrEqual(prevSell), "sell fee %s raised net profit", f)
			prevBuy, prevSell = byBuy, bySell
		}
	}
}

func TestComputeNetProfit_Deterministic(t *testing.T) {
	n1, p1 := ComputeNetProfit(d("1.1"), d("1.3"), d("7"), d("0.3"), d("0.25"), d("0.6"), d("0"))
	n2, p2 := ComputeNetProfit(d("1.1"), d("1.3"), d("7"), d("0.3"), d("0.25"), d("0.6"), d("0"))
	assert.True(t, n1.Equal(n2))
	assert.True(t, p1.Equal(p2))
}

func TestPriceDiffPercent(t *testing.T) {
	assert.True(t, PriceDiffPercent(d("100"), d("102")).Equal(d("2")))
	assert.True(t, PriceDiffPercent(d("0"), d("102")).IsZero())
	assert.True(t, PriceDiffPercent(d("200"), d("150")).Equal(d("-25")))
}

func TestEstimateGasCostNative(t *testing.T) {
	// 30 gwei * 200000 = 6e6 gwei = 0.006 ETH
	assert.True(t, EstimateGasCostNative(d("30"), 200_000).Equal(d("0.006")))
	assert.True(t, EstimateGasCostNative(d("5"), 0).Equal(d("0.001")), "default gas limit")
	assert.True(t, EstimateGasCostNative(d("50"), 100_000).Equal(d("0.005")))
}

func TestBridgedQuantity(t *testing.T) {
	assert.True(t, BridgedQuantity(d("1"), d("0.1")).Equal(d("0.999")))
	assert.True(t, BridgedQuantity(d("1"), d("0")).Equal(d("1")))
	assert.True(t, BridgedQuantity(d("2"), d("0.05")).Equal(d("1.999")))
}

// Bridge cost is taken out of the traded lot; treating the same nominal value as a flat USD
// charge gives a different result for every non-zero fee.
func TestBridgeDeduction_DivergesFromFlatUSD(t *testing.T) {
	buy, sell := d("100"), d("103")
	fee := d("0.3")
	gas := d("2")
	for _, bridge := range []string{"0", "0.05", "0.1", "0.5", "2"} {
		b := d(bridge)
		qty := BridgedQuantity(d("1"), b)
		lotNet, _ := ComputeNetProfit(buy, sell, qty, fee, fee, gas, decimal.Zero)

		flatUSD := buy.Mul(b).Shift(-2)
		flatNet, _ := ComputeNetProfit(buy, sell, d("1"), fee, fee, gas, flatUSD)

		if b.IsZero() {
			assert.True(t, lotNet.Equal(flatNet), "zero bridge fee must agree")
			continue
		}
		assert.False(t, lotNet.Equal(flatNet), "bridge=%s: lot=%s flat=%s", bridge, lotNet, flatNet)
	}
}
