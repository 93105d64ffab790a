package formulas

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA_SeededWithFirstValue(t *testing.T) {
	ema := EMA([]float64{1, 2, 3}, 3)

	require.Len(t, ema, 3)
	assert.InDelta(t, 1.0, ema[0], 1e-12)
	assert.InDelta(t, 1.5, ema[1], 1e-12)
	assert.InDelta(t, 2.25, ema[2], 1e-12)
}

func TestEMA_InvalidInput(t *testing.T) {
	assert.Nil(t, EMA(nil, 3))
	assert.Nil(t, EMA([]float64{1, 2}, 0))
}

func TestEMA_ConstantSeriesStaysConstant(t *testing.T) {
	values := []float64{50, 50, 50, 50, 50}
	for _, v := range EMA(values, 12) {
		assert.Equal(t, 50.0, v)
	}
}

func TestEMASMASeeded(t *testing.T) {
	ema := EMASMASeeded([]float64{1, 2, 3, 4}, 2)

	require.Len(t, ema, 4)
	assert.True(t, math.IsNaN(ema[0]))
	assert.InDelta(t, 1.5, ema[1], 1e-9)
	assert.InDelta(t, 2.5, ema[2], 1e-9)
	assert.InDelta(t, 3.5, ema[3], 1e-9)
}

func TestEMASMASeeded_ShortSeriesAllNaN(t *testing.T) {
	for _, v := range EMASMASeeded([]float64{1, 2}, 5) {
		assert.True(t, math.IsNaN(v))
	}
}

func TestCalculateSMA(t *testing.T) {
	sma := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	require.NotNil(t, sma)
	assert.InDelta(t, 3.5, *sma, 1e-9)

	assert.Nil(t, CalculateSMA([]float64{1}, 2))
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})

	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)
	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestPeriodReturn(t *testing.T) {
	out := PeriodReturn([]float64{100, 105, 110, 121}, 2)

	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 0.10, out[2], 1e-12)
	assert.InDelta(t, 121.0/105.0-1, out[3], 1e-12)
}

func TestStdDev(t *testing.T) {
	assert.InDelta(t, 1.2909944, StdDev([]float64{1, 2, 3, 4}), 1e-6)
	assert.Equal(t, 0.0, StdDev([]float64{1}))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, Mean(nil))
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}

	assert.InDelta(t, 1.2, Percentile(values, 5), 1e-12)
	assert.InDelta(t, 3.0, Percentile(values, 50), 1e-12)
	assert.InDelta(t, 1.0, Percentile(values, 0), 1e-12)
	assert.InDelta(t, 5.0, Percentile(values, 100), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 50)))

	// input is not reordered
	assert.Equal(t, []float64{5, 1, 3, 2, 4}, values)
}

func TestTrendScore_LinearWindow(t *testing.T) {
	window := []float64{100, 101, 102, 103, 104}

	// normalized slope 0.01 with a perfect fit
	assert.InDelta(t, 100.0, TrendScore(window, 5), 1e-9)
}

func TestTrendScore_ScaleInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		window := make([]float64, 20)
		price := 10 + rng.Float64()*90
		for i := range window {
			price *= 1 + (rng.Float64()-0.5)*0.04
			window[i] = price
		}

		factor := 0.01 + rng.Float64()*1000
		scaled := make([]float64, len(window))
		for i, v := range window {
			scaled[i] = v * factor
		}

		base := TrendScore(window, 20)
		assert.InDelta(t, base, TrendScore(scaled, 20), 1e-6*math.Max(1, math.Abs(base)))
	}
}

func TestTrendScore_Undefined(t *testing.T) {
	assert.True(t, math.IsNaN(TrendScore([]float64{0, 1, 2}, 3)), "zero first value")
	assert.True(t, math.IsNaN(TrendScore([]float64{1, 2}, 3)), "short window")
	assert.True(t, math.IsNaN(TrendScore([]float64{1}, 1)), "single point")
	assert.Equal(t, 0.0, TrendScore([]float64{5, 5, 5, 5}, 4), "flat window")
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.25, MaxDrawdown([]float64{1, 1.2, 0.9, 1.3}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 1.1, 1.2, 1.5}))
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 1, 1}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestCumulativeNAV(t *testing.T) {
	nav := CumulativeNAV([]float64{0, 0.1, -0.5})

	require.Len(t, nav, 3)
	assert.InDelta(t, 1.0, nav[0], 1e-12)
	assert.InDelta(t, 1.1, nav[1], 1e-12)
	assert.InDelta(t, 0.55, nav[2], 1e-12)
	assert.Nil(t, CumulativeNAV(nil))
}

func TestCumulativeNAV_NonNegativeForBoundedReturns(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	returns := make([]float64, 500)
	for i := range returns {
		returns[i] = -1 + rng.Float64()*2
	}
	returns[0] = 0

	for _, v := range CumulativeNAV(returns) {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestCompoundReturn(t *testing.T) {
	assert.InDelta(t, 0.21, CompoundReturn([]float64{0.1, 0.1}), 1e-12)
	assert.Equal(t, 0.0, CompoundReturn(nil))
}

func TestValueAtRiskAndCVaR(t *testing.T) {
	returns := []float64{-0.05, -0.02, 0, 0.01, 0.03}

	var95 := ValueAtRisk(returns, 0.95)
	assert.InDelta(t, -0.044, var95, 1e-12)
	assert.InDelta(t, -0.05, ConditionalVaR(returns, var95), 1e-12)

	assert.Equal(t, 0.0, ValueAtRisk(nil, 0.95))
	assert.Equal(t, 0.0, ConditionalVaR(returns, -1))
}
