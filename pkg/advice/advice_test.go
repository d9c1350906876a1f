package advice

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoaily/gridinsight/pkg/policy"
)

func bucket(t *testing.T, p policy.MetricPolicy, class int) policy.Bucket {
	t.Helper()
	b, err := p.Label(class)
	require.NoError(t, err)
	return b
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name      string
		policy    policy.MetricPolicy
		current   int
		predicted int
		severity  Severity
		message   string
	}{
		{"carbon gets dirtier from clean", policy.CarbonIntensity, 1, 4, SeveritySuccess, MsgUseNow},
		{"carbon clean to pivot", policy.CarbonIntensity, 2, 3, SeveritySuccess, MsgUseNow},
		{"carbon gets cleaner", policy.CarbonIntensity, 4, 1, SeverityWarning, MsgUseLater},
		{"carbon steady clean", policy.CarbonIntensity, 2, 2, SeveritySuccess, MsgUseAnytime},
		{"carbon steady at pivot", policy.CarbonIntensity, 3, 3, SeverityError, MsgBadTiming},
		{"carbon pivot to dirty", policy.CarbonIntensity, 3, 4, SeverityError, MsgBetterWait},
		{"carbon dirty to pivot", policy.CarbonIntensity, 5, 3, SeverityError, MsgBetterWait},
		{"carbon steady dirty", policy.CarbonIntensity, 5, 5, SeverityError, MsgBetterWait},

		{"renewable gets browner from green", policy.RenewablePercentage, 4, 1, SeveritySuccess, MsgUseNow},
		{"renewable gets greener", policy.RenewablePercentage, 1, 4, SeverityWarning, MsgUseLater},
		{"renewable steady green", policy.RenewablePercentage, 5, 5, SeveritySuccess, MsgUseAnytime},
		{"renewable steady at pivot", policy.RenewablePercentage, 3, 3, SeverityError, MsgBadTiming},
		{"renewable brown", policy.RenewablePercentage, 2, 1, SeverityError, MsgBetterWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.policy, bucket(t, tt.policy, tt.current), bucket(t, tt.policy, tt.predicted))
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

// Reflecting both classes around the pivot must not change the outcome.
func TestRecommend_Mirror(t *testing.T) {
	mirror := func(c int) int { return 2*policy.Pivot - c }
	for c := 1; c < policy.NumClasses; c++ {
		for n := 1; n < policy.NumClasses; n++ {
			carbon := Recommend(policy.CarbonIntensity,
				bucket(t, policy.CarbonIntensity, c), bucket(t, policy.CarbonIntensity, n))
			renewable := Recommend(policy.RenewablePercentage,
				bucket(t, policy.RenewablePercentage, mirror(c)), bucket(t, policy.RenewablePercentage, mirror(n)))
			assert.Equal(t, carbon.Message, renewable.Message, "carbon %d->%d", c, n)
		}
	}
}

func TestTrendOf(t *testing.T) {
	carbon := TrendOf(policy.CarbonIntensity, 1, 4)
	assert.Equal(t, Rising, carbon.Direction)
	assert.Equal(t, "↑", carbon.Arrow)
	assert.Equal(t, colorWorsening, carbon.Color)

	renewable := TrendOf(policy.RenewablePercentage, 1, 4)
	assert.Equal(t, Rising, renewable.Direction)
	assert.Equal(t, colorImproving, renewable.Color)

	assert.Equal(t, colorImproving, TrendOf(policy.CarbonIntensity, 4, 1).Color)
	assert.Equal(t, Steady, TrendOf(policy.CarbonIntensity, 2, 2).Direction)
}

func TestArbitrage_ZeroDelta(t *testing.T) {
	res, err := Arbitrage(policy.CarbonIntensity, 100, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Delta)
	assert.Equal(t, 0.0, res.UnitDelta)
	assert.Equal(t, PeriodNeither, res.FavoredPeriod)
	assert.Equal(t, MsgNoArbitrage, res.Message)
	assert.Equal(t, SeverityWarning, res.Severity)
}

func TestArbitrage_Carbon(t *testing.T) {
	res, err := Arbitrage(policy.CarbonIntensity, 160, 474.6, 100)
	require.NoError(t, err)
	assert.Equal(t, PeriodNow, res.FavoredPeriod)
	assert.InDelta(t, 314.6, res.UnitDelta, 1e-9)
	assert.InDelta(t, 31460, res.Delta, 1e-6)
	assert.Equal(t, SeveritySuccess, res.Severity)
	assert.Contains(t, res.Message, "carbon intensity will be higher")

	res, err = Arbitrage(policy.CarbonIntensity, 327.5, 160, 100)
	require.NoError(t, err)
	assert.Equal(t, PeriodNext, res.FavoredPeriod)
	assert.Contains(t, res.Message, "carbon intensity will be lower")
}

func TestArbitrage_Renewable(t *testing.T) {
	res, err := Arbitrage(policy.RenewablePercentage, 24, 90, 10)
	require.NoError(t, err)
	assert.Equal(t, PeriodNext, res.FavoredPeriod)
	assert.InDelta(t, 66, res.UnitDelta, 1e-9)
	assert.InDelta(t, 660, res.Delta, 1e-9)
	assert.Equal(t, "%", res.Unit)

	res, err = Arbitrage(policy.RenewablePercentage, 90, 24, 10)
	require.NoError(t, err)
	assert.Equal(t, PeriodNow, res.FavoredPeriod)
}

func TestArbitrage_ZeroQuantity(t *testing.T) {
	res, err := Arbitrage(policy.CarbonIntensity, 59, 160, 0)
	require.NoError(t, err)
	assert.Equal(t, PeriodNow, res.FavoredPeriod)
	assert.Equal(t, 0.0, res.Delta)
	assert.Equal(t, SeverityWarning, res.Severity)
}

func TestArbitrage_QuantityOutOfRange(t *testing.T) {
	for _, q := range []float64{-1, 10000.5, math.NaN(), math.Inf(1)} {
		_, err := Arbitrage(policy.CarbonIntensity, 1, 2, q)
		var qe *QuantityOutOfRangeError
		assert.True(t, errors.As(err, &qe), "quantity %v", q)
	}

	_, err := Arbitrage(policy.CarbonIntensity, 1, 2, MaxQuantity)
	assert.NoError(t, err)
}
