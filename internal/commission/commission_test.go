package commission

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name           string
		gross, rate    string
		wantCommission string
		wantNet        string
		wantErr        error
	}{
		{name: "five percent of 1000", gross: "1000", rate: "0.05", wantCommission: "50", wantNet: "950"},
		{name: "rounds half up to cents", gross: "10.10", rate: "0.05", wantCommission: "0.51", wantNet: "9.59"},
		{name: "rounds down below half", gross: "99.99", rate: "0.05", wantCommission: "5", wantNet: "94.99"},
		{name: "zero rate", gross: "250", rate: "0", wantCommission: "0", wantNet: "250"},
		{name: "full rate", gross: "250", rate: "1", wantCommission: "250", wantNet: "0"},
		{name: "sub cent gross", gross: "0.01", rate: "0.05", wantCommission: "0", wantNet: "0.01"},
		{name: "zero gross", gross: "0", rate: "0.05", wantErr: ErrInvalidAmount},
		{name: "negative gross", gross: "-10", rate: "0.05", wantErr: ErrInvalidAmount},
		{name: "negative rate", gross: "10", rate: "-0.01", wantErr: ErrInvalidRate},
		{name: "rate above one", gross: "10", rate: "1.01", wantErr: ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := ComputeSplit(d(tt.gross), d(tt.rate))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, Split{}, split)
				return
			}
			require.NoError(t, err)
			assert.True(t, split.Commission.Equal(d(tt.wantCommission)), "commission %s", split.Commission)
			assert.True(t, split.Net.Equal(d(tt.wantNet)), "net %s", split.Net)
		})
	}
}

func TestComputeSplitDefaultRateExample(t *testing.T) {
	split, err := ComputeSplit(d("1000"), DefaultRate)
	require.NoError(t, err)
	assert.Equal(t, "50.00", split.Commission.StringFixed(2))
	assert.Equal(t, "950.00", split.Net.StringFixed(2))
}

func TestComputeSplitPreservesGross(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		gross := decimal.New(rng.Int63n(10_000_000)+1, -2)
		rate := decimal.New(rng.Int63n(10_001), -4)

		split, err := ComputeSplit(gross, rate)
		require.NoError(t, err)

		assert.True(t, split.Commission.Add(split.Net).Equal(gross), "gross=%s rate=%s", gross, rate)
		assert.True(t, split.Commission.Equal(gross.Mul(rate).Round(2)), "gross=%s rate=%s", gross, rate)
	}
}

func TestScheduleRateFor(t *testing.T) {
	tiers, err := ParseTiers("50000:0.03, 10000:0.04")
	require.NoError(t, err)

	s := Schedule{
		Default:   DefaultRate,
		Overrides: map[Kind]decimal.Decimal{KindDelivery: d("0.10")},
		Tiers:     tiers,
	}
	require.NoError(t, s.Validate())

	assert.True(t, s.RateFor(KindOrder, d("999")).Equal(d("0.05")))
	assert.True(t, s.RateFor(KindOrder, d("10000")).Equal(d("0.04")))
	assert.True(t, s.RateFor(KindLabBooking, d("75000")).Equal(d("0.03")))
	assert.True(t, s.RateFor(KindDelivery, d("75000")).Equal(d("0.10")))

	split, err := s.Split(KindAppointment, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", split.Commission.StringFixed(2))
	assert.Equal(t, "950.00", split.Net.StringFixed(2))
}

func TestScheduleValidate(t *testing.T) {
	s := Schedule{Default: DefaultRate, Tiers: []Tier{{MinGross: d("100"), Rate: d("1.5")}}}
	require.ErrorIs(t, s.Validate(), ErrInvalidRate)

	s = Schedule{Default: d("-1")}
	require.ErrorIs(t, s.Validate(), ErrInvalidRate)
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("")
	require.NoError(t, err)
	assert.Empty(t, tiers)

	_, err = ParseTiers("1000=0.04")
	require.Error(t, err)

	_, err = ParseTiers("abc:0.04")
	require.Error(t, err)

	tiers, err = ParseTiers("5000:0.03,1000:0.04")
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.True(t, tiers[0].MinGross.Equal(d("1000")))
}
