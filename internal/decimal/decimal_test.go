package decimal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchrs/internal/decimal"
	"matchrs/internal/matchrserr"
)

func TestQuantizeBankers_RoundsHalfToEven(t *testing.T) {
	cases := []struct {
		in    string
		scale int32
		want  string
	}{
		{"0.125", 2, "0.12"}, // half-to-even: 0.12 is even at the last digit
		{"0.135", 2, "0.14"},
		{"1", 0, "1"},
	}
	for _, c := range cases {
		in, err := decimal.New(c.in)
		require.NoError(t, err)
		got, err := decimal.QuantizeBankers(in, c.scale)
		require.NoError(t, err)
		want, err := decimal.New(c.want)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "QuantizeBankers(%s, %d) = %s, want %s", c.in, c.scale, got, want)
	}
}

func TestQuantizeFloor_TruncatesTowardZero(t *testing.T) {
	in, err := decimal.New("1.23999999")
	require.NoError(t, err)
	got, err := decimal.QuantizeFloor(in, 4)
	require.NoError(t, err)
	want, err := decimal.New("1.2399")
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "floor quantization must never round up and over-credit, got %s", got)
}

func TestQuantizeCeil_RoundsUpOnResidual(t *testing.T) {
	in, err := decimal.New("50100.001")
	require.NoError(t, err)
	got, err := decimal.QuantizeCeil(in, 2)
	require.NoError(t, err)
	want, err := decimal.New("50100.01")
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "ceil quantization must never under-reserve, got %s", got)
}

func TestQuantizeExact_RejectsLossyRounding(t *testing.T) {
	in, err := decimal.New("1.001")
	require.NoError(t, err)
	_, err = decimal.QuantizeExact(in, 2)
	assert.ErrorIs(t, err, matchrserr.ErrScale)
}

func TestQuantizeExact_AcceptsExactValue(t *testing.T) {
	in, err := decimal.New("50000.50")
	require.NoError(t, err)
	got, err := decimal.QuantizeExact(in, 2)
	require.NoError(t, err)
	assert.True(t, got.Equal(in))
}

func TestCheckOverflow_RejectsValuesBeyondEnvelope(t *testing.T) {
	_, err := decimal.New("1" + repeat("0", 30))
	assert.ErrorIs(t, err, matchrserr.ErrNumericOverflow, "a 31-digit value exceeds the 30-digit envelope")
}

func TestIsMultipleOf(t *testing.T) {
	v, err := decimal.New("50000.25")
	require.NoError(t, err)
	assert.True(t, decimal.IsMultipleOf(v, 2))
	assert.False(t, decimal.IsMultipleOf(v, 1))
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
