package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsUpToFourDecimals(t *testing.T) {
	for _, in := range []string{"1.2345", "5", "0", "0.0001", " 2.5 ", "100.10"} {
		_, err := Parse(in)
		require.NoError(t, err, in)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]error{
		"-1.0000": ErrNegative,
		"-0":      ErrNegative,
		"1.00001": ErrPrecision,
		"1.50000": ErrPrecision,
		"":        ErrMalformed,
		"abc":     ErrMalformed,
		"1e3":     ErrMalformed,
	}
	for in, want := range cases {
		_, err := Parse(in)
		assert.ErrorIs(t, err, want, in)
	}
}

func TestStringFixedScale(t *testing.T) {
	assert.Equal(t, "5.0000", MustParse("5").String())
	assert.Equal(t, "1.2345", MustParse("1.2345").String())
	assert.Equal(t, "0.0000", Zero.String())
	assert.Equal(t, "-3.0000", MustParse("2").Sub(MustParse("5")).String())
}

func TestArithmeticIsExact(t *testing.T) {
	sum := Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(MustParse("0.1"))
	}
	assert.True(t, sum.Equal(MustParse("1")), "got %s", sum)
	assert.True(t, MustParse("0.3").Sub(MustParse("0.1")).Equal(MustParse("0.2")))
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(MustParse("1.5"))
	require.NoError(t, err)
	assert.Equal(t, `"1.5000"`, string(data))

	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"-3.0000"`), &a))
	assert.True(t, a.IsNegative())
}
