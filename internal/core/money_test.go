package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"R$ 1.234,56", "1234.56", true},
		{"-R$ 10,00", "-10", true},
		{"R$ -10,00", "-10", true},
		{"R$ 200,00", "200", true},
		{"  R$ 1.000,00  ", "1000", true},
		{"1.234.567,89", "1234567.89", true},
		{"50", "50", true},
		{"0,5", "0.5", true},
		{"", "0", false},
		{"R$", "0", false},
		{"-", "0", false},
		{"abc", "0", false},
		{"1e3", "0", false},
		{"12,34,56", "0", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "%q: got %s want %s", tc.in, got, tc.out)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", tc.in)
			assert.True(t, got.IsZero())
		}
	}
}

func TestCoerceAmount(t *testing.T) {
	assert.True(t, CoerceAmount("R$ 1.234,56").Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, CoerceAmount("").IsZero())
	assert.True(t, CoerceAmount("not money").IsZero())
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"1234.56":    "R$ 1.234,56",
		"-10":        "-R$ 10,00",
		"0":          "R$ 0,00",
		"999":        "R$ 999,00",
		"1000000.5":  "R$ 1.000.000,50",
		"-0.01":      "-R$ 0,01",
		"123456.789": "R$ 123.456,789",
		"10.005":     "R$ 10,005",
		"10.500":     "R$ 10,50",
		"-0.125":     "-R$ 0,125",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), "format %s", in)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "-10", "1234.56", "-98765.43", "1000000", "10.005", "-1234.5678"} {
		d := decimal.RequireFromString(s)
		back, err := ParseAmount(FormatAmount(d))
		require.NoError(t, err)
		assert.True(t, back.Equal(d), "round trip %s -> %s", s, back)
	}
}
