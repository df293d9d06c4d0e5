package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayFirstRoundTrip(t *testing.T) {
	for _, s := range []string{"01/03/2024", "31/12/1999", "29/02/2024", "05/11/2023", "10/01/2025"} {
		d, err := ParseDayFirst(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, d.DayFirst())
	}
}

func TestParseDayFirstVariants(t *testing.T) {
	cases := map[string]Date{
		"5/3/2024":            NewDate(2024, 3, 5),
		"05-03-2024":          NewDate(2024, 3, 5),
		"05.03.2024":          NewDate(2024, 3, 5),
		" 05/03/2024 ":        NewDate(2024, 3, 5),
		"05/03/2024 14:30":    NewDate(2024, 3, 5),
		"05/03/2024 14:30:59": NewDate(2024, 3, 5),
		"05/03/24":            NewDate(2024, 3, 5),
		"2024-03-05":          NewDate(2024, 3, 5),
	}
	for in, want := range cases {
		got, err := ParseDayFirst(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want.Time), "%q: got %s want %s", in, got.ISO(), want.ISO())
	}
}

func TestParseDayFirstInvalid(t *testing.T) {
	for _, in := range []string{"", "invalid", "31/02/2024", "13/13/2024", "2024/13/01", "03-2024"} {
		_, err := ParseDayFirst(in)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", in)
	}
}

func TestDatePeriod(t *testing.T) {
	p := NewDate(2024, 3, 9).Period()
	assert.Equal(t, "2024-03", p.Key)
	assert.Equal(t, "03/2024", p.Label)
	assert.Equal(t, NewDate(2024, 3, 1), NewDate(2024, 3, 9).FirstOfMonth())
}

func TestParsePeriodKey(t *testing.T) {
	p, err := ParsePeriodKey("2024-11")
	require.NoError(t, err)
	assert.Equal(t, Period{Key: "2024-11", Label: "11/2024"}, p)

	_, err = ParsePeriodKey("11/2024")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, Inflow, DirectionOf(decimal.NewFromInt(5)))
	assert.Equal(t, Outflow, DirectionOf(decimal.NewFromInt(-5)))
	assert.Equal(t, Outflow, DirectionOf(decimal.Zero))
	assert.True(t, Inflow.Valid())
	assert.False(t, Direction("ENTRADA").Valid())
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal(b, &d))
	assert.True(t, d.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDateValidate(t *testing.T) {
	assert.NoError(t, NewDate(2025, 1, 1).Validate())
	assert.Error(t, Date{}.Validate())
}
