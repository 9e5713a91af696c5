package money

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-08")
	require.NoError(t, err)
	require.Equal(t, 2025, d.Year())
	require.Equal(t, time.March, d.Month())
	require.Equal(t, 8, d.Day())
	require.Equal(t, "2025-03-08", d.String())

	_, err = ParseDate("08/03/2025")
	require.Error(t, err)
	_, err = ParseDate("")
	require.Error(t, err)
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2025, time.March, 8)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2025-03-08"`, string(raw))

	var decoded Date
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, d, decoded)

	// empty string decodes to the zero date
	require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
	require.True(t, decoded.IsZero())
}

func TestDateAddNormalizes(t *testing.T) {
	d := NewDate(2025, time.January, 31)
	require.Equal(t, NewDate(2025, time.February, 1), d.Add(1))
	require.Equal(t, NewDate(2025, time.January, 21), d.Add(-10))

	// leap day
	require.Equal(t, NewDate(2024, time.February, 29), NewDate(2024, time.February, 28).Add(1))
	require.Equal(t, NewDate(2025, time.March, 1), NewDate(2025, time.February, 28).Add(1))
}

func TestDaysUntil(t *testing.T) {
	from := NewDate(2025, time.March, 1)
	require.Equal(t, 0, from.DaysUntil(from))
	require.Equal(t, 30, from.DaysUntil(NewDate(2025, time.March, 31)))
	require.Equal(t, -1, from.DaysUntil(NewDate(2025, time.February, 28)))
}

func TestBetween(t *testing.T) {
	d := NewDate(2025, time.March, 15)

	require.True(t, d.Between(NewDate(2025, time.March, 1), NewDate(2025, time.March, 31)))
	require.True(t, d.Between(NewDate(2025, time.March, 15), NewDate(2025, time.March, 15)))
	require.False(t, d.Between(NewDate(2025, time.March, 16), NewDate(2025, time.March, 31)))
	require.False(t, d.Between(NewDate(2025, time.March, 1), NewDate(2025, time.March, 14)))

	// zero bounds are open-ended
	require.True(t, d.Between(Date{}, Date{}))
	require.True(t, d.Between(NewDate(2025, time.March, 1), Date{}))
	require.False(t, d.Between(Date{}, NewDate(2025, time.March, 14)))
}
