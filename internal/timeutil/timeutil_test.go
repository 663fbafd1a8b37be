package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, saoPaulo)
}

func TestResolveDate(t *testing.T) {
	// Wednesday
	wed := time.Date(2025, 4, 9, 15, 4, 0, 0, saoPaulo)

	tests := []struct {
		name string
		expr string
		now  time.Time
		want time.Time
		rule string
	}{
		{"tomorrow pt", "amanhã", wed, day(2025, 4, 10), "tomorrow"},
		{"tomorrow pt without accent", "amanha", wed, day(2025, 4, 10), "tomorrow"},
		{"tomorrow en", "Tomorrow", wed, day(2025, 4, 10), "tomorrow"},
		{"tomorrow across month end", "amanhã", time.Date(2025, 1, 31, 18, 0, 0, 0, saoPaulo), day(2025, 2, 1), "tomorrow"},
		{"tomorrow across year end", "amanhã", time.Date(2024, 12, 31, 23, 30, 0, 0, saoPaulo), day(2025, 1, 1), "tomorrow"},
		{"today", "hoje", wed, day(2025, 4, 9), "today"},
		{"day after tomorrow", "depois de amanhã", wed, day(2025, 4, 11), "day_after_tomorrow"},
		{"weekday pt", "segunda-feira", wed, day(2025, 4, 14), "weekday"},
		{"weekday with prefix", "na sexta", wed, day(2025, 4, 11), "weekday"},
		{"weekday en", "next friday", wed, day(2025, 4, 11), "weekday"},
		{"same weekday goes a week ahead", "quarta", wed, day(2025, 4, 16), "weekday"},
		{"saturday with accent", "sábado", wed, day(2025, 4, 12), "weekday"},
		{"next week", "semana que vem", wed, day(2025, 4, 16), "next_week"},
		{"next month", "next month", wed, day(2025, 5, 9), "next_month"},
		{"next month clamps", "mês que vem", time.Date(2025, 1, 31, 9, 0, 0, 0, saoPaulo), day(2025, 2, 28), "next_month"},
		{"next month clamps leap year", "próximo mês", time.Date(2024, 1, 31, 9, 0, 0, 0, saoPaulo), day(2024, 2, 29), "next_month"},
		{"iso literal", "2025-05-02", wed, day(2025, 5, 2), "iso"},
		{"day month", "15/04", wed, day(2025, 4, 15), "day_month"},
		{"day month year", "02/01/2026", wed, day(2026, 1, 2), "day_month"},
		{"sentence", "amanhã de manhã", wed, day(2025, 4, 10), "tomorrow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveDate(tt.expr, tt.now)
			assert.False(t, res.LowConfidence)
			assert.Equal(t, tt.rule, res.Rule)
			assert.True(t, tt.want.Equal(res.Date), "got %s want %s", res.Date, tt.want)
		})
	}
}

func TestResolveDateFallback(t *testing.T) {
	now := time.Date(2025, 4, 9, 15, 4, 0, 0, saoPaulo)

	for _, expr := range []string{"banana", "", "31/02", "someday"} {
		t.Run(expr, func(t *testing.T) {
			res := ResolveDate(expr, now)
			assert.True(t, res.LowConfidence)
			assert.Equal(t, "2025-04-09", res.String())
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
	}{
		{"14:30", 14, 30},
		{"9:00", 9, 0},
		{"9h", 9, 0},
		{"9h30", 9, 30},
		{"às 10h", 10, 0},
		{"2pm", 14, 0},
		{"2:30 pm", 14, 30},
		{"12am", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}

	for _, bad := range []string{"", "25:00", "noon", "10:75"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestCombineDateAndClock(t *testing.T) {
	now := time.Date(2025, 4, 9, 15, 4, 0, 0, saoPaulo)

	got, res, err := CombineDateAndClock("amanhã", "10:00", now, saoPaulo)
	require.NoError(t, err)
	assert.False(t, res.LowConfidence)
	assert.True(t, time.Date(2025, 4, 10, 10, 0, 0, 0, saoPaulo).Equal(got))

	_, _, err = CombineDateAndClock("amanhã", "whenever", now, saoPaulo)
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2025-04-10T10:00:00-03:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 13, got.UTC().Hour())

	got, err = ParseDateTime("2025-04-10 10:00", saoPaulo)
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, got.Location())

	_, err = ParseDateTime("tomorrow", saoPaulo)
	assert.Error(t, err)
}

func TestResolveLocation(t *testing.T) {
	loc, fallback := ResolveLocation("")
	assert.True(t, fallback)
	assert.Equal(t, time.UTC, loc)

	_, fallback = ResolveLocation("Not/AZone")
	assert.True(t, fallback)
}
