package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"hours and minutes", "1h30m", 5400},
		{"days and hours", "2d6h", 2*86400 + 6*3600},
		{"spaced tokens", "1 h 30 m", 5400},
		{"seconds", "45s", 45},
		{"min alias", "15min", 900},
		{"long minute alias", "10 minutes", 600},
		{"week", "1w", 604800},
		{"month is thirty days", "1mo", 30 * 86400},
		{"year", "1y", 365 * 86400},
		{"french aliases", "1 jour 2 heures", 86400 + 7200},
		{"mois", "2mois", 60 * 86400},
		{"ans", "1an", 365 * 86400},
		{"upper case", "1H30M", 5400},
		{"repeated units add", "1h1h", 7200},
		{"full chain", "1w2d3h10m", 604800 + 2*86400 + 3*3600 + 600},
		{"surrounding whitespace", "  10m \t", 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"trailing garbage", "10mabc"},
		{"zero", "0m"},
		{"empty", ""},
		{"only spaces", "   "},
		{"number without unit", "10"},
		{"unit without number", "h"},
		{"leading garbage", "abc1h"},
		{"dangling number", "1h30"},
		{"unknown unit", "3fortnights"},
		{"negative sign", "-5m"},
		{"overflow", "99999999999999999999y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDuration)
		})
	}
}

func TestParseSpacingEquivalence(t *testing.T) {
	compact, err := Parse("1h30m")
	require.NoError(t, err)
	spaced, err := Parse("1 h 30 m")
	require.NoError(t, err)
	assert.Equal(t, compact, spaced)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("1h30m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = ParseDuration("nope")
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1h30m", Format(5400))
	assert.Equal(t, "2d6h", Format(2*86400+6*3600))
	assert.Equal(t, "0s", Format(0))
	assert.Equal(t, "45s", Format(45))
}
