package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned (wrapped) for any input that does not decompose
// into a positive sum of recognized tokens.
var ErrInvalidDuration = errors.New("invalid duration")

// Seconds per canonical unit. Months and years are fixed approximations.
const (
	Second int64 = 1
	Minute       = 60 * Second
	Hour         = 60 * Minute
	Day          = 24 * Hour
	Week         = 7 * Day
	Month        = 30 * Day
	Year         = 365 * Day
)

var (
	tokenRegex      = regexp.MustCompile(`(\d+)(\p{L}+)`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// unitAliases maps every accepted spelling onto its canonical unit.
var unitAliases = map[string]string{
	"s": "s", "sec": "s", "secs": "s", "second": "s", "seconds": "s", "seconde": "s", "secondes": "s",
	"m": "m", "min": "m", "mins": "m", "minute": "m", "minutes": "m",
	"h": "h", "hr": "h", "hrs": "h", "hour": "h", "hours": "h", "heure": "h", "heures": "h",
	"d": "d", "day": "d", "days": "d", "jour": "d", "jours": "d",
	"w": "w", "week": "w", "weeks": "w", "semaine": "w", "semaines": "w",
	"mo": "mo", "month": "mo", "months": "mo", "mois": "mo",
	"y": "y", "yr": "y", "yrs": "y", "year": "y", "years": "y", "an": "y", "ans": "y",
}

var unitSeconds = map[string]int64{
	"s":  Second,
	"m":  Minute,
	"h":  Hour,
	"d":  Day,
	"w":  Week,
	"mo": Month,
	"y":  Year,
}

// Parse converts a human readable compound duration such as "1h30m", "2 days 6h"
// or "1w2d3h10m" into seconds. Repeated units are additive.
func Parse(input string) (int64, error) {
	s := whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(input)), "")
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidDuration)
	}

	matches := tokenRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: %q has no <number><unit> token", ErrInvalidDuration, input)
	}

	var (
		consumed strings.Builder
		total    int64
	)
	for _, m := range matches {
		consumed.WriteString(m[0])

		unit, ok := unitAliases[m[2]]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidDuration, m[2], input)
		}

		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrInvalidDuration, m[1], err)
		}

		mult := unitSeconds[unit]
		if n > (math.MaxInt64-total)/mult {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, input)
		}
		total += n * mult
	}

	// "10mabc" or "1h 30" leave characters outside the matched tokens
	if consumed.String() != s {
		return 0, fmt.Errorf("%w: unexpected trailing text in %q", ErrInvalidDuration, input)
	}

	if total <= 0 {
		return 0, fmt.Errorf("%w: %q is zero", ErrInvalidDuration, input)
	}

	return total, nil
}

// ParseDuration is Parse returning a time.Duration.
func ParseDuration(input string) (time.Duration, error) {
	secs, err := Parse(input)
	if err != nil {
		return 0, err
	}
	if secs > int64(math.MaxInt64/time.Second) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, input)
	}
	return time.Duration(secs) * time.Second, nil
}

// Format renders seconds using the largest units first, e.g. 5400 -> "1h30m".
func Format(secs int64) string {
	if secs <= 0 {
		return "0s"
	}
	var b strings.Builder
	for _, u := range []string{"y", "mo", "w", "d", "h", "m", "s"} {
		mult := unitSeconds[u]
		if secs >= mult {
			fmt.Fprintf(&b, "%d%s", secs/mult, u)
			secs %= mult
		}
	}
	return b.String()
}
