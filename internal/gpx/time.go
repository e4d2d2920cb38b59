package gpx

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimezone is returned for timestamps whose timezone designator is
// anything other than Z. Track logs are expected to be recorded in UTC and
// silently accepting an offset would shift every sample.
var ErrTimezone = errors.New("timezone is not Z")

var errInvalidTime = errors.New("invalid time")

func parseDigits(s string, n int) (int, bool) {
	if len(s) < n {
		return 0, false
	}
	value := 0
	for i := 0; i < n; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		value = value*10 + int(s[i]-'0')
	}
	return value, true
}

// ParseTime parses the strict YYYY-MM-DDTHH:MM:SS[.frac]Z timestamp format
// used by track logs into seconds since the Unix epoch. Surrounding
// whitespace is ignored.
func ParseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)

	fail := func() (float64, error) {
		return 0, fmt.Errorf("%w %q", errInvalidTime, s)
	}

	year, ok := parseDigits(s, 4)
	if !ok || len(s) < 5 || s[4] != '-' {
		return fail()
	}
	month, ok := parseDigits(s[5:], 2)
	if !ok || len(s) < 8 || s[7] != '-' {
		return fail()
	}
	day, ok := parseDigits(s[8:], 2)
	if !ok || len(s) < 11 || s[10] != 'T' {
		return fail()
	}
	hour, ok := parseDigits(s[11:], 2)
	if !ok || len(s) < 14 || s[13] != ':' {
		return fail()
	}
	minute, ok := parseDigits(s[14:], 2)
	if !ok || len(s) < 17 || s[16] != ':' {
		return fail()
	}
	second, ok := parseDigits(s[17:], 2)
	if !ok {
		return fail()
	}

	rest := s[19:]

	subDividend := 0
	subDivisor := 1

	if strings.HasPrefix(rest, ".") {
		i := 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			subDividend = subDividend*10 + int(rest[i]-'0')
			subDivisor *= 10
			i++
		}
		rest = rest[i:]
	}

	if !strings.HasPrefix(rest, "Z") {
		return 0, ErrTimezone
	}
	if rest[1:] != "" {
		return fail()
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second,
		0, time.UTC)

	return float64(t.Unix()) + float64(subDividend)/float64(subDivisor), nil
}
