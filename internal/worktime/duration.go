package worktime

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	HoursPerWeek = 40.0
	HoursPerDay  = 8.0
)

var durationToken = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)([wdhm])$`)

// ParseDuration converts a Jira time-tracking string such as "1w 2d 3h 30m"
// into hours. Unknown tokens are ignored and an empty string yields 0.
func ParseDuration(text string) float64 {
	total := 0.0
	for _, token := range strings.Fields(strings.ToLower(text)) {
		match := durationToken.FindStringSubmatch(token)
		if match == nil {
			continue
		}

		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
		if err != nil {
			continue
		}

		switch match[2] {
		case "w":
			total += value * HoursPerWeek
		case "d":
			total += value * HoursPerDay
		case "h":
			total += value
		case "m":
			total += value / 60
		}
	}

	return Round(total)
}

// Round rounds to two decimals.
func Round(value float64) float64 {
	return math.Round(value*100) / 100
}
