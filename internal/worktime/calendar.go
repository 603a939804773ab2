package worktime

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
)

// DefaultHoursPerDay is the daily capacity used for every duration figure
// derived from status transitions.
const DefaultHoursPerDay = 7.0

// Holiday is a concrete holiday date inside a queried range.
type Holiday struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// WorkingDays is the result of a holiday-aware working day count.
type WorkingDays struct {
	Count    int         `json:"count"`
	Days     []time.Time `json:"days"`
	Holidays []Holiday   `json:"holidays"`
}

// Calendar knows the holidays of one region/subdivision.
type Calendar struct {
	region   string
	holidays []*cal.Holiday
}

var brazil = []*cal.Holiday{
	{Name: "Confraternização Universal", Month: time.January, Day: 1, Func: cal.CalcDayOfMonth},
	{Name: "Sexta-feira Santa", Offset: -2, Func: cal.CalcEasterOffset},
	{Name: "Tiradentes", Month: time.April, Day: 21, Func: cal.CalcDayOfMonth},
	{Name: "Dia do Trabalhador", Month: time.May, Day: 1, Func: cal.CalcDayOfMonth},
	{Name: "Independência do Brasil", Month: time.September, Day: 7, Func: cal.CalcDayOfMonth},
	{Name: "Nossa Senhora Aparecida", Month: time.October, Day: 12, Func: cal.CalcDayOfMonth},
	{Name: "Finados", Month: time.November, Day: 2, Func: cal.CalcDayOfMonth},
	{Name: "Proclamação da República", Month: time.November, Day: 15, Func: cal.CalcDayOfMonth},
	{Name: "Dia Nacional de Zumbi e da Consciência Negra", Month: time.November, Day: 20, StartYear: 2024, Func: cal.CalcDayOfMonth},
	{Name: "Natal", Month: time.December, Day: 25, Func: cal.CalcDayOfMonth},
}

var saoPaulo = []*cal.Holiday{
	{Name: "Revolução Constitucionalista", Month: time.July, Day: 9, Func: cal.CalcDayOfMonth},
}

var regions = map[string][]*cal.Holiday{
	"":      nil,
	"NONE":  nil,
	"BR":    brazil,
	"BR-SP": append(append([]*cal.Holiday{}, brazil...), saoPaulo...),
}

// NewCalendar returns the holiday calendar for region ("BR", "BR-SP" or "" for none).
func NewCalendar(region string) (*Calendar, error) {
	key := strings.ToUpper(strings.TrimSpace(region))
	holidays, ok := regions[key]
	if !ok {
		return nil, fmt.Errorf("unsupported holiday region %q", region)
	}
	return &Calendar{region: key, holidays: holidays}, nil
}

// Region returns the normalized region code.
func (c *Calendar) Region() string {
	return c.region
}

// HolidaysBetween lists the holidays falling on the inclusive date range,
// weekends included.
func (c *Calendar) HolidaysBetween(start, end time.Time) []Holiday {
	from, to := dateOf(start), dateOf(end)
	result := []Holiday{}
	if to.Before(from) {
		return result
	}

	for year := from.Year(); year <= to.Year(); year++ {
		for _, h := range c.holidays {
			actual, _ := h.Calc(year)
			if actual.IsZero() {
				continue
			}
			day := dateOf(actual)
			if day.Before(from) || day.After(to) {
				continue
			}
			result = append(result, Holiday{Name: h.Name, Date: day})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// WorkingDaysBetween enumerates weekdays in the inclusive range that are not
// holidays. ok is false when either bound is missing.
func (c *Calendar) WorkingDaysBetween(start, end time.Time) (WorkingDays, bool) {
	result := WorkingDays{Days: []time.Time{}, Holidays: []Holiday{}}
	if start.IsZero() || end.IsZero() {
		return result, false
	}

	from, to := dateOf(start), dateOf(end)
	if to.Before(from) {
		return result, true
	}

	holidays := c.HolidaysBetween(from, to)
	closed := make(map[time.Time]bool, len(holidays))
	for _, h := range holidays {
		closed[h.Date] = true
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if isWeekday(day) && !closed[day] {
			result.Days = append(result.Days, day)
		}
	}
	result.Count = len(result.Days)
	result.Holidays = holidays

	return result, true
}

// WorkingHoursBetween counts Monday-Friday days in the inclusive date range
// and multiplies them by hoursPerDay. Holidays are not excluded here.
func WorkingHoursBetween(start, end time.Time, hoursPerDay float64) float64 {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return Round(float64(BusinessDays(start, end)) * hoursPerDay)
}

// BusinessDays counts weekdays in the inclusive date range [start, end].
func BusinessDays(start, end time.Time) int {
	from, to := dateOf(start), dateOf(end)
	if to.Before(from) {
		return 0
	}

	count := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if isWeekday(day) {
			count++
		}
	}
	return count
}

// BusinessDaysBefore counts weekdays in the half-open date range [start, end).
func BusinessDaysBefore(start, end time.Time) int {
	from, to := dateOf(start), dateOf(end)
	if !from.Before(to) {
		return 0
	}
	return BusinessDays(from, to.AddDate(0, 0, -1))
}

// DaysInclusive returns the number of calendar days in [start, end], or 0.
func DaysInclusive(start, end time.Time) int {
	from, to := dateOf(start), dateOf(end)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// Date truncates t to its calendar date, expressed in UTC.
func Date(t time.Time) time.Time {
	return dateOf(t)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isWeekday(day time.Time) bool {
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
