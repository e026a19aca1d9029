// Package hours answers whether a point in time falls within the configured
// weekly business-hours schedule.
package hours

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wai/pbxbridge/internal/config"
	"github.com/wai/pbxbridge/internal/models"
)

// Service evaluates the weekly schedule in its configured timezone.
type Service struct {
	windows  map[string]*models.DayWindow
	timezone *time.Location
	now      func() time.Time
}

// weekdaysMondayFirst is the presentation order for BusinessDays.
var weekdaysMondayFirst = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// New creates a Service from configuration. An unknown timezone falls back to
// UTC, matching how the rest of the system degrades rather than aborts.
func New(cfg config.BusinessHoursConfig) *Service {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("Unknown timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	return &Service{
		windows: map[string]*models.DayWindow{
			"monday":    cfg.Monday,
			"tuesday":   cfg.Tuesday,
			"wednesday": cfg.Wednesday,
			"thursday":  cfg.Thursday,
			"friday":    cfg.Friday,
			"saturday":  cfg.Saturday,
			"sunday":    cfg.Sunday,
		},
		timezone: loc,
		now:      time.Now,
	}
}

// InBusinessHours reports whether at falls within that weekday's window,
// inclusive on both ends. A zero time means "now". Comparison is on formatted
// HH:mm strings, so a window cannot span midnight.
func (s *Service) InBusinessHours(at time.Time) bool {
	if at.IsZero() {
		at = s.now()
	}
	local := at.In(s.timezone)

	window := s.windows[dayName(local.Weekday())]
	if window == nil {
		return false
	}

	hhmm := local.Format("15:04")
	return hhmm >= window.Start && hhmm <= window.End
}

// NextStart returns the start of the next configured business-hours window,
// scanning day by day from tomorrow at midnight. With an all-closed schedule
// it falls back to tomorrow at 08:00.
func (s *Service) NextStart(from time.Time) time.Time {
	if from.IsZero() {
		from = s.now()
	}
	local := from.In(s.timezone)

	for i := 1; i <= 7; i++ {
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.timezone).
			AddDate(0, 0, i)
		if window := s.windows[dayName(day.Weekday())]; window != nil {
			var hh, mm int
			fmt.Sscanf(window.Start, "%d:%d", &hh, &mm)
			return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, s.timezone)
		}
	}

	tomorrow := local.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 8, 0, 0, 0, s.timezone)
}

// UntilNextStart returns the duration from from until the next window opens.
func (s *Service) UntilNextStart(from time.Time) time.Duration {
	if from.IsZero() {
		from = s.now()
	}
	return s.NextStart(from).Sub(from)
}

// WindowForDay returns the window for a weekday name (case-insensitive), or
// nil when the day is closed or unknown.
func (s *Service) WindowForDay(name string) *models.DayWindow {
	return s.windows[strings.ToLower(name)]
}

// BusinessDays lists the weekday names with a configured window, Monday first.
func (s *Service) BusinessDays() []string {
	var days []string
	for _, day := range weekdaysMondayFirst {
		if s.windows[day] != nil {
			days = append(days, day)
		}
	}
	return days
}

func dayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}
