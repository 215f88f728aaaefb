package models

import (
	"fmt"
	"time"
)

// PeriodType discriminates daily and weekly report periods.
type PeriodType string

const (
	PeriodDaily  PeriodType = "daily"
	PeriodWeekly PeriodType = "weekly"
)

// ReportPeriod selects the aggregation window and rendering template for
// one report run. Date is midnight of the target day (daily) or of the
// week's Monday (weekly), in the channel timezone.
type ReportPeriod struct {
	Type PeriodType
	Date time.Time
}

// DailyPeriod returns the period covering the calendar day of t.
func DailyPeriod(t time.Time) ReportPeriod {
	return ReportPeriod{Type: PeriodDaily, Date: startOfDay(t)}
}

// WeeklyPeriod returns the period covering the Monday-to-Sunday week
// containing t.
func WeeklyPeriod(t time.Time) ReportPeriod {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return ReportPeriod{Type: PeriodWeekly, Date: day.AddDate(0, 0, -offset)}
}

// Window returns the half-open time range [start, end) the period covers.
func (p ReportPeriod) Window() (time.Time, time.Time) {
	switch p.Type {
	case PeriodWeekly:
		return p.Date, p.Date.AddDate(0, 0, 7)
	default:
		return p.Date, p.Date.AddDate(0, 0, 1)
	}
}

// Label returns the human-readable date range used in report headings.
func (p ReportPeriod) Label() string {
	if p.Type == PeriodWeekly {
		end := p.Date.AddDate(0, 0, 6)
		return fmt.Sprintf("%s to %s", p.Date.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return p.Date.Format("2006-01-02")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
