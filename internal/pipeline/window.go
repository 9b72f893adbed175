package pipeline

import "time"

// MonthlyWindow returns the export window for a monthly run at now: the
// whole calendar month two months back, which is the latest month with
// complete reads. period is the first day of now's month.
func MonthlyWindow(now time.Time) (start, end, period time.Time) {
	loc := now.Location()
	period = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	start = period.AddDate(0, -2, 0)
	end = period.AddDate(0, -1, 0).Add(-time.Second)
	return start, end, period
}

// HourlyWindow returns the reporting window ending today at startHour. On
// Mondays the window reaches back to Friday to cover the weekend.
func HourlyWindow(now time.Time, startHour int) (start, end time.Time) {
	end = time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, now.Location())
	days := 1
	if now.Weekday() == time.Monday {
		days = 3
	}
	return end.AddDate(0, 0, -days), end
}

// HistoryStart returns the first period of the slot year in effect at now:
// the export window start of the most recent run in resetMonth. Period
// values before it belong to an archived year.
func HistoryStart(now time.Time, resetMonth time.Month) time.Time {
	year := now.Year()
	if now.Month() < resetMonth {
		year--
	}
	start, _, _ := MonthlyWindow(time.Date(year, resetMonth, 1, 0, 0, 0, 0, now.Location()))
	return start
}
