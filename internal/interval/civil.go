package interval

import "time"

const dateLayout = "2006-01-02"

// CivilDate truncates t to local midnight in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func sameCivilDay(t, day time.Time, loc *time.Location) bool {
	return CivilDate(t, loc).Equal(CivilDate(day, loc))
}

// WeekStart returns the Sunday local midnight beginning the week that
// contains t. Week boundaries are fixed Sunday through Saturday in the
// worker's local zone.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := CivilDate(t, loc)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// WeekEnd returns the Saturday civil date closing the week that starts at
// weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 6)
}

// CutoffInstant places a fixed local wall-clock cutoff (hour, minute) on
// the civil day of t.
func CutoffInstant(t time.Time, hour, minute int, loc *time.Location) time.Time {
	d := CivilDate(t, loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}
