package routing

import "time"

// Active reports whether the schedule considers the given instant to be
// within business hours. Absence of any window means always active.
func (s *Schedule) Active(at time.Time) bool {
	if s == nil || len(s.Windows) == 0 {
		return true
	}

	loc := time.UTC
	if s.Timezone != "" {
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
	}
	local := at.In(loc)
	minute := local.Hour()*60 + local.Minute()

	for _, w := range s.Windows {
		if w.StartMinute <= w.EndMinute {
			if local.Weekday() == w.Weekday && minute >= w.StartMinute && minute < w.EndMinute {
				return true
			}
			continue
		}
		// Wrapped window: the pre-midnight half belongs to the window's
		// weekday, the post-midnight half to the following day.
		if local.Weekday() == w.Weekday && minute >= w.StartMinute {
			return true
		}
		if local.Weekday() == (w.Weekday+1)%7 && minute < w.EndMinute {
			return true
		}
	}
	return false
}
